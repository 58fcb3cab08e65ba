// Package status owns the polling cadence and the busy/open display state
// of a single calendar.
//
// All state transitions go through Engine methods guarded by one mutex. In
// Run they are additionally serialized on the loop goroutine: cron jobs only
// post signals, and the fetch result comes back over a channel, so a render
// tick may observe the previous event set while a fetch is in flight.
package status

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"roomstatus/internal/clock"
	fetcherr "roomstatus/internal/errors"
	appLog "roomstatus/internal/log"
	"roomstatus/internal/model"
)

const (
	DefaultPollInterval   = 60 * time.Second
	DefaultRenderInterval = time.Second

	// MinInterval is the finest cadence the cron scheduler can run.
	MinInterval = time.Second
)

// ErrPollInFlight is returned by Poll when a previous fetch has not
// completed yet.
var ErrPollInFlight = errors.New("status: poll already in flight")

// Fetcher lists the events of the configured calendar within [from, to].
type Fetcher interface {
	Fetch(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
}

// Initializer is implemented by fetchers that need a one-time client setup
// before the first Fetch.
type Initializer interface {
	Init(ctx context.Context) error
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	// Location is the display zone used for the day window, the day sort
	// key and the clock label. Nil means time.Local.
	Location *time.Location

	PollInterval   time.Duration
	RenderInterval time.Duration

	// RolloverWindow recomputes the query window on each poll. When false
	// the window captured at construction is reused for the process
	// lifetime, so a process running past midnight keeps asking for the
	// day it started on.
	RolloverWindow bool
}

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	CurrentTime string
	Now         time.Time
	Events      []model.CalendarEvent

	IsLoading bool
	IsEmpty   bool
	IsBusy    bool

	// Ready is set once the first poll has completed, successfully or not.
	Ready      bool
	LastPolled time.Time
	Window     model.Window
	Location   *time.Location
}

// Engine polls a Fetcher and derives the display state from the clock.
type Engine struct {
	fetcher Fetcher
	clock   clock.Clock
	opts    Options

	mu       sync.RWMutex
	state    Snapshot
	inFlight bool
	subs     map[int]chan struct{}
	nextSub  int
}

// New builds an Engine with an empty event set. The query window is
// captured from clk here.
func New(fetcher Fetcher, clk clock.Clock, opts Options) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RenderInterval <= 0 {
		opts.RenderInterval = DefaultRenderInterval
	}
	opts.PollInterval = clampInterval("poll_interval", opts.PollInterval)
	opts.RenderInterval = clampInterval("render_interval", opts.RenderInterval)

	now := clk.Now()
	return &Engine{
		fetcher: fetcher,
		clock:   clk,
		opts:    opts,
		state: Snapshot{
			CurrentTime: FormatClock(now, opts.Location),
			Now:         now,
			Events:      []model.CalendarEvent{},
			Window:      model.DayWindow(now, opts.Location),
			Location:    opts.Location,
		},
		subs: make(map[int]chan struct{}),
	}
}

// clampInterval raises sub-second intervals to MinInterval, since cron.Every
// would round them up anyway.
func clampInterval(name string, d time.Duration) time.Duration {
	if d >= MinInterval {
		return d.Truncate(time.Second)
	}
	appLog.Info("interval below scheduler resolution, using minimum",
		"setting", name, "configured", d.String(), "effective", MinInterval.String())
	return MinInterval
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.state
	s.Events = slices.Clone(e.state.Events)
	return s
}

// Subscribe returns a channel signalled after every state change and a
// function that releases it. Signals coalesce; read Snapshot on receipt.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan struct{}, 1)
	e.subs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Init runs the fetcher's one-time client setup, if it has one.
func (e *Engine) Init(ctx context.Context) error {
	in, ok := e.fetcher.(Initializer)
	if !ok {
		return nil
	}
	return in.Init(ctx)
}

// Run initializes the fetcher client, polls once, then keeps polling every
// PollInterval and re-rendering every RenderInterval until ctx is done.
// Fetch failures never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Init(ctx); err != nil {
		// Polls keep failing with a not-initialized error until restart.
		appLog.Error("calendar client init failed", err)
	}

	pollCh := make(chan struct{}, 1)
	tickCh := make(chan struct{}, 1)
	results := make(chan pollResult, 1)

	sched := cron.New()
	sched.Schedule(cron.Every(e.opts.RenderInterval), cron.FuncJob(func() { signal(tickCh) }))
	sched.Schedule(cron.Every(e.opts.PollInterval), cron.FuncJob(func() { signal(pollCh) }))
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	appLog.Info("status engine started",
		"poll_interval", e.opts.PollInterval.String(),
		"render_interval", e.opts.RenderInterval.String(),
		"rollover_window", e.opts.RolloverWindow,
	)

	e.RenderTick()
	e.startPoll(ctx, results)

	for {
		select {
		case <-ctx.Done():
			appLog.Info("status engine stopped")
			return nil
		case <-tickCh:
			e.RenderTick()
		case <-pollCh:
			e.startPoll(ctx, results)
		case r := <-results:
			e.completePoll(r.id, r.events, r.err)
		}
	}
}

// Poll runs one fetch-and-refresh cycle synchronously. The fetch error, if
// any, is logged and returned; the displayed state is left as it was.
func (e *Engine) Poll(ctx context.Context) error {
	id, window, ok := e.beginPoll()
	if !ok {
		return ErrPollInFlight
	}
	events, err := e.fetcher.Fetch(ctx, window.Start, window.End)
	e.completePoll(id, events, err)
	return err
}

// RenderTick recomputes the clock label and the busy flag from the current
// event set. It performs no I/O.
func (e *Engine) RenderTick() {
	now := e.clock.Now()

	e.mu.Lock()
	e.state.Now = now
	e.state.CurrentTime = FormatClock(now, e.opts.Location)
	e.state.IsBusy = IsBusy(e.state.Events, now)
	e.mu.Unlock()

	e.notify()
}

type pollResult struct {
	id     string
	events []model.CalendarEvent
	err    error
}

func (e *Engine) startPoll(ctx context.Context, results chan<- pollResult) {
	id, window, ok := e.beginPoll()
	if !ok {
		return
	}
	go func() {
		events, err := e.fetcher.Fetch(ctx, window.Start, window.End)
		results <- pollResult{id: id, events: events, err: err}
	}()
}

// beginPoll marks a fetch as in flight. It refuses when one already is.
func (e *Engine) beginPoll() (string, model.Window, bool) {
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		appLog.Info("poll skipped: previous fetch still in flight")
		return "", model.Window{}, false
	}
	e.inFlight = true
	e.state.IsLoading = true
	if e.opts.RolloverWindow {
		e.state.Window = model.DayWindow(e.clock.Now(), e.opts.Location)
	}
	window := e.state.Window
	e.mu.Unlock()

	id := uuid.NewString()
	appLog.Debug("poll started",
		"poll_id", id,
		"time_min", window.Start.Format(time.RFC3339),
		"time_max", window.End.Format(time.RFC3339),
	)
	e.notify()
	return id, window, true
}

func (e *Engine) completePoll(id string, events []model.CalendarEvent, err error) {
	if err != nil {
		kv := []any{"poll_id", id}
		if fe, ok := fetcherr.AsFetchError(err); ok {
			kv = append(kv, "code", fe.Code, "status", fe.StatusCode)
			if fe.Hint != "" {
				kv = append(kv, "hint", fe.Hint)
			}
		}
		appLog.Error("calendar fetch failed", err, kv...)

		e.mu.Lock()
		e.inFlight = false
		e.state.IsLoading = false
		e.state.Ready = true
		e.mu.Unlock()

		e.notify()
		return
	}

	sorted := SortByDay(events, e.opts.Location)
	if sorted == nil {
		sorted = []model.CalendarEvent{}
	}
	now := e.clock.Now()

	e.mu.Lock()
	e.inFlight = false
	e.state.Events = sorted
	e.state.IsLoading = false
	e.state.IsEmpty = len(sorted) == 0
	e.state.Ready = true
	e.state.LastPolled = now
	e.state.IsBusy = IsBusy(sorted, now)
	busy := e.state.IsBusy
	e.mu.Unlock()

	appLog.Info("poll completed", "poll_id", id, "event_count", len(sorted), "busy", busy)
	e.notify()
}

func (e *Engine) notify() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		signal(ch)
	}
}

// signal performs a non-blocking send; a pending signal already covers it.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
