// Package gcal fetches the day's events for a single Google Calendar using
// an API key. It is the default calendar fetcher of the status engine.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	fetcherr "roomstatus/internal/errors"
	appLog "roomstatus/internal/log"
	"roomstatus/internal/model"
)

const (
	defaultMaxResults = 10
	defaultTimeout    = 30 * time.Second
	apiHost           = "https://www.googleapis.com"
)

// Options configures a Client.
type Options struct {
	APIKey     string
	CalendarID string

	// MaxResults caps the events returned per fetch. Zero means 10.
	MaxResults int64

	// Endpoint overrides the API base URL (tests point it at httptest).
	Endpoint string

	// Timeout bounds a single request. Zero means 30s.
	Timeout time.Duration

	// Location places all-day events when the response carries no calendar
	// time zone. Nil means time.Local.
	Location *time.Location
}

// Client lists events of one calendar. Init must succeed before Fetch.
type Client struct {
	opts Options

	mu  sync.RWMutex
	svc *calendar.Service
}

// NewClient constructs a Client without touching the network.
func NewClient(opts Options) *Client {
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Client{opts: opts}
}

// Init performs the one-time client setup (API key handshake).
func (c *Client) Init(ctx context.Context) error {
	if c.opts.APIKey == "" {
		return fetcherr.NotInitialized().WithHint("api_key is empty")
	}

	clientOpts := []option.ClientOption{
		option.WithAPIKey(c.opts.APIKey),
	}
	if c.opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(c.opts.Endpoint))
	}

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("gcal: init calendar service: %w", err)
	}

	c.mu.Lock()
	c.svc = svc
	c.mu.Unlock()

	appLog.Info("gcal client initialized", "calendar_id", c.opts.CalendarID, "max_results", c.opts.MaxResults)
	return nil
}

// Fetch lists single (recurrence-expanded) events in [from, to], ordered by
// start time and capped at MaxResults. Nothing beyond the cap is requested.
func (c *Client) Fetch(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	c.mu.RLock()
	svc := c.svc
	c.mu.RUnlock()
	if svc == nil {
		return nil, fetcherr.NotInitialized()
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	endpoint := c.redactedEndpoint()

	resp, err := svc.Events.List(c.opts.CalendarID).
		TimeMin(from.Format(time.RFC3339Nano)).
		TimeMax(to.Format(time.RFC3339Nano)).
		MaxResults(c.opts.MaxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(endpoint, err)
	}

	loc := c.calendarLocation(resp.TimeZone)
	events := make([]model.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toModel(item, loc))
	}

	appLog.Debug("gcal fetch completed", "calendar_id", c.opts.CalendarID, "event_count", len(events))
	return events, nil
}

// classify turns a client library error into a FetchError carrying the
// provider's own message when there is one.
func classify(endpoint string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		fe := fetcherr.Provider(endpoint, apiErr.Code, apiErr.Message)
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusForbidden:
			fe = fe.WithHint("check api_key and that the calendar is public")
		case http.StatusNotFound:
			fe = fe.WithHint("check calendar_id")
		}
		return fe
	}
	return fetcherr.Network(endpoint, err)
}

func (c *Client) redactedEndpoint() string {
	base := apiHost
	if c.opts.Endpoint != "" {
		base = c.opts.Endpoint
	}
	return fetcherr.RedactURL(base)
}

// calendarLocation resolves the calendar's own zone reported with the event
// list, falling back to Options.Location.
func (c *Client) calendarLocation(name string) *time.Location {
	if name == "" {
		return c.opts.Location
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("gcal: unknown calendar time zone, using configured location", err,
			"time_zone", name, "location", c.opts.Location.String())
		return c.opts.Location
	}
	return loc
}

func toModel(item *calendar.Event, loc *time.Location) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      item.Id,
		Summary: item.Summary,
		Start:   parseEventTime(item.Start, loc),
		End:     parseEventTime(item.End, loc),
		Link:    item.HtmlLink,
	}
}

// parseEventTime parses an EventDateTime. All-day events only carry Date,
// which is midnight in the event's own time zone or else loc; malformed
// values yield the zero time.
func parseEventTime(dt *calendar.EventDateTime, loc *time.Location) time.Time {
	if dt == nil {
		return time.Time{}
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	if dt.Date != "" {
		if dt.TimeZone != "" {
			if tz, err := time.LoadLocation(dt.TimeZone); err == nil {
				loc = tz
			}
		}
		t, err := time.ParseInLocation(time.DateOnly, dt.Date, loc)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}
