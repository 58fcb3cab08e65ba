package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	fetcherr "roomstatus/internal/errors"
	appLog "roomstatus/internal/log"
	"roomstatus/internal/model"
)

const (
	defaultMaxResults = 10
	defaultTimeout    = 15 * time.Second
	maxBodyBytes      = 16 << 20
)

// Fetcher lists the day's events from an ICS subscription URL. It mirrors
// the Google fetcher's contract: recurring events are expanded into single
// instances, results are ordered by start and capped at MaxResults.
type Fetcher struct {
	client     *http.Client
	url        string
	maxResults int

	mu    sync.RWMutex
	ready bool
}

// NewFetcher creates a new ICS Fetcher for url.
func NewFetcher(url string, maxResults int) *Fetcher {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		url:        url,
		maxResults: maxResults,
	}
}

// Init validates the subscription URL. ICS feeds need no handshake, but the
// fetcher still refuses to run until Init has succeeded.
func (f *Fetcher) Init(_ context.Context) error {
	if f.url == "" {
		return fetcherr.NotInitialized().WithHint("ics_url is empty")
	}
	if _, err := http.NewRequest(http.MethodGet, f.url, nil); err != nil {
		return fmt.Errorf("ics: invalid url: %w", err)
	}

	f.mu.Lock()
	f.ready = true
	f.mu.Unlock()

	appLog.Info("ics fetcher initialized", "url", fetcherr.RedactURL(f.url), "max_results", f.maxResults)
	return nil
}

// Fetch downloads the feed and returns occurrences overlapping [from, to].
func (f *Fetcher) Fetch(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	f.mu.RLock()
	ready := f.ready
	f.mu.RUnlock()
	if !ready {
		return nil, fetcherr.NotInitialized()
	}

	body, err := f.download(ctx)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseICS(body)
	if err != nil {
		return nil, fetcherr.Decode(fetcherr.RedactURL(f.url), err)
	}

	events, err := ExpandOccurrences(parsed, ExpandConfig{
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		return nil, fetcherr.Decode(fetcherr.RedactURL(f.url), err)
	}

	// Provider-side ordering: by start time, then cap.
	slices.SortStableFunc(events, func(a, b model.CalendarEvent) int {
		return a.Start.Compare(b.Start)
	})
	if len(events) > f.maxResults {
		events = events[:f.maxResults]
	}

	appLog.Debug("ics fetch completed", "url", fetcherr.RedactURL(f.url), "event_count", len(events))
	return events, nil
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	redacted := fetcherr.RedactURL(f.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fetcherr.Network(redacted, err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fetcherr.Network(redacted, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fetcherr.Provider(redacted, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fetcherr.Network(redacted, err)
	}
	if len(body) == 0 {
		return nil, fetcherr.Decode(redacted, errors.New("empty ICS body"))
	}
	return body, nil
}
