package gcal

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fetcherr "roomstatus/internal/errors"
	"roomstatus/internal/model"
)

const eventsJSON = `{
  "kind": "calendar#events",
  "items": [
    {
      "id": "evt-1",
      "summary": "Design review",
      "htmlLink": "https://www.google.com/calendar/event?eid=1",
      "start": {"dateTime": "2026-03-02T09:00:00-05:00"},
      "end": {"dateTime": "2026-03-02T10:00:00-05:00"}
    },
    {
      "id": "evt-2",
      "summary": "",
      "htmlLink": "https://www.google.com/calendar/event?eid=2",
      "start": {"dateTime": "2026-03-02T15:30:00Z"},
      "end": {"dateTime": "2026-03-02T16:00:00Z"}
    },
    {
      "id": "evt-3",
      "summary": "Offsite",
      "start": {"date": "2026-03-02"},
      "end": {"date": "2026-03-03"}
    }
  ]
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *[]url.Values) {
	t.Helper()
	var seen []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query())
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newInitializedClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	return newInitializedClientIn(t, endpoint, time.UTC)
}

func newInitializedClientIn(t *testing.T, endpoint string, loc *time.Location) *Client {
	t.Helper()
	c := NewClient(Options{
		APIKey:     "test-key",
		CalendarID: "room-1",
		Endpoint:   endpoint + "/",
		Location:   loc,
	})
	require.NoError(t, c.Init(context.Background()))
	return c
}

func TestClient_FetchBeforeInit(t *testing.T) {
	c := NewClient(Options{APIKey: "k"})

	_, err := c.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, fetcherr.ErrNotInitialized))
}

func TestClient_InitWithoutKey(t *testing.T) {
	c := NewClient(Options{})
	err := c.Init(context.Background())
	assert.True(t, stderrors.Is(err, fetcherr.ErrNotInitialized))
}

func TestClient_FetchSendsWindowQuery(t *testing.T) {
	srv, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/room-1/events"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	})
	c := newInitializedClient(t, srv.URL)

	window := model.DayWindow(time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC), time.UTC)

	events, err := c.Fetch(context.Background(), window.Start, window.End)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.Len(t, *seen, 1)
	q := (*seen)[0]
	assert.Equal(t, "test-key", q.Get("key"))
	assert.Equal(t, "2026-03-02T08:15:00Z", q.Get("timeMin"))
	assert.Equal(t, "2026-03-02T23:59:59.999Z", q.Get("timeMax"))
	assert.Equal(t, "10", q.Get("maxResults"))
	assert.Equal(t, "true", q.Get("singleEvents"))
	assert.Equal(t, "startTime", q.Get("orderBy"))
}

func TestClient_FetchNormalizesItems(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	})
	c := newInitializedClient(t, srv.URL)

	events, err := c.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "evt-1", first.ID)
	assert.Equal(t, "Design review", first.Summary)
	assert.Equal(t, "https://www.google.com/calendar/event?eid=1", first.Link)
	assert.True(t, first.Start.Equal(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Hour, first.Duration())

	// Empty summaries pass through untouched.
	assert.Equal(t, "", events[1].Summary)

	// All-day events fall back to the date field.
	assert.True(t, events[2].Start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 24*time.Hour, events[2].Duration())
}

func TestClient_AllDayEventsUseCalendarTimeZone(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"timeZone": "Asia/Seoul", "items": [
			{"id": "offsite", "summary": "Offsite", "start": {"date": "2026-03-02"}, "end": {"date": "2026-03-03"}}
		]}`))
	})
	c := newInitializedClient(t, srv.URL)

	events, err := c.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	offsite := events[0]
	assert.True(t, offsite.Start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, seoul)), offsite.Start.String())
	assert.True(t, offsite.End.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, seoul)), offsite.End.String())

	assert.True(t, offsite.Contains(time.Date(2026, 3, 2, 8, 30, 0, 0, seoul)))
	assert.False(t, offsite.Contains(time.Date(2026, 3, 3, 8, 30, 0, 0, seoul)))
}

func TestClient_AllDayEventsFallBackToConfiguredLocation(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [
			{"id": "a", "start": {"date": "2026-03-02"}, "end": {"date": "2026-03-03"}},
			{"id": "b", "start": {"date": "2026-03-02", "timeZone": "UTC"}, "end": {"date": "2026-03-03", "timeZone": "UTC"}}
		]}`))
	})
	kst := time.FixedZone("KST", 9*60*60)
	c := newInitializedClientIn(t, srv.URL, kst)

	events, err := c.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.True(t, events[0].Start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, kst)))
	assert.True(t, events[1].Start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)), "event time zone wins")
}

func TestClient_FetchProviderError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "Not Found", "errors": [{"reason": "notFound", "message": "Not Found"}]}}`))
	})
	c := newInitializedClient(t, srv.URL)

	_, err := c.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)

	fe, ok := fetcherr.AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, fetcherr.CodeProvider, fe.Code)
	assert.Equal(t, "Not Found", fe.Message)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "check calendar_id", fe.Hint)
	assert.NotContains(t, fe.URL, "test-key")
}

func TestClient_FetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := newInitializedClient(t, endpoint)

	_, err := c.Fetch(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, fetcherr.ErrNetwork))
}
