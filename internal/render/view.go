// Package render turns a status snapshot into what the display shows: a
// busy/open banner, the clock label and one card per upcoming meeting.
package render

import (
	"strconv"
	"time"

	"roomstatus/internal/status"
)

const (
	BannerBusy = "Busy"
	BannerOpen = "Open"

	EmptyMessage = "No meetings are scheduled for the day. Create one by clicking the button below."

	startLayout = "3:04 pm"
)

// Card is one upcoming meeting.
type Card struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"` // e.g. "March 2nd"
	Summary         string    `json:"summary"`
	StartTime       string    `json:"start_time"` // e.g. "9:00 am"
	DurationMinutes int       `json:"duration_minutes"`
	Link            string    `json:"link,omitempty"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`

	// Active marks the card whose interval contains the snapshot time.
	Active bool `json:"active"`
}

// View is the display model of one snapshot.
type View struct {
	CurrentTime    string    `json:"current_time"`
	Banner         string    `json:"banner"`
	IsBusy         bool      `json:"is_busy"`
	IsLoading      bool      `json:"is_loading"`
	IsEmpty        bool      `json:"is_empty"`
	Ready          bool      `json:"ready"`
	Cards          []Card    `json:"events"`
	LastPolled     time.Time `json:"last_polled,omitzero"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	CreateEventURL string    `json:"create_event_url,omitempty"`
}

// Build derives a View from s. Times on cards are shown in s.Location.
func Build(s status.Snapshot, createEventURL string) View {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	v := View{
		CurrentTime:    s.CurrentTime,
		Banner:         BannerOpen,
		IsBusy:         s.IsBusy,
		IsLoading:      s.IsLoading,
		IsEmpty:        s.IsEmpty,
		Ready:          s.Ready,
		Cards:          make([]Card, 0, len(s.Events)),
		LastPolled:     s.LastPolled,
		WindowStart:    s.Window.Start,
		WindowEnd:      s.Window.End,
		CreateEventURL: createEventURL,
	}
	if s.IsBusy {
		v.Banner = BannerBusy
	}

	for _, ev := range s.Events {
		start := ev.Start.In(loc)
		v.Cards = append(v.Cards, Card{
			ID:              ev.ID,
			Title:           DayTitle(start),
			Summary:         ev.Summary,
			StartTime:       start.Format(startLayout),
			DurationMinutes: int(ev.Duration() / time.Minute),
			Link:            ev.Link,
			Start:           ev.Start,
			End:             ev.End,
			Active:          ev.Contains(s.Now),
		})
	}
	return v
}

// DayTitle formats t as month name and ordinal day, e.g. "March 2nd".
func DayTitle(t time.Time) string {
	return t.Format("January") + " " + Ordinal(t.Day())
}

// Ordinal returns n with its English ordinal suffix.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
