package status

import (
	"slices"
	"strings"
	"time"

	"roomstatus/internal/model"
)

const (
	dayKeyLayout = "20060102"

	// ClockLayout renders the current-time label, e.g.
	// "Monday, March 2, 2026 9:30 AM".
	ClockLayout = "Monday, January 2, 2006 3:04 PM"
)

// IsBusy reports whether now falls inside [Start, End) of at least one event.
func IsBusy(events []model.CalendarEvent, now time.Time) bool {
	for _, ev := range events {
		if ev.Contains(now) {
			return true
		}
	}
	return false
}

// DayKey is the sort key of an event: its start date in loc, time of day
// ignored.
func DayKey(ev model.CalendarEvent, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return ev.Start.In(loc).Format(dayKeyLayout)
}

// SortByDay returns a copy of events stably sorted by DayKey. Events on the
// same day keep the order they arrived in.
func SortByDay(events []model.CalendarEvent, loc *time.Location) []model.CalendarEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b model.CalendarEvent) int {
		return strings.Compare(DayKey(a, loc), DayKey(b, loc))
	})
	return sorted
}

// FormatClock renders now in loc using ClockLayout.
func FormatClock(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(ClockLayout)
}
