package model

import "time"

// CalendarEvent is a single concrete event instance as returned by a
// calendar provider (recurring events already expanded). Events are
// treated as read-only once fetched; Start <= End is not validated.
type CalendarEvent struct {
	ID      string // provider event ID (or ICS UID + instance key)
	Summary string // display title, may be empty

	// Start / End are absolute instants; their Location is whatever offset
	// the provider reported.
	Start time.Time
	End   time.Time

	// Link points at the event's detail page.
	Link string
}

// Duration returns End - Start.
func (e CalendarEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Contains reports whether now falls in the half-open interval [Start, End).
func (e CalendarEvent) Contains(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}

// Window is the time range a poll asks the provider for.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns [now, end of now's calendar day in loc].
func DayWindow(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	endOfDay := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(time.Second-time.Millisecond), loc)
	return Window{Start: now, End: endOfDay}
}
