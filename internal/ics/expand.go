package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "roomstatus/internal/log"
	"roomstatus/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
	instanceKeyLayout             = "20060102T150405Z"
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences kept: an occurrence is kept
	// when it ends after RangeStart and starts before RangeEnd.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap against runaway rules. Zero
	// means defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandOccurrences turns parsed VEVENTs into concrete single events within
// the configured range. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE exception removal
//   - RECURRENCE-ID overrides
//
// Cancelled events and cancelled overrides are dropped, matching what the
// Google provider returns for singleEvents queries. Output order follows
// input order; callers sort.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen order.
	var order []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.CalendarEvent, 0)
	for _, uid := range order {
		ov := overridesByUID[uid]
		for _, ev := range baseByUID[uid] {
			if ev.RawRRule == "" {
				out = append(out, expandSingleEvent(ev, ov, cfg)...)
				continue
			}
			occ, hitCap := expandRecurringEvent(ev, ov, cfg)
			if hitCap {
				appLog.Error("expand: truncated occurrences for UID due to cap",
					errors.New("max occurrences reached"),
					"uid", uid,
					"cap", cfg.MaxOccurrencesPerEvent,
				)
			}
			out = append(out, occ...)
		}
	}

	return out, nil
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	if ev.Status == "CANCELLED" || !overlapsRange(ev.Start, ev.End, cfg) {
		return nil
	}
	return []model.CalendarEvent{makeEvent(ev, ev.UID, ev.Start, ev.End)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	out := make([]model.CalendarEvent, 0)

	if ev.Status == "CANCELLED" {
		return out, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)

	// Widen the lower bound by the duration so instances that started
	// before the window but are still running are included.
	lower := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	upper := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(lower, upper, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	applied := make(map[int]bool, len(overrides))
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		instance := ev
		id := instanceID(ev.UID, occStart)

		if i, ok := overrideIndex(overrides, occStart); ok {
			applied[i] = true
			instance = overrides[i]
			occStart, occEnd = instance.Start, instance.End
		}
		if instance.Status == "CANCELLED" || !overlapsRange(occStart, occEnd, cfg) {
			continue
		}
		out = append(out, makeEvent(instance, id, occStart, occEnd))
	}

	// An override can move its instance into the range from a slot outside
	// it. Those are kept when the RECURRENCE-ID is a real occurrence.
	for i, o := range overrides {
		if applied[i] || o.Status == "CANCELLED" || !overlapsRange(o.Start, o.End, cfg) {
			continue
		}
		if !isOccurrence(&set, *o.Recurrence) {
			continue
		}
		out = append(out, makeEvent(o, instanceID(ev.UID, *o.Recurrence), o.Start, o.End))
	}

	return out, hitCap
}

// isOccurrence reports whether the set generates an instance exactly at t.
// EXDATEs are honoured since the set excludes them.
func isOccurrence(set *rrule.Set, t time.Time) bool {
	for _, occ := range set.Between(t.Add(-time.Second), t.Add(time.Second), true) {
		if occ.Equal(t) {
			return true
		}
	}
	return false
}

func instanceID(uid string, slot time.Time) string {
	return uid + "_" + slot.UTC().Format(instanceKeyLayout)
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	if i, ok := overrideIndex(overrides, start); ok {
		return overrides[i], true
	}
	return ParsedEvent{}, false
}

func overrideIndex(overrides []ParsedEvent, start time.Time) (int, bool) {
	for i, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return i, true
		}
	}
	return -1, false
}

func makeEvent(ev ParsedEvent, id string, start, end time.Time) model.CalendarEvent {
	return model.CalendarEvent{
		ID:      id,
		Summary: ev.Summary,
		Start:   start,
		End:     end,
		Link:    ev.URL,
	}
}

// overlapsRange uses the provider's timeMin/timeMax semantics: the event
// must end after RangeStart and start before RangeEnd.
func overlapsRange(start, end time.Time, cfg ExpandConfig) bool {
	return end.After(cfg.RangeStart) && start.Before(cfg.RangeEnd)
}
