package status

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"roomstatus/internal/model"
)

var base = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func genEvent(t *rapid.T, label string) model.CalendarEvent {
	startMin := rapid.IntRange(0, 3*24*60).Draw(t, label+"_start")
	durMin := rapid.IntRange(0, 6*60).Draw(t, label+"_dur")
	start := base.Add(time.Duration(startMin) * time.Minute)
	return model.CalendarEvent{
		ID:    label,
		Start: start,
		End:   start.Add(time.Duration(durMin) * time.Minute),
	}
}

func genEvents(t *rapid.T) []model.CalendarEvent {
	n := rapid.IntRange(0, 10).Draw(t, "n")
	events := make([]model.CalendarEvent, n)
	for i := range events {
		events[i] = genEvent(t, fmt.Sprintf("ev%d", i))
	}
	return events
}

func TestIsBusy_MatchesIntervalMembership(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		events := genEvents(t)
		now := base.Add(time.Duration(rapid.IntRange(-60, 4*24*60).Draw(t, "now")) * time.Minute)

		want := false
		for _, ev := range events {
			if ev.Start.Unix() <= now.Unix() && now.Unix() < ev.End.Unix() {
				want = true
			}
		}

		got := IsBusy(events, now)
		if got != want {
			t.Fatalf("IsBusy = %v, want %v", got, want)
		}
		if IsBusy(events, now) != got {
			t.Fatalf("IsBusy is not idempotent")
		}
	})
}

func TestIsBusy_Boundaries(t *testing.T) {
	ev := model.CalendarEvent{Start: base.Add(9 * time.Hour), End: base.Add(10 * time.Hour)}
	events := []model.CalendarEvent{ev}

	assert.False(t, IsBusy(events, ev.Start.Add(-time.Nanosecond)))
	assert.True(t, IsBusy(events, ev.Start))
	assert.True(t, IsBusy(events, ev.End.Add(-time.Nanosecond)))
	assert.False(t, IsBusy(events, ev.End))
	assert.False(t, IsBusy(nil, ev.Start))
}

func TestIsBusy_ZeroLengthEventNeverBusy(t *testing.T) {
	ev := model.CalendarEvent{Start: base, End: base}
	assert.False(t, IsBusy([]model.CalendarEvent{ev}, base))
}

func TestSortByDay_StableWithinDay(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		events := genEvents(t)
		index := make(map[string]int, len(events))
		for i, ev := range events {
			index[ev.ID] = i
		}

		sorted := SortByDay(events, time.UTC)
		if len(sorted) != len(events) {
			t.Fatalf("len = %d, want %d", len(sorted), len(events))
		}
		for i := 1; i < len(sorted); i++ {
			prev, cur := DayKey(sorted[i-1], time.UTC), DayKey(sorted[i], time.UTC)
			if prev > cur {
				t.Fatalf("day keys out of order: %s before %s", prev, cur)
			}
			if prev == cur && index[sorted[i-1].ID] > index[sorted[i].ID] {
				t.Fatalf("same-day events reordered: %s before %s", sorted[i-1].ID, sorted[i].ID)
			}
		}
	})
}

func TestSortByDay_DoesNotMutateInput(t *testing.T) {
	tomorrow := model.CalendarEvent{ID: "tomorrow", Start: base.AddDate(0, 0, 1)}
	today := model.CalendarEvent{ID: "today", Start: base}
	in := []model.CalendarEvent{tomorrow, today}

	out := SortByDay(in, time.UTC)

	assert.Equal(t, "today", out[0].ID)
	assert.Equal(t, "tomorrow", in[0].ID)
}

func TestDayKey_UsesDisplayLocation(t *testing.T) {
	// 23:30 UTC on March 1 is already March 2 in Seoul.
	ev := model.CalendarEvent{Start: time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)}

	assert.Equal(t, "20260301", DayKey(ev, time.UTC))
	assert.Equal(t, "20260302", DayKey(ev, time.FixedZone("KST", 9*60*60)))
}

func TestFormatClock(t *testing.T) {
	now := time.Date(2026, 3, 2, 13, 5, 0, 0, time.UTC)
	assert.Equal(t, "Monday, March 2, 2026 1:05 PM", FormatClock(now, time.UTC))
}
