package ics

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "downtowncal/internal/log"
	"downtowncal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
	// maxDaysPerOccurrence bounds how many day entries one multi-day
	// all-day occurrence can produce.
	maxDaysPerOccurrence = 31
)

// ErrInvertedSpan is returned when a year span ends before it starts.
var ErrInvertedSpan = errors.New("ics: span end is before span start")

// occurrence is one concrete instance of a feed event before it is split
// into calendar days.
type occurrence struct {
	ev    ParsedEvent
	start time.Time
	end   time.Time
}

// ExpandFeed turns the parsed events of one feed into calendar entries for
// every day of span they touch. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day events spanning several days
//
// Timed events are placed on their start day in loc. Every entry carries the
// category and boost of src; the result is sorted by date and holds at most
// one entry per UID and day.
func ExpandFeed(events []ParsedEvent, src Source, span model.YearRange, loc *time.Location) ([]model.CalendarEntry, error) {
	if span.End < span.Start {
		return nil, ErrInvertedSpan
	}
	if loc == nil {
		loc = time.Local
	}

	// Group base events and overrides by UID, keeping first-seen order.
	var uids []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if _, seen := baseByUID[ev.UID]; !seen {
			if _, seenOv := overridesByUID[ev.UID]; !seenOv {
				uids = append(uids, ev.UID)
			}
		}
		if ev.IsOverride() {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	rangeStart := time.Date(span.Start, time.January, 1, 0, 0, 0, 0, loc)
	rangeEnd := time.Date(span.End+1, time.January, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)

	out := make([]model.CalendarEntry, 0)
	seen := make(map[string]struct{})

	for _, uid := range uids {
		bases := baseByUID[uid]
		overrides := overridesByUID[uid]

		var occs []occurrence
		if len(bases) == 0 {
			// Overrides without their series still describe real instances.
			for _, o := range overrides {
				occs = append(occs, occurrence{ev: o, start: o.Start, end: o.End})
			}
		}
		for _, ev := range bases {
			occs = append(occs, expandEvent(ev, overrides, rangeStart, rangeEnd)...)
		}

		for _, occ := range occs {
			for _, e := range occurrenceEntries(occ, src, loc) {
				if !span.Contains(e.Date.Year()) {
					continue
				}
				key := uid + "|" + e.DateString()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, e)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b model.CalendarEntry) int {
		return a.Date.Compare(b.Date)
	})

	appLog.Debug("ics expand completed", "id", src.ID, "entries", len(out))
	return out, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, rangeStart, rangeEnd time.Time) []occurrence {
	if ev.RawRRule == "" {
		start, end := ev.Start, ev.End
		if o, ok := findOverrideForStart(overrides, start); ok {
			return []occurrence{{ev: o, start: o.Start, end: o.End}}
		}
		return []occurrence{{ev: ev, start: start, end: end}}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen by a day on each side so all-day values parsed in another zone
	// are not clipped; days outside the span are dropped later.
	from := rangeStart.AddDate(0, 0, -1).In(ev.Start.Location())
	to := rangeEnd.AddDate(0, 0, 1).In(ev.Start.Location())
	starts := set.Between(from, to, true)

	if len(starts) > defaultMaxOccurrencesPerEvent {
		appLog.Error("ics expand: truncated occurrences",
			errors.New("max occurrences reached"),
			"uid", ev.UID,
			"cap", defaultMaxOccurrencesPerEvent,
		)
		starts = starts[:defaultMaxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		if o, ok := findOverrideForStart(overrides, s); ok {
			out = append(out, occurrence{ev: o, start: o.Start, end: o.End})
			continue
		}
		out = append(out, occurrence{ev: ev, start: s, end: s.Add(dur)})
	}
	return out
}

// findOverrideForStart finds the override whose RECURRENCE-ID is the same
// instant as start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// occurrenceEntries splits one occurrence into per-day entries. All-day
// values keep their own calendar date; timed values are read in loc.
func occurrenceEntries(occ occurrence, src Source, loc *time.Location) []model.CalendarEntry {
	entry := model.CalendarEntry{
		Name:        occ.ev.Summary,
		Category:    src.Category,
		Boost:       src.Boost,
		Description: occ.ev.Description,
		Location:    occ.ev.Location,
		Source:      src.Label(),
	}

	if !occ.ev.AllDay {
		start := occ.start.In(loc)
		entry.Date = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		entry.Time = formatTimeRange(start, occ.end.In(loc))
		return []model.CalendarEntry{entry}
	}

	first := time.Date(occ.start.Year(), occ.start.Month(), occ.start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(occ.end.Year(), occ.end.Month(), occ.end.Day(), 0, 0, 0, 0, time.UTC)
	// DTEND of an all-day event is exclusive.
	if last.After(first) {
		last = last.AddDate(0, 0, -1)
	}

	var out []model.CalendarEntry
	for d := first; !d.After(last) && len(out) < maxDaysPerOccurrence; d = d.AddDate(0, 0, 1) {
		e := entry
		e.Date = d
		out = append(out, e)
	}
	return out
}

func formatTimeRange(start, end time.Time) string {
	if !end.After(start) {
		return start.Format("15:04")
	}
	return fmt.Sprintf("%s-%s", start.Format("15:04"), end.Format("15:04"))
}
