package events

import (
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"downtowncal/internal/model"
)

// rruleWeekdays maps time.Weekday (Sunday=0) onto rrule-go weekdays.
var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Expand returns the entries of def in one year, in chronological order for
// rule-based patterns and in authored day order for fixed dates. A year
// outside the active range or listed as skipped yields nothing.
func Expand(def model.EventDefinition, year int) []model.CalendarEntry {
	if !def.Active.Contains(year) || def.Skips(year) {
		return nil
	}

	dates := patternDates(def.Pattern, year)
	if len(dates) == 0 {
		return nil
	}

	out := make([]model.CalendarEntry, 0, len(dates))
	for _, d := range dates {
		out = append(out, model.NewEntry(def, d))
	}
	return out
}

// ExpandRange expands def for every year of span in ascending order.
func ExpandRange(def model.EventDefinition, span model.YearRange) []model.CalendarEntry {
	var out []model.CalendarEntry
	for y := span.Start; y <= span.End; y++ {
		out = append(out, Expand(def, y)...)
	}
	return out
}

// BuildCalendar expands every definition over span and stable-sorts the
// result by date. Entries sharing a date keep table order.
func BuildCalendar(defs []model.EventDefinition, span model.YearRange) []model.CalendarEntry {
	cal := make([]model.CalendarEntry, 0)
	for _, def := range defs {
		cal = append(cal, ExpandRange(def, span)...)
	}
	SortEntries(cal)
	return cal
}

// SortEntries stable-sorts entries by date ascending.
func SortEntries(entries []model.CalendarEntry) {
	slices.SortStableFunc(entries, func(a, b model.CalendarEntry) int {
		return a.Date.Compare(b.Date)
	})
}

func patternDates(p model.Pattern, year int) []time.Time {
	switch p := p.(type) {
	case model.FixedDates:
		return fixedDates(p, year)
	case model.WeeklyWeekday:
		return weeklyDates(p, year)
	case model.FirstWeekdayOfMonth:
		return firstWeekdayDates(p, year)
	}
	// Tables are validated at load time; reaching this is a programming error.
	panic(fmt.Sprintf("events: unhandled pattern %T", p))
}

func fixedDates(p model.FixedDates, year int) []time.Time {
	out := make([]time.Time, 0, len(p.Days))
	for _, day := range p.Days {
		if d, ok := model.DateOf(year, p.Month, day); ok {
			out = append(out, d)
		}
	}
	return out
}

// weeklyDates walks the season [start, end] of one year. A season bound
// missing from that year (Feb 29) or an inverted season yields nothing.
func weeklyDates(p model.WeeklyWeekday, year int) []time.Time {
	start, ok := p.SeasonStart.In(year)
	if !ok {
		return nil
	}
	end, ok := p.SeasonEnd.In(year)
	if !ok || end.Before(start) {
		return nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     end,
		Byweekday: []rrule.Weekday{rruleWeekdays[p.Weekday]},
	})
	if err != nil {
		panic(fmt.Sprintf("events: weekly rule for %s: %v", p.Weekday, err))
	}
	return r.All()
}

func firstWeekdayDates(p model.FirstWeekdayOfMonth, year int) []time.Time {
	out := make([]time.Time, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, firstWeekdayOf(year, m, p.Weekday))
	}
	return out
}

// firstWeekdayOf scans forward from the 1st. Any seven consecutive days
// contain every weekday, so the scan ends within a week.
func firstWeekdayOf(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if d.Weekday() == wd {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	panic(fmt.Sprintf("events: no %s in the first week of %s %d", wd, month, year))
}
