package ics

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	ical "github.com/arran4/golang-ical"

	"downtowncal/internal/model"
)

const productService = "downtowncal"

// WriteOptions describes the calendar-level properties of an export.
type WriteOptions struct {
	Name     string
	Timezone string
	// Stamp is written as DTSTAMP on every event. Zero means now.
	Stamp time.Time
}

// WriteCalendar serializes entries as all-day VEVENTs.
func WriteCalendar(w io.Writer, entries []model.CalendarEntry, opts WriteOptions) error {
	cal := BuildCalendar(entries, opts)
	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("ics: serialize: %w", err)
	}
	return nil
}

// BuildCalendar assembles the iCalendar document for entries.
func BuildCalendar(entries []model.CalendarEntry, opts WriteOptions) *ical.Calendar {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendarFor(productService)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	for _, e := range entries {
		ev := cal.AddEvent(EntryUID(e))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(e.Date)
		ev.SetAllDayEndAt(e.Date.AddDate(0, 0, 1))
		ev.SetSummary(e.Name)
		if desc := entryDescription(e); desc != "" {
			ev.SetDescription(desc)
		}
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if strings.HasPrefix(e.Source, "http://") || strings.HasPrefix(e.Source, "https://") {
			ev.SetURL(e.Source)
		}
		ev.AddCategory(string(e.Category))
		ev.SetTimeTransparency(ical.TransparencyTransparent)
	}
	return cal
}

// EntryUID derives a stable UID from the entry's date and name.
func EntryUID(e model.CalendarEntry) string {
	return fmt.Sprintf("%s-%s@%s", e.Date.Format("20060102"), slug(e.Name), productService)
}

func entryDescription(e model.CalendarEntry) string {
	if e.Time == "" {
		return e.Description
	}
	if e.Description == "" {
		return e.Time
	}
	return e.Description + " (" + e.Time + ")"
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
