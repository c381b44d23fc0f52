package ics

import (
	"errors"
	"slices"
	"testing"
	"time"

	"downtowncal/internal/model"
)

var (
	span2025 = model.YearRange{Start: 2025, End: 2025}
	testSrc  = Source{ID: "pavilion", Name: "Ting Pavilion", Category: model.CategoryMusic, Boost: 0.35}
)

func parseFeed(t *testing.T, body []byte) []ParsedEvent {
	t.Helper()
	events, err := ParseICS(testSrc, body)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	return events
}

func entryDates(entries []model.CalendarEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.DateString())
	}
	return out
}

func TestExpandFeedRecurringWithExdateAndOverride(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	events := parseFeed(t, feedICS(`
UID:concert-1
DTSTAMP:20250101T000000Z
DTSTART:20250612T213000Z
DTEND:20250613T010000Z
SUMMARY:Concert
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20250619T213000Z
`, `
UID:concert-1
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250626T213000Z
DTSTART:20250627T213000Z
DTEND:20250628T010000Z
SUMMARY:Concert (rain date)
`))

	got, err := ExpandFeed(events, testSrc, span2025, ny)
	if err != nil {
		t.Fatalf("ExpandFeed: %v", err)
	}

	wantDates := []string{"2025-06-12", "2025-06-27", "2025-07-03"}
	if dates := entryDates(got); !slices.Equal(dates, wantDates) {
		t.Fatalf("dates = %v, want %v", dates, wantDates)
	}
	if got[1].Name != "Concert (rain date)" {
		t.Errorf("override name = %q", got[1].Name)
	}
	for _, e := range got {
		if e.Time != "17:30-21:00" {
			t.Errorf("%s time = %q, want local 17:30-21:00", e.DateString(), e.Time)
		}
		if e.Category != model.CategoryMusic || e.Boost != 0.35 || e.Source != "Ting Pavilion" {
			t.Errorf("feed metadata not stamped: %+v", e)
		}
	}
}

func TestExpandFeedAllDayRecurrence(t *testing.T) {
	events := parseFeed(t, feedICS(`
UID:market
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250103
SUMMARY:Winter Market
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE;VALUE=DATE:20250110
`))

	got, err := ExpandFeed(events, testSrc, span2025, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-01-03", "2025-01-17", "2025-01-24"}
	if dates := entryDates(got); !slices.Equal(dates, want) {
		t.Errorf("dates = %v, want %v", dates, want)
	}
	for _, e := range got {
		if e.Time != "" {
			t.Errorf("all-day entry has time %q", e.Time)
		}
	}
}

func TestExpandFeedMultiDayAndSpan(t *testing.T) {
	events := parseFeed(t, feedICS(`
UID:festival
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250301
DTEND;VALUE=DATE:20250304
SUMMARY:Book Festival
`, `
UID:old
DTSTAMP:20140101T000000Z
DTSTART;VALUE=DATE:20140704
SUMMARY:Outside span
`, `
UID:festival
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250301
DTEND;VALUE=DATE:20250302
SUMMARY:Book Festival
`))

	got, err := ExpandFeed(events, testSrc, span2025, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-03-01", "2025-03-02", "2025-03-03"}
	if dates := entryDates(got); !slices.Equal(dates, want) {
		t.Errorf("dates = %v, want %v (exclusive DTEND, duplicate day dropped, 2014 dropped)", dates, want)
	}
}

func TestExpandFeedUnparseableRRuleSkipsEvent(t *testing.T) {
	events := []ParsedEvent{{
		UID:      "broken",
		Summary:  "Broken",
		Start:    time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		AllDay:   true,
		RawRRule: "FREQ=SOMETIMES",
	}}
	got, err := ExpandFeed(events, testSrc, span2025, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries, want none", len(got))
	}
}

func TestExpandFeedInvertedSpan(t *testing.T) {
	_, err := ExpandFeed(nil, testSrc, model.YearRange{Start: 2025, End: 2024}, time.UTC)
	if !errors.Is(err, ErrInvertedSpan) {
		t.Errorf("err = %v, want ErrInvertedSpan", err)
	}
}
