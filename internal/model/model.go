package model

import (
	"fmt"
	"slices"
	"time"
)

// Category tags an event for grouping in the visualization.
type Category string

const (
	CategoryMusic    Category = "music"
	CategoryFestival Category = "festival"
	CategoryMarket   Category = "market"
	CategoryCivic    Category = "civic"
	CategoryArt      Category = "art"
	CategoryUVA      Category = "uva"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryMusic,
	CategoryFestival,
	CategoryMarket,
	CategoryCivic,
	CategoryArt,
	CategoryUVA,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// YearRange is an inclusive span of calendar years.
type YearRange struct {
	Start int
	End   int
}

// Contains reports whether year lies inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}

func (r YearRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// MonthDay is a year-less calendar position such as "April 18".
type MonthDay struct {
	Month time.Month
	Day   int
}

// In returns the date in the given year and whether that date exists.
// Feb 29 does not exist outside leap years.
func (md MonthDay) In(year int) (time.Time, bool) {
	return DateOf(year, md.Month, md.Day)
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// DateOf builds a UTC-midnight date and reports false when the triple is not a
// real calendar date (time.Date would otherwise normalize April 31 to May 1).
func DateOf(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// PatternKind is the serialized tag of a Pattern.
type PatternKind string

const (
	KindFixedDates          PatternKind = "fixed_dates"
	KindWeeklyWeekday       PatternKind = "weekly"
	KindFirstWeekdayOfMonth PatternKind = "first_weekday_of_month"
)

// Pattern is the recurrence rule of an event. It is sealed: the only
// implementations are FixedDates, WeeklyWeekday and FirstWeekdayOfMonth.
type Pattern interface {
	Kind() PatternKind
	isPattern()
}

// FixedDates occurs on the listed days of one month every active year.
type FixedDates struct {
	Month time.Month
	Days  []int
}

// WeeklyWeekday occurs on every Weekday between SeasonStart and SeasonEnd
// (inclusive) of the same year.
type WeeklyWeekday struct {
	Weekday     time.Weekday
	SeasonStart MonthDay
	SeasonEnd   MonthDay
}

// FirstWeekdayOfMonth occurs on the first Weekday of every month.
type FirstWeekdayOfMonth struct {
	Weekday time.Weekday
}

func (FixedDates) Kind() PatternKind          { return KindFixedDates }
func (WeeklyWeekday) Kind() PatternKind       { return KindWeeklyWeekday }
func (FirstWeekdayOfMonth) Kind() PatternKind { return KindFirstWeekdayOfMonth }

func (FixedDates) isPattern()          {}
func (WeeklyWeekday) isPattern()       {}
func (FirstWeekdayOfMonth) isPattern() {}

// EventDefinition is one authored row of the curated event table.
// It is never modified after the table is loaded.
type EventDefinition struct {
	Name     string
	Category Category
	Pattern  Pattern

	Active    YearRange
	SkipYears []int

	// Boost is a relative foot-traffic weight in [0, 1].
	Boost float64

	Description string
	Location    string
	Source      string
	Time        string
}

// Skips reports whether year is listed as cancelled.
func (d EventDefinition) Skips(year int) bool {
	return slices.Contains(d.SkipYears, year)
}

// CalendarEntry is a single concrete event day.
type CalendarEntry struct {
	// Date is midnight UTC of the calendar day.
	Date time.Time

	Name        string
	Category    Category
	Boost       float64
	Description string
	Location    string
	Source      string
	Time        string
}

// DateString formats Date as YYYY-MM-DD.
func (e CalendarEntry) DateString() string {
	return e.Date.Format(time.DateOnly)
}

// NewEntry copies the metadata of def onto a date.
func NewEntry(def EventDefinition, date time.Time) CalendarEntry {
	return CalendarEntry{
		Date:        date,
		Name:        def.Name,
		Category:    def.Category,
		Boost:       def.Boost,
		Description: def.Description,
		Location:    def.Location,
		Source:      def.Source,
		Time:        def.Time,
	}
}
