package events

import (
	"slices"

	"downtowncal/internal/model"
)

// VizEvent is the compact form of a definition consumed by the browser
// renderer, which re-derives dates from these fields. Only the fields of the
// definition's pattern are set.
type VizEvent struct {
	Name  string         `json:"name"`
	Type  model.Category `json:"type"`
	Boost float64        `json:"boost"`
	Desc  string         `json:"desc"`

	// Recurring is a weekday name ("friday") for weekly seasons or
	// "first_<weekday>" for monthly first-weekday events.
	Recurring  string `json:"recurring,omitempty"`
	StartMonth int    `json:"startMonth,omitempty"`
	StartDay   int    `json:"startDay,omitempty"`
	EndMonth   int    `json:"endMonth,omitempty"`
	EndDay     int    `json:"endDay,omitempty"`

	Month int   `json:"month,omitempty"`
	Days  []int `json:"days,omitempty"`

	// StartYear / EndYear are only set when they narrow the calendar span.
	StartYear int   `json:"startYear,omitempty"`
	EndYear   int   `json:"endYear,omitempty"`
	SkipYears []int `json:"skipYears,omitempty"`
}

// Compact projects def onto the renderer format for a calendar over span.
func Compact(def model.EventDefinition, span model.YearRange) VizEvent {
	v := VizEvent{
		Name:  def.Name,
		Type:  def.Category,
		Boost: def.Boost,
		Desc:  def.Description,
	}

	switch p := def.Pattern.(type) {
	case model.WeeklyWeekday:
		v.Recurring = weekdayName(p.Weekday)
		v.StartMonth = int(p.SeasonStart.Month)
		v.StartDay = p.SeasonStart.Day
		v.EndMonth = int(p.SeasonEnd.Month)
		v.EndDay = p.SeasonEnd.Day
	case model.FirstWeekdayOfMonth:
		v.Recurring = "first_" + weekdayName(p.Weekday)
	case model.FixedDates:
		v.Month = int(p.Month)
		v.Days = slices.Clone(p.Days)
	}

	if def.Active.Start > span.Start {
		v.StartYear = def.Active.Start
	}
	if def.Active.End < span.End {
		v.EndYear = def.Active.End
	}
	if len(def.SkipYears) > 0 {
		v.SkipYears = slices.Clone(def.SkipYears)
	}
	return v
}

// CompactAll projects every definition, preserving table order.
func CompactAll(defs []model.EventDefinition, span model.YearRange) []VizEvent {
	out := make([]VizEvent, 0, len(defs))
	for _, def := range defs {
		out = append(out, Compact(def, span))
	}
	return out
}
