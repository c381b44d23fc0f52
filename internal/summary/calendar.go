package summary

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"downtowncal/internal/events"
	"downtowncal/internal/model"
)

// CountByCategory tallies entries per category, ordered by category name.
func CountByCategory(cal []model.CalendarEntry) []Count {
	m := make(map[string]int)
	for _, e := range cal {
		m[string(e.Category)]++
	}
	return Sorted(m)
}

// CountByYear tallies entries per calendar year in ascending numeric order.
func CountByYear(cal []model.CalendarEntry) []Count {
	m := make(map[int]int)
	for _, e := range cal {
		m[e.Date.Year()]++
	}
	years := slices.Sorted(maps.Keys(m))
	out := make([]Count, 0, len(years))
	for _, y := range years {
		out = append(out, Count{Label: strconv.Itoa(y), Value: m[y]})
	}
	return out
}

// KeyEventLine describes one definition: name, boost, pattern and any end
// year or skipped years.
func KeyEventLine(def model.EventDefinition, span model.YearRange) string {
	line := fmt.Sprintf("%-30s boost=%.2f  %-15s", def.Name, def.Boost, events.Tag(def.Pattern))
	if def.Active.End < span.End {
		line += fmt.Sprintf(" (ends %d)", def.Active.End)
	}
	if len(def.SkipYears) > 0 {
		line += fmt.Sprintf(" (skip: %v)", def.SkipYears)
	}
	return line
}

// PrintCalendar prints the generation report of the events job.
func PrintCalendar(w io.Writer, table *events.Table, span model.YearRange, cal []model.CalendarEntry) {
	Heading(w, fmt.Sprintf("Downtown Mall events calendar %s", span))
	fmt.Fprintf(w, "  Generated %d total event-days from %d definitions\n", len(cal), table.Len())

	Heading(w, "Event-days by type")
	Table(w, CountByCategory(cal), 10)

	Heading(w, "Event-days by year")
	Bars(w, CountByYear(cal))

	Heading(w, "Key events")
	for _, def := range table.Definitions {
		fmt.Fprintf(w, "  %s\n", KeyEventLine(def, span))
	}
}

// PrintFeeds prints how many event-days each external feed contributed.
func PrintFeeds(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	Heading(w, "External feeds")
	Table(w, Sorted(counts), 30)
}
