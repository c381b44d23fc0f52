package export

import (
	"strconv"

	"downtowncal/internal/events"
	"downtowncal/internal/model"
)

const (
	calendarDescription = "Charlottesville Downtown Mall Events Calendar"
	calendarSource      = "Curated from local news and official event pages, plus configured ICS feeds"
)

// CalendarHeader is the column order of the calendar CSV.
var CalendarHeader = []string{"date", "name", "type", "boost", "description", "location", "source"}

// Metadata summarizes one generated calendar.
type Metadata struct {
	Description      string         `json:"description"`
	Source           string         `json:"source"`
	Years            string         `json:"years"`
	EventDefinitions int            `json:"event_definitions"`
	TotalEventDays   int            `json:"total_event_days"`
	FeedEventDays    map[string]int `json:"feed_event_days"`
}

// Entry is the JSON record of one calendar day.
type Entry struct {
	Date        string         `json:"date"`
	Name        string         `json:"name"`
	Type        model.Category `json:"type"`
	Boost       float64        `json:"boost"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Source      string         `json:"source"`
	Time        string         `json:"time,omitempty"`
}

// Feed is the expanded output of one external ICS feed.
type Feed struct {
	ID      string
	Entries []model.CalendarEntry
}

// CalendarDocument is the full calendar JSON file.
type CalendarDocument struct {
	Metadata         Metadata            `json:"metadata"`
	EventDefinitions []events.Definition `json:"event_definitions"`
	Calendar         []Entry             `json:"calendar"`
	VizFormat        []events.VizEvent   `json:"viz_format"`
	FeedCalendar     []Entry             `json:"feed_calendar"`
}

// NewCalendarDocument assembles the document for a curated calendar and the
// feeds fetched alongside it. Feed entries are kept apart from the curated
// calendar.
func NewCalendarDocument(table *events.Table, span model.YearRange, calendar []model.CalendarEntry, feeds []Feed) CalendarDocument {
	defs := make([]events.Definition, 0, table.Len())
	for _, def := range table.Definitions {
		defs = append(defs, events.Describe(def))
	}

	feedCounts := make(map[string]int, len(feeds))
	var feedEntries []model.CalendarEntry
	for _, f := range feeds {
		feedCounts[f.ID] = len(f.Entries)
		feedEntries = append(feedEntries, f.Entries...)
	}
	events.SortEntries(feedEntries)

	return CalendarDocument{
		Metadata: Metadata{
			Description:      calendarDescription,
			Source:           calendarSource,
			Years:            span.String(),
			EventDefinitions: table.Len(),
			TotalEventDays:   len(calendar),
			FeedEventDays:    feedCounts,
		},
		EventDefinitions: defs,
		Calendar:         Entries(calendar),
		VizFormat:        events.CompactAll(table.Definitions, span),
		FeedCalendar:     Entries(feedEntries),
	}
}

// Entries converts calendar entries to their JSON records.
func Entries(cal []model.CalendarEntry) []Entry {
	out := make([]Entry, 0, len(cal))
	for _, e := range cal {
		out = append(out, Entry{
			Date:        e.DateString(),
			Name:        e.Name,
			Type:        e.Category,
			Boost:       e.Boost,
			Description: e.Description,
			Location:    e.Location,
			Source:      e.Source,
			Time:        e.Time,
		})
	}
	return out
}

// CalendarRows renders entries in CalendarHeader order.
func CalendarRows(cal []model.CalendarEntry) [][]string {
	rows := make([][]string, 0, len(cal))
	for _, e := range cal {
		rows = append(rows, []string{
			e.DateString(),
			e.Name,
			string(e.Category),
			FormatFloat(e.Boost),
			e.Description,
			e.Location,
			e.Source,
		})
	}
	return rows
}

// FormatFloat prints f in its shortest decimal form ("0.4", "1").
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
