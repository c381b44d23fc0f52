// Package pipeline builds the calendar artifacts shared by the events job and
// the preview server.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"downtowncal/internal/config"
	"downtowncal/internal/events"
	"downtowncal/internal/export"
	"downtowncal/internal/ics"
	appLog "downtowncal/internal/log"
	"downtowncal/internal/model"
)

// Artifacts is one complete build. It is never modified after Build returns.
type Artifacts struct {
	Span     model.YearRange
	Table    *events.Table
	Calendar []model.CalendarEntry
	Feeds    []export.Feed
	Document export.CalendarDocument
	BuiltAt  time.Time
}

// FeedCounts returns the number of event-days per feed id.
func (a *Artifacts) FeedCounts() map[string]int {
	return a.Document.Metadata.FeedEventDays
}

// Builder turns a configuration into Artifacts.
type Builder struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	loc     *time.Location
}

// NewBuilder prepares a Builder for cfg.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		cfg:     cfg,
		fetcher: ics.NewFetcher(time.Duration(cfg.FetchTimeoutSec) * time.Second),
		loc:     resolveLocationOrLocal(cfg.Timezone),
	}
}

// Build loads the event table, expands it over the configured span and
// merges in whatever the external feeds return. A broken table is fatal;
// a broken feed is logged and counted as zero event-days.
func (b *Builder) Build(ctx context.Context) (*Artifacts, error) {
	span := b.cfg.Span()

	table, err := events.LoadTable(b.cfg.EventsFile, span)
	if err != nil {
		return nil, err
	}

	cal := events.BuildCalendar(table.Definitions, span)
	appLog.Info("calendar expanded", "definitions", table.Len(), "event_days", len(cal), "years", span.String())

	feeds, err := b.buildFeeds(ctx, span)
	if err != nil {
		return nil, err
	}

	return &Artifacts{
		Span:     span,
		Table:    table,
		Calendar: cal,
		Feeds:    feeds,
		Document: export.NewCalendarDocument(table, span, cal, feeds),
		BuiltAt:  time.Now(),
	}, nil
}

func (b *Builder) buildFeeds(ctx context.Context, span model.YearRange) ([]export.Feed, error) {
	sources := Sources(b.cfg.Feeds)
	feeds := make([]export.Feed, 0, len(sources))
	if len(sources) == 0 {
		return feeds, nil
	}

	results, fetchErrs := b.fetcher.FetchAll(ctx, sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(fetchErrs) > 0 {
		appLog.Error("one or more ICS fetches failed", errors.Join(fetchErrs...), "error_count", len(fetchErrs))
	}

	bodies := make(map[string][]byte, len(results))
	for _, res := range results {
		bodies[res.Source.ID] = res.Body
	}

	for _, src := range sources {
		feed := export.Feed{ID: src.ID}
		if body, ok := bodies[src.ID]; ok {
			feed.Entries = b.expandFeed(src, body, span)
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}

func (b *Builder) expandFeed(src ics.Source, body []byte, span model.YearRange) []model.CalendarEntry {
	parsed, err := ics.ParseICS(src, body)
	if err != nil {
		appLog.Debug("feed skipped", "id", src.ID, "reason", err.Error())
		return nil
	}
	entries, err := ics.ExpandFeed(parsed, src, span, b.loc)
	if err != nil {
		appLog.Error("feed expand failed", err, "id", src.ID)
		return nil
	}
	appLog.Info("feed expanded", "id", src.ID, "event_days", len(entries))
	return entries
}

// Sources converts configured feeds to fetch sources keyed by their
// effective id. Feeds without a URL are skipped.
func Sources(feeds []config.FeedConfig) []ics.Source {
	sources := make([]ics.Source, 0, len(feeds))
	for _, f := range feeds {
		if f.URL == "" {
			continue
		}
		category := model.Category(f.Type)
		if category == "" {
			category = model.CategoryCivic
		}
		sources = append(sources, ics.Source{
			ID:       f.EffectiveID(),
			Name:     f.Name,
			URL:      f.URL,
			Category: category,
			Boost:    f.Boost,
		})
	}
	return sources
}

// Write stores every calendar output through sink and returns the paths
// written.
func (a *Artifacts) Write(sink *export.Sink, out config.OutputConfig, timezone string) ([]string, error) {
	var paths []string

	steps := []struct {
		name  string
		write func() (string, error)
	}{
		{out.CalendarJSON, func() (string, error) { return sink.WriteJSON(out.CalendarJSON, a.Document) }},
		{out.CalendarCSV, func() (string, error) {
			return sink.WriteCSV(out.CalendarCSV, export.CalendarHeader, export.CalendarRows(a.Calendar))
		}},
		{out.VizJSON, func() (string, error) { return sink.WriteJSON(out.VizJSON, a.Document.VizFormat) }},
		{out.CalendarICS, func() (string, error) {
			return sink.WriteFile(out.CalendarICS, func(w io.Writer) error {
				return a.WriteICS(w, timezone)
			})
		}},
	}

	for _, step := range steps {
		if step.name == "" {
			continue
		}
		path, err := step.write()
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteICS serializes the curated calendar as iCalendar.
func (a *Artifacts) WriteICS(w io.Writer, timezone string) error {
	return ics.WriteCalendar(w, a.Calendar, ics.WriteOptions{
		Name:     fmt.Sprintf("Downtown Mall events %s", a.Span),
		Timezone: timezone,
		Stamp:    a.BuiltAt,
	})
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
