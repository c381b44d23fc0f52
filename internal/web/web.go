// Package web serves the most recent calendar build over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"downtowncal/internal/config"
	"downtowncal/internal/events"
	"downtowncal/internal/export"
	appLog "downtowncal/internal/log"
	"downtowncal/internal/model"
	"downtowncal/internal/pipeline"
	"downtowncal/internal/summary"
)

const shutdownTimeout = 5 * time.Second

// BuildFunc produces a fresh set of artifacts.
type BuildFunc func(ctx context.Context) (*pipeline.Artifacts, error)

// Server provides read-only HTTP access to the current calendar build.
// Requests are answered from memory; nothing is fetched per request.
type Server struct {
	cfg   *config.Config
	mux   *http.ServeMux
	build BuildFunc

	mu      sync.RWMutex
	current *pipeline.Artifacts
	lastErr error
}

// NewServer constructs a new Server. build is called by Rebuild.
func NewServer(cfg *config.Config, build BuildFunc) *Server {
	s := &Server{
		cfg:   cfg,
		mux:   http.NewServeMux(),
		build: build,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Rebuild runs the build function and swaps in the result. A failed build
// keeps serving the previous artifacts.
func (s *Server) Rebuild(ctx context.Context) error {
	start := time.Now()
	a, err := s.build(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		appLog.Error("calendar rebuild failed", err, "serving_previous", s.current != nil)
		return err
	}
	s.current = a
	s.lastErr = nil
	appLog.Info("calendar rebuilt", "event_days", len(a.Calendar), "took", time.Since(start).Round(time.Millisecond).String())
	return nil
}

// Current returns the artifacts being served, or nil before the first
// successful build.
func (s *Server) Current() *pipeline.Artifacts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// StartServer serves s on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config, s *Server) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	appLog.Info("stopping HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/viz", s.handleViz)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// artifacts returns the current build or writes 503 when there is none yet.
func (s *Server) artifacts(w http.ResponseWriter) (*pipeline.Artifacts, bool) {
	s.mu.RLock()
	a, lastErr := s.current, s.lastErr
	s.mu.RUnlock()
	if a != nil {
		return a, true
	}
	msg := "calendar not built yet"
	if lastErr != nil {
		msg = "calendar build failed"
	}
	writeError(w, http.StatusServiceUnavailable, msg)
	return nil, false
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	Years    string         `json:"years"`
	Count    int            `json:"count"`
	Calendar []export.Entry `json:"calendar"`
	Feeds    []export.Entry `json:"feed_calendar,omitempty"`
}

// handleCalendar returns curated calendar entries.
//
// GET /api/calendar?year=2024&type=music&feeds=1
//   - year:  keep a single year of the span
//   - type:  keep a single category
//   - feeds: include feed entries, filtered the same way
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	a, ok := s.artifacts(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	year := 0
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !a.Span.Contains(n) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("year must be within %s", a.Span))
			return
		}
		year = n
	}
	category := model.Category(q.Get("type"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown type %q", category))
		return
	}

	keep := func(e model.CalendarEntry) bool {
		if year != 0 && e.Date.Year() != year {
			return false
		}
		return category == "" || e.Category == category
	}

	cal := filterEntries(a.Calendar, keep)
	resp := calendarResponse{
		Years:    a.Span.String(),
		Count:    len(cal),
		Calendar: export.Entries(cal),
	}
	if parseIntDefault(q.Get("feeds"), 0) > 0 {
		var feedEntries []model.CalendarEntry
		for _, f := range a.Feeds {
			feedEntries = append(feedEntries, filterEntries(f.Entries, keep)...)
		}
		events.SortEntries(feedEntries)
		resp.Feeds = export.Entries(feedEntries)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleViz(w http.ResponseWriter, _ *http.Request) {
	a, ok := s.artifacts(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.Document.VizFormat)
}

// summaryResponse is the JSON response shape for /api/summary.
type summaryResponse struct {
	Years            string         `json:"years"`
	EventDefinitions int            `json:"event_definitions"`
	TotalEventDays   int            `json:"total_event_days"`
	ByType           map[string]int `json:"by_type"`
	ByYear           map[string]int `json:"by_year"`
	FeedEventDays    map[string]int `json:"feed_event_days"`
	BuiltAt          time.Time      `json:"built_at"`
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	a, ok := s.artifacts(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Years:            a.Span.String(),
		EventDefinitions: a.Table.Len(),
		TotalEventDays:   len(a.Calendar),
		ByType:           countMap(summary.CountByCategory(a.Calendar)),
		ByYear:           countMap(summary.CountByYear(a.Calendar)),
		FeedEventDays:    a.FeedCounts(),
		BuiltAt:          a.BuiltAt,
	})
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	a, ok := s.artifacts(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="downtown-events.ics"`)
	w.WriteHeader(http.StatusOK)
	if err := a.WriteICS(w, s.cfg.Timezone); err != nil {
		appLog.Error("failed to write ICS response", err)
	}
}

func filterEntries(entries []model.CalendarEntry, keep func(model.CalendarEntry) bool) []model.CalendarEntry {
	out := make([]model.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func countMap(counts []summary.Count) map[string]int {
	m := make(map[string]int, len(counts))
	for _, c := range counts {
		m[c.Label] = c.Value
	}
	return m
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := export.EncodeJSON(w, v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
