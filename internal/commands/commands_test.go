package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"downtowncal/internal/config"
)

func testEnv(t *testing.T) (*Env, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputDir = "/out"
	cfg.FetchTimeoutSec = 5
	var out bytes.Buffer
	return &Env{Cfg: cfg, Fs: afero.NewMemMapFs(), Stdout: &out}, &out
}

func readFile(t *testing.T, env *Env, path string) string {
	t.Helper()
	data, err := afero.ReadFile(env.Fs, path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestEventsWritesOutputs(t *testing.T) {
	env, out := testEnv(t)
	if err := Events(context.Background(), env, nil); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"/out/cville_events_calendar.json",
		"/out/cville_events_calendar.csv",
		"/out/cville_events_viz.json",
		"/out/cville_events_calendar.ics",
	} {
		if ok, _ := afero.Exists(env.Fs, name); !ok {
			t.Errorf("%s not written", name)
		}
	}

	report := out.String()
	for _, want := range []string{"1063 total event-days", "Key events", "Saved /out/cville_events_viz.json"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestEventsNoFeedsLeavesConfigAlone(t *testing.T) {
	env, _ := testEnv(t)
	env.Cfg.Feeds = []config.FeedConfig{{ID: "unreachable", URL: "http://127.0.0.1:1/feed.ics"}}

	if err := Events(context.Background(), env, []string{"-no-feeds"}); err != nil {
		t.Fatal(err)
	}
	if len(env.Cfg.Feeds) != 1 {
		t.Error("-no-feeds modified the shared config")
	}
	if doc := readFile(t, env, "/out/cville_events_calendar.json"); !strings.Contains(doc, `"feed_event_days": {}`) {
		t.Error("feed counts not empty with -no-feeds")
	}
}

func TestEventsWatchNeedsSchedule(t *testing.T) {
	env, _ := testEnv(t)
	if err := Events(context.Background(), env, []string{"-watch"}); err == nil {
		t.Fatal("expected error without refresh schedule")
	}
}

func TestEventsWatchStopsOnCancel(t *testing.T) {
	env, _ := testEnv(t)
	env.Cfg.RefreshCron = "0 6 * * *"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No feeds are configured, so the first build never touches ctx.
	if err := Events(ctx, env, []string{"-watch"}); err != nil {
		t.Fatal(err)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := newScheduler(context.Background(), "every tuesday", "test", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for malformed schedule")
	}
	c, err := newScheduler(context.Background(), "*/5 * * * *", "test", func(context.Context) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if n := len(c.Entries()); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

const permitsCSV = "PermitNumber,PermitType,PropertyAddress,AppliedDate,IssuedDate\n" +
	"B1,Alteration,101 E Main St,2018-03-01,2018-04-10\n" +
	"B2,Sign,12 Rugby Rd,2019-01-05,2019-02-01\n" +
	"B3,Demolition,400 Market St,2019-06-01,\n"

func TestPermits(t *testing.T) {
	env, out := testEnv(t)
	if err := afero.WriteFile(env.Fs, "/in/permits.csv", []byte(permitsCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Permits(env, []string{"/in/permits.csv"}); err != nil {
		t.Fatal(err)
	}

	downtown := readFile(t, env, "/out/permits_downtown_mall.csv")
	if strings.Contains(downtown, "Rugby") || !strings.Contains(downtown, "400 Market St") {
		t.Errorf("downtown csv =\n%s", downtown)
	}
	wantByYear := "year,all_city,downtown_mall\n2018,1,1\n2019,2,1\n"
	if got := readFile(t, env, "/out/permits_by_year.csv"); got != wantByYear {
		t.Errorf("by-year csv =\n%s\nwant\n%s", got, wantByYear)
	}
	if !strings.Contains(out.String(), "Downtown Mall area: 2 records") {
		t.Errorf("report =\n%s", out.String())
	}
}

func TestPermitsKeywordOverride(t *testing.T) {
	env, _ := testEnv(t)
	afero.WriteFile(env.Fs, "/in/permits.csv", []byte(permitsCSV), 0o644)

	if err := Permits(env, []string{"-keywords", "rugby, ", "/in/permits.csv"}); err != nil {
		t.Fatal(err)
	}
	downtown := readFile(t, env, "/out/permits_downtown_mall.csv")
	if !strings.Contains(downtown, "Rugby") || strings.Contains(downtown, "Main") {
		t.Errorf("downtown csv =\n%s", downtown)
	}
}

func TestPermitsErrors(t *testing.T) {
	env, _ := testEnv(t)
	if err := Permits(env, nil); err == nil {
		t.Error("expected error without input")
	}
	if err := Permits(env, []string{"/in/missing.csv"}); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestWeather(t *testing.T) {
	var gotStart, gotEnd string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start_date")
		gotEnd = r.URL.Query().Get("end_date")
		w.Write([]byte(`{"daily": {
			"time": ["2025-07-01", "2025-07-02"],
			"temperature_2m_max": [91.2, 95.0],
			"temperature_2m_min": [70.1, 68.4],
			"temperature_2m_mean": [80.0, 81.5],
			"precipitation_sum": [0.0, 1.25],
			"weather_code": [1, 63]
		}}`))
	}))
	defer srv.Close()

	env, out := testEnv(t)
	env.Cfg.Weather.BaseURL = srv.URL

	if err := Weather(context.Background(), env, []string{"-end", "2025-07-02"}); err != nil {
		t.Fatal(err)
	}
	if gotStart != "2015-01-01" || gotEnd != "2025-07-02" {
		t.Errorf("requested %s..%s", gotStart, gotEnd)
	}

	csv := readFile(t, env, "/out/charlottesville_weather.csv")
	if lines := strings.Count(csv, "\n"); lines != 3 {
		t.Errorf("weather csv has %d lines, want 3:\n%s", lines, csv)
	}
	if !strings.Contains(out.String(), "Saved 2 days") {
		t.Errorf("report =\n%s", out.String())
	}
}

func TestWeatherRequestDefaults(t *testing.T) {
	env, _ := testEnv(t)
	env.Cfg.Weather.StartDate = "2016-05-01"

	req := weatherRequest(env, "", "")
	if req.StartDate != "2016-05-01" || req.EndDate != "2025-12-31" {
		t.Errorf("range = %s..%s", req.StartDate, req.EndDate)
	}
	if req.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", req.Timezone)
	}

	req = weatherRequest(env, "2020-01-01", "2020-01-31")
	if req.StartDate != "2020-01-01" || req.EndDate != "2020-01-31" {
		t.Errorf("flag range = %s..%s", req.StartDate, req.EndDate)
	}
}

func TestPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			w.Write([]byte(`{"status": "REQUEST_DENIED"}`))
			return
		}
		if r.URL.Query().Get("place_id") == "mall" {
			w.Write([]byte(`{"status": "OK", "result": {"formatted_address": "Downtown Mall",
				"populartimes": [{"name": "Saturday", "data": [0,0,0,0,0,0,0,0,0,0,0,0,0,0,90,0,0,0,0,0,0,0,0,0]}]}}`))
			return
		}
		w.Write([]byte(`{"status": "NOT_FOUND"}`))
	}))
	defer srv.Close()

	t.Setenv("DOWNTOWNCAL_TEST_KEY", "test-key")
	env, out := testEnv(t)
	env.Cfg.Places.Endpoint = srv.URL
	env.Cfg.Places.APIKeyEnv = "DOWNTOWNCAL_TEST_KEY"
	env.Cfg.Places.DelayMillis = 0
	env.Cfg.Places.Places = []config.Place{
		{Name: "Downtown Mall", PlaceID: "mall"},
		{Name: "Gone", PlaceID: "gone"},
	}

	if err := Places(context.Background(), env, []string{"-env-file", t.TempDir() + "/none.env"}); err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(readFile(t, env, "/out/populartimes_data.json")), &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 || !strings.Contains(string(raw["Gone"]), "NOT_FOUND") {
		t.Errorf("places json = %v", raw)
	}

	grid := readFile(t, env, "/out/populartimes_summary.csv")
	if !strings.HasPrefix(grid, "Place,Day,0:00,") || !strings.Contains(grid, "Downtown Mall,Saturday,") {
		t.Errorf("grid =\n%s", grid)
	}
	if !strings.Contains(out.String(), "Peak: Saturday 14:00") {
		t.Errorf("report =\n%s", out.String())
	}
}

func TestPlacesWithoutKey(t *testing.T) {
	t.Setenv("DOWNTOWNCAL_MISSING_KEY", "")
	env, _ := testEnv(t)
	env.Cfg.Places.APIKeyEnv = "DOWNTOWNCAL_MISSING_KEY"
	if err := Places(context.Background(), env, []string{"-env-file", t.TempDir() + "/none.env"}); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" E MAIN, ,Market St,")
	if len(got) != 2 || got[0] != "E MAIN" || got[1] != "Market St" {
		t.Errorf("splitList = %q", got)
	}
}

func TestServeRefusesBrokenTable(t *testing.T) {
	env, _ := testEnv(t)
	env.Cfg.EventsFile = t.TempDir() + "/missing.yaml"
	env.Cfg.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Serve(ctx, env, nil); err == nil {
		t.Fatal("expected serve to fail on a broken event table")
	}
}
