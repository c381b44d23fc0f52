package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleResponse = `{
  "latitude": 38.03,
  "longitude": -78.48,
  "daily_units": {"time": "iso8601"},
  "daily": {
    "time": ["2025-07-01", "2025-07-02", "2025-07-03", "2025-07-04"],
    "temperature_2m_max": [91.2, 95.0, null, 95.0],
    "temperature_2m_min": [70.1, 68.4, 66.0, 71.3],
    "temperature_2m_mean": [80.0, 81.5, 79.9, 83.0],
    "precipitation_sum": [0.0, 1.25, 0.1, null],
    "weather_code": [1, 63, null, 101]
  }
}`

func TestFetch(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	daily, err := NewClient(srv.URL+"/v1/archive", time.Second).Fetch(context.Background(), Request{
		Latitude: 38.0293, Longitude: -78.4767,
		StartDate: "2025-07-01", EndDate: "2025-07-04",
		Timezone: "America/New_York",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if daily.Len() != 4 {
		t.Fatalf("days = %d, want 4", daily.Len())
	}

	wantQuery := map[string]string{
		"latitude":           "38.0293",
		"longitude":          "-78.4767",
		"start_date":         "2025-07-01",
		"end_date":           "2025-07-04",
		"daily":              dailyFields,
		"timezone":           "America/New_York",
		"temperature_unit":   "fahrenheit",
		"precipitation_unit": "inch",
	}
	for k, v := range wantQuery {
		if got := gotQuery[k]; len(got) != 1 || got[0] != v {
			t.Errorf("query %s = %v, want %q", k, got, v)
		}
	}

	rows := Rows(daily)
	want := [][]string{
		{"2025-07-01", "91.2", "70.1", "80", "0", "1", "Mainly clear"},
		{"2025-07-02", "95", "68.4", "81.5", "1.25", "63", "Moderate rain"},
		{"2025-07-03", "", "66", "79.9", "0.1", "", ""},
		{"2025-07-04", "95", "71.3", "83", "", "101", "101"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows =\n%v\nwant\n%v", rows, want)
	}
}

func TestFetchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": true, "reason": "Parameter 'start_date' is out of allowed range"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background(), Request{StartDate: "1900-01-01", EndDate: "1900-01-02"})
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("err = %v, want ErrAPI", err)
	}
	if !strings.Contains(err.Error(), "out of allowed range") {
		t.Errorf("err %q does not carry the reason", err)
	}
}

func TestFetchMismatchedSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"daily": {"time": ["2025-01-01", "2025-01-02"], "temperature_2m_max": [1],
			"temperature_2m_min": [1, 2], "temperature_2m_mean": [1, 2], "precipitation_sum": [0, 0], "weather_code": [0, 0]}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background(), Request{})
	if !errors.Is(err, ErrShape) {
		t.Fatalf("err = %v, want ErrShape", err)
	}
}

func TestFetchHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Fetch(context.Background(), Request{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v, want a 502 error", err)
	}
}

func TestSummarize(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	d := &Daily{
		Time:          []string{"2025-07-01", "2025-07-02", "2025-07-03"},
		TempMax:       []*float64{f(95), nil, f(95)},
		TempMin:       []*float64{f(70), f(60.5), nil},
		TempMean:      []*float64{nil, nil, nil},
		Precipitation: []*float64{f(0.5), f(1.25), nil},
		WeatherCode:   []*int{nil, nil, nil},
	}
	s := Summarize(d)

	if s.First != "2025-07-01" || s.Last != "2025-07-03" {
		t.Errorf("range = %s..%s", s.First, s.Last)
	}
	if s.Hottest != (Extreme{Date: "2025-07-01", Value: 95, OK: true}) {
		t.Errorf("hottest = %+v, want first of the tied days", s.Hottest)
	}
	if s.Coldest != (Extreme{Date: "2025-07-02", Value: 60.5, OK: true}) {
		t.Errorf("coldest = %+v", s.Coldest)
	}
	if s.Wettest.Date != "2025-07-02" || s.TotalPrecip != 1.75 {
		t.Errorf("wettest = %+v total = %v", s.Wettest, s.TotalPrecip)
	}

	var b strings.Builder
	Print(&b, s)
	for _, want := range []string{"2025-07-01 to 2025-07-03", "95.0°F on 2025-07-01", "60.5°F", "1.25\" on 2025-07-02", "Total precip: 1.75\""} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("report missing %q:\n%s", want, b.String())
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&Daily{})
	var b strings.Builder
	Print(&b, s)
	if !strings.Contains(b.String(), "No data") {
		t.Errorf("report = %q", b.String())
	}
}
