package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func hours(peakHour, peak int) []int {
	data := make([]int, 24)
	for h := range data {
		data[h] = h
	}
	data[peakHour] = peak
	return data
}

func newPlacesServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."}`))
			return
		}
		switch r.URL.Query().Get("place_id") {
		case "pavilion":
			body, _ := json.Marshal(map[string]any{
				"status": "OK",
				"result": map[string]any{
					"formatted_address":  "700 E Main St, Charlottesville, VA",
					"populartimes":       []Day{{Name: "Monday", Data: hours(19, 88)}, {Name: "Friday", Data: hours(20, 97)}},
					"current_popularity": 41,
					"time_spent":         []int{45, 120},
				},
			})
			w.Write(body)
		case "quiet":
			w.Write([]byte(`{"status": "OK", "result": {"formatted_address": "1 Water St"}}`))
		case "broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"status": "NOT_FOUND"}`))
		}
	}))
}

func TestFetchAll(t *testing.T) {
	srv := newPlacesServer(t)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Millisecond, time.Second)
	results, err := c.FetchAll(context.Background(), []Place{
		{Name: "Ting Pavilion", ID: "pavilion"},
		{Name: "Quiet Cafe", ID: "quiet"},
		{Name: "Broken", ID: "broken"},
		{Name: "Missing", ID: "nope"},
	})
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}

	ting := results[0]
	if !ting.HasData() || ting.Address != "700 E Main St, Charlottesville, VA" || *ting.CurrentPopularity != 41 {
		t.Errorf("pavilion = %+v", ting)
	}
	if results[1].HasData() || results[1].Error != "" {
		t.Errorf("quiet place = %+v, want success without data", results[1])
	}
	if !strings.Contains(results[2].Error, "500") {
		t.Errorf("broken error = %q", results[2].Error)
	}
	if !strings.Contains(results[3].Error, "NOT_FOUND") {
		t.Errorf("missing error = %q", results[3].Error)
	}
}

func TestFetchRejectedKey(t *testing.T) {
	srv := newPlacesServer(t)
	defer srv.Close()

	_, err := NewClient(srv.URL, "wrong", 0, time.Second).Fetch(context.Background(), Place{Name: "x", ID: "pavilion"})
	if err == nil || !strings.Contains(err.Error(), "REQUEST_DENIED") {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(err.Error(), "wrong") {
		t.Errorf("error leaks the key: %v", err)
	}
}

func TestFetchAllStopsOnCancel(t *testing.T) {
	srv := newPlacesServer(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(srv.URL, "secret", time.Hour, time.Second)
	results, err := c.FetchAll(ctx, []Place{{Name: "a", ID: "pavilion"}, {Name: "b", ID: "quiet"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want none after cancel", len(results))
	}
}

func TestResultsJSONKeepsOrder(t *testing.T) {
	pop := 12
	res := Results{
		{Name: "Zeta", PlaceID: "z", Address: "1 Main", CurrentPopularity: &pop},
		{Name: "Alpha", PlaceID: "a", Error: "places: NOT_FOUND"},
	}
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"Zeta":{"place_id":"z","address":"1 Main","populartimes":null,"current_popularity":12,"time_spent":null},` +
		`"Alpha":{"place_id":"a","error":"places: NOT_FOUND"}}`
	if string(raw) != want {
		t.Errorf("json =\n%s\nwant\n%s", raw, want)
	}
}

func TestRowsAndPeak(t *testing.T) {
	results := []Result{
		{Name: "Ting Pavilion", PopularTimes: []Day{{Name: "Monday", Data: hours(19, 88)}, {Name: "Friday", Data: hours(20, 97)}}},
		{Name: "Quiet Cafe"},
	}
	rows := Rows(results)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if len(rows[0]) != len(Header) || rows[0][0] != "Ting Pavilion" || rows[0][1] != "Monday" || rows[0][21] != "88" {
		t.Errorf("row = %v", rows[0])
	}
	if Header[2] != "0:00" || Header[25] != "23:00" {
		t.Errorf("header = %v", Header)
	}

	if p := PeakOf(results[0].PopularTimes); p != (Peak{Day: "Friday", Hour: 20, Value: 97}) {
		t.Errorf("peak = %+v", p)
	}

	var b strings.Builder
	Print(&b, results)
	for _, want := range []string{"Peak: Friday 20:00 (popularity 97/100)", "Quiet Cafe: No data available"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, b.String())
		}
	}
}

func TestAPIKeyFromEnvFile(t *testing.T) {
	const name = "DOWNTOWNCAL_TEST_PLACES_KEY"
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(name+"=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv(name) })

	key, err := APIKey(name, path)
	if err != nil || key != "from-file" {
		t.Fatalf("APIKey = %q, %v", key, err)
	}

	if _, err := APIKey("DOWNTOWNCAL_TEST_UNSET_KEY", filepath.Join(t.TempDir(), "missing.env")); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}
