package events

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"downtowncal/internal/model"
)

func TestCompactFields(t *testing.T) {
	table, err := DefaultTable(span)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"Fridays After Five", `{"name":"Fridays After Five","type":"music","boost":0.4,"desc":"Free concert series at Ting Pavilion. 37th season in 2025.","recurring":"friday","startMonth":4,"startDay":18,"endMonth":9,"endDay":5,"skipYears":[2020]}`},
		{"First Fridays", `{"name":"First Fridays","type":"art","boost":0.2,"desc":"Gallery walk on the Downtown Mall. First Friday of each month.","recurring":"first_friday","skipYears":[2020]}`},
		{"Dogwood Festival", `{"name":"Dogwood Festival","type":"festival","boost":0.3,"desc":"Spring parade & carnival since 1950. Canceled 2025.","month":4,"days":[10,11,12,13,14],"endYear":2024,"skipYears":[2020,2021]}`},
		{"Soul of C'ville", `{"name":"Soul of C'ville","type":"festival","boost":0.3,"desc":"Celebration of Black excellence in Charlottesville.","month":6,"days":[14,15,16],"startYear":2018,"skipYears":[2020]}`},
		{"UVA Move-In Weekend", `{"name":"UVA Move-In Weekend","type":"uva","boost":0.15,"desc":"Students return, restaurants and shops see surge.","month":8,"days":[22,23,24,25]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, ok := table.Lookup(tt.name)
			if !ok {
				t.Fatalf("%s missing", tt.name)
			}
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(Compact(def, span)); err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(buf.String()); got != tt.want {
				t.Errorf("Compact(%s) =\n%s\nwant\n%s", tt.name, got, tt.want)
			}
		})
	}
}

// renderDates re-derives dates from the compact fields alone, the way the
// browser renderer does.
func renderDates(t *testing.T, v VizEvent, span model.YearRange) []time.Time {
	t.Helper()
	startYear, endYear := span.Start, span.End
	if v.StartYear != 0 {
		startYear = v.StartYear
	}
	if v.EndYear != 0 {
		endYear = v.EndYear
	}

	var out []time.Time
	for y := startYear; y <= endYear; y++ {
		if slices.Contains(v.SkipYears, y) {
			continue
		}
		switch {
		case strings.HasPrefix(v.Recurring, "first_"):
			wd, err := ParseWeekday(strings.TrimPrefix(v.Recurring, "first_"))
			if err != nil {
				t.Fatal(err)
			}
			for m := time.January; m <= time.December; m++ {
				d := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
				for d.Weekday() != wd {
					d = d.AddDate(0, 0, 1)
				}
				out = append(out, d)
			}
		case v.Recurring != "":
			wd, err := ParseWeekday(v.Recurring)
			if err != nil {
				t.Fatal(err)
			}
			end := time.Date(y, time.Month(v.EndMonth), v.EndDay, 0, 0, 0, 0, time.UTC)
			for d := time.Date(y, time.Month(v.StartMonth), v.StartDay, 0, 0, 0, 0, time.UTC); !d.After(end); d = d.AddDate(0, 0, 1) {
				if d.Weekday() == wd {
					out = append(out, d)
				}
			}
		default:
			for _, day := range v.Days {
				if d, ok := model.DateOf(y, time.Month(v.Month), day); ok {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

func TestCompactConsistentWithExpand(t *testing.T) {
	table, err := DefaultTable(span)
	if err != nil {
		t.Fatal(err)
	}

	viz := CompactAll(table.Definitions, span)
	if len(viz) != table.Len() {
		t.Fatalf("viz entries = %d, want %d", len(viz), table.Len())
	}

	for i, def := range table.Definitions {
		var want []time.Time
		for _, e := range ExpandRange(def, span) {
			want = append(want, e.Date)
		}
		got := renderDates(t, viz[i], span)
		if !slices.EqualFunc(got, want, time.Time.Equal) {
			t.Errorf("%s: renderer derives %d dates, expander produced %d", def.Name, len(got), len(want))
		}
	}
}
