package places

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Header is the column order of the 7x24 popularity CSV.
var Header = func() []string {
	h := []string{"Place", "Day"}
	for hour := 0; hour < 24; hour++ {
		h = append(h, fmt.Sprintf("%d:00", hour))
	}
	return h
}()

// Results keeps the poll order when encoded as a JSON object keyed by place
// name.
type Results []Result

// MarshalJSON encodes r as {"<name>": {...}, ...} in slice order.
func (r Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, res := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(res.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Rows renders one CSV row per place and weekday. Places without data are
// left out.
func Rows(results []Result) [][]string {
	var rows [][]string
	for _, res := range results {
		for _, day := range res.PopularTimes {
			row := make([]string, 0, 2+len(day.Data))
			row = append(row, res.Name, day.Name)
			for _, v := range day.Data {
				row = append(row, strconv.Itoa(v))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Peak is the busiest hour of the week.
type Peak struct {
	Day   string
	Hour  int
	Value int
}

// PeakOf finds the first hour with the highest popularity.
func PeakOf(days []Day) Peak {
	var p Peak
	for _, day := range days {
		for hour, v := range day.Data {
			if v > p.Value {
				p = Peak{Day: day.Name, Hour: hour, Value: v}
			}
		}
	}
	return p
}

// Print writes the per-place peak summary.
func Print(w io.Writer, results []Result) {
	for _, res := range results {
		if !res.HasData() {
			fmt.Fprintf(w, "  %s: No data available\n", res.Name)
			continue
		}
		p := PeakOf(res.PopularTimes)
		fmt.Fprintf(w, "\n  %s\n", res.Name)
		fmt.Fprintf(w, "     Peak: %s %d:00 (popularity %d/100)\n", p.Day, p.Hour, p.Value)
		if res.CurrentPopularity != nil {
			fmt.Fprintf(w, "     Current: %d/100\n", *res.CurrentPopularity)
		}
		if len(res.TimeSpent) >= 2 {
			fmt.Fprintf(w, "     Avg visit: %d-%d min\n", res.TimeSpent[0], res.TimeSpent[1])
		}
	}
}
