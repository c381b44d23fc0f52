// Package permits filters the city building-permit export down to the
// Downtown Mall area and tallies it.
package permits

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"downtowncal/internal/summary"
)

const (
	colAddress = "PropertyAddress"
	colIssued  = "IssuedDate"
	colApplied = "AppliedDate"
	colType    = "PermitType"

	unknown = "Unknown"
)

// ByYearHeader is the column order of the per-year tally CSV.
var ByYearHeader = []string{"year", "all_city", "downtown_mall"}

// ErrNoHeader is returned for an input without a header row.
var ErrNoHeader = errors.New("permits: input has no header row")

// Dataset is a permit CSV held in its original column order.
type Dataset struct {
	Header []string
	Rows   [][]string

	col map[string]int
}

// Read loads a permit CSV. Rows may be shorter or longer than the header.
func Read(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("permits: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("permits: read rows: %w", err)
	}

	d := &Dataset{Header: header, Rows: rows, col: make(map[string]int, len(header))}
	for i, name := range header {
		if _, dup := d.col[name]; !dup {
			d.col[name] = i
		}
	}
	return d, nil
}

// Has reports whether the dataset carries column name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.col[name]
	return ok
}

// Field returns the value of column name in row, or "" when absent.
func (d *Dataset) Field(row []string, name string) string {
	i, ok := d.col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Year extracts the permit year from IssuedDate, falling back to
// AppliedDate. Both are read from their first four characters.
func (d *Dataset) Year(row []string) (int, bool) {
	for _, name := range []string{colIssued, colApplied} {
		v := d.Field(row, name)
		if strings.TrimSpace(v) == "" {
			continue
		}
		if len(v) > 4 {
			v = v[:4]
		}
		y, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil && y != 0 {
			return y, true
		}
	}
	return 0, false
}

// IsDowntown reports whether addr contains any keyword, case-insensitively.
func IsDowntown(addr string, keywords []string) bool {
	addr = strings.ToUpper(addr)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(addr, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

// Report is the result of one filtering run.
type Report struct {
	Total    int
	Downtown [][]string

	ByYearAll      map[int]int
	ByYearDowntown map[int]int

	// Types and Addresses tally the downtown permits only.
	Types     map[string]int
	Addresses map[string]int
}

// Analyze filters d by keywords and tallies the result.
func Analyze(d *Dataset, keywords []string) Report {
	r := Report{
		Total:          len(d.Rows),
		Downtown:       make([][]string, 0),
		ByYearAll:      make(map[int]int),
		ByYearDowntown: make(map[int]int),
		Types:          make(map[string]int),
		Addresses:      make(map[string]int),
	}

	for _, row := range d.Rows {
		y, hasYear := d.Year(row)
		if hasYear {
			r.ByYearAll[y]++
		}

		if !IsDowntown(d.Field(row, colAddress), keywords) {
			continue
		}
		r.Downtown = append(r.Downtown, row)
		if hasYear {
			r.ByYearDowntown[y]++
		}
		r.Types[d.valueOr(row, colType)]++
		r.Addresses[d.valueOr(row, colAddress)]++
	}
	return r
}

func (d *Dataset) valueOr(row []string, name string) string {
	if !d.Has(name) {
		return unknown
	}
	return d.Field(row, name)
}

// Years returns every year seen city-wide or downtown, ascending.
func (r Report) Years() []int {
	var years []int
	for y := range r.ByYearAll {
		years = append(years, y)
	}
	for y := range r.ByYearDowntown {
		if _, ok := r.ByYearAll[y]; !ok {
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return years
}

// ByYearRows renders the per-year tallies in ByYearHeader order.
func (r Report) ByYearRows() [][]string {
	years := r.Years()
	rows := make([][]string, 0, len(years))
	for _, y := range years {
		rows = append(rows, []string{
			strconv.Itoa(y),
			strconv.Itoa(r.ByYearAll[y]),
			strconv.Itoa(r.ByYearDowntown[y]),
		})
	}
	return rows
}

// DowntownRows pads or trims the filtered rows to the header width so the
// output CSV is rectangular.
func (r Report) DowntownRows(width int) [][]string {
	out := make([][]string, 0, len(r.Downtown))
	for _, row := range r.Downtown {
		fixed := make([]string, width)
		copy(fixed, row)
		out = append(out, fixed)
	}
	return out
}

func (r Report) yearCounts(m map[int]int) []summary.Count {
	years := r.Years()
	out := make([]summary.Count, 0, len(years))
	for _, y := range years {
		out = append(out, summary.Count{Label: strconv.Itoa(y), Value: m[y]})
	}
	return out
}

// Print writes the console report: per-year bars city-wide and downtown,
// the top ten permit types and the top fifteen addresses downtown.
func Print(w io.Writer, r Report) {
	fmt.Fprintf(w, "Total records: %d\n", r.Total)
	fmt.Fprintf(w, "Downtown Mall area: %d records\n", len(r.Downtown))

	summary.Heading(w, "Building permits city-wide (by year)")
	summary.Bars(w, r.yearCounts(r.ByYearAll))

	if len(r.ByYearDowntown) > 0 {
		summary.Heading(w, "Downtown Mall area permits (by year)")
		summary.Bars(w, r.yearCounts(r.ByYearDowntown))
	}

	if len(r.Downtown) == 0 {
		return
	}
	summary.Heading(w, "Downtown Mall permit types")
	summary.Table(w, summary.Top(r.Types, 10), 30)

	summary.Heading(w, "Downtown Mall top 15 addresses")
	summary.Table(w, summary.Top(r.Addresses, 15), 40)
}
