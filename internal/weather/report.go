package weather

import (
	"fmt"
	"io"
	"strconv"
)

// wmoCodes names the WMO weather interpretation codes used by Open-Meteo.
var wmoCodes = map[int]string{
	0: "Clear sky", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Fog", 48: "Depositing rime fog",
	51: "Light drizzle", 53: "Moderate drizzle", 55: "Dense drizzle",
	56: "Light freezing drizzle", 57: "Dense freezing drizzle",
	61: "Slight rain", 63: "Moderate rain", 65: "Heavy rain",
	66: "Light freezing rain", 67: "Heavy freezing rain",
	71: "Slight snow", 73: "Moderate snow", 75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers", 81: "Moderate rain showers", 82: "Violent rain showers",
	85: "Slight snow showers", 86: "Heavy snow showers",
	95: "Thunderstorm", 96: "Thunderstorm w/ slight hail", 99: "Thunderstorm w/ heavy hail",
}

// Describe names a WMO code; unknown codes are returned as digits.
func Describe(code int) string {
	if s, ok := wmoCodes[code]; ok {
		return s
	}
	return strconv.Itoa(code)
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Rows renders d in Header order. Gaps become empty cells.
func Rows(d *Daily) [][]string {
	rows := make([][]string, 0, d.Len())
	for i, day := range d.Time {
		code, desc := "", ""
		if c := d.WeatherCode[i]; c != nil {
			code, desc = strconv.Itoa(*c), Describe(*c)
		}
		rows = append(rows, []string{
			day,
			formatValue(d.TempMax[i]),
			formatValue(d.TempMin[i]),
			formatValue(d.TempMean[i]),
			formatValue(d.Precipitation[i]),
			code,
			desc,
		})
	}
	return rows
}

// Extreme is the most extreme value of one series and its date.
type Extreme struct {
	Date  string
	Value float64
	OK    bool
}

// Stats are the quick statistics printed after a fetch.
type Stats struct {
	First, Last string

	Hottest Extreme
	Coldest Extreme
	Wettest Extreme

	TotalPrecip float64
}

// Summarize computes Stats over d, ignoring gaps. Ties go to the earliest
// day.
func Summarize(d *Daily) Stats {
	var s Stats
	if d.Len() == 0 {
		return s
	}
	s.First, s.Last = d.Time[0], d.Time[d.Len()-1]

	for i, day := range d.Time {
		if v := d.TempMax[i]; v != nil && (!s.Hottest.OK || *v > s.Hottest.Value) {
			s.Hottest = Extreme{Date: day, Value: *v, OK: true}
		}
		if v := d.TempMin[i]; v != nil && (!s.Coldest.OK || *v < s.Coldest.Value) {
			s.Coldest = Extreme{Date: day, Value: *v, OK: true}
		}
		if v := d.Precipitation[i]; v != nil {
			s.TotalPrecip += *v
			if !s.Wettest.OK || *v > s.Wettest.Value {
				s.Wettest = Extreme{Date: day, Value: *v, OK: true}
			}
		}
	}
	return s
}

// Print writes the quick statistics.
func Print(w io.Writer, s Stats) {
	fmt.Fprintln(w, "Quick stats:")
	if s.First == "" {
		fmt.Fprintln(w, "   No data returned")
		return
	}
	fmt.Fprintf(w, "   Date range: %s to %s\n", s.First, s.Last)
	if s.Hottest.OK {
		fmt.Fprintf(w, "   Hottest day:  %.1f°F on %s\n", s.Hottest.Value, s.Hottest.Date)
	}
	if s.Coldest.OK {
		fmt.Fprintf(w, "   Coldest day:  %.1f°F on %s\n", s.Coldest.Value, s.Coldest.Date)
	}
	if s.Wettest.OK {
		fmt.Fprintf(w, "   Wettest day:  %.2f\" on %s\n", s.Wettest.Value, s.Wettest.Date)
		fmt.Fprintf(w, "   Total precip: %.2f\"\n", s.TotalPrecip)
	}
}
