// Package weather fetches daily historical weather from the Open-Meteo
// archive API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	appLog "downtowncal/internal/log"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 64 << 20
	dailyFields    = "temperature_2m_max,temperature_2m_min,temperature_2m_mean,precipitation_sum,weather_code"
)

// Header is the column order of the weather CSV.
var Header = []string{
	"date", "temp_max_F", "temp_min_F", "temp_mean_F",
	"precipitation_inch", "weather_code", "weather_description",
}

var (
	// ErrAPI wraps an error object returned by the API itself.
	ErrAPI = errors.New("weather: api error")
	// ErrShape marks a response whose daily arrays do not line up.
	ErrShape = errors.New("weather: malformed daily series")
)

// Request selects the location and date range to fetch.
type Request struct {
	Latitude  float64
	Longitude float64
	// StartDate / EndDate are YYYY-MM-DD, inclusive.
	StartDate string
	EndDate   string
	Timezone  string
}

// Daily is the column-oriented daily series. A nil value is a gap in the
// archive.
type Daily struct {
	Time          []string   `json:"time"`
	TempMax       []*float64 `json:"temperature_2m_max"`
	TempMin       []*float64 `json:"temperature_2m_min"`
	TempMean      []*float64 `json:"temperature_2m_mean"`
	Precipitation []*float64 `json:"precipitation_sum"`
	WeatherCode   []*int     `json:"weather_code"`
}

// Len is the number of days in the series.
func (d *Daily) Len() int { return len(d.Time) }

func (d *Daily) check() error {
	n := len(d.Time)
	series := []struct {
		name string
		len  int
	}{
		{"temperature_2m_max", len(d.TempMax)},
		{"temperature_2m_min", len(d.TempMin)},
		{"temperature_2m_mean", len(d.TempMean)},
		{"precipitation_sum", len(d.Precipitation)},
		{"weather_code", len(d.WeatherCode)},
	}
	for _, s := range series {
		if s.len != n {
			return fmt.Errorf("%w: %s has %d values for %d days", ErrShape, s.name, s.len, n)
		}
	}
	return nil
}

type archiveResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
	Daily  *Daily `json:"daily"`
}

// Client talks to the archive endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL. timeout bounds the whole request;
// zero selects 60s since a decade of daily data is a large response.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// URL builds the request URL for req.
func (c *Client) URL(req Request) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("weather: base url: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("start_date", req.StartDate)
	q.Set("end_date", req.EndDate)
	q.Set("daily", dailyFields)
	if req.Timezone != "" {
		q.Set("timezone", req.Timezone)
	}
	q.Set("temperature_unit", "fahrenheit")
	q.Set("precipitation_unit", "inch")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch downloads the daily series for req.
func (c *Client) Fetch(ctx context.Context, req Request) (*Daily, error) {
	u, err := c.URL(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	appLog.Info("weather fetch start", "start", req.StartDate, "end", req.EndDate)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("weather: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("weather: read body: %w", err)
	}

	var out archiveResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("weather: %s", resp.Status)
		}
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	if out.Error {
		reason := out.Reason
		if reason == "" {
			reason = "Unknown"
		}
		return nil, fmt.Errorf("%w: %s", ErrAPI, reason)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: %s", resp.Status)
	}
	if out.Daily == nil {
		return nil, fmt.Errorf("%w: no daily block", ErrShape)
	}
	if err := out.Daily.check(); err != nil {
		return nil, err
	}

	appLog.Info("weather fetch success", "days", out.Daily.Len())
	return out.Daily, nil
}
