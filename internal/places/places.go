// Package places polls venue popularity ("popular times") for a fixed list
// of downtown places.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"

	appLog "downtowncal/internal/log"
)

const maxBodyBytes = 4 << 20

// ErrNoAPIKey is returned when the configured key variable is unset.
var ErrNoAPIKey = errors.New("places: api key not set")

// APIKey loads .env files (when present) and returns the value of envVar.
// Variables already set in the environment win over .env entries.
func APIKey(envVar string, envFiles ...string) (string, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		appLog.Debug("places: no .env file loaded, using process environment", "err", err.Error())
	}
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrNoAPIKey, envVar)
	}
	return key, nil
}

// Place is one venue to poll.
type Place struct {
	Name string
	ID   string
}

// Day is one weekday of a popularity histogram.
type Day struct {
	Name string `json:"name"`
	Data []int  `json:"data"`
}

// Result is what was learned about one place. A failed lookup carries only
// PlaceID and Error.
type Result struct {
	Name string `json:"-"`

	PlaceID           string `json:"place_id"`
	Address           string `json:"address"`
	PopularTimes      []Day  `json:"populartimes"`
	CurrentPopularity *int   `json:"current_popularity"`
	TimeSpent         []int  `json:"time_spent"`

	Error string `json:"error,omitempty"`
}

// MarshalJSON drops the data fields of failed lookups.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			PlaceID string `json:"place_id"`
			Error   string `json:"error"`
		}{r.PlaceID, r.Error})
	}
	type plain Result
	return json.Marshal(plain(r))
}

// HasData reports whether the place returned a histogram.
func (r Result) HasData() bool {
	return len(r.PopularTimes) > 0
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		FormattedAddress  string `json:"formatted_address"`
		PopularTimes      []Day  `json:"populartimes"`
		CurrentPopularity *int   `json:"current_popularity"`
		TimeSpent         []int  `json:"time_spent"`
	} `json:"result"`
}

// Client fetches place details one at a time.
type Client struct {
	endpoint string
	apiKey   string
	delay    time.Duration
	http     *http.Client
}

// NewClient returns a Client for endpoint. delay is the pause between two
// consecutive places.
func NewClient(endpoint, apiKey string, delay, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		delay:    delay,
		http:     &http.Client{Timeout: timeout},
	}
}

// Fetch looks up a single place.
func (c *Client) Fetch(ctx context.Context, p Place) (Result, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return Result{}, fmt.Errorf("places: endpoint: %w", err)
	}
	q := u.Query()
	q.Set("place_id", p.ID)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// The URL carries the key; report only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return Result{}, fmt.Errorf("places: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("places: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("places: read body: %w", err)
	}

	var out detailsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, fmt.Errorf("places: decode: %w", err)
	}
	if out.Status != "" && out.Status != "OK" {
		if out.ErrorMessage != "" {
			return Result{}, fmt.Errorf("places: %s: %s", out.Status, out.ErrorMessage)
		}
		return Result{}, fmt.Errorf("places: %s", out.Status)
	}

	return Result{
		Name:              p.Name,
		PlaceID:           p.ID,
		Address:           out.Result.FormattedAddress,
		PopularTimes:      out.Result.PopularTimes,
		CurrentPopularity: out.Result.CurrentPopularity,
		TimeSpent:         out.Result.TimeSpent,
	}, nil
}

// FetchAll polls places sequentially, pausing between requests. A failed
// place is recorded in its Result and does not stop the run; only context
// cancellation does.
func (c *Client) FetchAll(ctx context.Context, places []Place) ([]Result, error) {
	results := make([]Result, 0, len(places))
	for i, p := range places {
		if i > 0 && c.delay > 0 {
			if err := sleep(ctx, c.delay); err != nil {
				return results, err
			}
		}

		res, err := c.Fetch(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			appLog.Error("places fetch failed", err, "place", p.Name)
			results = append(results, Result{Name: p.Name, PlaceID: p.ID, Error: err.Error()})
			continue
		}
		if res.HasData() {
			appLog.Info("places fetch success", "place", p.Name)
		} else {
			appLog.Info("places fetch success, no populartimes data", "place", p.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
