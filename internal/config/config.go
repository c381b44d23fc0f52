package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"downtowncal/internal/model"
)

// FeedConfig describes an external ICS calendar whose events are counted
// next to the curated table.
type FeedConfig struct {
	// ID is an internal identifier used for logging and metadata keys.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label, copied into each entry's source field.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
	// Type is the event category assigned to every entry of this feed.
	Type string `yaml:"type" json:"type"`
	// Boost is the foot-traffic weight assigned to every entry of this feed.
	Boost float64 `yaml:"boost" json:"boost"`
}

// EffectiveID is the key a feed is fetched and counted under: the id, else
// the name, else the URL.
func (f FeedConfig) EffectiveID() string {
	switch {
	case f.ID != "":
		return f.ID
	case f.Name != "":
		return f.Name
	default:
		return f.URL
	}
}

// OutputConfig names the files written by the events job.
type OutputConfig struct {
	CalendarJSON string `yaml:"calendar_json" json:"calendar_json"`
	CalendarCSV  string `yaml:"calendar_csv" json:"calendar_csv"`
	VizJSON      string `yaml:"viz_json" json:"viz_json"`
	CalendarICS  string `yaml:"calendar_ics" json:"calendar_ics"`
}

// WeatherConfig controls the Open-Meteo historical fetch.
type WeatherConfig struct {
	BaseURL   string  `yaml:"base_url" json:"base_url"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	// StartDate / EndDate are YYYY-MM-DD. Empty values follow the year span.
	StartDate string `yaml:"start_date" json:"start_date"`
	EndDate   string `yaml:"end_date" json:"end_date"`
	Output    string `yaml:"output" json:"output"`
}

// Place is one venue polled for popularity.
type Place struct {
	Name    string `yaml:"name" json:"name"`
	PlaceID string `yaml:"place_id" json:"place_id"`
}

// PlacesConfig controls the popular-times job.
type PlacesConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	// DelayMillis is the pause between two place requests.
	DelayMillis int     `yaml:"delay_ms" json:"delay_ms"`
	OutputJSON  string  `yaml:"output_json" json:"output_json"`
	OutputCSV   string  `yaml:"output_csv" json:"output_csv"`
	Places      []Place `yaml:"places" json:"places"`
}

// PermitsConfig controls the permit-cleaning job.
type PermitsConfig struct {
	// Keywords are upper-case address fragments marking the downtown area.
	Keywords       []string `yaml:"keywords" json:"keywords"`
	OutputDowntown string   `yaml:"output_downtown" json:"output_downtown"`
	OutputByYear   string   `yaml:"output_by_year" json:"output_by_year"`
}

// LogConfig controls internal/log.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Config is the top-level application configuration.
type Config struct {
	// StartYear / EndYear bound every generated calendar (inclusive).
	StartYear int `yaml:"start_year" json:"start_year"`
	EndYear   int `yaml:"end_year" json:"end_year"`

	// Timezone is the IANA zone written into exported calendars.
	Timezone string `yaml:"timezone" json:"timezone"`

	// EventsFile replaces the built-in event table when set.
	EventsFile string `yaml:"events_file" json:"events_file"`

	// OutputDir is where every job writes its files.
	OutputDir string       `yaml:"output_dir" json:"output_dir"`
	Outputs   OutputConfig `yaml:"outputs" json:"outputs"`

	// RefreshCron is a cron-style schedule string (e.g. "0 6 * * *") used by
	// `events -watch` and `serve`. Empty means build once.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Listen is the HTTP listen address for `serve`.
	Listen string `yaml:"listen" json:"listen"`

	// FetchTimeoutSec bounds each outbound HTTP request.
	FetchTimeoutSec int `yaml:"fetch_timeout_sec" json:"fetch_timeout_sec"`

	Feeds   []FeedConfig  `yaml:"feeds" json:"feeds"`
	Weather WeatherConfig `yaml:"weather" json:"weather"`
	Places  PlacesConfig  `yaml:"places" json:"places"`
	Permits PermitsConfig `yaml:"permits" json:"permits"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

var defaultKeywords = []string{
	"E MAIN", "EAST MAIN",
	"W MAIN", "WEST MAIN",
	"E WATER", "EAST WATER",
	"MARKET ST",
	"DOWNTOWN",
	"2ND ST",
	"3RD ST",
	"4TH ST",
	"5TH ST",
	"OLD PRESTON",
}

var defaultPlaces = []Place{
	{Name: "The Paramount Theater", PlaceID: "ChIJ-3GDKCSGs4kRNNtfmVvjw_I"},
	{Name: "Downtown Mall", PlaceID: "ChIJ____7yaGs4kR1BhvIOFlBlY"},
	{Name: "Ting Pavilion", PlaceID: "ChIJvcWRGyeGs4kRlAVVn6a4V1o"},
	{Name: "The Whiskey Jar", PlaceID: "ChIJRxkLrSWGs4kRUySqS8deLBg"},
	{Name: "McGuffey Art Center", PlaceID: "ChIJA3xKwCWGs4kR3K3Ox66eWzs"},
	{Name: "Citizen Burger Bar", PlaceID: "ChIJ_VpDnCaGs4kRGdjWndt1uIA"},
	{Name: "The Jefferson Theater", PlaceID: "ChIJZUuDKySGs4kR5DJF7Yt4wtM"},
	{Name: "The Southern Café and Music Hall", PlaceID: "ChIJsX4SMSSGs4kRVmtAg0ahe2A"},
	{Name: "The Inn at Court Square", PlaceID: "ChIJva7FTSaGs4kRP8lZBXgVDVI"},
	{Name: "Chaps Ice Cream", PlaceID: "ChIJX7tYiCaGs4kRsW1_HVeOKTI"},
	{Name: "Miller's Downtown", PlaceID: "ChIJ13muzCWGs4kRsN2z4eq3h58"},
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Feeds:   []FeedConfig{},
		Permits: PermitsConfig{Keywords: append([]string(nil), defaultKeywords...)},
		Places:  PlacesConfig{Places: append([]Place(nil), defaultPlaces...)},
		Weather: WeatherConfig{Latitude: 38.0293, Longitude: -78.4767},
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.StartYear == 0 {
		c.StartYear = 2015
	}
	if c.EndYear == 0 {
		c.EndYear = 2025
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Outputs.CalendarJSON == "" {
		c.Outputs.CalendarJSON = "cville_events_calendar.json"
	}
	if c.Outputs.CalendarCSV == "" {
		c.Outputs.CalendarCSV = "cville_events_calendar.csv"
	}
	if c.Outputs.VizJSON == "" {
		c.Outputs.VizJSON = "cville_events_viz.json"
	}
	if c.Outputs.CalendarICS == "" {
		c.Outputs.CalendarICS = "cville_events_calendar.ics"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.FetchTimeoutSec <= 0 {
		c.FetchTimeoutSec = 10
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}

	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://archive-api.open-meteo.com/v1/archive"
	}
	if c.Weather.Output == "" {
		c.Weather.Output = "charlottesville_weather.csv"
	}

	if c.Places.Endpoint == "" {
		c.Places.Endpoint = "https://maps.googleapis.com/maps/api/place/details/json"
	}
	if c.Places.APIKeyEnv == "" {
		c.Places.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if c.Places.DelayMillis < 0 {
		c.Places.DelayMillis = 0
	}
	if c.Places.OutputJSON == "" {
		c.Places.OutputJSON = "populartimes_data.json"
	}
	if c.Places.OutputCSV == "" {
		c.Places.OutputCSV = "populartimes_summary.csv"
	}

	if c.Permits.Keywords == nil {
		c.Permits.Keywords = append([]string(nil), defaultKeywords...)
	}
	if c.Permits.OutputDowntown == "" {
		c.Permits.OutputDowntown = "permits_downtown_mall.csv"
	}
	if c.Permits.OutputByYear == "" {
		c.Permits.OutputByYear = "permits_by_year.csv"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Span returns the configured year range.
func (c *Config) Span() model.YearRange {
	return model.YearRange{Start: c.StartYear, End: c.EndYear}
}

// Validate reports configuration values that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.StartYear > c.EndYear {
		errs = append(errs, fmt.Errorf("config: start_year %d is after end_year %d", c.StartYear, c.EndYear))
	}
	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("config: feeds[%d] has no url", i))
		}
		id := f.EffectiveID()
		if id != "" && seen[id] {
			errs = append(errs, fmt.Errorf("config: duplicate feed id %q (set a distinct id)", id))
		}
		seen[id] = true
		if f.Type != "" && !model.Category(f.Type).Valid() {
			errs = append(errs, fmt.Errorf("config: feed %q has unknown type %q", id, f.Type))
		}
		if f.Boost < 0 || f.Boost > 1 {
			errs = append(errs, fmt.Errorf("config: feed %q boost %v outside [0,1]", id, f.Boost))
		}
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".downtowncal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
