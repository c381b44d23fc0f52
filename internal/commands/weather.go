package commands

import (
	"context"
	"flag"
	"fmt"

	appLog "downtowncal/internal/log"
	"downtowncal/internal/summary"
	"downtowncal/internal/weather"
)

// Weather handles the weather subcommand.
func Weather(ctx context.Context, env *Env, args []string) error {
	cfg := env.Cfg
	fs := flag.NewFlagSet("weather", flag.ExitOnError)
	start := fs.String("start", "", "First day, YYYY-MM-DD (default: start of the year span)")
	end := fs.String("end", "", "Last day, YYYY-MM-DD (default: end of the year span)")
	fs.Usage = usage("weather", "[OPTIONS]",
		"Fetches daily historical weather for the configured location from Open-Meteo.",
		fs.PrintDefaults)
	fs.Parse(args)

	req := weatherRequest(env, *start, *end)
	appLog.Info("weather request", "start", req.StartDate, "end", req.EndDate, "latitude", req.Latitude, "longitude", req.Longitude)

	// The archive is slow for decade-long ranges; the client keeps its own
	// longer default timeout.
	client := weather.NewClient(cfg.Weather.BaseURL, 0)
	d, err := client.Fetch(ctx, req)
	if err != nil {
		return err
	}

	path, err := env.sink().WriteCSV(cfg.Weather.Output, weather.Header, weather.Rows(d))
	if err != nil {
		return err
	}

	weather.Print(env.Stdout, weather.Summarize(d))
	fmt.Fprintln(env.Stdout)
	summary.Done(env.Stdout, fmt.Sprintf("Saved %d days to %s", d.Len(), path))
	return nil
}

// weatherRequest resolves the date range: flags, then config, then the year
// span.
func weatherRequest(env *Env, start, end string) weather.Request {
	cfg := env.Cfg
	if start == "" {
		start = cfg.Weather.StartDate
	}
	if start == "" {
		start = fmt.Sprintf("%d-01-01", cfg.StartYear)
	}
	if end == "" {
		end = cfg.Weather.EndDate
	}
	if end == "" {
		end = fmt.Sprintf("%d-12-31", cfg.EndYear)
	}
	return weather.Request{
		Latitude:  cfg.Weather.Latitude,
		Longitude: cfg.Weather.Longitude,
		StartDate: start,
		EndDate:   end,
		Timezone:  cfg.Timezone,
	}
}
