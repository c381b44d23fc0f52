package commands

import (
	"context"
	"flag"
	"fmt"
	"time"

	"downtowncal/internal/places"
	"downtowncal/internal/summary"
)

// Places handles the places subcommand: poll venue popularity for the
// configured place list and write the raw JSON and the weekly hour grid.
func Places(ctx context.Context, env *Env, args []string) error {
	cfg := env.Cfg
	fs := flag.NewFlagSet("places", flag.ExitOnError)
	envFile := fs.String("env-file", ".env", "Optional .env file holding the API key")
	fs.Usage = func() {
		usage("places", "[OPTIONS]",
			"Fetches popular-times data for the configured downtown venues.",
			fs.PrintDefaults)()
		fmt.Fprintf(fs.Output(), "\nEnvironment Variables:\n")
		fmt.Fprintf(fs.Output(), "  %s    API key for the place details endpoint\n", cfg.Places.APIKeyEnv)
	}
	fs.Parse(args)

	key, err := places.APIKey(cfg.Places.APIKeyEnv, *envFile)
	if err != nil {
		return err
	}

	list := make([]places.Place, 0, len(cfg.Places.Places))
	for _, p := range cfg.Places.Places {
		list = append(list, places.Place{Name: p.Name, ID: p.PlaceID})
	}

	client := places.NewClient(
		cfg.Places.Endpoint,
		key,
		time.Duration(cfg.Places.DelayMillis)*time.Millisecond,
		time.Duration(cfg.FetchTimeoutSec)*time.Second,
	)
	results, err := client.FetchAll(ctx, list)
	if err != nil {
		return err
	}

	sink := env.sink()
	jsonPath, err := sink.WriteJSON(cfg.Places.OutputJSON, places.Results(results))
	if err != nil {
		return err
	}
	csvPath, err := sink.WriteCSV(cfg.Places.OutputCSV, places.Header, places.Rows(results))
	if err != nil {
		return err
	}

	summary.Heading(env.Stdout, "Popular times summary")
	places.Print(env.Stdout, results)
	fmt.Fprintln(env.Stdout)
	summary.Done(env.Stdout, "Saved "+jsonPath)
	summary.Done(env.Stdout, "Saved "+csvPath)
	return nil
}
