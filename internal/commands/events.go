package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"downtowncal/internal/config"
	"downtowncal/internal/pipeline"
	"downtowncal/internal/summary"
)

// Events handles the events subcommand: expand the event table, fetch the
// configured feeds, write every calendar output and print the report.
func Events(ctx context.Context, env *Env, args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	watch := fs.Bool("watch", false, "Keep running and rebuild on the configured refresh schedule")
	noFeeds := fs.Bool("no-feeds", false, "Skip external ICS feeds")
	fs.Usage = usage("events", "[OPTIONS]",
		"Expands the event table over the configured years and writes the\ncalendar JSON, CSV, visualization JSON and ICS files.",
		fs.PrintDefaults)
	fs.Parse(args)

	cfg := env.Cfg
	if *noFeeds {
		c := *cfg
		c.Feeds = []config.FeedConfig{}
		cfg = &c
	}

	run := func(ctx context.Context) error {
		return buildEvents(ctx, env, cfg)
	}

	if *watch && cfg.RefreshCron == "" {
		return errors.New("commands: -watch needs a refresh schedule in the config")
	}
	if err := run(ctx); err != nil {
		return err
	}
	if !*watch {
		return nil
	}
	return runScheduled(ctx, cfg.RefreshCron, "events", run)
}

func buildEvents(ctx context.Context, env *Env, cfg *config.Config) error {
	a, err := pipeline.NewBuilder(cfg).Build(ctx)
	if err != nil {
		return err
	}

	paths, err := a.Write(env.sink(), cfg.Outputs, cfg.Timezone)
	if err != nil {
		return err
	}

	summary.PrintCalendar(env.Stdout, a.Table, a.Span, a.Calendar)
	if len(a.Feeds) > 0 {
		summary.PrintFeeds(env.Stdout, a.FeedCounts())
	}
	fmt.Fprintln(env.Stdout)
	for _, p := range paths {
		summary.Done(env.Stdout, "Saved "+p)
	}
	return nil
}
