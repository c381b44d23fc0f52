package commands

import (
	"context"
	"flag"

	"downtowncal/internal/pipeline"
	"downtowncal/internal/web"
)

// Serve handles the serve subcommand: build the calendar once, then serve it
// over HTTP and rebuild it on the refresh schedule.
func Serve(ctx context.Context, env *Env, args []string) error {
	cfg := *env.Cfg
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", "", "HTTP listen address (overrides config if set)")
	fs.Usage = usage("serve", "[OPTIONS]",
		"Serves the calendar, visualization data and ICS export over HTTP.",
		fs.PrintDefaults)
	fs.Parse(args)

	if *listen != "" {
		cfg.Listen = *listen
	}

	s := web.NewServer(&cfg, pipeline.NewBuilder(&cfg).Build)
	// Only a broken event table fails a build, and that is a config error:
	// refuse to start rather than serve nothing.
	if err := s.Rebuild(ctx); err != nil {
		return err
	}

	if cfg.RefreshCron != "" {
		c, err := newScheduler(ctx, cfg.RefreshCron, "serve", s.Rebuild)
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	return web.StartServer(ctx, &cfg, s)
}
