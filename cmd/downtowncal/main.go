package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"downtowncal/internal/commands"
	"downtowncal/internal/config"
	appLog "downtowncal/internal/log"
)

const version = "0.3.0"

// flagConfig holds the global flags that precede the subcommand.
type flagConfig struct {
	configPath string
	logLevel   string
}

func main() {
	flags := parseFlags()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	name, rest := args[0], args[1:]

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI -log-level overrides config file level if provided.
	if flags.logLevel != "" {
		conf.Log.Level = flags.logLevel
	}
	logCloser, err := appLog.Configure(appLog.Options{Level: conf.Log.Level, File: conf.Log.File})
	if err != nil {
		appLog.Error("failed to configure logging", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	appLog.Info("downtowncal starting", "version", version, "command", name)
	appLog.Debug("effective config",
		"config_path", flags.configPath,
		"years", conf.Span().String(),
		"timezone", conf.Timezone,
		"events_file", conf.EventsFile,
		"output_dir", conf.OutputDir,
		"refresh", conf.RefreshCron,
		"feed_count", len(conf.Feeds),
		"place_count", len(conf.Places.Places),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	env := commands.NewEnv(conf)
	switch name {
	case "events":
		err = commands.Events(ctx, env, rest)
	case "permits":
		err = commands.Permits(env, rest)
	case "weather":
		err = commands.Weather(ctx, env, rest)
	case "places":
		err = commands.Places(ctx, env, rest)
	case "serve":
		err = commands.Serve(ctx, env, rest)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		appLog.Error("command failed", err, "command", name)
		logCloser.Close()
		os.Exit(1)
	}
	appLog.Info("downtowncal exiting", "command", name)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "downtowncal.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, error (overrides config if set)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: downtowncal [OPTIONS] <command> [COMMAND OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  events     Build the Downtown Mall events calendar\n")
		fmt.Fprintf(os.Stderr, "  permits    Filter building permits to the downtown area\n")
		fmt.Fprintf(os.Stderr, "  weather    Fetch daily historical weather\n")
		fmt.Fprintf(os.Stderr, "  places     Fetch venue popular times\n")
		fmt.Fprintf(os.Stderr, "  serve      Serve the calendar over HTTP\n")
		fmt.Fprintf(os.Stderr, "  version    Print the version\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	return cfg
}
