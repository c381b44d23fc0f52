// Package commands implements the downtowncal subcommands.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"downtowncal/internal/config"
	"downtowncal/internal/export"
)

// Env is what every subcommand runs against.
type Env struct {
	Cfg    *config.Config
	Fs     afero.Fs
	Stdout io.Writer
}

// NewEnv returns an Env on the OS filesystem writing reports to stdout.
func NewEnv(cfg *config.Config) *Env {
	return &Env{Cfg: cfg, Fs: afero.NewOsFs(), Stdout: os.Stdout}
}

func (e *Env) sink() *export.Sink {
	return export.NewSink(e.Fs, e.Cfg.OutputDir)
}

func usage(name, synopsis, about string, printDefaults func()) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: downtowncal %s %s\n\n", name, synopsis)
		fmt.Fprintf(os.Stderr, "%s\n\n", about)
		fmt.Fprintf(os.Stderr, "Options:\n")
		printDefaults()
	}
}
