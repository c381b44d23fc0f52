package commands

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"downtowncal/internal/permits"
	"downtowncal/internal/summary"
)

// Permits handles the permits subcommand: filter a permit export down to the
// downtown area and write the filtered rows and per-year tallies.
func Permits(env *Env, args []string) error {
	fs := flag.NewFlagSet("permits", flag.ExitOnError)
	keywords := fs.String("keywords", "", "Comma-separated address keywords (overrides config)")
	fs.Usage = usage("permits", "[OPTIONS] <permits.csv>",
		"Filters a building-permit CSV to the Downtown Mall area.",
		fs.PrintDefaults)
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("commands: permits needs exactly one input file")
	}
	input := fs.Arg(0)

	kw := env.Cfg.Permits.Keywords
	if *keywords != "" {
		kw = splitList(*keywords)
	}

	f, err := env.Fs.Open(input)
	if err != nil {
		return fmt.Errorf("commands: open permits: %w", err)
	}
	defer f.Close()

	d, err := permits.Read(f)
	if err != nil {
		return err
	}
	r := permits.Analyze(d, kw)

	sink := env.sink()
	downtownPath, err := sink.WriteCSV(env.Cfg.Permits.OutputDowntown, d.Header, r.DowntownRows(len(d.Header)))
	if err != nil {
		return err
	}
	byYearPath, err := sink.WriteCSV(env.Cfg.Permits.OutputByYear, permits.ByYearHeader, r.ByYearRows())
	if err != nil {
		return err
	}

	permits.Print(env.Stdout, r)
	fmt.Fprintln(env.Stdout)
	summary.Done(env.Stdout, "Saved "+downtownPath)
	summary.Done(env.Stdout, "Saved "+byYearPath)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
