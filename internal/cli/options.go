package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

type Options struct {
	ConfigPath string
	Partition  int
	At         int64
	Lock       bool
	DryRun     bool
	Verbose    bool
	Args       []string
}

func Parse(args []string) (Options, error) {
	const defaultConfig = "chunkplan.toml"

	opts := Options{
		ConfigPath: defaultConfig,
	}

	fs := flag.NewFlagSet("chunkplan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Path to configuration file")
	fs.StringVar(&opts.ConfigPath, "c", opts.ConfigPath, "Path to configuration file")
	fs.IntVar(&opts.Partition, "partition", 1, "Partition id to resolve the chunk in")
	fs.Int64Var(&opts.At, "at", 0, "Probe point in the internal time domain")
	fs.BoolVar(&opts.Lock, "lock", false, "Hold a share-mode row lock during the chunk scan")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Build and print the statement without compiling it against the catalog database")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.Verbose, "v", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		usage := Usage(fs)
		if errors.Is(err, flag.ErrHelp) {
			return Options{}, fmt.Errorf("%w\n\n%s", err, usage)
		}
		return Options{}, fmt.Errorf("%w\n\n%s", err, usage)
	}

	opts.Args = fs.Args()
	return opts, nil
}

func Usage(fs *flag.FlagSet) string {
	if fs == nil {
		return ""
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "Usage of %s:\n", fs.Name())
	out := fs.Output()
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(out)
	return buf.String()
}
