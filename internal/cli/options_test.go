package cli

import (
	"errors"
	"flag"
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	opts, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if opts.ConfigPath != "chunkplan.toml" {
		t.Fatalf("ConfigPath = %q, want %q", opts.ConfigPath, "chunkplan.toml")
	}
	if opts.Partition != 1 {
		t.Fatalf("Partition = %d, want 1", opts.Partition)
	}
	if opts.At != 0 {
		t.Fatalf("At = %d, want 0", opts.At)
	}
	if opts.Lock {
		t.Fatalf("Lock = true, want false")
	}
	if opts.DryRun {
		t.Fatalf("DryRun = true, want false")
	}
	if opts.Verbose {
		t.Fatalf("Verbose = true, want false")
	}
	if len(opts.Args) != 0 {
		t.Fatalf("Args = %v, want empty slice", opts.Args)
	}
}

func TestParseOverrides(t *testing.T) {
	args := []string{
		"--config", "project.toml",
		"--partition", "3",
		"--at", "1500",
		"--lock",
		"--dry-run",
		"-v",
		"extra",
	}

	opts, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if got, want := opts.ConfigPath, "project.toml"; got != want {
		t.Fatalf("ConfigPath = %q, want %q", got, want)
	}
	if opts.Partition != 3 {
		t.Fatalf("Partition = %d, want 3", opts.Partition)
	}
	if opts.At != 1500 {
		t.Fatalf("At = %d, want 1500", opts.At)
	}
	if !opts.Lock {
		t.Fatalf("Lock = false, want true")
	}
	if !opts.DryRun {
		t.Fatalf("DryRun = false, want true")
	}
	if !opts.Verbose {
		t.Fatalf("Verbose = false, want true")
	}
	if len(opts.Args) != 1 || opts.Args[0] != "extra" {
		t.Fatalf("Args = %v, want [extra]", opts.Args)
	}
}

func TestParseInvalidFlag(t *testing.T) {
	_, err := Parse([]string{"--unknown"})
	if err == nil {
		t.Fatalf("Parse expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "Usage of chunkplan") {
		t.Fatalf("error = %q, want usage string", err.Error())
	}
	if errors.Is(err, flag.ErrHelp) {
		t.Fatalf("error unexpectedly wraps flag.ErrHelp")
	}
}

func TestUsage(t *testing.T) {
	fs := flag.NewFlagSet("chunkplan", flag.ContinueOnError)
	fs.String("flag", "value", "test flag")

	usage := Usage(fs)
	if !strings.Contains(usage, "Usage of chunkplan:") {
		t.Fatalf("usage missing header: %q", usage)
	}
	if !strings.Contains(usage, "-flag") {
		t.Fatalf("usage missing flag definition: %q", usage)
	}
}
