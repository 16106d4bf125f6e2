package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entropyd/pkg/entropyd"
)

const (
	exitOK          = 0
	exitConfig      = 1
	exitSourceFatal = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("entropyd", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	var (
		foreground  = fs.Bool("f", false, "Run in the foreground (do not detach)")
		sourcePath  = fs.String("r", "", "Entropy source device or file to read from")
		outputPath  = fs.String("o", "", "Entropy pool device to feed")
		watermark   = fs.Int("W", 0, "Pool fill level in bits at which feeding pauses")
		timeout     = fs.Duration("t", 0, "Per-read timeout for the entropy source")
		noTests     = fs.Bool("no-tests", false, "Skip the FIPS 140-2 health tests (logged opt-out)")
		cfgPath     = fs.String("config", "", "Optional YAML configuration file")
		metricsAddr = fs.String("metrics", "", "Prometheus metrics listen address")
	)
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := buildConfig(fs, flagValues{
		foreground:  *foreground,
		sourcePath:  *sourcePath,
		outputPath:  *outputPath,
		watermark:   *watermark,
		timeout:     *timeout,
		noTests:     *noTests,
		cfgPath:     *cfgPath,
		metricsAddr: *metricsAddr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "entropyd: %v\n", err)
		return exitConfig
	}

	if !cfg.Foreground {
		if err := detach(); err != nil {
			fmt.Fprintf(os.Stderr, "entropyd: detach: %v\n", err)
			return exitConfig
		}
		return exitOK
	}

	rt, err := entropyd.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "entropyd: %v\n", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "entropyd: %v\n", err)
		return exitSourceFatal
	}
	return exitOK
}

type flagValues struct {
	foreground  bool
	sourcePath  string
	outputPath  string
	watermark   int
	timeout     time.Duration
	noTests     bool
	cfgPath     string
	metricsAddr string
}

// buildConfig merges the optional config file with CLI flags; flags the
// user actually set take precedence over the file.
func buildConfig(fs *flag.FlagSet, v flagValues) (*entropyd.Config, error) {
	var cfg *entropyd.Config
	if v.cfgPath != "" {
		loaded, err := entropyd.ReadConfig(v.cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", v.cfgPath, err)
		}
		cfg = loaded
	} else {
		cfg = entropyd.DefaultConfig()
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["r"] {
		cfg.Source.Path = v.sourcePath
	}
	if set["o"] {
		cfg.Feed.Device = v.outputPath
	}
	if set["W"] {
		cfg.Feed.WatermarkBits = v.watermark
	}
	if set["t"] {
		cfg.Source.ReadTimeout = v.timeout
	}
	if set["no-tests"] {
		cfg.Tests.Disabled = v.noTests
	}
	if set["metrics"] {
		cfg.Metrics.Addr = v.metricsAddr
	}
	if v.foreground {
		cfg.Foreground = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `entropyd - entropy source feeding daemon

Reads raw blocks from an entropy device, runs the FIPS 140-2 health
tests on each block, and feeds accepted bytes into the OS entropy pool.

Usage:
  entropyd -f -r /dev/hwrng [-o /dev/random] [-W 2048]

Flags:
`)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Exit codes:
  0  normal shutdown via signal
  1  configuration error
  2  source fatal error after exhausting fallback
`)
}
