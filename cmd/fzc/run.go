package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/fuzzycache/internal/config"
	"github.com/calvinalkan/fuzzycache/pkg/fuzzycache"
)

var errNoCacheFile = errors.New("no cache file given and cache_file not configured")

// options is what the command line asks for before config files are merged.
type options struct {
	configPath  string
	overrides   config.Config
	printConfig bool
	cacheFile   string
}

func parseArgs(args []string) (options, error) {
	fs := flag.NewFlagSet("fzc", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{})

	configPath := fs.StringP("config", "c", "", "config file (default .fzc.json)")
	threshold := fs.Float64P("threshold", "t", fuzzycache.DefaultFuzzyThreshold, "fuzzy match threshold in [0, 1]")
	backend := fs.StringP("backend", "b", "", "store backend: sqlite or snapshot")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	processLock := fs.Bool("process-lock", false, "fail if another process has the cache open")
	printConfig := fs.Bool("print-config", false, "print the merged config and exit")

	err := fs.Parse(args)
	if err != nil {
		return options{}, err
	}

	if fs.NArg() > 1 {
		return options{}, fmt.Errorf("expected one cache file, got %d arguments", fs.NArg())
	}

	opts := options{
		configPath:  *configPath,
		printConfig: *printConfig,
		cacheFile:   fs.Arg(0),
	}

	opts.overrides.Backend = *backend
	opts.overrides.LogLevel = *logLevel

	if fs.Changed("threshold") {
		opts.overrides.FuzzyThreshold = threshold
	}

	if fs.Changed("process-lock") {
		opts.overrides.ProcessLock = processLock
	}

	return opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fzc [flags] [cache-file]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -c, --config <file>      config file (default .fzc.json)")
	fmt.Fprintln(w, "  -t, --threshold <0..1>   fuzzy match threshold (default 0.75)")
	fmt.Fprintln(w, "  -b, --backend <name>     sqlite or snapshot (default sqlite)")
	fmt.Fprintln(w, "      --log-level <level>  debug, info, warn, error (default warn)")
	fmt.Fprintln(w, "      --process-lock       fail if another process has the cache open")
	fmt.Fprintln(w, "      --print-config       print the merged config and exit")
}

// run executes fzc and returns the exit code.
func run(stdout, stderr io.Writer, args []string, env []string) int {
	opts, err := parseArgs(args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(stdout)

			return 0
		}

		fmt.Fprintln(stderr, "error:", err)
		printUsage(stderr)

		return 1
	}

	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return 1
	}

	if opts.cacheFile != "" {
		opts.overrides.CacheFile = opts.cacheFile
	}

	cfg, sources, err := config.Load(workDir, opts.configPath, opts.overrides, env)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return 1
	}

	if opts.printConfig {
		return printConfig(stdout, stderr, cfg, sources)
	}

	logger := newLogger(stderr, cfg.LogLevel)

	cache, err := openCache(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return 1
	}

	defer func() {
		if cache.IsOpen() {
			if closeErr := cache.Close(); closeErr != nil {
				fmt.Fprintln(stderr, "error:", closeErr)
			}
		}
	}()

	err = newREPL(cache, stdout).Run()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return 1
	}

	return 0
}

func printConfig(stdout, stderr io.Writer, cfg config.Config, sources config.Sources) int {
	out, err := config.Format(cfg)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)

		return 1
	}

	fmt.Fprintln(stdout, out)

	if sources.Global != "" {
		fmt.Fprintln(stdout, "# global:", sources.Global)
	}

	if sources.Project != "" {
		fmt.Fprintln(stdout, "# project:", sources.Project)
	}

	return 0
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).
		Level(lvl).
		With().Timestamp().Logger()
}

func openCache(cfg config.Config, logger zerolog.Logger) (*fuzzycache.Cache[json.RawMessage], error) {
	if cfg.CacheFile == "" {
		return nil, errNoCacheFile
	}

	backend, err := fuzzycache.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	cacheOpts := []fuzzycache.Option{
		fuzzycache.WithFuzzyThreshold(cfg.Threshold()),
		fuzzycache.WithBackend(backend),
		fuzzycache.WithLogger(logger),
	}

	if cfg.UseProcessLock() {
		cacheOpts = append(cacheOpts, fuzzycache.WithProcessLock())
	}

	return fuzzycache.New[json.RawMessage](cfg.CacheFile, cacheOpts...)
}
