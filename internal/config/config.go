// Package config loads fzc settings from JSONC files.
//
// Precedence, lowest first: defaults, the global file
// ($XDG_CONFIG_HOME/fzc/config.json or ~/.config/fzc/config.json), the project
// file (.fzc.json in the working directory) or an explicit --config file, and
// finally command-line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/fuzzycache/pkg/fuzzycache"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".fzc.json"

var (
	ErrFileNotFound = errors.New("config file not found")
	ErrFileRead     = errors.New("cannot read config file")
	ErrInvalid      = errors.New("invalid config")
)

// Config holds every setting fzc reads from files or flags. Pointer fields
// are unset when nil so that an explicit zero can override a lower layer.
type Config struct {
	CacheFile      string   `json:"cache_file,omitempty"`      //nolint:tagliatelle // snake_case for config file
	FuzzyThreshold *float64 `json:"fuzzy_threshold,omitempty"` //nolint:tagliatelle // snake_case for config file
	Backend        string   `json:"backend,omitempty"`
	LogLevel       string   `json:"log_level,omitempty"`    //nolint:tagliatelle // snake_case for config file
	ProcessLock    *bool    `json:"process_lock,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// Sources records which files contributed to a loaded [Config].
type Sources struct {
	Global  string
	Project string
}

// Default returns the built-in settings.
func Default() Config {
	threshold := fuzzycache.DefaultFuzzyThreshold
	processLock := false

	return Config{
		FuzzyThreshold: &threshold,
		Backend:        fuzzycache.BackendSQLite.String(),
		LogLevel:       zerolog.LevelWarnValue,
		ProcessLock:    &processLock,
	}
}

// Threshold returns the fuzzy threshold, or the default when unset.
func (c Config) Threshold() float64 {
	if c.FuzzyThreshold == nil {
		return fuzzycache.DefaultFuzzyThreshold
	}

	return *c.FuzzyThreshold
}

// UseProcessLock reports whether process_lock is set to true.
func (c Config) UseProcessLock() bool {
	return c.ProcessLock != nil && *c.ProcessLock
}

// GlobalPath returns the global config file location, or "" when no home
// directory can be determined. env is consulted before the process
// environment.
func GlobalPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok && after != "" {
			return filepath.Join(after, "fzc", "config.json")
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fzc", "config.json")
	}

	home, err := homedir.Dir()
	if err != nil || home == "" {
		return ""
	}

	return filepath.Join(home, ".config", "fzc", "config.json")
}

// Load merges all config layers. configPath names an explicit file that
// replaces the project file and must exist; relative paths are resolved
// against workDir.
func Load(workDir, configPath string, overrides Config, env []string) (Config, Sources, error) {
	cfg := Default()

	var sources Sources

	if globalPath := GlobalPath(env); globalPath != "" {
		global, loaded, err := loadFile(globalPath, false)
		if err != nil {
			return Config{}, Sources{}, err
		}

		if loaded {
			sources.Global = globalPath
			cfg = merge(cfg, global)
		}
	}

	project, projectPath, err := loadProject(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = merge(cfg, project)
	cfg = merge(cfg, overrides)

	err = Validate(cfg)
	if err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func loadProject(workDir, configPath string) (Config, string, error) {
	if configPath == "" {
		path := filepath.Join(workDir, FileName)

		cfg, loaded, err := loadFile(path, false)
		if err != nil || !loaded {
			return Config{}, "", err
		}

		return cfg, path, nil
	}

	path, err := homedir.Expand(configPath)
	if err != nil {
		return Config{}, "", fmt.Errorf("%w: %s: %w", ErrFileRead, configPath, err)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	_, statErr := os.Stat(path)
	if statErr != nil {
		return Config{}, "", fmt.Errorf("%w: %s", ErrFileNotFound, configPath)
	}

	cfg, _, err := loadFile(path, true)
	if err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

// loadFile reads and parses one config file. Missing optional files load
// nothing.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse decodes a JSONC document (comments and trailing commas allowed).
// Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var cfg Config

	err = dec.Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.CacheFile != "" {
		base.CacheFile = overlay.CacheFile
	}

	if overlay.FuzzyThreshold != nil {
		base.FuzzyThreshold = overlay.FuzzyThreshold
	}

	if overlay.Backend != "" {
		base.Backend = overlay.Backend
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.ProcessLock != nil {
		base.ProcessLock = overlay.ProcessLock
	}

	return base
}

// Validate checks values a file or flag could get wrong.
func Validate(cfg Config) error {
	if t := cfg.Threshold(); t < 0 || t > 1 {
		return fmt.Errorf("%w: fuzzy_threshold %v not in [0, 1]", ErrInvalid, t)
	}

	_, err := fuzzycache.ParseBackend(cfg.Backend)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	_, err = zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}

	return nil
}

// Format renders cfg as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}

	return string(data), nil
}
