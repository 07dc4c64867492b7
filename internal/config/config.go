// Package config provides generator configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "statecodec.yaml"

// Config is the root configuration structure.
type Config struct {
	// Dirs are the package directories to generate for.
	Dirs []string `yaml:"dirs"`
	// Types selects containers by name; empty means every type carrying a
	// //statecodec: directive.
	Types []string `yaml:"types"`
	// Output is the generated file name, relative to each directory.
	Output    string `yaml:"output"`
	Tag       string `yaml:"tag"`
	BuildTags string `yaml:"build_tags"`
	// Workers bounds concurrent directory generation.
	Workers int         `yaml:"workers"`
	Log     LogConfig   `yaml:"log"`
	Watch   WatchConfig `yaml:"watch"`
}

// LogConfig configures the zap logger the CLI builds.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// WatchConfig configures the watch subcommand.
type WatchConfig struct {
	// Debounce coalesces bursts of file events into one regeneration.
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(&cfg)
}

// LoadFromEnv creates configuration from environment variables only.
//
// Environment variables:
//
//	STATECODEC_DIRS           - Comma-separated package directories (default: .)
//	STATECODEC_TYPES          - Comma-separated type names
//	STATECODEC_OUTPUT         - Output file name (default: statecodec_gen.go)
//	STATECODEC_TAG            - Struct tag key (default: state)
//	STATECODEC_BUILD_TAGS     - Build constraint for generated files
//	STATECODEC_WORKERS        - Concurrent directories (default: 4)
//	STATECODEC_LOG_LEVEL      - Log level: debug, info, warn, error (default: info)
//	STATECODEC_LOG_FORMAT     - Log format: json or console (default: console)
//	STATECODEC_WATCH_DEBOUNCE - Watch debounce duration (default: 200ms)
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback loads path, or DefaultFile when path is empty and the
// file exists, or the environment alone otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return Load(DefaultFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadFromEnv()
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STATECODEC_DIRS"); v != "" {
		cfg.Dirs = SplitList(v)
	}
	if v := os.Getenv("STATECODEC_TYPES"); v != "" {
		cfg.Types = SplitList(v)
	}
	if v := os.Getenv("STATECODEC_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("STATECODEC_TAG"); v != "" {
		cfg.Tag = v
	}
	if v := os.Getenv("STATECODEC_BUILD_TAGS"); v != "" {
		cfg.BuildTags = v
	}
	if v := os.Getenv("STATECODEC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("STATECODEC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STATECODEC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("STATECODEC_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = d
		}
	}
}

func setDefaults(cfg *Config) {
	if len(cfg.Dirs) == 0 {
		cfg.Dirs = []string{"."}
	}
	if cfg.Output == "" {
		cfg.Output = "statecodec_gen.go"
	}
	if cfg.Tag == "" {
		cfg.Tag = "state"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 200 * time.Millisecond
	}
}

func validate(cfg *Config) error {
	if filepath.Base(cfg.Output) != cfg.Output || !strings.HasSuffix(cfg.Output, ".go") {
		return fmt.Errorf("output must be a .go file name without directories, got %q", cfg.Output)
	}
	if strings.HasSuffix(cfg.Output, "_test.go") {
		return fmt.Errorf("output must not be a test file, got %q", cfg.Output)
	}
	if strings.ContainsAny(cfg.Tag, " \t:\"`") {
		return fmt.Errorf("tag %q is not a valid struct tag key", cfg.Tag)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "console" {
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", cfg.Log.Format)
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	for i, d := range cfg.Dirs {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("dirs[%d] is empty", i)
		}
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
