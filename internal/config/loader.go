package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment names read by Load.
const (
	EnvPrefix = "RIDERMERGE_"
	EnvConfig = EnvPrefix + "CONFIG"
)

var knownStrategies = map[string]bool{
	"strong_id":   true,
	"exact_name":  true,
	"middle_name": true,
	"phonetic":    true,
}

var knownDrivers = map[string]bool{
	"sqlite":   true,
	"postgres": true,
	"memory":   true,
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RIDERMERGE_CONFIG is set
//  3. env (prefix RIDERMERGE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RIDERMERGE_WORKER_COUNT -> worker_count. Nested keys are file only.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		if s == "config" {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.AutoMergeStrategies = cfg.Strategies()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case !knownDrivers[c.DBDriver]:
		return fmt.Errorf("%w: db_driver %q", ErrInvalidConfig, c.DBDriver)
	case c.DBDriver != "memory" && c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.StrongIDMinLength < 1:
		return fmt.Errorf("%w: strong_id_min_length must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MergeTimeoutMS < 1:
		return fmt.Errorf("%w: merge_timeout_ms must be positive", ErrInvalidConfig)
	}
	for _, s := range c.Strategies() {
		if !knownStrategies[s] {
			return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, s)
		}
	}
	for i, set := range c.Overrides.KeepApart {
		if len(set) < 2 {
			return fmt.Errorf("%w: keep_apart[%d] needs at least two rider ids", ErrInvalidConfig, i)
		}
	}
	return nil
}
