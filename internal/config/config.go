// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Validation failures wrap ErrInvalidConfig, loader failures wrap ErrLoadConfig.
package config

import (
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBDriver selects the storage backend: sqlite, postgres or memory.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver specific data source (file path for sqlite).
	DBDSN string `koanf:"db_dsn"`

	// LockPath is the file lock that keeps two batch runs apart.
	LockPath string `koanf:"lock_path"`

	// StrongIDMinLength is the normalized length at which a national id counts as strong.
	StrongIDMinLength int `koanf:"strong_id_min_length"`

	// WorkerCount sets the number of merge workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory merge job queue.
	QueueSize int `koanf:"queue_size"`

	// MergeTimeoutMS bounds a single merge transaction.
	MergeTimeoutMS int `koanf:"merge_timeout_ms"`

	// AutoMergeStrategies lists the strategies whose confirmed groups are merged.
	// Groups from the other strategies are reported for review.
	AutoMergeStrategies []string `koanf:"auto_merge_strategies"`

	// Overrides carries operator supplied identity decisions.
	Overrides Overrides `koanf:"overrides"`
}

// Overrides are explicit decisions applied to every batch.
type Overrides struct {
	// NameAliases maps a name token to its canonical spelling, e.g. bill: william.
	NameAliases map[string]string `koanf:"name_aliases"`

	// KeepApart lists rider id sets that must never be merged together.
	KeepApart [][]int64 `koanf:"keep_apart"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DBDriver:            "sqlite",
		DBDSN:               "data/riders.db",
		LockPath:            "data/ridermerge.lock",
		StrongIDMinLength:   10,
		WorkerCount:         2,
		QueueSize:           1024,
		MergeTimeoutMS:      5000,
		AutoMergeStrategies: []string{"strong_id", "exact_name"},
		Overrides: Overrides{
			NameAliases: map[string]string{},
		},
	}
}

// MergeTimeout returns MergeTimeoutMS as a duration.
func (c *Config) MergeTimeout() time.Duration {
	return time.Duration(c.MergeTimeoutMS) * time.Millisecond
}

// Strategies returns AutoMergeStrategies with comma separated entries expanded.
// Environment values arrive as a single comma separated string.
func (c *Config) Strategies() []string {
	out := make([]string, 0, len(c.AutoMergeStrategies))
	for _, entry := range c.AutoMergeStrategies {
		for _, s := range strings.Split(entry, ",") {
			if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
