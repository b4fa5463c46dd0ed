// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/airscore/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory ingest queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the batch id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// RefreshIntervalMS is the period of the background rescoring loop.
	// Zero disables it; POST /rescore still works.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// DBPath points at the upstream SQLite database. Empty means the record
	// log starts empty and is fed by POST /batches only.
	DBPath string `koanf:"db_path"`

	// WindowDays limits scoring to records tested within the last N days.
	WindowDays int `koanf:"window_days"`

	// ScoringMode is "batch" or "decay".
	ScoringMode string `koanf:"scoring_mode"`

	// UnscoredPolicy is "zero_fill" or "omit".
	UnscoredPolicy string `koanf:"unscored_policy"`

	// Weights are the batch-mode metric weights.
	Weights scoring.Weights `koanf:"weights"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        100_000,
		MaxRankingLimit:   500,
		RefreshIntervalMS: 60_000,
		WindowDays:        30,
		ScoringMode:       string(scoring.ModeBatch),
		UnscoredPolicy:    string(scoring.ZeroFill),
		Weights:           scoring.DefaultWeights(),
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.MaxRankingLimit <= 0 {
		return fmt.Errorf("%w: max_ranking_limit must be positive", ErrInvalidConfig)
	}
	if c.WindowDays < 0 || c.RefreshIntervalMS < 0 {
		return fmt.Errorf("%w: window_days and refresh_interval_ms must not be negative", ErrInvalidConfig)
	}
	if _, err := scoring.ParseMode(c.ScoringMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := scoring.ParseUnscoredPolicy(c.UnscoredPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
