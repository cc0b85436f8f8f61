// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers a YAML file and DIARISK_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ModelDir is the directory holding the trained artifact.
	ModelDir string `koanf:"model_dir"`

	// LoadTimeoutMS bounds a single artifact load.
	LoadTimeoutMS int `koanf:"load_timeout_ms"`

	// HistoryPath is the SQLite file for prediction history. Empty keeps
	// history in memory.
	HistoryPath string `koanf:"history_path"`

	// HistoryLimit is the number of history records retained.
	HistoryLimit int `koanf:"history_limit"`

	// BatchWorkers sets the number of batch prediction workers.
	BatchWorkers int `koanf:"batch_workers"`

	// BatchQueueSize bounds the in-memory batch queue.
	BatchQueueSize int `koanf:"batch_queue_size"`

	// MaxBatchSize caps the records accepted by one batch request.
	MaxBatchSize int `koanf:"max_batch_size"`

	// MaxHistoryLimit caps GET /history?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		ModelDir:        "models",
		LoadTimeoutMS:   10_000,
		HistoryLimit:    10_000,
		BatchWorkers:    runtime.NumCPU(),
		BatchQueueSize:  1024,
		MaxBatchSize:    1000,
		MaxHistoryLimit: 500,
	}
}

// LoadTimeout returns LoadTimeoutMS as a duration.
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutMS) * time.Millisecond
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ModelDir) == "":
		return fmt.Errorf("%w: model_dir must not be empty", ErrInvalidConfig)
	case c.LoadTimeoutMS <= 0:
		return fmt.Errorf("%w: load_timeout_ms must be positive, got %d", ErrInvalidConfig, c.LoadTimeoutMS)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("%w: history_limit must be positive, got %d", ErrInvalidConfig, c.HistoryLimit)
	case c.BatchWorkers <= 0:
		return fmt.Errorf("%w: batch_workers must be positive, got %d", ErrInvalidConfig, c.BatchWorkers)
	case c.BatchQueueSize <= 0:
		return fmt.Errorf("%w: batch_queue_size must be positive, got %d", ErrInvalidConfig, c.BatchQueueSize)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	case c.MaxBatchSize > c.BatchQueueSize:
		return fmt.Errorf("%w: max_batch_size %d exceeds batch_queue_size %d", ErrInvalidConfig, c.MaxBatchSize, c.BatchQueueSize)
	case c.MaxHistoryLimit <= 0:
		return fmt.Errorf("%w: max_history_limit must be positive, got %d", ErrInvalidConfig, c.MaxHistoryLimit)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
