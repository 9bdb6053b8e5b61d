package tasks

import (
	"time"

	"github.com/mrlokans/congregate/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 1
	Workers int

	// MaxRetries is the default maximum retry attempts for failed tasks. Default: 1
	MaxRetries int

	// RetryDelay is the default backoff duration between retries. Default: 1m
	RetryDelay time.Duration

	// TaskTimeout is the default timeout for task execution. Default: 6h
	TaskTimeout time.Duration

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 7h
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration

	// RetentionDuration is how long to keep completed tasks. Default: 168h
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults. Imports hold the
// destination for their whole run, so one worker is enough.
func DefaultConfig() Config {
	return Config{
		Workers:           1,
		MaxRetries:        1,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       6 * time.Hour,
		ReleaseAfter:      7 * time.Hour,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 7 * 24 * time.Hour,
	}
}

// FromConfig overlays the non-zero values of the application settings on the
// defaults.
func FromConfig(c config.Tasks) Config {
	cfg := DefaultConfig()
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if c.MaxRetries > 0 {
		cfg.MaxRetries = c.MaxRetries
	}
	if c.RetryDelay > 0 {
		cfg.RetryDelay = c.RetryDelay
	}
	if c.TaskTimeout > 0 {
		cfg.TaskTimeout = c.TaskTimeout
	}
	if c.ReleaseAfter > 0 {
		cfg.ReleaseAfter = c.ReleaseAfter
	}
	if c.CleanupInterval > 0 {
		cfg.CleanupInterval = c.CleanupInterval
	}
	if c.RetentionDuration > 0 {
		cfg.RetentionDuration = c.RetentionDuration
	}
	return cfg
}
