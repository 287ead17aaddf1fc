package scheduler

import (
	"time"

	"github.com/cleanbc/obps/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	// EnabledJobs empty means every job runs (monolith mode). Listing job
	// names splits the work across dedicated instances.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   50,
		JobTimeout:  10 * time.Minute,
		LockTTL:     5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.SchedulerRunInterval,
		BatchSize:   cfg.SchedulerBatchSize,
		LockTTL:     cfg.SchedulerLockTTL,
		EnabledJobs: cfg.SchedulerEnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
