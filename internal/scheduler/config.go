package scheduler

import (
	"time"

	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
)

// Config controls maintenance intervals.
type Config struct {
	Enabled          bool
	RunInterval      time.Duration
	JobTimeout       time.Duration
	LockTTL          time.Duration
	TokenGracePeriod time.Duration
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		RunInterval:      10 * time.Minute,
		JobTimeout:       30 * time.Second,
		LockTTL:          2 * time.Minute,
		TokenGracePeriod: 24 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.Enabled = cfg.Scheduler.Enabled
	c.RunInterval = cfg.Scheduler.Interval
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.TokenGracePeriod < 0 {
		c.TokenGracePeriod = 0
	}
	return c
}
