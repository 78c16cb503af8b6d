package scheduler

import (
	"time"

	"github.com/smallbiznis/labdesk/internal/config"
)

// Job names accepted by SCHEDULER_JOBS.
const (
	JobActiveUsers   = "active_users"
	JobQuizTriggers  = "quiz_triggers"
	JobPurgeWarnings = "purge_warnings"
)

// Config controls the tick interval and per-job cadence.
type Config struct {
	RunInterval        time.Duration
	EnabledJobs        []string
	ActiveUsersEvery   time.Duration
	PurgeWarningsEvery time.Duration
	// LockWait bounds how long a tick waits for another worker's job lease.
	LockWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:        time.Minute,
		ActiveUsersEvery:   24 * time.Hour,
		PurgeWarningsEvery: 7 * 24 * time.Hour,
		LockWait:           2 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:        cfg.Scheduler.RunInterval,
		EnabledJobs:        cfg.Scheduler.Jobs,
		ActiveUsersEvery:   cfg.Scheduler.ActiveUsersEvery,
		PurgeWarningsEvery: cfg.Scheduler.PurgeWarningsEvery,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ActiveUsersEvery <= 0 {
		c.ActiveUsersEvery = defaults.ActiveUsersEvery
	}
	if c.PurgeWarningsEvery <= 0 {
		c.PurgeWarningsEvery = defaults.PurgeWarningsEvery
	}
	if c.LockWait <= 0 {
		c.LockWait = defaults.LockWait
	}
	return c
}
