package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log    LogConfig    `mapstructure:"log"    validate:"required"`
	Queue  QueueConfig  `mapstructure:"queue"`
	Worker WorkerConfig `mapstructure:"worker" validate:"required"`
	Pool   PoolConfig   `mapstructure:"pool"   validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// QueueConfig contains retry policy settings for the job queue.
// A zero BackoffBase disables backoff and requeues retries immediately,
// which is the deterministic mode used by tests.
type QueueConfig struct {
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"min=0"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"  validate:"min=0"`
}

// WorkerConfig contains per-worker execution settings.
type WorkerConfig struct {
	TaskTimeout  time.Duration `mapstructure:"task_timeout" validate:"required,gt=0"`
	ClaimWait    time.Duration `mapstructure:"claim_wait"   validate:"required,gt=0"`
	HistorySize  int           `mapstructure:"history_size" validate:"required,gt=0"`
	CancelOnStop bool          `mapstructure:"cancel_on_stop"`
}

// PoolConfig contains worker pool sizing and supervision settings.
type PoolConfig struct {
	WorkerCount         int           `mapstructure:"worker_count"         validate:"required,gt=0,lte=1024"`
	SupervisionInterval time.Duration `mapstructure:"supervision_interval" validate:"required,gt=0"`
	StuckTaskAge        time.Duration `mapstructure:"stuck_task_age"       validate:"required,gt=0"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"     validate:"required,gt=0"`
}
