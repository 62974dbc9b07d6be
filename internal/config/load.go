package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is prepended to environment variable names, so the worker count
// is configured with TASKPOOL_POOL_WORKER_COUNT, the log level with
// TASKPOOL_LOG_LEVEL, and so on.
const envPrefix = "TASKPOOL"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config.yaml next to the binary; a missing file is fine,
	// a malformed one is not.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default for every known key so the full key set
// is visible to viper even when no config file exists.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("queue.backoff_base", "100ms")
	v.SetDefault("queue.backoff_max", "30s")

	v.SetDefault("worker.task_timeout", "30s")
	v.SetDefault("worker.claim_wait", "250ms")
	v.SetDefault("worker.history_size", 20)
	v.SetDefault("worker.cancel_on_stop", false)

	v.SetDefault("pool.worker_count", 4)
	v.SetDefault("pool.supervision_interval", "1s")
	v.SetDefault("pool.stuck_task_age", "60s")
	v.SetDefault("pool.shutdown_timeout", "5s")
}
