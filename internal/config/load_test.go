package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, 100*time.Millisecond, cfg.Queue.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Queue.BackoffMax)

	assert.Equal(t, 30*time.Second, cfg.Worker.TaskTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.ClaimWait)
	assert.Equal(t, 20, cfg.Worker.HistorySize)
	assert.False(t, cfg.Worker.CancelOnStop)

	assert.Equal(t, 4, cfg.Pool.WorkerCount)
	assert.Equal(t, time.Second, cfg.Pool.SupervisionInterval)
	assert.Equal(t, 60*time.Second, cfg.Pool.StuckTaskAge)
	assert.Equal(t, 5*time.Second, cfg.Pool.ShutdownTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TASKPOOL_LOG_LEVEL", "debug")
	t.Setenv("TASKPOOL_POOL_WORKER_COUNT", "8")
	t.Setenv("TASKPOOL_WORKER_TASK_TIMEOUT", "2s")
	t.Setenv("TASKPOOL_QUEUE_BACKOFF_BASE", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Pool.WorkerCount)
	assert.Equal(t, 2*time.Second, cfg.Worker.TaskTimeout)
	assert.Equal(t, time.Duration(0), cfg.Queue.BackoffBase)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("TASKPOOL_LOG_LEVEL", "verbose")

	cfg, err := Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoad_InvalidWorkerCount(t *testing.T) {
	t.Setenv("TASKPOOL_POOL_WORKER_COUNT", "-3")

	cfg, err := Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("TASKPOOL_WORKER_TASK_TIMEOUT", "soon")

	cfg, err := Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
}
