// Package main implements the entry point for the taskpool daemon, which
// runs the in-process job queue and worker pool and reports their health
// until it receives a termination signal.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/taskpool/internal/config"
	"github.com/phrazzld/taskpool/internal/events"
	"github.com/phrazzld/taskpool/internal/platform/logger"
	"github.com/phrazzld/taskpool/internal/task"
)

// statsInterval is how often the monitor loop logs queue and pool health.
const statsInterval = 5 * time.Second

// Backlog and failure levels that trigger health warnings.
const (
	failedWarnThreshold  = 10
	pendingWarnThreshold = 100
)

func main() {
	mgr, cfg, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := mgr.Start(cfg.Pool.WorkerCount); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}
	slog.Info("taskpool started", "workers", cfg.Pool.WorkerCount)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	monitorDone := make(chan struct{})
	go monitorSystem(mgr, monitorDone)

	sig := <-stop
	slog.Info("received signal, shutting down", "signal", sig.String())
	close(monitorDone)

	if err := mgr.Stop(); err != nil {
		slog.Error("shutdown did not complete cleanly", "error", err)
		os.Exit(1)
	}
	slog.Info("taskpool stopped")
}

// initializeApp loads configuration and wires up the task manager.
// Returns the manager, the loaded config, and any initialization error.
func initializeApp() (*task.Manager, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("configuration loaded",
		"log_level", cfg.Log.Level,
		"worker_count", cfg.Pool.WorkerCount,
		"task_timeout", cfg.Worker.TaskTimeout,
		"backoff_base", cfg.Queue.BackoffBase)

	mgr := task.NewManager(task.ManagerConfig{
		Retry: task.RetryPolicy{
			BackoffBase: cfg.Queue.BackoffBase,
			BackoffMax:  cfg.Queue.BackoffMax,
		},
		Worker: task.WorkerConfig{
			TaskTimeout:  cfg.Worker.TaskTimeout,
			ClaimWait:    cfg.Worker.ClaimWait,
			HistorySize:  cfg.Worker.HistorySize,
			CancelOnStop: cfg.Worker.CancelOnStop,
		},
		Pool: task.PoolConfig{
			SupervisionInterval: cfg.Pool.SupervisionInterval,
			StuckTaskAge:        cfg.Pool.StuckTaskAge,
			ShutdownTimeout:     cfg.Pool.ShutdownTimeout,
		},
	}, appLogger)

	if err := task.RegisterBuiltins(mgr.Registry()); err != nil {
		return nil, nil, fmt.Errorf("failed to register builtin handlers: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(appLogger)
	emitter.RegisterHandler(events.NewLoggingHandler(appLogger))
	mgr.SetEventEmitter(emitter)

	return mgr, cfg, nil
}

// monitorSystem periodically logs queue statistics and live worker counts,
// warning on failure spikes and queue backlogs.
func monitorSystem(mgr *task.Manager, done <-chan struct{}) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := mgr.Stats()
			alive := 0
			for _, w := range mgr.PoolStatus() {
				if w.Alive {
					alive++
				}
			}

			slog.Info("queue stats",
				"pending", stats.Pending,
				"running", stats.Running,
				"completed", stats.Completed,
				"failed", stats.Failed,
				"total", stats.Total,
				"live_workers", alive)

			if stats.Failed > failedWarnThreshold {
				slog.Warn("high failure count", "failed", stats.Failed)
			}
			if stats.Pending > pendingWarnThreshold {
				slog.Warn("queue backlog", "pending", stats.Pending)
			}
		}
	}
}
