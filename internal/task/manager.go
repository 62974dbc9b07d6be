package task

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/taskpool/internal/events"
)

// ManagerConfig aggregates the settings for the queue, workers, and pool.
type ManagerConfig struct {
	Retry  RetryPolicy
	Worker WorkerConfig
	Pool   PoolConfig
}

// DefaultManagerConfig returns a ManagerConfig with production defaults,
// including exponential retry backoff.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Retry:  DefaultRetryPolicy(),
		Worker: DefaultWorkerConfig(),
		Pool:   DefaultPoolConfig(),
	}
}

// Manager is the thin orchestrator wiring one JobQueue, one handler
// Registry, and one WorkerPool together. External collaborators (an
// embedding process, a CLI, a monitor) talk to the subsystem exclusively
// through this surface.
type Manager struct {
	queue    *JobQueue
	registry *Registry
	pool     *WorkerPool
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewManager builds the queue, registry, and pool from one configuration.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	registry := NewRegistry()
	queue := NewJobQueue(cfg.Retry, logger)
	pool := NewWorkerPool(queue, registry, cfg.Pool, cfg.Worker, logger)

	return &Manager{
		queue:    queue,
		registry: registry,
		pool:     pool,
		logger:   logger.With("component", "manager"),
	}
}

// SetEventEmitter installs an emitter that receives task lifecycle events.
// Terminal transitions (completed, permanently failed) are published from
// the queue's terminal hook; submissions are published from Submit. Call
// before Start.
func (m *Manager) SetEventEmitter(emitter events.EventEmitter) {
	m.emitter = emitter
	m.queue.SetTerminalHook(func(snap Snapshot) {
		eventType := TypeForStatus(snap.Status)
		if eventType == "" {
			return
		}
		ev := events.NewTaskEvent(eventType, snap.ID, snap.Kind, snap.Error)
		if err := emitter.EmitEvent(context.Background(), ev); err != nil {
			m.logger.Warn("failed to emit task event",
				"event_type", eventType,
				"task_id", snap.ID,
				"error", err)
		}
	})
}

// TypeForStatus maps a terminal task status to its lifecycle event type.
// Non-terminal statuses map to the empty string.
func TypeForStatus(status Status) string {
	switch status {
	case StatusCompleted:
		return events.TypeTaskCompleted
	case StatusFailed:
		return events.TypeTaskFailed
	default:
		return ""
	}
}

// Registry exposes the handler registry so callers can install task kinds.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// RegisterHandler binds a handler to a task kind.
func (m *Manager) RegisterHandler(kind string, h Handler) error {
	return m.registry.Register(kind, h)
}

// Submit validates and enqueues a new task, returning its id.
func (m *Manager) Submit(payload Payload, maxRetries int) (uuid.UUID, error) {
	t, err := NewTaskRecord(payload, maxRetries)
	if err != nil {
		return uuid.Nil, err
	}

	m.queue.Enqueue(t)
	m.logger.Info("task submitted",
		"task_id", t.ID(),
		"kind", t.Kind(),
		"max_retries", maxRetries)

	if m.emitter != nil {
		ev := events.NewTaskEvent(events.TypeTaskSubmitted, t.ID(), t.Kind(), "")
		if err := m.emitter.EmitEvent(context.Background(), ev); err != nil {
			m.logger.Warn("failed to emit task event",
				"event_type", events.TypeTaskSubmitted,
				"task_id", t.ID(),
				"error", err)
		}
	}
	return t.ID(), nil
}

// Stats returns a consistent snapshot of queue counts.
func (m *Manager) Stats() Stats {
	return m.queue.Stats()
}

// GetTask returns a snapshot of one task.
func (m *Manager) GetTask(id uuid.UUID) (Snapshot, error) {
	return m.queue.Get(id)
}

// PoolStatus returns a per-worker snapshot.
func (m *Manager) PoolStatus() []WorkerStatus {
	return m.pool.Status()
}

// ClearCompleted sweeps completed tasks out of the table and returns the
// number removed.
func (m *Manager) ClearCompleted() int {
	return m.queue.ClearCompleted()
}

// Start spawns n workers and begins supervision.
func (m *Manager) Start(n int) error {
	return m.pool.Start(n)
}

// Stop shuts the pool down, waiting out in-flight work up to the
// configured shutdown timeout, then flushes any outstanding backoff
// timers so nothing is left ticking.
func (m *Manager) Stop() error {
	err := m.pool.Stop()
	m.queue.Close()
	return err
}

// Resize adjusts the number of workers without discarding in-flight tasks.
func (m *Manager) Resize(n int) error {
	return m.pool.Resize(n)
}
