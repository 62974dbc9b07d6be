package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskpool/internal/redact"
)

// WorkerConfig holds per-worker execution settings.
type WorkerConfig struct {
	// TaskTimeout is the default execution deadline applied when the
	// payload carries no "timeout_seconds" of its own.
	TaskTimeout time.Duration

	// ClaimWait bounds how long a worker waits between claim attempts when
	// no enqueue signal arrives. It is a wakeup fallback, not a poll rate:
	// workers wake immediately on the queue's notify channel.
	ClaimWait time.Duration

	// HistorySize caps the worker's recent-outcome ring buffer.
	HistorySize int

	// CancelOnStop makes a stopping worker cancel its in-flight handler
	// instead of draining it. The default is a graceful drain.
	CancelOnStop bool
}

// DefaultWorkerConfig returns a WorkerConfig with reasonable defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		TaskTimeout: 30 * time.Second,
		ClaimWait:   250 * time.Millisecond,
		HistorySize: 20,
	}
}

// Outcome records the result of one execution attempt for diagnostics.
type Outcome struct {
	TaskID   uuid.UUID     `json:"task_id"`
	Kind     string        `json:"kind"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// WorkerStatus is a snapshot of one worker for pool introspection.
type WorkerStatus struct {
	ID            string `json:"worker_id"`
	Alive         bool   `json:"alive"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
	Completed     int64  `json:"completed_count"`
	Failed        int64  `json:"failed_count"`
	HistorySize   int    `json:"history_size"`
}

// Worker repeatedly claims one task from the queue, runs its handler under
// a deadline, and reports exactly one outcome back through the queue. The
// struct holds only bookkeeping state; the run loop lives in Run, so the
// scheduling primitive (a plain goroutine here) stays an implementation
// detail rather than a base type.
//
// A worker is never the source of truth for task state: it keeps cumulative
// counters and a fixed-capacity ring of recent outcomes, nothing more.
type Worker struct {
	id       string
	queue    *JobQueue
	registry *Registry
	cfg      WorkerConfig
	logger   *slog.Logger

	completed atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	currentID uuid.UUID
	busy      bool
	recent    []Outcome // ring buffer, len == cfg.HistorySize
	next      int
	count     int
}

// NewWorker creates a worker bound to one queue and handler registry.
func NewWorker(id string, queue *JobQueue, registry *Registry, cfg WorkerConfig, logger *slog.Logger) *Worker {
	def := DefaultWorkerConfig()
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if cfg.ClaimWait <= 0 {
		cfg.ClaimWait = def.ClaimWait
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}

	return &Worker{
		id:       id,
		queue:    queue,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With("worker_id", id),
		recent:   make([]Outcome, cfg.HistorySize),
	}
}

// ID returns the worker's identity.
func (w *Worker) ID() string {
	return w.id
}

// Run executes the worker loop until ctx is cancelled: drain all claimable
// tasks, then block on the queue's enqueue signal with a bounded fallback
// wait. A panic escaping the loop is contained here so it kills only this
// worker; the supervising pool replaces it.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker crashed",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	w.logger.Debug("worker started")

	wait := time.NewTicker(w.cfg.ClaimWait)
	defer wait.Stop()

	for {
		for ctx.Err() == nil {
			t, err := w.queue.ClaimNext(w.id)
			if err != nil {
				break
			}
			w.execute(ctx, t)
		}

		select {
		case <-ctx.Done():
			w.logger.Debug("worker stopping")
			return
		case <-w.queue.Notify():
		case <-wait.C:
		}
	}
}

// execute runs one claimed task under its deadline and reports the outcome.
func (w *Worker) execute(runCtx context.Context, t *TaskRecord) {
	w.setCurrent(t.ID())
	defer w.clearCurrent()

	timeout := t.Payload().durationSeconds(PayloadTimeoutKey, w.cfg.TaskTimeout)

	// By default the deadline context is detached from the run context so a
	// stopping pool drains in-flight work instead of aborting it.
	parent := context.Background()
	if w.cfg.CancelOnStop {
		parent = runCtx
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	w.logger.Info("executing task",
		"task_id", t.ID(),
		"kind", t.Kind(),
		"timeout", timeout)

	start := time.Now()
	result, err := w.runHandler(ctx, t)
	elapsed := time.Since(start)

	if err != nil {
		w.reportFailure(t, err, elapsed)
		return
	}
	w.reportSuccess(t, result, elapsed)
}

type handlerResult struct {
	result any
	err    error
}

// runHandler executes the task's handler in its own goroutine and joins it
// through the deadline. Handlers that poll ctx return early on their own;
// handlers stuck in a truly blocking call are abandoned when the deadline
// fires and their late result is discarded, so the worker itself can never
// be wedged past the timeout.
func (w *Worker) runHandler(ctx context.Context, t *TaskRecord) (any, error) {
	done := make(chan handlerResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()

		h, err := w.registry.handler(t.Kind())
		if err != nil {
			done <- handlerResult{err: err}
			return
		}

		result, err := h(ctx, t.Payload())
		done <- handlerResult{result: result, err: err}
	}()

	select {
	case r := <-done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrHandlerTimeout, ctx.Err())
	}
}

// reportSuccess pushes the terminal success outcome through the queue.
func (w *Worker) reportSuccess(t *TaskRecord, result any, elapsed time.Duration) {
	if err := w.queue.Complete(t.ID(), result); err != nil {
		w.logger.Warn("completion not recorded",
			"task_id", t.ID(),
			"error", err)
	}

	w.completed.Add(1)
	w.record(Outcome{
		TaskID:   t.ID(),
		Kind:     t.Kind(),
		Status:   StatusCompleted,
		Duration: elapsed,
	})

	w.logger.Info("task succeeded",
		"task_id", t.ID(),
		"kind", t.Kind(),
		"duration", elapsed)
}

// reportFailure pushes a failed attempt through the queue; the retry or
// permanent-fail decision is made centrally there, not here.
func (w *Worker) reportFailure(t *TaskRecord, taskErr error, elapsed time.Duration) {
	if err := w.queue.Fail(t.ID(), taskErr); err != nil {
		w.logger.Warn("failure not recorded",
			"task_id", t.ID(),
			"error", err)
	}

	msg := redact.Error(taskErr)
	w.failed.Add(1)
	w.record(Outcome{
		TaskID:   t.ID(),
		Kind:     t.Kind(),
		Status:   StatusFailed,
		Error:    msg,
		Duration: elapsed,
	})

	w.logger.Warn("task attempt failed",
		"task_id", t.ID(),
		"kind", t.Kind(),
		"duration", elapsed,
		"error", msg)
}

// record appends an outcome to the bounded ring buffer.
func (w *Worker) record(o Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.recent[w.next] = o
	w.next = (w.next + 1) % len(w.recent)
	if w.count < len(w.recent) {
		w.count++
	}
}

func (w *Worker) setCurrent(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentID = id
	w.busy = true
}

func (w *Worker) clearCurrent() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentID = uuid.UUID{}
	w.busy = false
}

// CompletedCount returns the cumulative number of successful attempts.
func (w *Worker) CompletedCount() int64 {
	return w.completed.Load()
}

// FailedCount returns the cumulative number of failed attempts.
func (w *Worker) FailedCount() int64 {
	return w.failed.Load()
}

// CurrentTaskID returns the id of the task being executed, if any.
func (w *Worker) CurrentTaskID() (uuid.UUID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentID, w.busy
}

// HistoryLen returns how many outcomes the ring buffer currently holds.
// It never exceeds the configured HistorySize.
func (w *Worker) HistoryLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// RecentOutcomes returns the retained outcomes, oldest first.
func (w *Worker) RecentOutcomes() []Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Outcome, 0, w.count)
	start := w.next - w.count
	if start < 0 {
		start += len(w.recent)
	}
	for i := 0; i < w.count; i++ {
		out = append(out, w.recent[(start+i)%len(w.recent)])
	}
	return out
}
