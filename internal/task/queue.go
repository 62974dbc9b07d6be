package task

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskpool/internal/redact"
)

// RetryPolicy controls how failed tasks re-enter the pending list.
// A zero BackoffBase re-enqueues immediately at the tail of the FIFO,
// which keeps retry timing deterministic for tests. A non-zero base
// delays each retry exponentially (base << retries, capped at BackoffMax)
// so a persistently failing dependency is not hammered in a tight loop.
type RetryPolicy struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultRetryPolicy returns the production retry policy with exponential
// backoff enabled.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BackoffBase: 100 * time.Millisecond,
		BackoffMax:  30 * time.Second,
	}
}

// ZeroDelayRetryPolicy returns a policy that requeues retries immediately.
func ZeroDelayRetryPolicy() RetryPolicy {
	return RetryPolicy{}
}

// delay computes the backoff before the given retry attempt (1-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.BackoffBase <= 0 || attempt <= 0 {
		return 0
	}
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.BackoffMax > 0 && d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && d > p.BackoffMax {
		return p.BackoffMax
	}
	return d
}

// Stats is a point-in-time consistent snapshot of queue counts, taken under
// the queue lock.
type Stats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// JobQueue is the thread-safe store of task records and the sole
// synchronization boundary of the subsystem. One mutex guards the task
// table and the FIFO pending list together; every operation is a short
// bookkeeping critical section that never executes handlers or blocks
// on I/O while holding the lock.
//
// Completed records stay in the table until ClearCompleted sweeps them,
// which keeps pending+running+completed+failed == total submitted at any
// observation point.
type JobQueue struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*TaskRecord
	pending []uuid.UUID

	policy RetryPolicy
	notify chan struct{}
	logger *slog.Logger

	// timers holds the outstanding backoff timers keyed by task id so
	// Close can stop them instead of leaving them to fire after the
	// queue is discarded.
	timers map[uuid.UUID]*time.Timer

	// onTerminal, when set, observes every terminal transition. It is
	// invoked outside the lock so observers may call back into the queue.
	onTerminal func(Snapshot)
}

// NewJobQueue creates an empty job queue with the given retry policy.
func NewJobQueue(policy RetryPolicy, logger *slog.Logger) *JobQueue {
	return &JobQueue{
		tasks:  make(map[uuid.UUID]*TaskRecord),
		notify: make(chan struct{}, 1),
		policy: policy,
		logger: logger.With("component", "jobqueue"),
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// SetTerminalHook installs an observer for terminal transitions. It must be
// set during wiring, before any worker starts reporting outcomes.
func (q *JobQueue) SetTerminalHook(fn func(Snapshot)) {
	q.onTerminal = fn
}

// emitTerminal invokes the terminal observer, if any. Called without the lock.
func (q *JobQueue) emitTerminal(snap Snapshot) {
	if q.onTerminal != nil {
		q.onTerminal(snap)
	}
}

// Notify returns a channel that receives a signal whenever a task becomes
// claimable. The signal is coalesced, so consumers must drain the pending
// list after waking rather than assume one signal per task.
func (q *JobQueue) Notify() <-chan struct{} {
	return q.notify
}

// signalLocked wakes one waiting consumer without blocking the critical section.
func (q *JobQueue) signalLocked() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Enqueue inserts a new record into the table and appends its id to the
// pending list.
func (q *JobQueue) Enqueue(t *TaskRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tasks[t.id] = t
	q.pending = append(q.pending, t.id)
	q.signalLocked()

	q.logger.Debug("task enqueued",
		"task_id", t.id,
		"kind", t.kind,
		"pending", len(q.pending))
}

// ClaimNext atomically pops the head of the pending list, transitions the
// record to Running, and returns it to the caller. Entries whose record is
// no longer Pending (left behind by a prior requeue race) are discarded.
// Returns ErrNoPendingTasks when nothing is claimable.
func (q *JobQueue) ClaimNext(owner string) (*TaskRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]

		t, ok := q.tasks[id]
		if !ok || t.status != StatusPending {
			// Stale pending entry, skip it.
			continue
		}

		t.markRunning(owner)
		q.logger.Debug("task claimed", "task_id", id, "worker_id", owner)
		return t, nil
	}

	return nil, ErrNoPendingTasks
}

// Complete transitions a Running task to Completed and stores its result.
// A second terminal report for the same id is absorbed as a no-op rather
// than a duplicate transition, so concurrent completions can never
// double-delete or corrupt the record. Unknown ids return ErrTaskNotFound.
func (q *JobQueue) Complete(id uuid.UUID, result any) error {
	q.mu.Lock()

	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.status != StatusRunning {
		q.logger.Debug("ignoring completion for non-running task",
			"task_id", id,
			"status", t.status)
		q.mu.Unlock()
		return nil
	}

	t.markCompleted(result)
	snap := t.snapshot()
	q.mu.Unlock()

	q.logger.Info("task completed", "task_id", id, "kind", snap.Kind)
	q.emitTerminal(snap)
	return nil
}

// Fail reports a failed attempt for a Running task. While retry budget
// remains the record is reset to Pending and re-enqueued, immediately or
// after the policy's backoff delay. Once retryCount reaches maxRetries the
// task transitions to permanent Failed. Idempotence mirrors Complete:
// reports against non-running records are no-ops, unknown ids return
// ErrTaskNotFound.
func (q *JobQueue) Fail(id uuid.UUID, taskErr error) error {
	q.mu.Lock()

	t, ok := q.tasks[id]
	if !ok {
		q.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.status != StatusRunning {
		q.logger.Debug("ignoring failure for non-running task",
			"task_id", id,
			"status", t.status)
		q.mu.Unlock()
		return nil
	}

	msg := "unknown error"
	if taskErr != nil {
		msg = redact.Error(taskErr)
	}

	if !t.canRetry() {
		t.markFailed(msg)
		snap := t.snapshot()
		q.mu.Unlock()

		q.logger.Error("task permanently failed",
			"task_id", id,
			"kind", snap.Kind,
			"retry_count", snap.RetryCount,
			"error", msg)
		q.emitTerminal(snap)
		return nil
	}

	t.retryCount++
	t.attemptErrs = append(t.attemptErrs, msg)
	t.resetForRetry()

	retryCount, maxRetries, kind := t.retryCount, t.maxRetries, t.kind
	delay := q.policy.delay(retryCount)
	if delay <= 0 {
		q.pending = append(q.pending, id)
		q.signalLocked()
	} else {
		q.timers[id] = time.AfterFunc(delay, func() { q.requeueAfterBackoff(id) })
	}
	q.mu.Unlock()

	q.logger.Warn("task failed, retrying",
		"task_id", id,
		"kind", kind,
		"retry_count", retryCount,
		"max_retries", maxRetries,
		"backoff", delay,
		"error", msg)
	return nil
}

// requeueAfterBackoff re-inserts a retried task once its backoff elapses.
// The record may have been swept or mutated in the meantime, so its state
// is revalidated under the lock.
func (q *JobQueue) requeueAfterBackoff(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.timers, id)

	t, ok := q.tasks[id]
	if !ok || t.status != StatusPending {
		return
	}

	q.pending = append(q.pending, id)
	q.signalLocked()
	q.logger.Debug("task requeued after backoff", "task_id", id)
}

// Close stops every outstanding backoff timer and moves its task straight
// onto the pending list, so no timer outlives the queue's users and no
// retried task is stranded waiting for one. Backoff does not survive a
// shutdown; the queue itself stays usable afterwards.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, timer := range q.timers {
		stopped := timer.Stop()
		delete(q.timers, id)
		if !stopped {
			// The timer already fired; its callback requeues the task.
			continue
		}

		if t, ok := q.tasks[id]; ok && t.status == StatusPending {
			q.pending = append(q.pending, id)
			q.signalLocked()
		}
	}
}

// Get returns a point-in-time snapshot of one task.
func (q *JobQueue) Get(id uuid.UUID) (Snapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return Snapshot{}, ErrTaskNotFound
	}
	return t.snapshot(), nil
}

// Stats counts tasks by status under the lock.
func (q *JobQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Total: len(q.tasks)}
	for _, t := range q.tasks {
		switch t.status {
		case StatusPending:
			s.Pending++
		case StatusRunning:
			s.Running++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Len returns the total number of tasks currently in the table.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// ClearCompleted removes all Completed records from the table and returns
// how many were removed. Taking the lock makes the sweep race-free with
// concurrent completions.
func (q *JobQueue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, t := range q.tasks {
		if t.status == StatusCompleted {
			delete(q.tasks, id)
			removed++
		}
	}

	if removed > 0 {
		q.logger.Info("cleared completed tasks", "count", removed)
	}
	return removed
}

// RequeueStuck resets Running tasks back to Pending when their owning worker
// is gone or when they have been running longer than age. Without this sweep
// a task claimed by a dead worker would stay Running forever. The reset is
// recovery, not a retry, so it does not consume retry budget. Returns the
// number of tasks requeued.
func (q *JobQueue) RequeueStuck(age time.Duration, alive func(owner string) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	requeued := 0
	for id, t := range q.tasks {
		if t.status != StatusRunning {
			continue
		}

		ownerGone := alive != nil && !alive(t.owner)
		overdue := age > 0 && now.Sub(t.startedAt) > age
		if !ownerGone && !overdue {
			continue
		}

		q.logger.Warn("requeuing stuck task",
			"task_id", id,
			"kind", t.kind,
			"owner", t.owner,
			"owner_gone", ownerGone,
			"running_for", now.Sub(t.startedAt))

		t.resetForRetry()
		q.pending = append(q.pending, id)
		q.signalLocked()
		requeued++
	}

	return requeued
}
