package task

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PayloadKindKey is the payload key naming the handler that processes the task.
const PayloadKindKey = "kind"

// PayloadTimeoutKey is the optional payload key carrying a per-task execution
// deadline in seconds. When absent, the worker's configured default applies.
const PayloadTimeoutKey = "timeout_seconds"

// Payload holds the opaque key/value data interpreted by a task's handler.
type Payload map[string]any

// stringValue returns the payload value for key as a string, or def when the
// key is absent or not a string.
func (p Payload) stringValue(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// intValue returns the payload value for key as an int, accepting the numeric
// types JSON decoding and literal construction commonly produce.
func (p Payload) intValue(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// durationSeconds interprets the payload value for key as a duration in
// seconds. Fractional values are honored, so 0.5 means 500ms.
func (p Payload) durationSeconds(key string, def time.Duration) time.Duration {
	switch v := p[key].(type) {
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return def
}

// TaskRecord is the authoritative record of one unit of work. All fields are
// unexported: after construction a record is mutated only by JobQueue under
// its mutex, and observed from outside through Snapshot copies.
//
// Timestamps come from time.Now(), whose monotonic clock reading makes every
// interval computed with Sub immune to wall-clock adjustments.
type TaskRecord struct {
	id         uuid.UUID
	kind       string
	payload    Payload
	maxRetries int

	status      Status
	retryCount  int
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
	owner       string
	result      any
	errMsg      string
	attemptErrs []string
}

// NewTaskRecord validates the payload and constructs a pending record.
// The payload must be non-empty and carry a string under "kind".
func NewTaskRecord(payload Payload, maxRetries int) (*TaskRecord, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if payload.stringValue(PayloadKindKey, "") == "" {
		return nil, ErrMissingKind
	}
	if maxRetries < 0 {
		return nil, ErrNegativeRetries
	}

	return &TaskRecord{
		id:         uuid.New(),
		kind:       payload.stringValue(PayloadKindKey, ""),
		payload:    payload,
		maxRetries: maxRetries,
		status:     StatusPending,
		createdAt:  time.Now(),
	}, nil
}

// ID returns the task's unique identifier. Immutable after construction.
func (t *TaskRecord) ID() uuid.UUID {
	return t.id
}

// Kind returns the handler kind this task is dispatched to.
func (t *TaskRecord) Kind() string {
	return t.kind
}

// Payload returns the task's payload. Handlers must treat it as read-only.
func (t *TaskRecord) Payload() Payload {
	return t.payload
}

// isTerminal reports whether the record reached a terminal state.
func (t *TaskRecord) isTerminal() bool {
	return t.status == StatusCompleted || t.status == StatusFailed
}

// canRetry reports whether the task has retry budget left. The strict
// comparison means a task retries at most maxRetries times and fails
// permanently with retryCount == maxRetries.
func (t *TaskRecord) canRetry() bool {
	return t.retryCount < t.maxRetries
}

// markRunning transitions the record to Running under a claiming worker.
// Caller holds the queue lock.
func (t *TaskRecord) markRunning(owner string) {
	t.status = StatusRunning
	t.owner = owner
	t.startedAt = time.Now()
}

// markCompleted records the terminal success outcome. Caller holds the queue
// lock and has verified the record is Running.
func (t *TaskRecord) markCompleted(result any) {
	t.status = StatusCompleted
	t.completedAt = time.Now()
	t.result = result
	t.owner = ""
}

// markFailed records the terminal failure outcome once the retry budget is
// exhausted. Caller holds the queue lock and has verified the record is Running.
func (t *TaskRecord) markFailed(errMsg string) {
	t.status = StatusFailed
	t.completedAt = time.Now()
	t.errMsg = errMsg
	t.owner = ""
}

// resetForRetry returns the record to Pending for another attempt, clearing
// per-attempt state. The per-attempt error history is deliberately kept.
func (t *TaskRecord) resetForRetry() {
	t.status = StatusPending
	t.startedAt = time.Time{}
	t.completedAt = time.Time{}
	t.owner = ""
	t.result = nil
	t.errMsg = ""
}

// Snapshot is a point-in-time copy of a task record for introspection.
type Snapshot struct {
	ID            uuid.UUID `json:"id"`
	Kind          string    `json:"kind"`
	Payload       Payload   `json:"payload"`
	Status        Status    `json:"status"`
	RetryCount    int       `json:"retry_count"`
	MaxRetries    int       `json:"max_retries"`
	CreatedAt     time.Time `json:"created_at"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	Owner         string    `json:"owner,omitempty"`
	Result        any       `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
	AttemptErrors []string  `json:"attempt_errors,omitempty"`
}

// snapshot copies the record's current state. Caller holds the queue lock.
// The payload map is copied so snapshot consumers never share storage with
// the record or an executing handler; nested values stay shared and are
// treated as read-only throughout.
func (t *TaskRecord) snapshot() Snapshot {
	attempts := make([]string, len(t.attemptErrs))
	copy(attempts, t.attemptErrs)

	payload := make(Payload, len(t.payload))
	for k, v := range t.payload {
		payload[k] = v
	}

	return Snapshot{
		ID:            t.id,
		Kind:          t.kind,
		Payload:       payload,
		Status:        t.status,
		RetryCount:    t.retryCount,
		MaxRetries:    t.maxRetries,
		CreatedAt:     t.createdAt,
		StartedAt:     t.startedAt,
		CompletedAt:   t.completedAt,
		Owner:         t.owner,
		Result:        t.result,
		Error:         t.errMsg,
		AttemptErrors: attempts,
	}
}
