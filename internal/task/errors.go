package task

import "errors"

// Common errors returned by the task subsystem.
var (
	// ErrEmptyPayload is returned when a task is submitted without payload data.
	ErrEmptyPayload = errors.New("task payload cannot be empty")

	// ErrMissingKind is returned when a payload does not carry a "kind" key
	// identifying which registered handler should process it.
	ErrMissingKind = errors.New("task payload missing kind")

	// ErrNegativeRetries is returned when a task is submitted with a negative
	// retry budget.
	ErrNegativeRetries = errors.New("max retries cannot be negative")

	// ErrTaskNotFound is returned when an operation references a task id
	// that is not present in the queue's task table.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoPendingTasks is returned by ClaimNext when the pending list is empty.
	ErrNoPendingTasks = errors.New("no pending tasks")

	// ErrUnknownKind is returned when no handler is registered for a task's kind.
	ErrUnknownKind = errors.New("unknown task kind")

	// ErrNilHandler is returned when registering a nil handler function.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerTimeout is returned when a handler runs past its deadline.
	// The deadline is enforced through context, which measures elapsed time
	// on the monotonic clock, so wall-clock adjustments cannot affect it.
	ErrHandlerTimeout = errors.New("handler timed out")

	// ErrPoolAlreadyRunning is returned when Start is called on a running pool.
	ErrPoolAlreadyRunning = errors.New("worker pool already running")

	// ErrPoolNotRunning is returned when Resize is called on a stopped pool.
	ErrPoolNotRunning = errors.New("worker pool not running")

	// ErrInvalidWorkerCount is returned when a pool operation is given a
	// worker count of zero or less.
	ErrInvalidWorkerCount = errors.New("worker count must be positive")

	// ErrWorkerLeak is returned by Stop when one or more worker goroutines
	// failed to terminate within the shutdown timeout.
	ErrWorkerLeak = errors.New("worker goroutines leaked during shutdown")
)
