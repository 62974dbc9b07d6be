package task

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskRecord(t *testing.T) {
	payload := Payload{"kind": "compute", "value": 21}
	task, err := NewTaskRecord(payload, 3)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID())
	assert.Equal(t, "compute", task.Kind())
	assert.Equal(t, payload, task.Payload())
	assert.Equal(t, StatusPending, task.status)
	assert.Equal(t, 0, task.retryCount)
	assert.Equal(t, 3, task.maxRetries)
	assert.False(t, task.createdAt.IsZero())
	assert.True(t, task.startedAt.IsZero())
}

func TestNewTaskRecord_Validation(t *testing.T) {
	_, err := NewTaskRecord(nil, 0)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = NewTaskRecord(Payload{}, 0)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = NewTaskRecord(Payload{"value": 1}, 0)
	assert.ErrorIs(t, err, ErrMissingKind)

	_, err = NewTaskRecord(Payload{"kind": 42}, 0)
	assert.ErrorIs(t, err, ErrMissingKind)

	_, err = NewTaskRecord(Payload{"kind": "compute"}, -1)
	assert.ErrorIs(t, err, ErrNegativeRetries)
}

func TestTaskRecord_Lifecycle(t *testing.T) {
	task, err := NewTaskRecord(Payload{"kind": "compute"}, 1)
	require.NoError(t, err)

	task.markRunning("worker-0")
	assert.Equal(t, StatusRunning, task.status)
	assert.Equal(t, "worker-0", task.owner)
	assert.False(t, task.startedAt.IsZero())
	assert.False(t, task.isTerminal())

	task.markCompleted(42)
	assert.Equal(t, StatusCompleted, task.status)
	assert.Equal(t, 42, task.result)
	assert.False(t, task.completedAt.IsZero())
	assert.Empty(t, task.owner)
	assert.True(t, task.isTerminal())
}

func TestTaskRecord_ResetForRetry(t *testing.T) {
	task, err := NewTaskRecord(Payload{"kind": "fail"}, 2)
	require.NoError(t, err)

	task.markRunning("worker-0")
	task.retryCount++
	task.attemptErrs = append(task.attemptErrs, "boom")
	task.resetForRetry()

	assert.Equal(t, StatusPending, task.status)
	assert.True(t, task.startedAt.IsZero())
	assert.True(t, task.completedAt.IsZero())
	assert.Empty(t, task.owner)
	assert.Nil(t, task.result)
	assert.Empty(t, task.errMsg)
	// The diagnostic history survives the reset.
	assert.Equal(t, []string{"boom"}, task.attemptErrs)
	assert.Equal(t, 1, task.retryCount)
}

func TestTaskRecord_CanRetry(t *testing.T) {
	task, err := NewTaskRecord(Payload{"kind": "fail"}, 2)
	require.NoError(t, err)

	assert.True(t, task.canRetry())
	task.retryCount = 1
	assert.True(t, task.canRetry())
	task.retryCount = 2
	assert.False(t, task.canRetry())
}

func TestTaskRecord_Snapshot(t *testing.T) {
	task, err := NewTaskRecord(Payload{"kind": "compute", "value": 21}, 3)
	require.NoError(t, err)
	task.markRunning("worker-1")

	snap := task.snapshot()
	assert.Equal(t, task.ID(), snap.ID)
	assert.Equal(t, "compute", snap.Kind)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 3, snap.MaxRetries)
	assert.Equal(t, "worker-1", snap.Owner)

	// The snapshot's attempt history is a copy, not a shared slice.
	task.attemptErrs = append(task.attemptErrs, "boom")
	assert.Empty(t, snap.AttemptErrors)

	// The payload map is a copy too: writes through one never show up in
	// the other.
	snap.Payload["value"] = 99
	assert.Equal(t, 21, task.payload["value"])
	second := task.snapshot()
	assert.Equal(t, 21, second.Payload["value"])
}

func TestPayload_Accessors(t *testing.T) {
	p := Payload{
		"name":    "job",
		"count":   3,
		"big":     int64(7),
		"decoded": float64(9),
		"wait":    2.5,
	}

	assert.Equal(t, "job", p.stringValue("name", "fallback"))
	assert.Equal(t, "fallback", p.stringValue("missing", "fallback"))
	assert.Equal(t, "fallback", p.stringValue("count", "fallback"))

	assert.Equal(t, 3, p.intValue("count", -1))
	assert.Equal(t, 7, p.intValue("big", -1))
	assert.Equal(t, 9, p.intValue("decoded", -1))
	assert.Equal(t, -1, p.intValue("missing", -1))

	assert.Equal(t, 2500*time.Millisecond, p.durationSeconds("wait", time.Second))
	assert.Equal(t, 3*time.Second, p.durationSeconds("count", time.Second))
	assert.Equal(t, time.Second, p.durationSeconds("missing", time.Second))
}
