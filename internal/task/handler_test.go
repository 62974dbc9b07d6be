package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	called := false
	require.NoError(t, r.Register("custom", func(ctx context.Context, p Payload) (any, error) {
		called = true
		return "done", nil
	}))

	h, err := r.handler("custom")
	require.NoError(t, err)

	result, err := h(context.Background(), Payload{})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.True(t, called)
}

func TestRegistry_Validation(t *testing.T) {
	r := NewRegistry()

	err := r.Register("", func(ctx context.Context, p Payload) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrMissingKind)

	err = r.Register("custom", nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = r.handler("nope")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRegistry_ReplaceBinding(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("job", func(ctx context.Context, p Payload) (any, error) {
		return "old", nil
	}))
	require.NoError(t, r.Register("job", func(ctx context.Context, p Payload) (any, error) {
		return "new", nil
	}))

	h, err := r.handler("job")
	require.NoError(t, err)
	result, _ := h(context.Background(), Payload{})
	assert.Equal(t, "new", result)
}

func TestRegistry_Kinds(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	assert.Equal(t, []string{"compute", "fail", "http_request", "sleep"}, r.Kinds())
}

func TestComputeHandler(t *testing.T) {
	ctx := context.Background()

	result, err := computeHandler(ctx, Payload{"value": 21})
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	result, err = computeHandler(ctx, Payload{"operation": "factorial", "value": 5})
	require.NoError(t, err)
	assert.Equal(t, 120, result)

	result, err = computeHandler(ctx, Payload{"operation": "fibonacci", "value": 10})
	require.NoError(t, err)
	assert.Equal(t, 55, result)

	result, err = computeHandler(ctx, Payload{"operation": "fibonacci", "value": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result)

	_, err = computeHandler(ctx, Payload{"operation": "factorial", "value": -3})
	assert.Error(t, err)
}

func TestSleepHandler(t *testing.T) {
	start := time.Now()
	result, err := sleepHandler(context.Background(), Payload{"duration_seconds": 0.05})
	require.NoError(t, err)
	assert.Contains(t, result, "slept for")
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSleepHandler_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := sleepHandler(ctx, Payload{"duration_seconds": 10})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPRequestHandler(t *testing.T) {
	result, err := httpRequestHandler(context.Background(), Payload{
		"url":    "http://internal.test/health",
		"method": "POST",
	})
	require.NoError(t, err)

	response, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 200, response["status"])
	assert.Equal(t, "http://internal.test/health", response["url"])
	assert.Equal(t, "POST", response["method"])
}

func TestHTTPRequestHandler_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := httpRequestHandler(ctx, Payload{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailHandler(t *testing.T) {
	_, err := failHandler(context.Background(), Payload{"error_message": "synthetic outage"})
	require.Error(t, err)
	assert.Equal(t, "synthetic outage", err.Error())

	_, err = failHandler(context.Background(), Payload{})
	require.Error(t, err)
	assert.Equal(t, "task failed", err.Error())
	assert.False(t, errors.Is(err, ErrHandlerTimeout))
}
