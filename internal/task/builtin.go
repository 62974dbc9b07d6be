package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Built-in task kinds.
const (
	// KindCompute runs a small arithmetic operation over the payload value.
	KindCompute = "compute"

	// KindSleep waits for a configurable duration, standing in for slow work.
	KindSleep = "sleep"

	// KindHTTPRequest simulates an external call with a short network delay.
	KindHTTPRequest = "http_request"

	// KindFail always fails, for exercising retry and failure paths.
	KindFail = "fail"
)

// RegisterBuiltins installs the built-in handlers into a registry.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Handler{
		KindCompute:     computeHandler,
		KindSleep:       sleepHandler,
		KindHTTPRequest: httpRequestHandler,
		KindFail:        failHandler,
	}
	for kind, h := range builtins {
		if err := r.Register(kind, h); err != nil {
			return fmt.Errorf("registering builtin %q: %w", kind, err)
		}
	}
	return nil
}

// computeHandler supports "factorial" and "fibonacci" over the payload
// "value"; any other operation doubles the value.
func computeHandler(_ context.Context, p Payload) (any, error) {
	value := p.intValue("value", 0)

	switch p.stringValue("operation", "") {
	case "factorial":
		if value < 0 {
			return nil, fmt.Errorf("factorial of negative value %d", value)
		}
		result := 1
		for i := 2; i <= value; i++ {
			result *= i
		}
		return result, nil

	case "fibonacci":
		if value <= 1 {
			return value, nil
		}
		a, b := 0, 1
		for i := 2; i <= value; i++ {
			a, b = b, a+b
		}
		return b, nil

	default:
		return value * 2, nil
	}
}

// sleepHandler waits for the payload "duration_seconds" (default 1s).
// The wait is context-aware so the worker's deadline interrupts it.
func sleepHandler(ctx context.Context, p Payload) (any, error) {
	duration := p.durationSeconds("duration_seconds", time.Second)

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return fmt.Sprintf("slept for %s", duration), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// httpRequestHandler simulates an HTTP call: a short context-aware delay
// followed by a canned response.
func httpRequestHandler(ctx context.Context, p Payload) (any, error) {
	url := p.stringValue("url", "http://example.com")
	method := p.stringValue("method", "GET")

	timer := time.NewTimer(500 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]any{
		"status":   200,
		"url":      url,
		"method":   method,
		"response": "mock response data",
	}, nil
}

// failHandler fails with the payload "error_message" (default "task failed").
func failHandler(_ context.Context, p Payload) (any, error) {
	return nil, errors.New(p.stringValue("error_message", "task failed"))
}
