package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event := NewTaskEvent(TypeTaskSubmitted, uuid.New(), "compute", "")

		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewTaskEvent(TypeTaskCompleted, uuid.New(), "compute", "")
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		count1, last1 := handler1.handled()
		count2, last2 := handler2.handled()
		assert.Equal(t, 1, count1)
		assert.Equal(t, 1, count2)
		assert.Equal(t, event, last1)
		assert.Equal(t, event, last2)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{
			HandlerError: errors.New("handler error"),
		}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		event := NewTaskEvent(TypeTaskFailed, uuid.New(), "fail", "boom")
		err := emitter.EmitEvent(context.Background(), event)
		assert.Error(t, err)
		assert.Equal(t, "handler error", err.Error())

		// Delivery continues past the failing handler.
		count, _ := successHandler.handled()
		assert.Equal(t, 1, count)
		count, _ = failingHandler.handled()
		assert.Equal(t, 1, count)
	})

	t.Run("handlers registered after an emit receive later events", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		early := &MockEventHandler{}
		emitter.RegisterHandler(early)

		first := NewTaskEvent(TypeTaskSubmitted, uuid.New(), "sleep", "")
		assert.NoError(t, emitter.EmitEvent(context.Background(), first))

		late := &MockEventHandler{}
		emitter.RegisterHandler(late)

		second := NewTaskEvent(TypeTaskCompleted, uuid.New(), "sleep", "")
		assert.NoError(t, emitter.EmitEvent(context.Background(), second))

		count, _ := early.handled()
		assert.Equal(t, 2, count)
		count, last := late.handled()
		assert.Equal(t, 1, count)
		assert.Equal(t, second, last)
	})
}

func TestLoggingHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewLoggingHandler(logger)

	event := NewTaskEvent(TypeTaskFailed, uuid.New(), "fail", "boom")
	err := handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
}
