package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes the logic for one task kind. It receives the task's
// payload and must honor ctx cancellation: the worker enforces the task
// deadline through ctx and abandons handlers that outlive it.
type Handler func(ctx context.Context, payload Payload) (any, error)

// Registry maps task kinds to their handlers. It is the sole extension
// point for new task kinds.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task kind, replacing any previous binding.
func (r *Registry) Register(kind string, h Handler) error {
	if kind == "" {
		return ErrMissingKind
	}
	if h == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
	return nil
}

// handler looks up the handler for a kind.
func (r *Registry) handler(kind string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return h, nil
}

// Kinds returns the registered task kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
