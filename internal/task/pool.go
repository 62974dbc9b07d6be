package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// PoolConfig holds worker pool supervision and lifecycle settings.
type PoolConfig struct {
	// SupervisionInterval is how often the pool checks worker liveness and
	// sweeps for stuck tasks.
	SupervisionInterval time.Duration

	// StuckTaskAge is how long a task may stay Running before the sweep
	// treats it as stuck and requeues it. It should comfortably exceed the
	// worker task timeout.
	StuckTaskAge time.Duration

	// ShutdownTimeout bounds how long Stop waits for workers to terminate
	// before reporting a leak.
	ShutdownTimeout time.Duration
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		SupervisionInterval: time.Second,
		StuckTaskAge:        time.Minute,
		ShutdownTimeout:     5 * time.Second,
	}
}

// workerHandle pairs a worker with its lifecycle controls. done is closed
// when the worker's goroutine returns, which is how supervision tells a
// drained worker from a crashed one: intentionally removed workers leave
// the handle table before they are cancelled.
type workerHandle struct {
	worker *Worker
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *workerHandle) alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// WorkerPool owns a resizable set of workers bound to one JobQueue and
// supervises their liveness: a worker whose goroutine terminates
// unexpectedly is replaced under the same identity, and tasks stranded in
// Running state are swept back to Pending. Supervision runs on its own
// dedicated goroutine with a ticker, so it never blocks anything else.
type WorkerPool struct {
	queue     *JobQueue
	registry  *Registry
	cfg       PoolConfig
	workerCfg WorkerConfig
	logger    *slog.Logger

	mu      sync.Mutex
	handles map[string]*workerHandle
	// draining holds workers removed by Resize that are still finishing an
	// in-flight task. They count as live owners for the stuck sweep but are
	// no longer replaceable pool capacity.
	draining map[string]*workerHandle
	nextID   int
	running  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorkerPool creates a stopped pool bound to the given queue and registry.
func NewWorkerPool(queue *JobQueue, registry *Registry, cfg PoolConfig, workerCfg WorkerConfig, logger *slog.Logger) *WorkerPool {
	def := DefaultPoolConfig()
	if cfg.SupervisionInterval <= 0 {
		cfg.SupervisionInterval = def.SupervisionInterval
	}
	if cfg.StuckTaskAge <= 0 {
		cfg.StuckTaskAge = def.StuckTaskAge
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	return &WorkerPool{
		queue:     queue,
		registry:  registry,
		cfg:       cfg,
		workerCfg: workerCfg,
		logger:    logger.With("component", "workerpool"),
		handles:   make(map[string]*workerHandle),
		draining:  make(map[string]*workerHandle),
	}
}

// Start spawns n workers and begins the supervision loop.
func (p *WorkerPool) Start(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerCount, n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPoolAlreadyRunning
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.running = true

	for i := 0; i < n; i++ {
		p.spawnLocked(p.newWorkerIDLocked())
	}

	p.wg.Add(1)
	go p.supervise()

	p.logger.Info("worker pool started", "workers", n)
	return nil
}

// newWorkerIDLocked issues the next worker identity. Caller holds p.mu.
func (p *WorkerPool) newWorkerIDLocked() string {
	id := fmt.Sprintf("worker-%d", p.nextID)
	p.nextID++
	return id
}

// spawnLocked creates a worker under the given identity and starts its
// goroutine. Caller holds p.mu.
func (p *WorkerPool) spawnLocked(id string) {
	w := NewWorker(id, p.queue, p.registry, p.workerCfg, p.logger)
	wctx, wcancel := context.WithCancel(p.ctx)
	h := &workerHandle{
		worker: w,
		cancel: wcancel,
		done:   make(chan struct{}),
	}
	p.handles[id] = h

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(h.done)
		w.Run(wctx)
	}()
}

// supervise periodically replaces dead workers and requeues stuck tasks.
func (p *WorkerPool) supervise() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.SupervisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.superviseTick()
		}
	}
}

// superviseTick performs one supervision pass.
func (p *WorkerPool) superviseTick() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}

	// Snapshot liveness before spawning replacements: a crashed worker's
	// replacement reuses its identity, and the sweep must still see that
	// identity as gone so the orphaned task is requeued this tick, not
	// after the age threshold.
	liveOwners := make(map[string]bool, len(p.handles)+len(p.draining))
	for id, h := range p.handles {
		liveOwners[id] = h.alive()
	}
	for id, h := range p.draining {
		if h.alive() {
			// Still finishing its task: its claim is not orphaned.
			liveOwners[id] = true
		} else {
			delete(p.draining, id)
		}
	}

	for id, h := range p.handles {
		if h.alive() {
			continue
		}

		// The handle is still in the table, so this termination was not a
		// deliberate removal: replace the worker under the same identity.
		p.logger.Error("worker terminated unexpectedly, replacing", "worker_id", id)
		p.spawnLocked(id)
	}
	p.mu.Unlock()

	requeued := p.queue.RequeueStuck(p.cfg.StuckTaskAge, func(owner string) bool {
		return liveOwners[owner]
	})
	if requeued > 0 {
		p.logger.Warn("requeued stuck tasks", "count", requeued)
	}
}

// Stop signals every worker and the supervisor to terminate, then waits up
// to ShutdownTimeout for all their goroutines to finish. Workers drain
// their current task by default (see WorkerConfig.CancelOnStop). Any
// goroutine still alive past the bound is reported as a leak.
func (p *WorkerPool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	total := len(p.handles) + len(p.draining)
	p.mu.Unlock()

	p.logger.Info("stopping worker pool", "workers", total)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownTimeout):
		p.mu.Lock()
		leaked := 0
		for _, h := range p.handles {
			if h.alive() {
				leaked++
			}
		}
		for _, h := range p.draining {
			if h.alive() {
				leaked++
			}
		}
		p.mu.Unlock()
		return fmt.Errorf("%w: %d of %d still running after %s",
			ErrWorkerLeak, leaked, total, p.cfg.ShutdownTimeout)
	}

	p.mu.Lock()
	p.handles = make(map[string]*workerHandle)
	p.draining = make(map[string]*workerHandle)
	p.mu.Unlock()

	p.logger.Info("worker pool stopped")
	return nil
}

// Resize grows the pool by spawning workers or shrinks it by signalling
// individual workers to drain and removing them. In-flight tasks are never
// discarded: a shrinking worker finishes its current task before exiting.
func (p *WorkerPool) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerCount, n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPoolNotRunning
	}

	current := len(p.handles)
	switch {
	case n > current:
		for i := current; i < n; i++ {
			p.spawnLocked(p.newWorkerIDLocked())
		}

	case n < current:
		ids := p.sortedIDsLocked()
		for _, id := range ids[n:] {
			h := p.handles[id]
			// Move the handle to the draining set first so supervision
			// neither resurrects the worker nor mistakes its in-flight
			// task for an orphan while the drain finishes.
			delete(p.handles, id)
			p.draining[id] = h
			h.cancel()
		}
	}

	p.logger.Info("worker pool resized", "from", current, "to", n)
	return nil
}

// sortedIDsLocked returns worker ids in stable order. Caller holds p.mu.
func (p *WorkerPool) sortedIDsLocked() []string {
	ids := make([]string, 0, len(p.handles))
	for id := range p.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WorkerCount returns the number of workers currently owned by the pool.
func (p *WorkerPool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// Status returns a per-worker snapshot in stable id order.
func (p *WorkerPool) Status() []WorkerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]WorkerStatus, 0, len(p.handles))
	for _, id := range p.sortedIDsLocked() {
		h := p.handles[id]
		w := h.worker

		s := WorkerStatus{
			ID:          id,
			Alive:       h.alive(),
			Completed:   w.CompletedCount(),
			Failed:      w.FailedCount(),
			HistorySize: w.HistoryLen(),
		}
		if taskID, busy := w.CurrentTaskID(); busy {
			s.CurrentTaskID = taskID.String()
		}
		statuses = append(statuses, s)
	}
	return statuses
}
