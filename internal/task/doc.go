// Package task implements the in-process job queue and worker pool.
// It provides a mutex-guarded task table with FIFO dispatch, a pluggable
// handler registry, timeout-enforcing workers, and a supervising pool
// that replaces dead workers and requeues stuck tasks.
package task
