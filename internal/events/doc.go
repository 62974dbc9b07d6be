// Package events defines task lifecycle events and an in-memory emitter
// for distributing them to observers (logging, metrics, test probes)
// without coupling the task subsystem to any particular consumer.
package events
