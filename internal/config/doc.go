// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides
// type-safe access to queue, worker, and pool settings while keeping
// configuration details separate from the task subsystem itself.
package config
