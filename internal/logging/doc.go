// Package logging assembles the structured slog loggers used across
// framelabel commands and pipeline components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so pipeline code tags log lines
// with frame identities, shards, and run IDs the same way everywhere. A
// no-op logger is provided for tests and wiring code that cannot fail.
package logging
