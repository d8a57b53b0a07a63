// Package pipeline drives the end-to-end annotation run: shard resolution,
// deterministic sampling, extraction, annotation calls, result persistence,
// and periodic checkpointing.
//
// The coordinator is strictly sequential and single-writer. An output
// directory belongs to at most one run at a time, enforced with a file lock.
// Interruption is graceful: the in-flight frame finishes, then a final
// checkpoint and summary are written so no completed work is ever lost.
package pipeline
