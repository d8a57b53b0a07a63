// Package frame decodes raw shard records into structured frames and
// enforces the structural completeness the annotation step depends on.
//
// Validation here is a hard boundary: a frame with a missing field or a
// trajectory of the wrong length is rejected whole, never partially used.
package frame
