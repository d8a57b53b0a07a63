// Package shardset resolves a shard path pattern into a deterministic,
// lexicographically ordered shard list and streams the records inside each
// shard.
//
// All downstream frame indices derive from this ordering, so resolution
// sorts unconditionally even though filesystem globbing is already sorted on
// most platforms.
package shardset
