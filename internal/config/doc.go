// Package config loads, normalizes, and validates framelabel configuration.
//
// Configuration lives in a TOML file (default ~/.config/framelabel/config.toml)
// and is merged with defaults; a handful of CLI flags override file values.
// Validation is strict and runs before the pipeline loop so a bad config
// never produces a partial output directory.
package config
