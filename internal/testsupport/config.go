// Package testsupport provides shared helpers for package tests: seeded
// configurations and synthetic shard datasets.
package testsupport

import (
	"path/filepath"
	"testing"

	"framelabel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Dataset.Path = filepath.Join(base, "dataset", "shard-*.tfrecord")
	cfgVal.Annotator.APIKey = "test"
	cfgVal.Output.Dir = filepath.Join(base, "output")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// DatasetDir returns the directory the config's shard glob points into.
func DatasetDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Dataset.Path)
}

// WithDatasetPath overrides the shard glob pattern.
func WithDatasetPath(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dataset.Path = pattern
	}
}

// WithMaxFrames caps the number of sampled frames the pipeline handles.
func WithMaxFrames(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.MaxFrames = limit
	}
}

// WithCheckpointInterval overrides the checkpoint cadence.
func WithCheckpointInterval(interval int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.CheckpointInterval = interval
	}
}

// WithSamplingRates overrides the dataset source/target rates.
func WithSamplingRates(sourceHz, targetHz int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dataset.SourceRateHz = sourceHz
		b.cfg.Dataset.TargetRateHz = targetHz
	}
}

// WithTrajectoryShape overrides the expected trajectory point counts by
// setting durations at 1 Hz.
func WithTrajectoryShape(past, future int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Trajectory.PastDurationSeconds = past
		b.cfg.Trajectory.PastFrequencyHz = 1
		b.cfg.Trajectory.FutureDurationSeconds = future
		b.cfg.Trajectory.FutureFrequencyHz = 1
	}
}
