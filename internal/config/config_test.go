package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framelabel/internal/config"
)

func validConfig() config.Config {
	cfg := config.Default()
	cfg.Dataset.Path = "/data/shards/training.tfrecord*"
	cfg.Annotator.APIKey = "test-key"
	return cfg
}

func TestDefaultsValidateWithRequiredFields(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got := cfg.Trajectory.ExpectedPastPoints(); got != 16 {
		t.Fatalf("ExpectedPastPoints = %d, want 16", got)
	}
	if got := cfg.Trajectory.ExpectedFuturePoints(); got != 20 {
		t.Fatalf("ExpectedFuturePoints = %d, want 20", got)
	}
}

func TestValidateRequiresDatasetPath(t *testing.T) {
	cfg := validConfig()
	cfg.Dataset.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing dataset path")
	}
}

func TestValidateRejectsNonDivisibleRates(t *testing.T) {
	cfg := validConfig()
	cfg.Dataset.SourceRateHz = 10
	cfg.Dataset.TargetRateHz = 3
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when target rate does not divide source rate")
	}
	if !strings.Contains(err.Error(), "divide evenly") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsUnknownImageMode(t *testing.T) {
	cfg := validConfig()
	cfg.Annotator.ImageMode = "stacked"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown image mode")
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Annotator.APIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
	if !strings.Contains(err.Error(), config.APIKeyEnvVar) {
		t.Fatalf("error should mention env override: %v", err)
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[dataset]
path = "/data/logs/*.tfrecord"
source_rate_hz = 10
target_rate_hz = 2

[output]
dir = "` + dir + `/out"

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing resolved path, got %q exists=%v", resolved, exists)
	}
	if cfg.Dataset.TargetRateHz != 2 {
		t.Fatalf("TargetRateHz = %d, want 2", cfg.Dataset.TargetRateHz)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level not normalized: %q", cfg.Logging.Level)
	}
	if cfg.Output.ResultsSubdir != "results" {
		t.Fatalf("missing default results subdir: %q", cfg.Output.ResultsSubdir)
	}
	if cfg.CheckpointPath() != filepath.Join(cfg.Output.Dir, "checkpoint.json") {
		t.Fatalf("unexpected checkpoint path %q", cfg.CheckpointPath())
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for absent file")
	}
	if cfg.Dataset.SourceRateHz != 10 {
		t.Fatalf("expected defaults, got %+v", cfg.Dataset)
	}
}

func TestAPIKeyEnvOverride(t *testing.T) {
	t.Setenv(config.APIKeyEnvVar, "from-env")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Annotator.APIKey != "from-env" {
		t.Fatalf("APIKey = %q, want env override", cfg.Annotator.APIKey)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}
