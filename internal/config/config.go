package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Dataset describes the sharded sensor-log input.
type Dataset struct {
	// Path is a glob pattern matching shard files.
	Path         string `toml:"path"`
	SourceRateHz int    `toml:"source_rate_hz"`
	TargetRateHz int    `toml:"target_rate_hz"`
}

// Trajectory describes the expected per-frame trajectory shape.
type Trajectory struct {
	PastDurationSeconds   int `toml:"past_duration_seconds"`
	PastFrequencyHz       int `toml:"past_frequency_hz"`
	FutureDurationSeconds int `toml:"future_duration_seconds"`
	FutureFrequencyHz     int `toml:"future_frequency_hz"`
}

// ExpectedPastPoints returns the required past-trajectory length.
func (t Trajectory) ExpectedPastPoints() int {
	return t.PastDurationSeconds * t.PastFrequencyHz
}

// ExpectedFuturePoints returns the required future-trajectory length.
func (t Trajectory) ExpectedFuturePoints() int {
	return t.FutureDurationSeconds * t.FutureFrequencyHz
}

// Annotator contains connection settings for the annotation service.
type Annotator struct {
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	APIKey            string  `toml:"api_key"`
	SystemPrompt      string  `toml:"system_prompt"`
	PromptTemplate    string  `toml:"prompt_template"`
	MaxRetries        int     `toml:"max_retries"`
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	ImageMode         string  `toml:"image_mode"`
}

// Processing contains pipeline pacing settings.
type Processing struct {
	CheckpointInterval int `toml:"checkpoint_interval"`
	MaxFrames          int `toml:"max_frames"`
	// MaxWorkers is reserved for future parallelism; the pipeline runs a
	// single sequential worker regardless of its value.
	MaxWorkers int `toml:"max_workers"`
}

// Output contains result, checkpoint, and ledger locations.
type Output struct {
	Dir            string `toml:"dir"`
	ResultsSubdir  string `toml:"results_subdir"`
	CheckpointFile string `toml:"checkpoint_file"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for framelabel.
//
// Sections by subsystem:
//   - Dataset: shard pattern and sampling rates
//   - Trajectory: expected past/future trajectory shapes
//   - Annotator: annotation service connection, retries, prompts
//   - Processing: checkpoint cadence and frame limits
//   - Output: results directory, checkpoint file
//   - Logging: log level and format
type Config struct {
	Dataset    Dataset    `toml:"dataset"`
	Trajectory Trajectory `toml:"trajectory"`
	Annotator  Annotator  `toml:"annotator"`
	Processing Processing `toml:"processing"`
	Output     Output     `toml:"output"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/framelabel/config.toml")
}

// Load locates, parses, and normalizes a configuration file. The returned
// config has path fields expanded; Validate is a separate step so commands
// that never start the pipeline can work with partial configs.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// resolveConfigPath picks the explicit path when given, otherwise the default
// location. The boolean reports whether the file exists.
func resolveConfigPath(path string) (string, bool, error) {
	candidate := strings.TrimSpace(path)
	if candidate == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		candidate = defaultPath
	}

	expanded, err := expandPath(candidate)
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// ResultsDir returns the directory result records are written to.
func (c *Config) ResultsDir() string {
	return filepath.Join(c.Output.Dir, c.Output.ResultsSubdir)
}

// CheckpointPath returns the canonical checkpoint file path.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Output.Dir, c.Output.CheckpointFile)
}

// EnsureDirectories creates the output directory tree.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Output.Dir, c.ResultsDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
