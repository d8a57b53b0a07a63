package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable for a pipeline run.
func (c *Config) Validate() error {
	if err := c.validateDataset(); err != nil {
		return err
	}
	if err := c.validateTrajectory(); err != nil {
		return err
	}
	if err := c.validateAnnotator(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDataset() error {
	if strings.TrimSpace(c.Dataset.Path) == "" {
		return errors.New("dataset.path is required")
	}
	if c.Dataset.SourceRateHz <= 0 {
		return errors.New("dataset.source_rate_hz must be positive")
	}
	if c.Dataset.TargetRateHz <= 0 {
		return errors.New("dataset.target_rate_hz must be positive")
	}
	if c.Dataset.SourceRateHz%c.Dataset.TargetRateHz != 0 {
		return fmt.Errorf("dataset.target_rate_hz %d must divide evenly into source_rate_hz %d",
			c.Dataset.TargetRateHz, c.Dataset.SourceRateHz)
	}
	return nil
}

func (c *Config) validateTrajectory() error {
	if c.Trajectory.PastFrequencyHz <= 0 {
		return errors.New("trajectory.past_frequency_hz must be positive")
	}
	if c.Trajectory.FutureFrequencyHz <= 0 {
		return errors.New("trajectory.future_frequency_hz must be positive")
	}
	if c.Trajectory.ExpectedPastPoints() <= 0 {
		return errors.New("trajectory past duration and frequency must yield at least one point")
	}
	if c.Trajectory.ExpectedFuturePoints() <= 0 {
		return errors.New("trajectory future duration and frequency must yield at least one point")
	}
	return nil
}

func (c *Config) validateAnnotator() error {
	if strings.TrimSpace(c.Annotator.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/framelabel/config.toml"
		}
		return fmt.Errorf("annotator.api_key is required. Set %s or edit %s (create with 'framelabel config init')",
			APIKeyEnvVar, defaultPath)
	}
	if strings.TrimSpace(c.Annotator.Model) == "" {
		return errors.New("annotator.model must be set")
	}
	if c.Annotator.MaxRetries <= 0 {
		return errors.New("annotator.max_retries must be positive")
	}
	if c.Annotator.RetryDelaySeconds < 0 {
		return errors.New("annotator.retry_delay_seconds must not be negative")
	}
	if c.Annotator.TimeoutSeconds <= 0 {
		return errors.New("annotator.timeout_seconds must be positive")
	}
	switch c.Annotator.ImageMode {
	case "separate", "concatenated":
	default:
		return fmt.Errorf("annotator.image_mode must be 'separate' or 'concatenated', got %q", c.Annotator.ImageMode)
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.CheckpointInterval <= 0 {
		return errors.New("processing.checkpoint_interval must be positive")
	}
	if c.Processing.MaxFrames < 0 {
		return errors.New("processing.max_frames must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json', got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
