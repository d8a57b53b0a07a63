package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.normalizeAnnotator()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeOutput() error {
	var err error
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = defaultOutputDir
	}
	if c.Output.Dir, err = expandPath(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	if strings.TrimSpace(c.Output.ResultsSubdir) == "" {
		c.Output.ResultsSubdir = defaultResultsSubdir
	}
	if strings.TrimSpace(c.Output.CheckpointFile) == "" {
		c.Output.CheckpointFile = defaultCheckpointFile
	}
	return nil
}

func (c *Config) normalizeAnnotator() {
	c.Annotator.BaseURL = strings.TrimSpace(c.Annotator.BaseURL)
	if c.Annotator.BaseURL == "" {
		c.Annotator.BaseURL = defaultAnnotatorBaseURL
	}
	c.Annotator.Model = strings.TrimSpace(c.Annotator.Model)
	if env := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); env != "" {
		c.Annotator.APIKey = env
	}
	if strings.TrimSpace(c.Annotator.ImageMode) == "" {
		c.Annotator.ImageMode = defaultImageMode
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
