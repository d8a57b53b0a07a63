package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"framelabel/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Edit the file to set annotator.api_key (or export %s) before running.\n", config.APIKeyEnvVar)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dataset.path            = %s\n", cfg.Dataset.Path)
			fmt.Fprintf(out, "dataset.source_rate_hz  = %d\n", cfg.Dataset.SourceRateHz)
			fmt.Fprintf(out, "dataset.target_rate_hz  = %d\n", cfg.Dataset.TargetRateHz)
			fmt.Fprintf(out, "trajectory.past_points  = %d\n", cfg.Trajectory.ExpectedPastPoints())
			fmt.Fprintf(out, "trajectory.future_points= %d\n", cfg.Trajectory.ExpectedFuturePoints())
			fmt.Fprintf(out, "annotator.base_url      = %s\n", cfg.Annotator.BaseURL)
			fmt.Fprintf(out, "annotator.model         = %s\n", cfg.Annotator.Model)
			fmt.Fprintf(out, "annotator.api_key       = %s\n", maskKey(cfg.Annotator.APIKey))
			fmt.Fprintf(out, "annotator.max_retries   = %d\n", cfg.Annotator.MaxRetries)
			fmt.Fprintf(out, "annotator.retry_delay_s = %.1f\n", cfg.Annotator.RetryDelaySeconds)
			fmt.Fprintf(out, "annotator.timeout_s     = %d\n", cfg.Annotator.TimeoutSeconds)
			fmt.Fprintf(out, "annotator.image_mode    = %s\n", cfg.Annotator.ImageMode)
			fmt.Fprintf(out, "processing.checkpoint   = every %d frames\n", cfg.Processing.CheckpointInterval)
			fmt.Fprintf(out, "processing.max_frames   = %d\n", cfg.Processing.MaxFrames)
			fmt.Fprintf(out, "output.dir              = %s\n", cfg.Output.Dir)
			fmt.Fprintf(out, "output.results          = %s\n", cfg.ResultsDir())
			fmt.Fprintf(out, "output.checkpoint       = %s\n", cfg.CheckpointPath())
			fmt.Fprintf(out, "logging.level           = %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "logging.format          = %s\n", cfg.Logging.Format)
			return nil
		},
	}
}

func maskKey(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
}
