package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"framelabel/internal/annotate"
	"framelabel/internal/ledger"
	"framelabel/internal/logging"
	"framelabel/internal/pipeline"
)

const ledgerFilename = "runs.db"

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		datasetPath string
		outputDir   string
		modelName   string
		maxFrames   int
		resume      bool
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample, annotate, and persist frames from the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if v := strings.TrimSpace(datasetPath); v != "" {
				cfg.Dataset.Path = v
			}
			if v := strings.TrimSpace(outputDir); v != "" {
				cfg.Output.Dir = v
			}
			if v := strings.TrimSpace(modelName); v != "" {
				cfg.Annotator.Model = v
			}
			if cmd.Flags().Changed("max-frames") {
				cfg.Processing.MaxFrames = maxFrames
			}
			if v := strings.TrimSpace(logLevel); v != "" {
				cfg.Logging.Level = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			if err != nil {
				return err
			}

			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			runLedger, err := ledger.Open(filepath.Join(cfg.Output.Dir, ledgerFilename))
			if err != nil {
				return err
			}
			defer runLedger.Close()

			client := annotate.NewClient(annotate.Config{
				BaseURL:      cfg.Annotator.BaseURL,
				Model:        cfg.Annotator.Model,
				APIKey:       cfg.Annotator.APIKey,
				SystemPrompt: cfg.Annotator.SystemPrompt,
				MaxRetries:   cfg.Annotator.MaxRetries,
				RetryDelay:   time.Duration(cfg.Annotator.RetryDelaySeconds * float64(time.Second)),
				Timeout:      time.Duration(cfg.Annotator.TimeoutSeconds) * time.Second,
			})

			coordinator, err := pipeline.New(pipeline.Options{
				Config:    cfg,
				Logger:    logger,
				Annotator: client,
				Ledger:    runLedger,
				Resume:    resume,
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			outcome, err := coordinator.Run(runCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished in state %s\n", outcome.RunID, outcome.State)
			fmt.Fprintf(out, "  sampled:   %d\n", outcome.Stats.TotalSampled)
			fmt.Fprintf(out, "  processed: %d\n", outcome.Stats.Processed)
			fmt.Fprintf(out, "  skipped:   %d\n", outcome.Stats.Skipped)
			fmt.Fprintf(out, "  failed:    %d\n", outcome.Stats.Failed)
			fmt.Fprintf(out, "  success:   %.1f%%\n", outcome.Summary.SuccessRate*100)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset-path", "", "Glob pattern matching shard files (overrides config)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory (overrides config)")
	cmd.Flags().StringVar(&modelName, "model-name", "", "Annotation model name (overrides config)")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "Stop after this many sampled frames (0 = unlimited)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume from the checkpoint in the output directory")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	return cmd
}
