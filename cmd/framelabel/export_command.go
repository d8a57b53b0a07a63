package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"framelabel/internal/report"
	"framelabel/internal/results"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Flatten result files into a single JSONL file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := results.NewStore(cfg.ResultsDir(), cfg.CheckpointPath(), nil)
			if err != nil {
				return err
			}

			writer := cmd.OutOrStdout()
			if outPath != "-" {
				file, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer file.Close()
				writer = file
			}

			count, err := report.ExportJSONL(store, writer)
			if err != nil {
				return err
			}
			if outPath != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", count, outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "results.jsonl", "Destination file, or - for stdout")
	return cmd
}
