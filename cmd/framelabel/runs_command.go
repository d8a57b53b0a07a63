package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"framelabel/internal/ledger"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		failures string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past pipeline runs from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
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

			out := cmd.OutOrStdout()
			if failures != "" {
				items, err := runLedger.Failures(cmd.Context(), failures)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintf(out, "No failures recorded for run %s\n", failures)
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{item.FrameID, item.ErrorKind, item.Reason})
				}
				fmt.Fprintln(out, renderTable([]string{"FRAME", "KIND", "REASON"},
					rows, []columnAlignment{alignLeft, alignLeft, alignLeft}))
				return nil
			}

			runs, err := runLedger.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.State,
					run.StartedAt.Local().Format(time.RFC3339),
					runDuration(run),
					strconv.Itoa(run.Processed),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Failed),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"RUN", "STATE", "STARTED", "DURATION", "OK", "SKIP", "FAIL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 = all)")
	cmd.Flags().StringVar(&failures, "failures", "", "Show the per-frame failures for the given run id")
	return cmd
}

func runDuration(run ledger.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}
