package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"framelabel/internal/report"
	"framelabel/internal/results"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate persisted results into behaviour distributions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := results.NewStore(cfg.ResultsDir(), cfg.CheckpointPath(), nil)
			if err != nil {
				return err
			}
			agg, err := report.Aggregate(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Results: %d\n", agg.TotalResults)
			if summary, err := store.LoadSummary(); err == nil {
				fmt.Fprintf(out, "Last run: %s (processed %d, failed %d, success %.1f%%)\n",
					summary.CompletedAt, summary.Processed, summary.Failed, summary.SuccessRate*100)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, renderTable([]string{"SPEED", "COUNT"},
				countRows(agg.SpeedCounts), []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintln(out, renderTable([]string{"COMMAND", "COUNT"},
				countRows(agg.CommandCounts), []columnAlignment{alignLeft, alignRight}))

			var objectRows [][]string
			for _, class := range report.Classes() {
				objectRows = append(objectRows, []string{class, strconv.Itoa(agg.ObjectCounts[class])})
			}
			fmt.Fprintln(out, renderTable([]string{"CRITICAL OBJECT", "PRESENT"},
				objectRows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
	return cmd
}

// countRows renders a count map as sorted table rows, highest count first.
func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	return rows
}
