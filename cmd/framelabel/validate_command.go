package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framelabel/internal/report"
	"framelabel/internal/results"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Re-validate persisted result files against the response schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := results.NewStore(cfg.ResultsDir(), cfg.CheckpointPath(), nil)
			if err != nil {
				return err
			}

			issues, total, err := report.ValidateAll(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintf(out, "All %d result files pass schema validation\n", total)
				return nil
			}

			for _, issue := range issues {
				fmt.Fprintf(out, "%s:\n", issue.FrameID)
				for _, violation := range issue.Violations {
					fmt.Fprintf(out, "  - %s\n", violation)
				}
			}
			return fmt.Errorf("%d of %d result files fail schema validation", len(issues), total)
		},
	}
	return cmd
}
