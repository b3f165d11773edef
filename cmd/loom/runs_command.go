package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer led.Close()

			runs, err := led.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			fmt.Fprintln(out, heading(out, fmt.Sprintf("Runs (%d)", len(runs))))
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.RunID,
					string(run.Status),
					strings.Join(run.Goals, ", "),
					strconv.Itoa(run.ArtifactCount),
					run.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"RUN ID", "STATUS", "GOALS", "ARTIFACTS", "UPDATED"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
