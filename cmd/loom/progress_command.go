package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/artifact"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "progress <run-id>",
		Short: "Show the progress history of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openRunStore(args[0])
			if err != nil {
				return err
			}

			var payloads []map[string]any
			for _, id := range st.ListIDsByType(artifact.KindProgress) {
				env, err := st.ReadArtifact(id)
				if err != nil {
					return err
				}
				if env == nil {
					continue
				}
				if payload, ok := env.Payload.(map[string]any); ok {
					payloads = append(payloads, payload)
				}
			}

			if jsonOutput {
				return writeJSON(cmd, payloads)
			}

			out := cmd.OutOrStdout()
			if len(payloads) == 0 {
				fmt.Fprintln(out, "No progress events recorded")
				return nil
			}

			fmt.Fprintln(out, heading(out, fmt.Sprintf("Progress for %s", args[0])))
			rows := make([][]string, 0, len(payloads))
			for _, payload := range payloads {
				rows = append(rows, []string{
					stringField(payload, "timestamp"),
					stringField(payload, "stage"),
					stringField(payload, "status"),
					percentField(payload),
					stringField(payload, "message"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TIMESTAMP", "STAGE", "STATUS", "PERCENT", "MESSAGE"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return value
}

func percentField(payload map[string]any) string {
	value, ok := payload["percent"].(float64)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.0f%%", value)
}
