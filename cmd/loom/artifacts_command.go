package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type artifactSummary struct {
	ArtifactID  string `json:"artifact_id"`
	Type        string `json:"type"`
	Producer    string `json:"producer"`
	Fingerprint string `json:"fingerprint"`
}

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "artifacts <run-id>",
		Short: "List artifacts in a run directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openRunStore(args[0])
			if err != nil {
				return err
			}

			var summaries []artifactSummary
			for _, artifactType := range st.Types() {
				for _, id := range st.ListIDsByType(artifactType) {
					env, err := st.ReadArtifact(id)
					if err != nil {
						return err
					}
					if env == nil {
						continue
					}
					summaries = append(summaries, artifactSummary{
						ArtifactID:  env.ArtifactID,
						Type:        env.Type,
						Producer:    env.Producer.Name,
						Fingerprint: env.Fingerprint,
					})
				}
			}

			if jsonOutput {
				return writeJSON(cmd, summaries)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No artifacts recorded")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{s.Type, s.ArtifactID, s.Producer, shorten(s.Fingerprint, 12)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"TYPE", "ARTIFACT ID", "PRODUCER", "FINGERPRINT"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func shorten(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
