package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id> <artifact-id>",
		Short: "Print one artifact envelope with its payload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openRunStore(args[0])
			if err != nil {
				return err
			}
			env, err := st.ReadArtifact(args[1])
			if err != nil {
				return err
			}
			if env == nil {
				return fmt.Errorf("artifact %s not found in run %s", args[1], args[0])
			}
			return writeJSON(cmd, env)
		},
	}
}
