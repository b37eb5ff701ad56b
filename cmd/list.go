package cmd

import (
	"github.com/spf13/cobra"

	"strykr.dev/pkg/strykr/internal/domain"
)

// listCmd estimates the mutations a run would produce without executing
// any tests.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List source files and the number of applicable mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := optionsFromConfig()
			if err != nil {
				return err
			}

			return workflow.Estimate(cmd.Context(), domain.EstimateArgs{
				Path:    targetPath(args),
				Options: opts,
			})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
