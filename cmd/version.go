package cmd

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the strykr version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("strykr %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
