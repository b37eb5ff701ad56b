package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// initCmd writes the default configuration file next to the project.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default strykr.yaml config file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		targetPath := filepath.Join(configFolderPath, configFileName)

		err := viper.SafeWriteConfigAs(targetPath)
		if err != nil {
			return err
		}

		cmd.Printf("wrote %s\n", targetPath)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
