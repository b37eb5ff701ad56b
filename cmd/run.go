package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"strykr.dev/pkg/strykr/internal/domain"
	m "strykr.dev/pkg/strykr/internal/model"
)

var (
	runParallelFlag int
	runLevelFlag    string
	runBreakAtFlag  float64
)

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Run mutation testing",
		Long: `Run mutation testing for the module containing the given path
(default: current directory). The score is compared against the configured
break threshold to produce the exit code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := optionsFromConfig()
			if err != nil {
				return err
			}

			code, err := workflow.Test(cmd.Context(), domain.TestArgs{
				Path:       targetPath(args),
				ReportsDir: m.Path(viper.GetString(outputFlagName)),
				Options:    opts,
			})

			exitCode = code

			if err != nil {
				// Engine errors carry their own exit code; report and keep it.
				cmd.PrintErrln("error:", err)
			}

			return nil
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, parallelFlagName, "p", viper.GetInt(parallelConfigKey), "number of parallel workers for mutant dispatch")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), parallelConfigKey)

	cmd.Flags().StringVarP(&runLevelFlag, levelFlagName, "l", viper.GetString(levelConfigKey), "mutation level (basic, standard, advanced, complete)")
	bindFlagToConfig(cmd.Flags().Lookup(levelFlagName), levelConfigKey)

	cmd.Flags().Float64VarP(&runBreakAtFlag, breakAtFlagName, "b", viper.GetFloat64(breakAtConfigKey), "fail the run when the score drops below this percentage")
	bindFlagToConfig(cmd.Flags().Lookup(breakAtFlagName), breakAtConfigKey)
}
