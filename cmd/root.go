// Package cmd provides the root command and CLI setup for strykr.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"strykr.dev/pkg/strykr/internal/adapter"
	"strykr.dev/pkg/strykr/internal/controller"
	"strykr.dev/pkg/strykr/internal/domain"
	m "strykr.dev/pkg/strykr/internal/model"
)

var (
	frontend    adapter.LanguageFrontend
	compiler    adapter.Compiler
	platform    adapter.TestPlatform
	fsAdapter   adapter.SourceFSAdapter
	reportStore adapter.ReportStore
	ui          controller.UI
	workflow    domain.Workflow
)

// reportsOutputDirFlag is a root-level flag shared by commands that read and
// write reports.
var reportsOutputDirFlag string

// excludePatterns filters files for applicable commands.
var excludePatterns []string

// noTUIFlag forces the plain text UI even on a terminal.
var noTUIFlag bool

// exitCode is set by commands that map scores to exit verdicts.
var exitCode int

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	frontend = adapter.NewGoPackagesFrontend()
	compiler = adapter.NewGoBuildCompiler()
	platform = adapter.NewGoTestPlatform()
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	reportStore = adapter.NewReportStore()
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout) && !noTUIFlag)
	workflow = domain.NewWorkflow(frontend, compiler, platform, fsAdapter, reportStore, ui)
}

const rootLongDescription = `Strykr is a mutation testing tool for Go. It compiles all candidate
mutations into a single instrumented binary, selects each mutant at runtime
through a process-wide id, and runs only the tests whose coverage
fingerprint overlaps the mutant under test.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strykr",
		Short: "Coverage-guided mutation testing for Go",
		Long:  rootLongDescription,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Flags are only parsed by now; rebuild the UI-dependent wiring.
			ui = controller.NewUI(cmd, controller.IsTTY(os.Stdout) && !noTUIFlag)
			workflow = domain.NewWorkflow(frontend, compiler, platform, fsAdapter, reportStore, ui)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for mutation testing reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVar(&noTUIFlag, noTUIFlagName, false, "disable the interactive progress display")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values
// feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	configureLogger("", viper.GetBool(logVerboseKey))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}

	os.Exit(exitCode)
}

// optionsFromConfig snapshots the viper state into engine options.
func optionsFromConfig() (domain.Options, error) {
	level, err := m.ParseMutationLevel(viper.GetString(levelConfigKey))
	if err != nil {
		return domain.Options{}, err
	}

	var types []m.MutationType

	for _, t := range viper.GetStringSlice(typesConfigKey) {
		types = append(types, m.MutationType(t))
	}

	return domain.Options{
		Level:             level,
		Types:             types,
		Concurrency:       viper.GetInt(parallelConfigKey),
		TimeoutFloor:      time.Duration(viper.GetInt64(timeoutFloorConfigKey)) * time.Millisecond,
		TimeoutMultiplier: viper.GetFloat64(timeoutMultConfigKey),
		BreakAt:           viper.GetFloat64(breakAtConfigKey),
		ExcludePatterns:   viper.GetStringSlice(excludeConfigKey),
		HelperNamespace:   viper.GetString(namespaceConfigKey),
		CountUncovered:    viper.GetBool(countUncoveredConfigKey),
	}, nil
}

func targetPath(args []string) m.Path {
	if len(args) > 0 {
		return m.Path(args[0])
	}

	return m.Path(".")
}
