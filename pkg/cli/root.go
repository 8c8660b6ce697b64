// Package cli wires the tapstack command tree: validate synthesized
// templates, print the deploy plan for an environment, and run post-deploy
// checks against live resources.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tapstack/tapstack/pkg/logging"
)

type CommonConfig struct {
	verbose bool
	jsonLog bool
	color   string
}

// SetupRoot installs the global flags and builds the global logger before
// any subcommand runs.
func SetupRoot(root *cobra.Command, commonCfg *CommonConfig) {
	flags := root.PersistentFlags()
	flags.BoolVarP(&commonCfg.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&commonCfg.jsonLog, "json-log", false, "Enable JSON logging")
	flags.StringVar(&commonCfg.color, "color", "auto", "Colorize log output (auto, always, never)")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logOpts := logging.Opts{
			Verbose: commonCfg.verbose,
			Color:   commonCfg.color,
		}
		if commonCfg.jsonLog {
			logOpts.Encoding = "json"
		}
		zap.ReplaceGlobals(logOpts.NewLogger())
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		zap.L().Sync() //nolint:errcheck
	}
}

var commonCfg CommonConfig

func Main() {
	root := &cobra.Command{
		Use:           "tapstack",
		Short:         "Environment-driven AWS stacks: validate, plan, check",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	SetupRoot(root, &commonCfg)

	root.AddCommand(newValidateCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newCheckCmd())

	if err := root.Execute(); err != nil {
		zap.S().Errorf("%v", err)
		os.Exit(1)
	}
}
