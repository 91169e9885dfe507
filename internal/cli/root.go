// Package cli wires the wf command tree: stored commands, workflows,
// conversion, sharing, git sync, the assistant, and remote runs.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/config"
	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/store"
	"github.com/wfkit/wf/internal/ui"
	"github.com/wfkit/wf/pkg/sshutil"
)

var (
	configPath  string
	debugMode   bool
	verboseMode bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "wf",
	Short: "Store and run shell commands and multi-step workflows",
	Long: `wf keeps a personal library of shell commands and workflows.

Store one-liners with 'wf add', compose multi-step workflows with
conditionals, branches, and loops under 'wf flow', convert existing
shell functions with 'wf convert', and share or sync your library
across machines.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			os.Setenv("WF_DEBUG", "1")
			logger.SetDefault(logger.NewEnvLogger("wf"))
		}
		sshutil.WarningHandler = ui.PrintWarning
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/wf/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "Show commands and their output while running")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable styled output")
}

// loadConfig resolves the active configuration: the --config flag if
// given, the global config if present, defaults otherwise. The
// --verbose and --no-color flags override the config's output block,
// and styling follows the resulting color mode.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if verboseMode {
		cfg.Output.Verbosity = "verbose"
	}
	if noColor {
		cfg.Output.Color = "never"
	}
	ui.ApplyColorMode(cfg.Output.Color)
	return cfg, nil
}

// openStore opens the store at the configured directory, creating it on
// first use.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.StoreDir, logger.Default())
}

// Execute runs the root command and converts errors into exit codes.
// Structured errors render with their suggestion; an ExitError carries
// a workflow's exit code through unchanged.
func Execute() {
	err := rootCmd.Execute()
	sshutil.CloseAgent()
	if err != nil {
		if code, ok := errors.GetExitCode(err); ok {
			os.Exit(code)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
