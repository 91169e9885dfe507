package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/config"
	"github.com/wfkit/wf/internal/engine"
	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/history"
	"github.com/wfkit/wf/internal/security"
	"github.com/wfkit/wf/internal/store"
	"github.com/wfkit/wf/internal/ui"
	"github.com/wfkit/wf/internal/vars"
)

var (
	runVars   []string
	runHost   string
	runRemote bool
	runYes    bool
)

var runCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a stored command",
	Long: `Run a stored command locally, or on a configured host.

Variables in the command text are filled from --var flags; anything
still missing is prompted for. Commands matching an approval pattern
ask for confirmation first (--yes pre-approves).

With no name and a terminal attached, an interactive picker opens.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		name, err := pickCommandName(s, args)
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}

		stored, err := s.GetCommand(name)
		if err != nil {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("No command named '%s'", name),
				"Run 'wf list --commands' to see stored commands")
		}

		context, err := parseVarFlags(runVars)
		if err != nil {
			return err
		}
		if err := promptCommandVars(stored.Command, context); err != nil {
			return err
		}
		command := vars.Resolve(stored.Command, context)

		check := security.NewChecker(cfg.ApprovalPatterns...).CheckCommand(command)
		if check.RequiresApproval || !check.Safe {
			ok, err := confirmRun(command, check.Issues, runYes)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		started := time.Now()
		var exitCode int
		if runHost != "" || runRemote {
			exitCode, err = execOnHost(cfg, runHost, command)
		} else {
			exitCode, err = execLocal(cfg, command)
		}
		if err != nil {
			return err
		}
		elapsed := time.Since(started)

		if err := s.MarkCommandUsed(name); err != nil {
			return err
		}
		if log, err := history.Open(cfg.StoreDir); err == nil {
			_ = log.Record(history.KindCommand, name, started.UTC(), elapsed, exitCode, "")
		}

		if exitCode != 0 {
			fmt.Printf("%s %s exited with code %d\n", ui.Error(ui.SymbolFail), name, exitCode)
			return errors.NewExitError(exitCode)
		}
		if cfg.Output.Timing && cfg.Output.Verbosity != "quiet" {
			fmt.Printf("%s %s (%s)\n", ui.Success(ui.SymbolSuccess), name, formatElapsed(elapsed))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Variable value as name=value (repeatable)")
	runCmd.Flags().StringVar(&runHost, "host", "", "Run on a host from the config instead of locally")
	runCmd.Flags().BoolVar(&runRemote, "remote", false, "Run on the configured default host")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "Pre-approve commands that would prompt")

	rootCmd.AddCommand(runCmd)
}

// execLocal runs the command through the configured shell, streaming
// captured output once the command finishes.
func execLocal(cfg *config.Config, command string) (int, error) {
	spawn := engine.NewShellSpawner(cfg.Shell)
	if cfg.Output.Verbosity == "verbose" {
		fmt.Printf("%s %s\n", ui.Muted("$"), command)
	}
	stdout, stderr, exitCode, err := spawn(command)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't start the command",
			"Check the 'shell' setting in your config")
	}
	if stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
		if !strings.HasSuffix(stdout, "\n") {
			fmt.Fprintln(os.Stdout)
		}
	}
	if stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
		if !strings.HasSuffix(stderr, "\n") {
			fmt.Fprintln(os.Stderr)
		}
	}
	return exitCode, nil
}

// pickCommandName resolves the command to run: the explicit argument,
// or an interactive pick when the terminal allows it. An empty return
// with no error means the user cancelled.
func pickCommandName(s *store.Store, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if !ui.IsTerminal(os.Stdin) {
		return "", errors.New(errors.ErrFlow,
			"No command name given",
			"Run 'wf run <name>', or run without arguments in a terminal to pick one")
	}
	commands, err := s.ListCommands()
	if err != nil {
		return "", err
	}
	if len(commands) == 0 {
		return "", errors.New(errors.ErrStore,
			"Nothing stored yet",
			"Store a command first with 'wf add <name> <command>'")
	}
	entries := make([]ui.Entry, 0, len(commands))
	for _, c := range commands {
		entries = append(entries, ui.Entry{Name: c.Name, Detail: c.Command, Tags: c.Tags})
	}
	entry, err := ui.Pick("Run a command", entries)
	if err != nil || entry == nil {
		return "", err
	}
	return entry.Name, nil
}

// parseVarFlags turns repeated name=value flags into a context map.
func parseVarFlags(pairs []string) (map[string]string, error) {
	context := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, errors.New(errors.ErrFlow,
				fmt.Sprintf("Invalid --var '%s'", pair),
				"Use --var name=value")
		}
		if _, err := security.SanitizeVariableName(name); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSecurity,
				fmt.Sprintf("Invalid variable name '%s'", name), "")
		}
		context[name] = value
	}
	return context, nil
}

// promptCommandVars asks for any placeholder in the command text that
// has no value yet.
func promptCommandVars(command string, context map[string]string) error {
	for _, name := range vars.ExtractNames(command) {
		if _, ok := context[name]; ok {
			continue
		}
		var value string
		input := huh.NewInput().
			Title(fmt.Sprintf("Value for '%s'", name)).
			Value(&value)
		if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrFlow,
				fmt.Sprintf("No value for variable '%s'", name),
				fmt.Sprintf("Pass it with --var %s=<value>", name))
		}
		context[name] = value
	}
	return nil
}

// confirmRun shows the risk findings and asks before running. yes
// pre-approves without prompting.
func confirmRun(command string, issues []string, yes bool) (bool, error) {
	for _, issue := range issues {
		fmt.Printf("%s %s\n", ui.Warning(ui.SymbolFail), issue)
	}
	if yes {
		return true, nil
	}
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Run this command?").
				Description(command).
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, nil
	}
	return confirm, nil
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
