package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/assist"
	"github.com/wfkit/wf/internal/config"
	"github.com/wfkit/wf/internal/engine"
	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/expr"
	"github.com/wfkit/wf/internal/history"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/model"
	"github.com/wfkit/wf/internal/security"
	"github.com/wfkit/wf/internal/store"
	"github.com/wfkit/wf/internal/ui"
)

var askYes bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant about your command library",
	Long: `Ask a natural-language question about your stored commands and
workflows. The assistant knows your library and can suggest running an
existing entry or creating a new one; suggestions always confirm before
anything runs or is stored.

Needs an Anthropic API key in the config or ANTHROPIC_API_KEY.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		assistant, err := assist.New(assist.Options{
			APIKey:      cfg.Assist.APIKey,
			Model:       cfg.Assist.Model,
			MaxTokens:   cfg.Assist.MaxTokens,
			Temperature: cfg.Assist.Temperature,
			HTTPClient:  &http.Client{Timeout: cfg.Assist.Timeout},
			Logger:      logger.Default(),
		})
		if err != nil {
			return err
		}

		commands, err := s.ListCommands()
		if err != nil {
			return err
		}
		workflows, err := s.ListWorkflows()
		if err != nil {
			return err
		}

		spinner := ui.NewSpinner("Thinking")
		spinner.Start()
		text, action, err := assistant.Ask(context.Background(), question, commands, workflows)
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success()

		fmt.Println(text)
		if action.Kind == assist.ActionNone {
			return nil
		}
		return applyAction(cfg, s, action)
	},
}

func init() {
	askCmd.Flags().BoolVarP(&askYes, "yes", "y", false, "Apply the suggested action without confirming")

	rootCmd.AddCommand(askCmd)
}

// applyAction confirms and executes what the assistant suggested.
func applyAction(cfg *config.Config, s *store.Store, action assist.Action) error {
	switch action.Kind {
	case assist.ActionRunCommand:
		stored, err := s.GetCommand(action.Name)
		if err != nil {
			return errors.New(errors.ErrAssist,
				fmt.Sprintf("The assistant suggested '%s', which isn't in the store", action.Name),
				"Run 'wf list' to see what's stored")
		}
		if !confirmAction(fmt.Sprintf("Run command '%s'?", action.Name), stored.Command) {
			return nil
		}
		return runStoredCommand(cfg, s, stored)

	case assist.ActionRunWorkflow:
		wf, ok := s.FindWorkflow(action.Name)
		if !ok {
			return errors.New(errors.ErrAssist,
				fmt.Sprintf("The assistant suggested '%s', which isn't in the store", action.Name),
				"Run 'wf list' to see what's stored")
		}
		if !confirmAction(fmt.Sprintf("Run workflow '%s'?", action.Name),
			fmt.Sprintf("%d steps", len(wf.Steps))) {
			return nil
		}
		return runAssistWorkflow(cfg, s, wf)

	case assist.ActionCreateCommand:
		// Suggested text is untrusted: strip control characters and
		// escape lone metachars before it reaches the store.
		command, err := security.SanitizeCommand(action.Command)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrSecurity,
				"The suggested command failed the safety check", "")
		}
		if !confirmAction(fmt.Sprintf("Store command '%s'?", action.Name), command) {
			return nil
		}
		stored := model.NewCommand(action.Name, command, action.Description)
		if err := s.AddCommand(stored); err != nil {
			return err
		}
		fmt.Printf("%s Added command '%s'\n", ui.Success(ui.SymbolSuccess), action.Name)
		return nil

	case assist.ActionCreateWorkflow:
		wf := model.NewWorkflow(action.Name, action.Description, action.Steps)
		if err := wf.Validate(); err != nil {
			return errors.WrapWithCode(err, errors.ErrAssist,
				"The suggested workflow is malformed", "")
		}
		if !confirmAction(fmt.Sprintf("Store workflow '%s'?", action.Name),
			fmt.Sprintf("%d steps", len(wf.Steps))) {
			return nil
		}
		if err := s.AddWorkflow(wf); err != nil {
			return err
		}
		fmt.Printf("%s Added workflow '%s'\n", ui.Success(ui.SymbolSuccess), action.Name)
		return nil
	}
	return nil
}

func confirmAction(title, description string) bool {
	if askYes {
		return true
	}
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	if !confirm {
		fmt.Println("Skipped.")
	}
	return confirm
}

func runStoredCommand(cfg *config.Config, s *store.Store, stored *model.Command) error {
	check := security.NewChecker(cfg.ApprovalPatterns...).CheckCommand(stored.Command)
	if check.RequiresApproval || !check.Safe {
		ok, err := confirmRun(stored.Command, check.Issues, askYes)
		if err != nil || !ok {
			return err
		}
	}

	started := time.Now()
	exitCode, err := execLocal(cfg, stored.Command)
	if err != nil {
		return err
	}
	if err := s.MarkCommandUsed(stored.Name); err != nil {
		return err
	}
	if log, err := history.Open(cfg.StoreDir); err == nil {
		_ = log.Record(history.KindCommand, stored.Name, started.UTC(),
			time.Since(started), exitCode, "")
	}
	if exitCode != 0 {
		return errors.NewExitError(exitCode)
	}
	return nil
}

func runAssistWorkflow(cfg *config.Config, s *store.Store, wf *model.Workflow) error {
	display := ui.NewPhaseDisplay(os.Stdout)
	eng := engine.New(engine.Options{
		Evaluator:         expr.New(),
		Spawner:           engine.NewShellSpawner(cfg.Shell),
		Checker:           security.NewChecker(cfg.ApprovalPatterns...),
		Approver:          stepApprover(askYes),
		Observer:          &runRenderer{display: display},
		Logger:            logger.Default(),
		MaxLoopIterations: cfg.MaxLoopIterations,
	})

	started := time.Now()
	result, err := eng.Run(wf, engine.RunOptions{})
	if err != nil {
		return err
	}
	if err := s.MarkWorkflowUsed(wf.Name); err != nil {
		return err
	}
	if log, err := history.Open(cfg.StoreDir); err == nil {
		_ = log.Record(history.KindWorkflow, wf.Name, started.UTC(),
			result.Duration, result.ExitCode, result.FailedStep)
	}
	printRunSummary(cfg, result)
	if result.ExitCode != 0 {
		return errors.NewExitError(result.ExitCode)
	}
	return nil
}
