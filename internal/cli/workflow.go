package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

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
	"github.com/wfkit/wf/internal/util"
	"github.com/wfkit/wf/internal/validate"
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Manage and run multi-step workflows",
}

var (
	flowAddFile        string
	flowAddDescription string
	flowAddTags        []string
)

var flowAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a workflow from a step file",
	Long: `Add a workflow defined in a JSON or YAML file.

The file holds either a list of steps or a full workflow document
(steps plus variables and profiles):

  wf flow add release --file release.yaml --description 'Cut a release'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		wf, err := readWorkflowFile(flowAddFile, name, flowAddDescription)
		if err != nil {
			return err
		}
		wf.Tags = flowAddTags

		if err := s.AddWorkflow(wf); err != nil {
			return err
		}

		// Surface validation findings right away so a broken definition
		// doesn't wait until the first run to complain.
		report := validate.New(s).Validate(wf)
		printReportIssues(report)

		fmt.Printf("%s Added workflow '%s' (%d %s)\n", ui.Success(ui.SymbolSuccess),
			name, len(wf.Steps), util.Pluralize(len(wf.Steps), "step", "steps"))
		return nil
	},
}

var (
	flowRunProfile string
	flowRunVars    []string
	flowRunYes     bool
)

var flowRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a workflow",
	Long: `Run a workflow step by step.

The run is validated first: error-severity findings block it. Steps
flagged for approval (or matching an approval pattern) ask for
confirmation; --yes pre-approves them all.

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

		name, err := pickWorkflowName(s, args)
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}

		wf, ok := s.FindWorkflow(name)
		if !ok {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("No workflow named '%s'", name),
				"Run 'wf list --flows' to see stored workflows")
		}

		report := validate.New(s).Validate(wf)
		printReportIssues(report)
		if !report.Valid {
			n := report.Count(validate.SeverityError)
			return errors.New(errors.ErrValidate,
				fmt.Sprintf("Workflow '%s' has %d %s",
					name, n, util.Pluralize(n, "error", "errors")),
				"Fix the definition or run 'wf flow validate' for details")
		}

		context, err := parseVarFlags(flowRunVars)
		if err != nil {
			return err
		}

		display := ui.NewPhaseDisplay(os.Stdout)
		eng := engine.New(engine.Options{
			Evaluator:         expr.New(),
			Spawner:           engine.NewShellSpawner(cfg.Shell),
			Checker:           security.NewChecker(cfg.ApprovalPatterns...),
			Approver:          stepApprover(flowRunYes),
			Observer:          &runRenderer{display: display, verbose: cfg.Output.Verbosity == "verbose"},
			Logger:            logger.Default(),
			MaxLoopIterations: cfg.MaxLoopIterations,
		})

		started := time.Now()
		result, err := eng.Run(wf, engine.RunOptions{Profile: flowRunProfile, Vars: context})
		if err != nil {
			return err
		}

		if err := s.MarkWorkflowUsed(name); err != nil {
			return err
		}
		if log, err := history.Open(cfg.StoreDir); err == nil {
			_ = log.Record(history.KindWorkflow, name, started.UTC(),
				result.Duration, result.ExitCode, result.FailedStep)
		}

		display.Divider()
		printRunSummary(cfg, result)
		if result.ExitCode != 0 {
			return errors.NewExitError(result.ExitCode)
		}
		return nil
	},
}

var flowValidateCmd = &cobra.Command{
	Use:   "validate <name>",
	Short: "Validate a workflow and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		wf, s, err := loadWorkflow(name)
		if err != nil {
			return err
		}

		report := validate.New(s).Validate(wf)
		if len(report.Dependencies) > 0 {
			fmt.Printf("Calls workflows: %s\n", strings.Join(report.Dependencies, ", "))
		}
		printReportIssues(report)

		if report.Valid {
			fmt.Printf("%s Workflow '%s' is valid\n", ui.Success(ui.SymbolSuccess), name)
			return nil
		}
		n := report.Count(validate.SeverityError)
		fmt.Printf("%s Workflow '%s' is invalid (%d %s)\n", ui.Error(ui.SymbolFail), name,
			n, util.Pluralize(n, "error", "errors"))
		return errors.NewExitError(1)
	},
}

var flowCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Run the security check on a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		wf, ok := s.FindWorkflow(name)
		if !ok {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("No workflow named '%s'", name),
				"Run 'wf list --flows' to see stored workflows")
		}

		check := security.NewChecker(cfg.ApprovalPatterns...).CheckWorkflow(wf)
		for _, step := range check.Steps {
			symbol := ui.Success(ui.SymbolSuccess)
			if !step.Safe {
				symbol = ui.Error(ui.SymbolFail)
			} else if step.RequiresApproval {
				symbol = ui.Warning("!")
			}
			fmt.Printf("%s %s\n", symbol, step.StepName)
			for _, issue := range step.Issues {
				fmt.Printf("    %s\n", issue)
			}
		}

		switch {
		case !check.Safe:
			fmt.Printf("%s Workflow '%s' has risky commands\n", ui.Error(ui.SymbolFail), name)
		case check.RequiresApproval:
			fmt.Printf("%s Workflow '%s' will ask for approval when run\n", ui.Warning("!"), name)
		default:
			fmt.Printf("%s Workflow '%s' looks safe\n", ui.Success(ui.SymbolSuccess), name)
		}
		return nil
	},
}

var flowVarCmd = &cobra.Command{
	Use:   "var",
	Short: "Manage workflow variables",
}

var (
	flowVarDescription string
	flowVarDefault     string
	flowVarRequired    bool
)

var flowVarAddCmd = &cobra.Command{
	Use:   "add <flow> <name>",
	Short: "Declare a variable on a workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, varName := args[0], args[1]

		if _, err := security.SanitizeVariableName(varName); err != nil {
			return errors.WrapWithCode(err, errors.ErrSecurity,
				fmt.Sprintf("Invalid variable name '%s'", varName), "")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		err = s.AddWorkflowVariable(flow, model.Variable{
			Name:        varName,
			Description: flowVarDescription,
			Default:     flowVarDefault,
			Required:    flowVarRequired,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Declared variable '%s' on '%s'\n", ui.Success(ui.SymbolSuccess), varName, flow)
		return nil
	},
}

var flowProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage workflow profiles",
}

var (
	flowProfileVars        []string
	flowProfileDescription string
)

var flowProfileAddCmd = &cobra.Command{
	Use:   "add <flow> <name>",
	Short: "Add a profile (a named set of variable values) to a workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, profileName := args[0], args[1]

		values, err := parseVarFlags(flowProfileVars)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		err = s.AddWorkflowProfile(flow, model.Profile{
			Name:        profileName,
			Description: flowProfileDescription,
			Variables:   values,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Added profile '%s' to '%s'\n", ui.Success(ui.SymbolSuccess), profileName, flow)
		return nil
	},
}

var flowProfileListCmd = &cobra.Command{
	Use:   "list <flow>",
	Short: "List the profiles of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, _, err := loadWorkflow(args[0])
		if err != nil {
			return err
		}

		if len(wf.Profiles) == 0 {
			fmt.Printf("Workflow '%s' has no profiles.\n", wf.Name)
			return nil
		}

		names := make([]string, 0, len(wf.Profiles))
		for name := range wf.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			p := wf.Profiles[name]
			fmt.Printf("%s", ui.Bold(name))
			if p.Description != "" {
				fmt.Printf("  %s", p.Description)
			}
			fmt.Println()
			keys := make([]string, 0, len(p.Variables))
			for k := range p.Variables {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %s = %s\n", k, p.Variables[k])
			}
		}
		return nil
	},
}

func init() {
	flowAddCmd.Flags().StringVarP(&flowAddFile, "file", "f", "", "Step file (.json, .yaml, or .yml)")
	flowAddCmd.Flags().StringVarP(&flowAddDescription, "description", "d", "", "Description of the workflow")
	flowAddCmd.Flags().StringSliceVar(&flowAddTags, "tags", nil, "Comma-separated tags")
	_ = flowAddCmd.MarkFlagRequired("file")

	flowRunCmd.Flags().StringVarP(&flowRunProfile, "profile", "p", "", "Apply a named profile's variable values")
	flowRunCmd.Flags().StringArrayVar(&flowRunVars, "var", nil, "Variable value as name=value (repeatable)")
	flowRunCmd.Flags().BoolVarP(&flowRunYes, "yes", "y", false, "Pre-approve steps that would prompt")

	flowVarAddCmd.Flags().StringVarP(&flowVarDescription, "description", "d", "", "What the variable is for")
	flowVarAddCmd.Flags().StringVar(&flowVarDefault, "default", "", "Default value")
	flowVarAddCmd.Flags().BoolVar(&flowVarRequired, "required", false, "Require a value before each run")

	flowProfileAddCmd.Flags().StringArrayVar(&flowProfileVars, "var", nil, "Variable value as name=value (repeatable)")
	flowProfileAddCmd.Flags().StringVarP(&flowProfileDescription, "description", "d", "", "What the profile is for")

	flowVarCmd.AddCommand(flowVarAddCmd)
	flowProfileCmd.AddCommand(flowProfileAddCmd)
	flowProfileCmd.AddCommand(flowProfileListCmd)

	flowCmd.AddCommand(flowAddCmd)
	flowCmd.AddCommand(flowRunCmd)
	flowCmd.AddCommand(flowValidateCmd)
	flowCmd.AddCommand(flowCheckCmd)
	flowCmd.AddCommand(flowVarCmd)
	flowCmd.AddCommand(flowProfileCmd)

	rootCmd.AddCommand(flowCmd)
}

// pickWorkflowName resolves the workflow to run: the explicit
// argument, or an interactive pick when the terminal allows it. An
// empty return with no error means the user cancelled.
func pickWorkflowName(s *store.Store, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if !ui.IsTerminal(os.Stdin) {
		return "", errors.New(errors.ErrFlow,
			"No workflow name given",
			"Run 'wf flow run <name>', or run without arguments in a terminal to pick one")
	}
	workflows, err := s.ListWorkflows()
	if err != nil {
		return "", err
	}
	if len(workflows) == 0 {
		return "", errors.New(errors.ErrStore,
			"No workflows stored yet",
			"Add one with 'wf flow add' or 'wf convert'")
	}
	entries := make([]ui.Entry, 0, len(workflows))
	for _, wf := range workflows {
		entries = append(entries, ui.Entry{Name: wf.Name, Detail: wf.Description, Tags: wf.Tags})
	}
	entry, err := ui.Pick("Run a workflow", entries)
	if err != nil || entry == nil {
		return "", err
	}
	return entry.Name, nil
}

// loadWorkflow is the shared lookup used by read-only flow commands.
func loadWorkflow(name string) (*model.Workflow, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	wf, ok := s.FindWorkflow(name)
	if !ok {
		return nil, nil, errors.New(errors.ErrStore,
			fmt.Sprintf("No workflow named '%s'", name),
			"Run 'wf list --flows' to see stored workflows")
	}
	return wf, s, nil
}

// workflowFile is the accepted file shape for 'flow add': either this
// document or a bare step list.
type workflowFile struct {
	Description string                   `json:"description"`
	Steps       []model.Step             `json:"steps"`
	Variables   []model.Variable         `json:"variables"`
	Profiles    map[string]model.Profile `json:"profiles"`
}

func readWorkflowFile(path, name, description string) (*model.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrFlow,
			fmt.Sprintf("Couldn't read step file %s", path),
			"Check the path passed to --file")
	}

	jsonDoc, err := stepFileToJSON(raw, path)
	if err != nil {
		return nil, err
	}

	// A step list decodes as a JSON array, a workflow document as an
	// object. Peek at the first non-space byte to pick.
	var wf *model.Workflow
	if firstByte(jsonDoc) == '[' {
		var steps []model.Step
		if err := json.Unmarshal(jsonDoc, &steps); err != nil {
			return nil, wrapStepFileError(err, path)
		}
		wf = model.NewWorkflow(name, description, steps)
	} else {
		var doc workflowFile
		if err := json.Unmarshal(jsonDoc, &doc); err != nil {
			return nil, wrapStepFileError(err, path)
		}
		if description == "" {
			description = doc.Description
		}
		wf = model.NewWorkflow(name, description, doc.Steps)
		wf.Variables = doc.Variables
		wf.Profiles = doc.Profiles
	}

	if err := wf.Validate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrValidate,
			fmt.Sprintf("Step file %s has an invalid step", path),
			"Each step needs a name and exactly one payload for its type")
	}
	return wf, nil
}

func stepFileToJSON(raw []byte, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return raw, nil
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, wrapStepFileError(err, path)
		}
		return json.Marshal(normalizeYAML(doc))
	default:
		return nil, errors.New(errors.ErrFlow,
			fmt.Sprintf("Unsupported step file format '%s'", filepath.Ext(path)),
			"Use a .json, .yaml, or .yml file")
	}
}

// normalizeYAML rewrites yaml.v3's map[string]interface{} values so the
// document can round-trip through encoding/json.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}

func firstByte(doc []byte) byte {
	for _, b := range doc {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

func wrapStepFileError(err error, path string) error {
	return errors.WrapWithCode(err, errors.ErrFlow,
		fmt.Sprintf("Couldn't parse step file %s", path),
		"The file must hold a step list or a workflow document")
}

// stepApprover builds the engine's approval gate: a huh confirm, or an
// auto-approve when --yes was given.
func stepApprover(yes bool) engine.Approver {
	return func(step model.Step, reasons []string) (bool, error) {
		for _, reason := range reasons {
			fmt.Printf("%s %s\n", ui.Warning("!"), reason)
		}
		if yes {
			return true, nil
		}
		var confirm bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Run step '%s'?", step.Name)).
					Description(step.Command).
					Value(&confirm),
			),
		)
		if err := form.Run(); err != nil {
			return false, nil
		}
		return confirm, nil
	}
}

// runRenderer adapts engine progress events onto the phase display.
type runRenderer struct {
	display *ui.PhaseDisplay
	verbose bool
}

func (r *runRenderer) RunStarted(workflow string, context map[string]string) {
	fmt.Printf("%s %s\n", ui.Info("▸"), ui.Bold(workflow))
	if r.verbose && len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", k, context[k])
		}
	}
	r.display.Divider()
}

func (r *runRenderer) StepStarted(name string, stepType model.StepType, command string) {
	if r.verbose && command != "" {
		r.display.CommandPrompt(command)
	}
	r.display.RenderProgress(name)
}

func (r *runRenderer) StepFinished(result engine.StepResult) {
	if result.Failed() {
		err := result.Err
		if err == nil {
			err = fmt.Errorf("exit code %d", result.ExitCode)
		}
		r.display.RenderFailed(result.Name, result.Duration, err)
		if result.Stderr != "" {
			fmt.Print(result.Stderr)
			if !strings.HasSuffix(result.Stderr, "\n") {
				fmt.Println()
			}
		}
		return
	}
	r.display.RenderSuccess(result.Name, result.Duration)
	if r.verbose && result.Stdout != "" {
		fmt.Print(result.Stdout)
		if !strings.HasSuffix(result.Stdout, "\n") {
			fmt.Println()
		}
	}
}

func (r *runRenderer) LoopIteration(stepName string, iteration int) {
	r.display.RenderSubStatus(ui.SymbolProgress, stepName, fmt.Sprintf("iteration %d", iteration))
}

func (r *runRenderer) ConditionEvaluated(stepName, expression string, outcome bool) {
	if !r.verbose {
		return
	}
	status := "false"
	if outcome {
		status = "true"
	}
	r.display.RenderSubStatus(ui.SymbolPending, stepName, fmt.Sprintf("%s is %s", expression, status))
}

// printReportIssues renders validator findings with severity styling.
func printReportIssues(report *validate.Report) {
	for _, issue := range report.Issues {
		var symbol string
		switch issue.Severity {
		case validate.SeverityError:
			symbol = ui.Error(ui.SymbolFail)
		case validate.SeverityWarning:
			symbol = ui.Warning("!")
		default:
			symbol = ui.Muted("•")
		}
		where := ""
		if issue.StepName != "" {
			where = fmt.Sprintf(" [%s]", issue.StepName)
		}
		fmt.Printf("%s%s %s\n", symbol, where, issue.Message)
		if issue.Suggestion != "" {
			fmt.Printf("    %s\n", ui.Muted(issue.Suggestion))
		}
	}
}

func printRunSummary(cfg *config.Config, result *engine.RunResult) {
	passed := 0
	for i := range result.Steps {
		if !result.Steps[i].Failed() {
			passed++
		}
	}
	timing := ""
	if cfg.Output.Timing {
		timing = fmt.Sprintf(" in %s", formatElapsed(result.Duration))
	}
	if result.Failed() {
		fmt.Printf("%s %s failed at step '%s'%s (%d/%d steps passed)\n",
			ui.Error(ui.SymbolFail), result.WorkflowName, result.FailedStep,
			timing, passed, len(result.Steps))
		return
	}
	fmt.Printf("%s %s finished%s (%d %s)\n", ui.Success(ui.SymbolSuccess),
		result.WorkflowName, timing, len(result.Steps),
		util.Pluralize(len(result.Steps), "step", "steps"))
}
