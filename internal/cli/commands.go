package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/model"
	"github.com/wfkit/wf/internal/security"
	"github.com/wfkit/wf/internal/ui"
	"github.com/wfkit/wf/internal/util"
)

var (
	addDescription string
	addTags        []string
)

var addCmd = &cobra.Command{
	Use:   "add <name> <command>",
	Short: "Store a shell command under a name",
	Long: `Store a shell command in your library.

The command text may contain {{variable}} placeholders that are
resolved (or prompted for) at run time:

  wf add deploy 'kubectl rollout restart deploy/{{service}}' --tags k8s`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, command := args[0], args[1]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		stored := model.NewCommand(name, command, addDescription)
		stored.Tags = addTags
		if err := s.AddCommand(stored); err != nil {
			return err
		}

		// Risk findings are surfaced at add time but never block
		// storage: the approval gate runs before execution.
		check := security.NewChecker(cfg.ApprovalPatterns...).CheckCommand(command)
		for _, issue := range check.Issues {
			fmt.Printf("%s %s\n", ui.Warning(ui.SymbolFail), issue)
		}
		if check.RequiresApproval {
			fmt.Printf("%s This command will ask for approval before each run\n", ui.Muted("•"))
		}

		fmt.Printf("%s Added command '%s'\n", ui.Success(ui.SymbolSuccess), name)
		return nil
	},
}

var (
	listCommandsOnly bool
	listFlowsOnly    bool
	listTag          string
	listJSON         bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored commands and workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
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

		if listTag != "" {
			commands = filterCommandsByTag(commands, listTag)
			workflows = filterWorkflowsByTag(workflows, listTag)
		}
		if listFlowsOnly {
			commands = nil
		}
		if listCommandsOnly {
			workflows = nil
		}

		if listJSON {
			return printJSON(map[string]interface{}{
				"commands":  commands,
				"workflows": workflows,
			})
		}

		if len(commands) == 0 && len(workflows) == 0 {
			fmt.Println("Nothing stored yet. Try 'wf add <name> <command>'.")
			return nil
		}

		if len(commands) > 0 {
			fmt.Println(ui.Bold("Commands"))
			rows := make([][]string, 0, len(commands))
			for _, c := range commands {
				rows = append(rows, []string{
					c.Name,
					truncateText(c.Command, 48),
					util.JoinOrNone(c.Tags),
					formatLastUsed(c.LastUsed, c.UseCount),
				})
			}
			fmt.Println(ui.RenderSimpleTable([]ui.TableColumn{
				{Title: "NAME", Width: 18},
				{Title: "COMMAND", Width: 50},
				{Title: "TAGS", Width: 16},
				{Title: "USED", Width: 16},
			}, rows))
		}

		if len(workflows) > 0 {
			fmt.Println(ui.Bold("Workflows"))
			rows := make([][]string, 0, len(workflows))
			for _, wf := range workflows {
				rows = append(rows, []string{
					wf.Name,
					util.Itoa(len(wf.Steps)),
					truncateText(wf.Description, 40),
					util.JoinOrNone(wf.Tags),
					formatLastUsed(wf.LastUsed, wf.UseCount),
				})
			}
			fmt.Println(ui.RenderSimpleTable([]ui.TableColumn{
				{Title: "NAME", Width: 18},
				{Title: "STEPS", Width: 6},
				{Title: "DESCRIPTION", Width: 42},
				{Title: "TAGS", Width: 16},
				{Title: "USED", Width: 16},
			}, rows))
		}

		return nil
	},
}

var removeForce bool

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a stored command or workflow",
	Args:    cobra.ExactArgs(1),
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

		var kind string
		switch {
		case s.HasCommand(name):
			kind = "command"
		case s.HasWorkflow(name):
			kind = "workflow"
		default:
			return errors.New(errors.ErrStore,
				fmt.Sprintf("Nothing named '%s' in the store", name),
				"Run 'wf list' to see what's stored")
		}

		if !removeForce {
			var confirm bool
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Remove %s '%s'?", kind, name)).
						Description("This cannot be undone").
						Value(&confirm),
				),
			)
			if err := form.Run(); err != nil {
				return nil
			}
			if !confirm {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if kind == "command" {
			err = s.RemoveCommand(name)
		} else {
			err = s.RemoveWorkflow(name)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s Removed %s '%s'\n", ui.Success(ui.SymbolSuccess), kind, name)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the definition of a stored command or workflow",
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

		if c, err := s.GetCommand(name); err == nil {
			printCommandDetail(c)
			return nil
		}

		wf, err := s.GetWorkflow(name)
		if err != nil {
			return errors.New(errors.ErrStore,
				fmt.Sprintf("Nothing named '%s' in the store", name),
				"Run 'wf list' to see what's stored")
		}
		printWorkflowDetail(wf)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Description of what the command does")
	addCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Comma-separated tags")

	listCmd.Flags().BoolVar(&listCommandsOnly, "commands", false, "List only stored commands")
	listCmd.Flags().BoolVar(&listFlowsOnly, "flows", false, "List only workflows")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")

	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(showCmd)
}

func printCommandDetail(c *model.Command) {
	fmt.Printf("%s (command)\n", ui.Bold(c.Name))
	if c.Description != "" {
		fmt.Printf("  %s\n", c.Description)
	}
	fmt.Printf("  $ %s\n", c.Command)
	if len(c.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(c.Tags, ", "))
	}
	fmt.Printf("  created: %s  runs: %d\n", c.CreatedAt.Format("2006-01-02"), c.UseCount)
}

func printWorkflowDetail(wf *model.Workflow) {
	fmt.Printf("%s (workflow, %d %s)\n", ui.Bold(wf.Name),
		len(wf.Steps), util.Pluralize(len(wf.Steps), "step", "steps"))
	if wf.Description != "" {
		fmt.Printf("  %s\n", wf.Description)
	}
	if len(wf.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(wf.Tags, ", "))
	}
	if len(wf.Variables) > 0 {
		fmt.Println("  variables:")
		for _, v := range wf.Variables {
			detail := ""
			if v.Required {
				detail = " (required)"
			} else if v.Default != "" {
				detail = fmt.Sprintf(" (default: %s)", v.Default)
			}
			fmt.Printf("    %s%s\n", v.Name, detail)
		}
	}
	if len(wf.Profiles) > 0 {
		names := make([]string, 0, len(wf.Profiles))
		for name := range wf.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("  profiles: %s\n", strings.Join(names, ", "))
	}
	fmt.Println("  steps:")
	printSteps(wf.Steps, "    ")
}

// printSteps renders a step tree with two-space indent per nesting level.
func printSteps(steps []model.Step, indent string) {
	for _, step := range steps {
		switch step.Type {
		case model.StepCommand, model.StepAuth:
			marker := "$"
			if step.Type == model.StepAuth {
				marker = "auth $"
			}
			fmt.Printf("%s%s  %s %s%s\n", indent, ui.Bold(step.Name), marker,
				step.Command, stepFlags(step))
		case model.StepConditional:
			fmt.Printf("%s%s  if %s%s\n", indent, ui.Bold(step.Name),
				step.Conditional.Condition.Expression, stepFlags(step))
			printSteps(step.Conditional.Then, indent+"  ")
			if len(step.Conditional.Else) > 0 {
				fmt.Printf("%selse:\n", indent)
				printSteps(step.Conditional.Else, indent+"  ")
			}
		case model.StepBranch:
			fmt.Printf("%s%s  switch on %s%s\n", indent, ui.Bold(step.Name),
				step.Branch.Variable, stepFlags(step))
			for _, bc := range step.Branch.Cases {
				fmt.Printf("%s  case %s:\n", indent, bc.Value)
				printSteps(bc.Steps, indent+"    ")
			}
			if len(step.Branch.Default) > 0 {
				fmt.Printf("%s  default:\n", indent)
				printSteps(step.Branch.Default, indent+"    ")
			}
		case model.StepLoop:
			fmt.Printf("%s%s  while %s%s\n", indent, ui.Bold(step.Name),
				step.Loop.Condition.Expression, stepFlags(step))
			printSteps(step.Loop.Body, indent+"  ")
		}
	}
}

func stepFlags(step model.Step) string {
	var flags []string
	if step.ContinueOnError {
		flags = append(flags, "continue-on-error")
	}
	if step.RequireApproval {
		flags = append(flags, "needs-approval")
	}
	if len(flags) == 0 {
		return ""
	}
	return ui.Muted(" [" + strings.Join(flags, ", ") + "]")
}

func filterCommandsByTag(commands []*model.Command, tag string) []*model.Command {
	out := commands[:0]
	for _, c := range commands {
		if c.HasTag(tag) {
			out = append(out, c)
		}
	}
	return out
}

func filterWorkflowsByTag(workflows []*model.Workflow, tag string) []*model.Workflow {
	out := workflows[:0]
	for _, wf := range workflows {
		if wf.HasTag(tag) {
			out = append(out, wf)
		}
	}
	return out
}

func formatLastUsed(lastUsed *time.Time, count int) string {
	if lastUsed == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%d)", lastUsed.Format("2006-01-02"), count)
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
