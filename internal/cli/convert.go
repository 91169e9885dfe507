package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/convert"
	"github.com/wfkit/wf/internal/ui"
	"github.com/wfkit/wf/internal/util"
)

var (
	convertName        string
	convertDescription string
	convertTags        []string
	convertDryRun      bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <script.sh> <function>",
	Short: "Convert a shell function into a workflow",
	Long: `Convert a function from a shell script into a stored workflow.

Statement-level control flow maps onto workflow steps: if blocks become
conditional steps, case blocks become branches, and for/while loops
become loop steps. Positional parameters ($1, $2, ...) turn into
required variables.

  wf convert deploy.sh deploy --name deploy-app`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, function := args[0], args[1]

		name := convertName
		if name == "" {
			name = function
		}

		wf, err := convert.ConvertFile(script, function, name, convertDescription, convertTags)
		if err != nil {
			return err
		}

		if convertDryRun {
			printWorkflowDetail(wf)
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		if err := s.AddWorkflow(wf); err != nil {
			return err
		}

		fmt.Printf("%s Converted '%s' into workflow '%s' (%d %s", ui.Success(ui.SymbolSuccess),
			function, name, len(wf.Steps), util.Pluralize(len(wf.Steps), "step", "steps"))
		if len(wf.Variables) > 0 {
			fmt.Printf(", %d %s", len(wf.Variables),
				util.Pluralize(len(wf.Variables), "variable", "variables"))
		}
		fmt.Println(")")
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertName, "name", "", "Workflow name (default: the function name)")
	convertCmd.Flags().StringVarP(&convertDescription, "description", "d", "", "Description of the workflow")
	convertCmd.Flags().StringSliceVar(&convertTags, "tags", nil, "Comma-separated tags")
	convertCmd.Flags().BoolVar(&convertDryRun, "dry-run", false, "Print the workflow instead of storing it")

	rootCmd.AddCommand(convertCmd)
}
