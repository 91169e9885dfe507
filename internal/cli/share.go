package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/share"
	"github.com/wfkit/wf/internal/ui"
)

var (
	exportCommandsOnly bool
	exportFlowsOnly    bool
	exportTag          string
	exportDescription  string
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export the store to a shareable file",
	Long: `Export stored commands and workflows to a file.

The extension picks the format: .json, .yaml, or .yml.

  wf export team-library.yaml --tag k8s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		err = share.Export(s, path, share.ExportOptions{
			CommandsOnly: exportCommandsOnly,
			FlowsOnly:    exportFlowsOnly,
			Tag:          exportTag,
			Description:  exportDescription,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Exported store to %s\n", ui.Success(ui.SymbolSuccess), path)
		return nil
	},
}

var importOverwrite bool

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import commands and workflows from an exported file",
	Long: `Import an exported file into the store.

Existing names are skipped unless --overwrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		summary, err := share.Import(s, path, importOverwrite)
		if err != nil {
			return err
		}

		printImportSummary(summary)
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportCommandsOnly, "commands-only", false, "Export only stored commands")
	exportCmd.Flags().BoolVar(&exportFlowsOnly, "flows-only", false, "Export only workflows")
	exportCmd.Flags().StringVar(&exportTag, "tag", "", "Export only entries carrying this tag")
	exportCmd.Flags().StringVarP(&exportDescription, "description", "d", "", "Description stored in the export metadata")

	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Replace entries that already exist")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func printImportSummary(summary *share.Summary) {
	if summary.Metadata.Description != "" {
		fmt.Printf("%s\n", ui.Muted(summary.Metadata.Description))
	}
	fmt.Printf("%s Imported: %d commands added, %d updated, %d skipped\n",
		ui.Success(ui.SymbolSuccess),
		summary.CommandsAdded, summary.CommandsUpdated, summary.CommandsSkipped)
	fmt.Printf("  workflows: %d added, %d updated, %d skipped\n",
		summary.WorkflowsAdded, summary.WorkflowsUpdated, summary.WorkflowsSkipped)
	if summary.CommandsSkipped+summary.WorkflowsSkipped > 0 {
		fmt.Printf("  %s\n", ui.Muted("Use --overwrite to replace existing entries"))
	}
}
