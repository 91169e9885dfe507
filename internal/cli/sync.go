package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/config"
	"github.com/wfkit/wf/internal/gitsync"
	"github.com/wfkit/wf/internal/logger"
	"github.com/wfkit/wf/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync workflows from git repositories",
	Long: `Keep shared workflow libraries in sync through git.

Register repositories with 'wf sync add'; their workflows/ directories
are pulled and imported with 'wf sync import'.`,
}

var syncAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Register a workflow repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]

		m, _, err := openSync()
		if err != nil {
			return err
		}
		if err := m.Add(name, url); err != nil {
			return err
		}

		fmt.Printf("%s Added repository '%s'\n", ui.Success(ui.SymbolSuccess), name)
		return nil
	},
}

var syncRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Unregister a workflow repository",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openSync()
		if err != nil {
			return err
		}
		if err := m.Remove(args[0]); err != nil {
			return err
		}

		fmt.Printf("%s Removed repository '%s'\n", ui.Success(ui.SymbolSuccess), args[0])
		return nil
	},
}

var syncListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openSync()
		if err != nil {
			return err
		}

		repos := m.List()
		if len(repos) == 0 {
			fmt.Println("No repositories registered. Try 'wf sync add <name> <url>'.")
			return nil
		}

		rows := make([][]string, 0, len(repos))
		for _, r := range repos {
			state := "enabled"
			if !r.Enabled {
				state = "disabled"
			}
			rows = append(rows, []string{r.Name, r.URL, state})
		}
		fmt.Println(ui.RenderSimpleTable([]ui.TableColumn{
			{Title: "NAME", Width: 18},
			{Title: "URL", Width: 52},
			{Title: "STATE", Width: 10},
		}, rows))
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull [name]",
	Short: "Pull one repository, or all enabled ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openSync()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			if err := m.Pull(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s Pulled '%s'\n", ui.Success(ui.SymbolSuccess), args[0])
			return nil
		}

		return pullAll(m)
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the git status of each repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := openSync()
		if err != nil {
			return err
		}

		repos := m.List()
		if len(repos) == 0 {
			fmt.Println("No repositories registered.")
			return nil
		}

		for _, r := range repos {
			fmt.Println(ui.Bold(r.Name))
			if !r.Enabled {
				fmt.Printf("  %s\n", ui.Muted("disabled"))
				continue
			}
			status, err := m.Status(r.Name)
			if err != nil {
				fmt.Printf("  %s %v\n", ui.Error(ui.SymbolFail), err)
				continue
			}
			for _, line := range strings.Split(strings.TrimRight(status, "\n"), "\n") {
				fmt.Printf("  %s\n", line)
			}
		}
		return nil
	},
}

var syncImportOverwrite bool

var syncImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import workflows from the registered repositories",
	Long: `Import every export file under each enabled repository's
workflows/ directory into the store.

Repositories are pulled first unless sync.auto_pull is off.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cfg, err := openSync()
		if err != nil {
			return err
		}
		s, err := openStore(cfg)
		if err != nil {
			return err
		}

		if cfg.Sync.AutoPull {
			if err := pullAll(m); err != nil {
				return err
			}
		}

		overwrite := syncImportOverwrite || cfg.Sync.Overwrite
		report, err := m.ImportWorkflows(s, overwrite)
		if err != nil {
			return err
		}

		for _, issue := range report.FileIssue {
			fmt.Printf("%s %s\n", ui.Warning("!"), issue)
		}
		fmt.Printf("%s Imported %d files: %d added, %d updated, %d skipped\n",
			ui.Success(ui.SymbolSuccess), report.Files,
			report.Added, report.Updated, report.Skipped)
		return nil
	},
}

var syncEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSyncEnabled(args[0], true)
	},
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a repository without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSyncEnabled(args[0], false)
	},
}

func init() {
	syncImportCmd.Flags().BoolVar(&syncImportOverwrite, "overwrite", false, "Replace entries that already exist")

	syncCmd.AddCommand(syncAddCmd)
	syncCmd.AddCommand(syncRemoveCmd)
	syncCmd.AddCommand(syncListCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncImportCmd)
	syncCmd.AddCommand(syncEnableCmd)
	syncCmd.AddCommand(syncDisableCmd)

	rootCmd.AddCommand(syncCmd)
}

// openSync opens the repository registry under the store directory.
func openSync() (*gitsync.Manager, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	m, err := gitsync.Open(filepath.Join(cfg.StoreDir, "sync"), logger.Default())
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

func pullAll(m *gitsync.Manager) error {
	failed := 0
	for _, result := range m.PullAll() {
		if result.Err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", ui.Error(ui.SymbolFail), result.Name, result.Err)
			continue
		}
		fmt.Printf("%s Pulled '%s'\n", ui.Success(ui.SymbolSuccess), result.Name)
	}
	if failed > 0 {
		fmt.Printf("%s\n", ui.Muted("Failed repositories keep their last synced state"))
	}
	return nil
}

func setSyncEnabled(name string, enabled bool) error {
	m, _, err := openSync()
	if err != nil {
		return err
	}
	if err := m.SetEnabled(name, enabled); err != nil {
		return err
	}
	state := "Enabled"
	if !enabled {
		state = "Disabled"
	}
	fmt.Printf("%s %s repository '%s'\n", ui.Success(ui.SymbolSuccess), state, name)
	return nil
}
