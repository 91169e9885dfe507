package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/history"
	"github.com/wfkit/wf/internal/ui"
	"github.com/wfkit/wf/internal/util"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, err := history.Open(cfg.StoreDir)
		if err != nil {
			return err
		}
		entries, err := log.Recent(historyLimit)
		if err != nil {
			return err
		}

		if historyJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			status := ui.Success(ui.SymbolSuccess)
			if e.ExitCode != 0 {
				status = ui.Error(fmt.Sprintf("%s %d", ui.SymbolFail, e.ExitCode))
			}
			detail := ""
			if e.FailedStep != "" {
				detail = "failed at " + e.FailedStep
			}
			rows = append(rows, []string{
				e.StartedAt.Local().Format("2006-01-02 15:04"),
				string(e.Kind),
				e.Name,
				formatElapsed(time.Duration(e.DurationMS) * time.Millisecond),
				status,
				detail,
			})
		}
		fmt.Println(ui.RenderSimpleTable([]ui.TableColumn{
			{Title: "WHEN", Width: 17},
			{Title: "KIND", Width: 9},
			{Title: "NAME", Width: 18},
			{Title: "TOOK", Width: 8},
			{Title: "STATUS", Width: 8},
			{Title: "", Width: 24},
		}, rows))
		fmt.Println(ui.Muted(fmt.Sprintf("%d %s shown", len(entries),
			util.Pluralize(len(entries), "run", "runs"))))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(historyCmd)
}
