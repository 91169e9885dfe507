package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wfkit/wf/internal/doctor"
	"github.com/wfkit/wf/internal/errors"
	"github.com/wfkit/wf/internal/ui"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the wf environment",
	Long: `Check that wf's environment is healthy: the config validates, the
store opens, the shell and git are installed, and configured hosts
look usable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		results := doctor.RunAllParallel(doctor.DefaultChecks(cfg))

		if doctorJSON {
			if err := printJSON(results); err != nil {
				return err
			}
		} else {
			rows := make([]ui.DoctorCheckRow, 0, len(results))
			for _, r := range results {
				rows = append(rows, ui.DoctorCheckRow{
					Status:     r.Status.String(),
					Category:   r.Category,
					Message:    r.Message,
					Suggestion: r.Suggestion,
				})
			}
			fmt.Print(ui.RenderDoctorTable(rows))
			fmt.Println(doctor.Summary(results))
		}

		if doctor.HasFailures(results) {
			return errors.NewExitError(1)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(doctorCmd)
}
