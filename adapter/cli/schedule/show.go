package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobforge/adapter/cli"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

var showCmd = &cobra.Command{
	Use:   "show <schedule-id>",
	Short: "Show a stored schedule",
	Long: `Display a stored schedule with its status, objective values and task
assignments.

Examples:
  jobforge schedule show 7d9f1c2e-1b6a-4a61-9f0c-1d2e3f4a5b6c`,
	Aliases: []string{"view"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetScheduleHandler == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Schedule viewing requires a database connection.")
			return nil
		}

		scheduleID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid schedule id: %w", err)
		}

		view, err := app.GetScheduleHandler.Handle(cmd.Context(), queries.GetScheduleQuery{
			ScheduleID: scheduleID,
		})
		if err != nil {
			return fmt.Errorf("failed to get schedule: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Schedule %s\n", view.ID)
		fmt.Fprintf(out, "Pattern: %s\n", view.PatternID)
		fmt.Fprintf(out, "Status: %s\n", view.Status)
		fmt.Fprintf(out, "Horizon start: %s\n", view.HorizonStart.Format(time.RFC3339))
		fmt.Fprintf(out, "Makespan: %s\n", view.Makespan)

		kinds := make([]domain.ObjectiveKind, 0, len(view.ObjectiveValues))
		for kind := range view.ObjectiveValues {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, kind := range kinds {
			fmt.Fprintf(out, "  %s: %.2f\n", kind, view.ObjectiveValues[kind])
		}

		fmt.Fprintln(out, strings.Repeat("=", 60))
		if len(view.Tasks) == 0 {
			fmt.Fprintln(out, "No task assignments.")
			return nil
		}
		for _, t := range view.Tasks {
			fmt.Fprintf(out, "%s - %s  instance %s task %s machine %s",
				t.StartAt.Format("2006-01-02 15:04"),
				t.EndAt.Format("15:04"),
				t.InstanceID.String()[:8],
				t.TaskID.String()[:8],
				t.MachineID.String()[:8],
			)
			if t.OperatorID != nil {
				fmt.Fprintf(out, " operator %s", t.OperatorID.String()[:8])
			}
			if t.SetupMinutes > 0 {
				fmt.Fprintf(out, " (setup %dm)", t.SetupMinutes)
			}
			fmt.Fprintln(out)
		}

		fmt.Fprintln(out, strings.Repeat("-", 60))
		fmt.Fprintf(out, "Total: %d tasks, solved in %s with %d workers\n",
			len(view.Tasks),
			view.Metrics.SolveTime.Round(time.Millisecond),
			view.Metrics.WorkersUsed,
		)
		return nil
	},
}
