package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/solver"
)

var (
	solvePattern     string
	solveInstances   []string
	solveBudget      time.Duration
	solvePhase       int
	solveSetupTimes  bool
	solveSkills      bool
	solveMultiObj    bool
	solveSymmetry    bool
	solveMaxOvertime int
	solveWIPLimits   []string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a scheduling problem",
	Long: `Build the constraint model for a pattern and its job instances, search
for schedules within the time budget and store the best schedule found.

Examples:
  jobforge solve --pattern <id> --instance <id> --instance <id>
  jobforge solve --pattern <id> --instance <id> --budget 10s --setup-times
  jobforge solve --pattern <id> --instance <id> --phase 1 --wip assembly=2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.SolvePatternHandler == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Solving requires a database connection.")
			return nil
		}

		patternID, err := uuid.Parse(solvePattern)
		if err != nil {
			return fmt.Errorf("invalid pattern id: %w", err)
		}
		instanceIDs, err := parseInstanceIDs(solveInstances)
		if err != nil {
			return err
		}
		wipLimits, err := parseWIPLimits(solveWIPLimits)
		if err != nil {
			return err
		}

		result, err := app.SolvePatternHandler.Handle(cmd.Context(), commands.SolvePatternCommand{
			PatternID:   patternID,
			InstanceIDs: instanceIDs,
			Phase:       solver.Phase(solvePhase),
			Budget:      solveBudget,
			Toggles: solver.Toggles{
				EnableSetupTimes:       solveSetupTimes,
				EnableSkillMatching:    solveSkills,
				EnableMultiObjective:   solveMultiObj,
				EnableSymmetryBreaking: solveSymmetry,
				MaxOvertimeMinutes:     solveMaxOvertime,
				DepartmentWIPLimits:    wipLimits,
			},
		})
		if err != nil {
			return fmt.Errorf("solve failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Schedule %s\n", result.ScheduleID)
		fmt.Fprintf(out, "Status: %s\n", result.Status)

		kinds := make([]domain.ObjectiveKind, 0, len(result.ObjectiveValues))
		for kind := range result.ObjectiveValues {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, kind := range kinds {
			fmt.Fprintf(out, "  %s: %.2f\n", kind, result.ObjectiveValues[kind])
		}

		fmt.Fprintf(out, "Solved in %s (%d workers, %d evaluations)\n",
			result.Metrics.SolveTime.Round(time.Millisecond),
			result.Metrics.WorkersUsed,
			result.Metrics.Evaluations,
		)

		if result.Schedule != nil {
			fmt.Fprintln(out, strings.Repeat("-", 60))
			for _, t := range result.Schedule.Tasks() {
				fmt.Fprintf(out, "%s - %s  task %s on machine %s",
					t.StartAt().Format("2006-01-02 15:04"),
					t.EndAt().Format("15:04"),
					shortID(t.TaskID()),
					shortID(t.MachineID()),
				)
				if t.SetupMinutes() > 0 {
					fmt.Fprintf(out, " (setup %dm)", t.SetupMinutes())
				}
				fmt.Fprintln(out)
			}
		}
		return nil
	},
}

func parseInstanceIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid instance id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseWIPLimits(raw []string) (map[string]int, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	limits := make(map[string]int, len(raw))
	for _, s := range raw {
		dept, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid WIP limit %q, expected department=limit", s)
		}
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("invalid WIP limit %q, limit must be a positive integer", s)
		}
		limits[dept] = limit
	}
	return limits, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func init() {
	solveCmd.Flags().StringVarP(&solvePattern, "pattern", "p", "", "pattern id (required)")
	solveCmd.Flags().StringArrayVarP(&solveInstances, "instance", "i", nil, "job instance id (repeatable, required)")
	solveCmd.Flags().DurationVarP(&solveBudget, "budget", "b", 0, "search time budget (default from config)")
	solveCmd.Flags().IntVar(&solvePhase, "phase", 0, "cap constraint phases at 1, 2 or 3 (default all)")
	solveCmd.Flags().BoolVar(&solveSetupTimes, "setup-times", false, "enable sequence-dependent setup times")
	solveCmd.Flags().BoolVar(&solveSkills, "skill-matching", false, "enable operator skill matching")
	solveCmd.Flags().BoolVar(&solveMultiObj, "multi-objective", false, "enable the pattern's full objective configuration")
	solveCmd.Flags().BoolVar(&solveSymmetry, "symmetry-breaking", false, "enable symmetry breaking")
	solveCmd.Flags().IntVar(&solveMaxOvertime, "max-overtime", 0, "overtime minutes allowed on top of operator budgets")
	solveCmd.Flags().StringArrayVar(&solveWIPLimits, "wip", nil, "department WIP limit as department=limit (repeatable)")
	_ = solveCmd.MarkFlagRequired("pattern")
	_ = solveCmd.MarkFlagRequired("instance")
	rootCmd.AddCommand(solveCmd)
}
