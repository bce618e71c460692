package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/solver"
)

var (
	validatePattern     string
	validateInstances   []string
	validatePhase       int
	validateSetupTimes  bool
	validateSkills      bool
	validateMaxOvertime int
	validateWIPLimits   []string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scheduling problem without solving it",
	Long: `Load a pattern and its job instances, compose the constraint model and
propagate bounds. Reports static infeasibility without running the search.

Examples:
  jobforge validate --pattern <id> --instance <id>
  jobforge validate --pattern <id> --instance <id> --phase 2 --setup-times`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.ValidateProblemHandler == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Validation requires a database connection.")
			return nil
		}

		patternID, err := uuid.Parse(validatePattern)
		if err != nil {
			return fmt.Errorf("invalid pattern id: %w", err)
		}
		instanceIDs, err := parseInstanceIDs(validateInstances)
		if err != nil {
			return err
		}
		wipLimits, err := parseWIPLimits(validateWIPLimits)
		if err != nil {
			return err
		}

		result, err := app.ValidateProblemHandler.Handle(cmd.Context(), commands.ValidateProblemCommand{
			PatternID:   patternID,
			InstanceIDs: instanceIDs,
			Phase:       solver.Phase(validatePhase),
			Toggles: solver.Toggles{
				EnableSetupTimes:    validateSetupTimes,
				EnableSkillMatching: validateSkills,
				MaxOvertimeMinutes:  validateMaxOvertime,
				DepartmentWIPLimits: wipLimits,
			},
		})
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if !result.Valid {
			fmt.Fprintf(out, "Problem is not solvable: %v\n", result.Reason)
			return nil
		}
		fmt.Fprintln(out, "Problem is valid.")
		fmt.Fprintf(out, "  operations:  %d\n", result.OperationCount)
		fmt.Fprintf(out, "  variables:   %d\n", result.VariableCount)
		fmt.Fprintf(out, "  constraints: %d\n", result.ConstraintCount)
		fmt.Fprintf(out, "  makespan lower bound: %s\n", time.Duration(result.MakespanLowerBound)*time.Minute)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validatePattern, "pattern", "p", "", "pattern id (required)")
	validateCmd.Flags().StringArrayVarP(&validateInstances, "instance", "i", nil, "job instance id (repeatable, required)")
	validateCmd.Flags().IntVar(&validatePhase, "phase", 0, "cap constraint phases at 1, 2 or 3 (default all)")
	validateCmd.Flags().BoolVar(&validateSetupTimes, "setup-times", false, "enable sequence-dependent setup times")
	validateCmd.Flags().BoolVar(&validateSkills, "skill-matching", false, "enable operator skill matching")
	validateCmd.Flags().IntVar(&validateMaxOvertime, "max-overtime", 0, "overtime minutes allowed on top of operator budgets")
	validateCmd.Flags().StringArrayVar(&validateWIPLimits, "wip", nil, "department WIP limit as department=limit (repeatable)")
	_ = validateCmd.MarkFlagRequired("pattern")
	_ = validateCmd.MarkFlagRequired("instance")
	rootCmd.AddCommand(validateCmd)
}
