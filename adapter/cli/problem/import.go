package problem

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/jobforge/adapter/cli"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

var importFile string

// problemFile is the JSON import format. IDs are optional; missing ones are
// generated. Windows are [start, end) minute offsets from the horizon anchor.
type problemFile struct {
	Pattern struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Tasks []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			TypeCode string `json:"type_code"`
			Modes    []struct {
				MachineID       string  `json:"machine_id"`
				DurationMinutes int     `json:"duration_minutes"`
				SetupMinutes    int     `json:"setup_minutes"`
				CostPerHour     float64 `json:"cost_per_hour"`
				NeedsOperator   bool    `json:"needs_operator"`
				RequiredSkills  []struct {
					Name     string `json:"name"`
					MinLevel int    `json:"min_level"`
				} `json:"required_skills"`
			} `json:"modes"`
		} `json:"tasks"`
		Precedences []struct {
			Predecessor     string `json:"predecessor"`
			Successor       string `json:"successor"`
			MinDelayMinutes int    `json:"min_delay_minutes"`
			MaxDelayMinutes int    `json:"max_delay_minutes"`
		} `json:"precedences"`
		SetupRules []struct {
			MachineID    string `json:"machine_id"`
			FromType     string `json:"from_type"`
			ToType       string `json:"to_type"`
			SetupMinutes int    `json:"setup_minutes"`
		} `json:"setup_rules"`
		Objectives *domain.ObjectiveConfiguration `json:"objectives"`
	} `json:"pattern"`
	Machines []struct {
		ID           string          `json:"id"`
		Name         string          `json:"name"`
		Capacity     int             `json:"capacity"`
		DepartmentID string          `json:"department_id"`
		HourlyCost   float64         `json:"hourly_cost"`
		Calendar     []domain.Window `json:"calendar"`
		Maintenance  []domain.Window `json:"maintenance"`
	} `json:"machines"`
	Operators []struct {
		ID         string          `json:"id"`
		Name       string          `json:"name"`
		Skills     []domain.Skill  `json:"skills"`
		Shifts     []domain.Window `json:"shifts"`
		MaxMinutes int             `json:"max_minutes"`
		HourlyCost float64         `json:"hourly_cost"`
	} `json:"operators"`
	SequenceResources []struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		MaxConcurrent int      `json:"max_concurrent"`
		TaskTypeCodes []string `json:"task_type_codes"`
	} `json:"sequence_resources"`
	Instances []struct {
		ID            string `json:"id"`
		Priority      int    `json:"priority"`
		EarliestStart string `json:"earliest_start"`
		DueDate       string `json:"due_date"`
	} `json:"instances"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a problem definition from a JSON file",
	Long: `Import a pattern, its resources and job instances into the problem
database, replacing previous definitions with the same ids.

Examples:
  jobforge problem import --file problem.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ProblemRepo == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Problem import requires a database connection.")
			return nil
		}

		data, err := os.ReadFile(importFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", importFile, err)
		}
		var file problemFile
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse %s: %w", importFile, err)
		}

		pattern, err := buildPattern(&file)
		if err != nil {
			return err
		}
		pool, err := buildResourcePool(&file)
		if err != nil {
			return err
		}
		instances, err := buildInstances(&file, pattern.ID)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := app.ProblemRepo.SavePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to store pattern: %w", err)
		}
		if err := app.ProblemRepo.SaveResources(ctx, pool); err != nil {
			return fmt.Errorf("failed to store resources: %w", err)
		}
		if err := app.ProblemRepo.SaveInstances(ctx, instances); err != nil {
			return fmt.Errorf("failed to store instances: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported pattern %s (%s)\n", pattern.ID, pattern.Name)
		fmt.Fprintf(out, "  tasks: %d, precedences: %d, setup rules: %d\n",
			len(pattern.Tasks), len(pattern.Precedences), len(pattern.SetupRules))
		fmt.Fprintf(out, "  machines: %d, operators: %d, sequence resources: %d\n",
			len(pool.Machines), len(pool.Operators), len(pool.SequenceResources))
		fmt.Fprintf(out, "  instances: %d\n", len(instances))
		for _, inst := range instances {
			fmt.Fprintf(out, "    %s\n", inst.ID)
		}
		return nil
	},
}

func buildPattern(file *problemFile) (*domain.Pattern, error) {
	patternID, err := parseOrNewID(file.Pattern.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern id: %w", err)
	}
	pattern := &domain.Pattern{
		ID:         patternID,
		Name:       file.Pattern.Name,
		Objectives: domain.DefaultObjectives(),
	}
	if file.Pattern.Objectives != nil {
		if err := file.Pattern.Objectives.Validate(); err != nil {
			return nil, fmt.Errorf("invalid objectives: %w", err)
		}
		pattern.Objectives = *file.Pattern.Objectives
	}

	// Task names map to ids so precedences can reference tasks by name.
	byName := make(map[string]uuid.UUID)
	for _, t := range file.Pattern.Tasks {
		taskID, err := parseOrNewID(t.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid task id for %q: %w", t.Name, err)
		}
		byName[t.Name] = taskID
		task := domain.Task{ID: taskID, Name: t.Name, TypeCode: t.TypeCode}
		for _, m := range t.Modes {
			machineID, err := uuid.Parse(m.MachineID)
			if err != nil {
				return nil, fmt.Errorf("invalid machine id in mode of task %q: %w", t.Name, err)
			}
			mode := domain.TaskMode{
				MachineID:       machineID,
				DurationMinutes: m.DurationMinutes,
				SetupMinutes:    m.SetupMinutes,
				CostPerHour:     m.CostPerHour,
				NeedsOperator:   m.NeedsOperator,
			}
			for _, s := range m.RequiredSkills {
				mode.RequiredSkills = append(mode.RequiredSkills, domain.SkillRequirement{
					Name:     s.Name,
					MinLevel: s.MinLevel,
				})
			}
			task.Modes = append(task.Modes, mode)
		}
		pattern.Tasks = append(pattern.Tasks, task)
	}

	for _, p := range file.Pattern.Precedences {
		pred, err := resolveTaskRef(byName, p.Predecessor)
		if err != nil {
			return nil, fmt.Errorf("invalid precedence predecessor: %w", err)
		}
		succ, err := resolveTaskRef(byName, p.Successor)
		if err != nil {
			return nil, fmt.Errorf("invalid precedence successor: %w", err)
		}
		pattern.Precedences = append(pattern.Precedences, domain.Precedence{
			Predecessor:     pred,
			Successor:       succ,
			MinDelayMinutes: p.MinDelayMinutes,
			MaxDelayMinutes: p.MaxDelayMinutes,
		})
	}

	for _, r := range file.Pattern.SetupRules {
		machineID := uuid.Nil
		if r.MachineID != "" {
			machineID, err = uuid.Parse(r.MachineID)
			if err != nil {
				return nil, fmt.Errorf("invalid setup rule machine id: %w", err)
			}
		}
		pattern.SetupRules = append(pattern.SetupRules, domain.SetupRule{
			MachineID:    machineID,
			FromType:     r.FromType,
			ToType:       r.ToType,
			SetupMinutes: r.SetupMinutes,
		})
	}

	return pattern, nil
}

func buildResourcePool(file *problemFile) (*domain.ResourcePool, error) {
	pool := &domain.ResourcePool{}
	for _, m := range file.Machines {
		id, err := parseOrNewID(m.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid machine id for %q: %w", m.Name, err)
		}
		capacity := m.Capacity
		if capacity < 1 {
			capacity = 1
		}
		pool.Machines = append(pool.Machines, domain.Machine{
			ID:           id,
			Name:         m.Name,
			Capacity:     capacity,
			Calendar:     m.Calendar,
			Maintenance:  m.Maintenance,
			DepartmentID: m.DepartmentID,
			HourlyCost:   m.HourlyCost,
		})
	}
	for _, o := range file.Operators {
		id, err := parseOrNewID(o.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid operator id for %q: %w", o.Name, err)
		}
		pool.Operators = append(pool.Operators, domain.Operator{
			ID:         id,
			Name:       o.Name,
			Skills:     o.Skills,
			Shifts:     o.Shifts,
			MaxMinutes: o.MaxMinutes,
			HourlyCost: o.HourlyCost,
		})
	}
	for _, r := range file.SequenceResources {
		id, err := parseOrNewID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid sequence resource id for %q: %w", r.Name, err)
		}
		pool.SequenceResources = append(pool.SequenceResources, domain.SequenceResource{
			ID:            id,
			Name:          r.Name,
			MaxConcurrent: r.MaxConcurrent,
			TaskTypeCodes: r.TaskTypeCodes,
		})
	}
	return pool, nil
}

func buildInstances(file *problemFile, patternID uuid.UUID) ([]domain.JobInstance, error) {
	instances := make([]domain.JobInstance, 0, len(file.Instances))
	for i, in := range file.Instances {
		id, err := parseOrNewID(in.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid instance id at index %d: %w", i, err)
		}
		inst := domain.JobInstance{ID: id, PatternID: patternID, Priority: in.Priority}
		if in.EarliestStart != "" {
			inst.EarliestStart, err = time.Parse(time.RFC3339, in.EarliestStart)
			if err != nil {
				return nil, fmt.Errorf("invalid earliest_start at index %d: %w", i, err)
			}
		}
		if in.DueDate != "" {
			inst.DueDate, err = time.Parse(time.RFC3339, in.DueDate)
			if err != nil {
				return nil, fmt.Errorf("invalid due_date at index %d: %w", i, err)
			}
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

func parseOrNewID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}

// resolveTaskRef accepts either a task id or a task name.
func resolveTaskRef(byName map[string]uuid.UUID, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	if id, ok := byName[ref]; ok {
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("unknown task %q", ref)
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "problem JSON file (required)")
	_ = importCmd.MarkFlagRequired("file")
}
