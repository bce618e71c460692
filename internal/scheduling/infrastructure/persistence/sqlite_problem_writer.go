package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// SavePattern writes a pattern aggregate, replacing any existing rows.
func (r *SQLiteProblemRepository) SavePattern(ctx context.Context, pattern *domain.Pattern) error {
	objectives, err := json.Marshal(pattern.Objectives)
	if err != nil {
		return err
	}
	if _, err := r.exec.Exec(ctx, `DELETE FROM patterns WHERE id = ?`, pattern.ID.String()); err != nil {
		return err
	}
	if _, err := r.exec.Exec(ctx,
		`INSERT INTO patterns (id, name, objectives) VALUES (?, ?, ?)`,
		pattern.ID.String(), pattern.Name, string(objectives)); err != nil {
		return fmt.Errorf("failed to store pattern: %w", err)
	}

	for i, task := range pattern.Tasks {
		records := make([]modeRecord, 0, len(task.Modes))
		for _, m := range task.Modes {
			records = append(records, modeRecord{
				MachineID:       m.MachineID.String(),
				DurationMinutes: m.DurationMinutes,
				SetupMinutes:    m.SetupMinutes,
				CostPerHour:     m.CostPerHour,
				NeedsOperator:   m.NeedsOperator,
				RequiredSkills:  m.RequiredSkills,
			})
		}
		modes, err := json.Marshal(records)
		if err != nil {
			return err
		}
		if _, err := r.exec.Exec(ctx,
			`INSERT INTO pattern_tasks (id, pattern_id, name, type_code, position, modes)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			task.ID.String(), pattern.ID.String(), task.Name, task.TypeCode, i, string(modes)); err != nil {
			return fmt.Errorf("failed to store task %s: %w", task.Name, err)
		}
	}

	for _, p := range pattern.Precedences {
		if _, err := r.exec.Exec(ctx,
			`INSERT INTO pattern_precedences
			 (pattern_id, predecessor_id, successor_id, min_delay_minutes, max_delay_minutes)
			 VALUES (?, ?, ?, ?, ?)`,
			pattern.ID.String(), p.Predecessor.String(), p.Successor.String(),
			p.MinDelayMinutes, p.MaxDelayMinutes); err != nil {
			return fmt.Errorf("failed to store precedence: %w", err)
		}
	}

	for _, rule := range pattern.SetupRules {
		machineID := ""
		if rule.MachineID != uuid.Nil {
			machineID = rule.MachineID.String()
		}
		if _, err := r.exec.Exec(ctx,
			`INSERT INTO pattern_setup_rules (pattern_id, machine_id, from_type, to_type, setup_minutes)
			 VALUES (?, ?, ?, ?, ?)`,
			pattern.ID.String(), machineID, rule.FromType, rule.ToType, rule.SetupMinutes); err != nil {
			return fmt.Errorf("failed to store setup rule: %w", err)
		}
	}

	return nil
}

// SaveResources writes the whole resource pool, replacing existing rows.
func (r *SQLiteProblemRepository) SaveResources(ctx context.Context, pool *domain.ResourcePool) error {
	for _, table := range []string{"machines", "operators", "sequence_resources"} {
		if _, err := r.exec.Exec(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}

	for _, m := range pool.Machines {
		calendar, err := json.Marshal(m.Calendar)
		if err != nil {
			return err
		}
		maintenance, err := json.Marshal(m.Maintenance)
		if err != nil {
			return err
		}
		if _, err := r.exec.Exec(ctx,
			`INSERT INTO machines (id, name, capacity, department_id, hourly_cost, calendar, maintenance)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID.String(), m.Name, m.Capacity, m.DepartmentID, m.HourlyCost,
			string(calendar), string(maintenance)); err != nil {
			return fmt.Errorf("failed to store machine %s: %w", m.Name, err)
		}
	}

	for _, o := range pool.Operators {
		skills, err := json.Marshal(o.Skills)
		if err != nil {
			return err
		}
		shifts, err := json.Marshal(o.Shifts)
		if err != nil {
			return err
		}
		if _, err := r.exec.Exec(ctx,
			`INSERT INTO operators (id, name, skills, shifts, max_minutes, hourly_cost)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID.String(), o.Name, string(skills), string(shifts), o.MaxMinutes, o.HourlyCost); err != nil {
			return fmt.Errorf("failed to store operator %s: %w", o.Name, err)
		}
	}

	for _, res := range pool.SequenceResources {
		codes, err := json.Marshal(res.TaskTypeCodes)
		if err != nil {
			return err
		}
		if _, err := r.exec.Exec(ctx,
			`INSERT INTO sequence_resources (id, name, max_concurrent, task_type_codes)
			 VALUES (?, ?, ?, ?)`,
			res.ID.String(), res.Name, res.MaxConcurrent, string(codes)); err != nil {
			return fmt.Errorf("failed to store sequence resource %s: %w", res.Name, err)
		}
	}

	return nil
}

// SaveInstances writes job instances, replacing rows with the same id.
func (r *SQLiteProblemRepository) SaveInstances(ctx context.Context, instances []domain.JobInstance) error {
	for _, inst := range instances {
		var due *string
		if inst.HasDueDate() {
			s := inst.DueDate.UTC().Format(time.RFC3339)
			due = &s
		}
		if _, err := r.exec.Exec(ctx, `DELETE FROM job_instances WHERE id = ?`, inst.ID.String()); err != nil {
			return err
		}
		if _, err := r.exec.Exec(ctx,
			`INSERT INTO job_instances (id, pattern_id, priority, earliest_start, due_date)
			 VALUES (?, ?, ?, ?, ?)`,
			inst.ID.String(), inst.PatternID.String(), inst.Priority,
			inst.EarliestStart.UTC().Format(time.RFC3339), due); err != nil {
			return fmt.Errorf("failed to store instance %s: %w", inst.ID, err)
		}
	}
	return nil
}
