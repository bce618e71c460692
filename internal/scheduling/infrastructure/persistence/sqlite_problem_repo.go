package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/database"
)

// modeRecord is the JSON form of a task mode.
type modeRecord struct {
	MachineID       string                    `json:"machine_id"`
	DurationMinutes int                       `json:"duration_minutes"`
	SetupMinutes    int                       `json:"setup_minutes"`
	CostPerHour     float64                   `json:"cost_per_hour"`
	NeedsOperator   bool                      `json:"needs_operator"`
	RequiredSkills  []domain.SkillRequirement `json:"required_skills,omitempty"`
}

// SQLiteProblemRepository loads patterns, resources and instances from
// SQLite. Nested value objects live in JSON columns; the solver always reads
// whole aggregates.
type SQLiteProblemRepository struct {
	exec database.Executor
}

// NewSQLiteProblemRepository creates a problem repository over an executor.
func NewSQLiteProblemRepository(exec database.Executor) *SQLiteProblemRepository {
	return &SQLiteProblemRepository{exec: exec}
}

// LoadPattern reads one pattern aggregate: tasks in position order, the
// precedence arcs and the setup rules.
func (r *SQLiteProblemRepository) LoadPattern(ctx context.Context, patternID uuid.UUID) (*domain.Pattern, error) {
	row := r.exec.QueryRow(ctx,
		`SELECT id, name, objectives FROM patterns WHERE id = ?`, patternID.String())

	var id, name, objectivesJSON string
	if err := row.Scan(&id, &name, &objectivesJSON); err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrPatternNotFound
		}
		return nil, err
	}

	pattern := &domain.Pattern{ID: patternID, Name: name}
	if err := json.Unmarshal([]byte(objectivesJSON), &pattern.Objectives); err != nil {
		return nil, fmt.Errorf("pattern %s has malformed objectives: %w", patternID, err)
	}
	if pattern.Objectives.Strategy == "" {
		pattern.Objectives = domain.DefaultObjectives()
	}

	rows, err := r.exec.Query(ctx,
		`SELECT id, name, type_code, modes FROM pattern_tasks WHERE pattern_id = ? ORDER BY position`,
		patternID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, taskName, typeCode, modesJSON string
		if err := rows.Scan(&taskID, &taskName, &typeCode, &modesJSON); err != nil {
			return nil, err
		}
		tid, err := uuid.Parse(taskID)
		if err != nil {
			return nil, fmt.Errorf("task %s has a malformed id: %w", taskName, err)
		}
		var records []modeRecord
		if err := json.Unmarshal([]byte(modesJSON), &records); err != nil {
			return nil, fmt.Errorf("task %s has malformed modes: %w", taskName, err)
		}
		task := domain.Task{ID: tid, Name: taskName, TypeCode: typeCode}
		for _, m := range records {
			machineID, err := uuid.Parse(m.MachineID)
			if err != nil {
				return nil, fmt.Errorf("task %s mode references malformed machine id: %w", taskName, err)
			}
			task.Modes = append(task.Modes, domain.TaskMode{
				MachineID:       machineID,
				DurationMinutes: m.DurationMinutes,
				SetupMinutes:    m.SetupMinutes,
				CostPerHour:     m.CostPerHour,
				NeedsOperator:   m.NeedsOperator,
				RequiredSkills:  m.RequiredSkills,
			})
		}
		pattern.Tasks = append(pattern.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	precRows, err := r.exec.Query(ctx,
		`SELECT predecessor_id, successor_id, min_delay_minutes, max_delay_minutes
		 FROM pattern_precedences WHERE pattern_id = ?`, patternID.String())
	if err != nil {
		return nil, err
	}
	defer precRows.Close()
	for precRows.Next() {
		var predID, succID string
		var minDelay, maxDelay int
		if err := precRows.Scan(&predID, &succID, &minDelay, &maxDelay); err != nil {
			return nil, err
		}
		pred, err := uuid.Parse(predID)
		if err != nil {
			return nil, err
		}
		succ, err := uuid.Parse(succID)
		if err != nil {
			return nil, err
		}
		pattern.Precedences = append(pattern.Precedences, domain.Precedence{
			Predecessor:     pred,
			Successor:       succ,
			MinDelayMinutes: minDelay,
			MaxDelayMinutes: maxDelay,
		})
	}
	if err := precRows.Err(); err != nil {
		return nil, err
	}

	ruleRows, err := r.exec.Query(ctx,
		`SELECT machine_id, from_type, to_type, setup_minutes
		 FROM pattern_setup_rules WHERE pattern_id = ?`, patternID.String())
	if err != nil {
		return nil, err
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var machineID, fromType, toType string
		var setupMinutes int
		if err := ruleRows.Scan(&machineID, &fromType, &toType, &setupMinutes); err != nil {
			return nil, err
		}
		rule := domain.SetupRule{FromType: fromType, ToType: toType, SetupMinutes: setupMinutes}
		if machineID != "" {
			mid, err := uuid.Parse(machineID)
			if err != nil {
				return nil, err
			}
			rule.MachineID = mid
		}
		pattern.SetupRules = append(pattern.SetupRules, rule)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, err
	}

	return pattern, nil
}

// LoadResources reads the whole resource pool.
func (r *SQLiteProblemRepository) LoadResources(ctx context.Context) (*domain.ResourcePool, error) {
	pool := &domain.ResourcePool{}

	rows, err := r.exec.Query(ctx,
		`SELECT id, name, capacity, department_id, hourly_cost, calendar, maintenance
		 FROM machines ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name, departmentID, calendarJSON, maintenanceJSON string
		var capacity int
		var hourlyCost float64
		if err := rows.Scan(&id, &name, &capacity, &departmentID, &hourlyCost, &calendarJSON, &maintenanceJSON); err != nil {
			return nil, err
		}
		mid, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		m := domain.Machine{
			ID:           mid,
			Name:         name,
			Capacity:     capacity,
			DepartmentID: departmentID,
			HourlyCost:   hourlyCost,
		}
		if err := json.Unmarshal([]byte(calendarJSON), &m.Calendar); err != nil {
			return nil, fmt.Errorf("machine %s has a malformed calendar: %w", name, err)
		}
		if err := json.Unmarshal([]byte(maintenanceJSON), &m.Maintenance); err != nil {
			return nil, fmt.Errorf("machine %s has malformed maintenance windows: %w", name, err)
		}
		pool.Machines = append(pool.Machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	opRows, err := r.exec.Query(ctx,
		`SELECT id, name, skills, shifts, max_minutes, hourly_cost FROM operators ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer opRows.Close()
	for opRows.Next() {
		var id, name, skillsJSON, shiftsJSON string
		var maxMinutes int
		var hourlyCost float64
		if err := opRows.Scan(&id, &name, &skillsJSON, &shiftsJSON, &maxMinutes, &hourlyCost); err != nil {
			return nil, err
		}
		oid, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		o := domain.Operator{ID: oid, Name: name, MaxMinutes: maxMinutes, HourlyCost: hourlyCost}
		if err := json.Unmarshal([]byte(skillsJSON), &o.Skills); err != nil {
			return nil, fmt.Errorf("operator %s has malformed skills: %w", name, err)
		}
		if err := json.Unmarshal([]byte(shiftsJSON), &o.Shifts); err != nil {
			return nil, fmt.Errorf("operator %s has malformed shifts: %w", name, err)
		}
		pool.Operators = append(pool.Operators, o)
	}
	if err := opRows.Err(); err != nil {
		return nil, err
	}

	resRows, err := r.exec.Query(ctx,
		`SELECT id, name, max_concurrent, task_type_codes FROM sequence_resources ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer resRows.Close()
	for resRows.Next() {
		var id, name, codesJSON string
		var maxConcurrent int
		if err := resRows.Scan(&id, &name, &maxConcurrent, &codesJSON); err != nil {
			return nil, err
		}
		rid, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		res := domain.SequenceResource{ID: rid, Name: name, MaxConcurrent: maxConcurrent}
		if err := json.Unmarshal([]byte(codesJSON), &res.TaskTypeCodes); err != nil {
			return nil, fmt.Errorf("resource %s has malformed type codes: %w", name, err)
		}
		pool.SequenceResources = append(pool.SequenceResources, res)
	}
	if err := resRows.Err(); err != nil {
		return nil, err
	}

	return pool, nil
}

// LoadInstances reads job instances by id, failing when any id is unknown.
func (r *SQLiteProblemRepository) LoadInstances(ctx context.Context, ids []uuid.UUID) ([]domain.JobInstance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	rows, err := r.exec.Query(ctx,
		`SELECT id, pattern_id, priority, earliest_start, due_date
		 FROM job_instances WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]domain.JobInstance, len(ids))
	for rows.Next() {
		var id, patternID, earliestStart string
		var dueDate *string
		var priority int
		if err := rows.Scan(&id, &patternID, &priority, &earliestStart, &dueDate); err != nil {
			return nil, err
		}
		iid, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		pid, err := uuid.Parse(patternID)
		if err != nil {
			return nil, err
		}
		inst := domain.JobInstance{ID: iid, PatternID: pid, Priority: priority}
		inst.EarliestStart, err = time.Parse(time.RFC3339, earliestStart)
		if err != nil {
			return nil, fmt.Errorf("instance %s has a malformed earliest start: %w", id, err)
		}
		if dueDate != nil && *dueDate != "" {
			inst.DueDate, err = time.Parse(time.RFC3339, *dueDate)
			if err != nil {
				return nil, fmt.Errorf("instance %s has a malformed due date: %w", id, err)
			}
		}
		byID[iid] = inst
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the caller's order and surface missing ids.
	out := make([]domain.JobInstance, 0, len(ids))
	for _, id := range ids {
		inst, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, id)
		}
		out = append(out, inst)
	}
	return out, nil
}
