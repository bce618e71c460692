package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/database"
)

// SQLiteScheduleRepository implements domain.ScheduleStore using SQLite.
type SQLiteScheduleRepository struct {
	exec database.Executor
}

// NewSQLiteScheduleRepository creates a new SQLite schedule repository.
func NewSQLiteScheduleRepository(exec database.Executor) *SQLiteScheduleRepository {
	return &SQLiteScheduleRepository{exec: exec}
}

// Store persists a schedule and its task assignments.
func (r *SQLiteScheduleRepository) Store(ctx context.Context, schedule *domain.Schedule) (uuid.UUID, error) {
	values, err := json.Marshal(schedule.ObjectiveValues())
	if err != nil {
		return uuid.Nil, err
	}
	metrics := schedule.Metrics()

	_, err = r.exec.Exec(ctx,
		`INSERT INTO schedules
		 (id, pattern_id, horizon_start, status, objective_values,
		  solve_time_ms, variable_count, constraint_count, workers_used, evaluations,
		  version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID().String(),
		schedule.PatternID().String(),
		schedule.HorizonStart().UTC().Format(time.RFC3339),
		string(schedule.Status()),
		string(values),
		metrics.SolveTime.Milliseconds(),
		metrics.VariableCount,
		metrics.ConstraintCount,
		metrics.WorkersUsed,
		metrics.Evaluations,
		schedule.Version(),
		schedule.CreatedAt().UTC().Format(time.RFC3339),
		schedule.UpdatedAt().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to store schedule: %w", err)
	}

	for _, task := range schedule.Tasks() {
		var operatorID *string
		if task.OperatorID() != nil {
			s := task.OperatorID().String()
			operatorID = &s
		}
		_, err = r.exec.Exec(ctx,
			`INSERT INTO scheduled_tasks
			 (id, schedule_id, instance_id, task_id, machine_id, operator_id,
			  start_at, end_at, setup_minutes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID().String(),
			schedule.ID().String(),
			task.InstanceID().String(),
			task.TaskID().String(),
			task.MachineID().String(),
			operatorID,
			task.StartAt().UTC().Format(time.RFC3339),
			task.EndAt().UTC().Format(time.RFC3339),
			task.SetupMinutes(),
			task.CreatedAt().UTC().Format(time.RFC3339),
			task.UpdatedAt().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to store scheduled task: %w", err)
		}
	}

	return schedule.ID(), nil
}

// FindByID retrieves a schedule with its tasks.
func (r *SQLiteScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	row := r.exec.QueryRow(ctx,
		`SELECT pattern_id, horizon_start, status, objective_values,
		        solve_time_ms, variable_count, constraint_count, workers_used, evaluations,
		        version, created_at, updated_at
		 FROM schedules WHERE id = ?`, id.String())

	var patternID, horizonStart, status, valuesJSON, createdAt, updatedAt string
	var solveTimeMS, evaluations int64
	var variableCount, constraintCount, workersUsed, version int
	err := row.Scan(&patternID, &horizonStart, &status, &valuesJSON,
		&solveTimeMS, &variableCount, &constraintCount, &workersUsed, &evaluations,
		&version, &createdAt, &updatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, err
	}

	pid, err := uuid.Parse(patternID)
	if err != nil {
		return nil, err
	}
	horizon, err := time.Parse(time.RFC3339, horizonStart)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, err
	}
	var values map[domain.ObjectiveKind]float64
	if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
		return nil, fmt.Errorf("schedule %s has malformed objective values: %w", id, err)
	}

	tasks, err := r.loadTasks(ctx, id)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateSchedule(
		id, pid, horizon,
		domain.SolveStatus(status),
		values,
		domain.PerformanceMetrics{
			SolveTime:       time.Duration(solveTimeMS) * time.Millisecond,
			VariableCount:   variableCount,
			ConstraintCount: constraintCount,
			WorkersUsed:     workersUsed,
			Evaluations:     evaluations,
		},
		tasks,
		version,
		created, updated,
	), nil
}

// LatestVersion returns the highest stored schedule version for a pattern,
// zero when the pattern has no schedules yet.
func (r *SQLiteScheduleRepository) LatestVersion(ctx context.Context, patternID uuid.UUID) (int, error) {
	row := r.exec.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schedules WHERE pattern_id = ?`,
		patternID.String())
	var latest int
	if err := row.Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to read latest schedule version: %w", err)
	}
	return latest, nil
}

func (r *SQLiteScheduleRepository) loadTasks(ctx context.Context, scheduleID uuid.UUID) ([]*domain.ScheduledTask, error) {
	rows, err := r.exec.Query(ctx,
		`SELECT id, instance_id, task_id, machine_id, operator_id,
		        start_at, end_at, setup_minutes, created_at, updated_at
		 FROM scheduled_tasks WHERE schedule_id = ? ORDER BY start_at, id`,
		scheduleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.ScheduledTask
	for rows.Next() {
		var idStr, instanceID, taskID, machineID, startAt, endAt, createdAt, updatedAt string
		var operatorID *string
		var setupMinutes int
		err := rows.Scan(&idStr, &instanceID, &taskID, &machineID, &operatorID,
			&startAt, &endAt, &setupMinutes, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		task, err := rehydrateTaskRow(idStr, instanceID, taskID, machineID, operatorID,
			startAt, endAt, setupMinutes, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func rehydrateTaskRow(
	idStr, instanceID, taskID, machineID string,
	operatorID *string,
	startAt, endAt string,
	setupMinutes int,
	createdAt, updatedAt string,
) (*domain.ScheduledTask, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	iid, err := uuid.Parse(instanceID)
	if err != nil {
		return nil, err
	}
	tid, err := uuid.Parse(taskID)
	if err != nil {
		return nil, err
	}
	mid, err := uuid.Parse(machineID)
	if err != nil {
		return nil, err
	}
	var oid *uuid.UUID
	if operatorID != nil && *operatorID != "" {
		parsed, err := uuid.Parse(*operatorID)
		if err != nil {
			return nil, err
		}
		oid = &parsed
	}
	start, err := time.Parse(time.RFC3339, startAt)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(time.RFC3339, endAt)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateScheduledTask(id, iid, tid, mid, oid, start, end, setupMinutes, created, updated), nil
}
