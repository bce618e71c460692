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

// PostgresScheduleRepository implements domain.ScheduleStore using
// PostgreSQL.
type PostgresScheduleRepository struct {
	exec database.Executor
}

// NewPostgresScheduleRepository creates a new PostgreSQL schedule repository.
func NewPostgresScheduleRepository(exec database.Executor) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{exec: exec}
}

// Store persists a schedule and its task assignments.
func (r *PostgresScheduleRepository) Store(ctx context.Context, schedule *domain.Schedule) (uuid.UUID, error) {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		schedule.ID(),
		schedule.PatternID(),
		schedule.HorizonStart().UTC(),
		string(schedule.Status()),
		values,
		metrics.SolveTime.Milliseconds(),
		metrics.VariableCount,
		metrics.ConstraintCount,
		metrics.WorkersUsed,
		metrics.Evaluations,
		schedule.Version(),
		schedule.CreatedAt().UTC(),
		schedule.UpdatedAt().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to store schedule: %w", err)
	}

	for _, task := range schedule.Tasks() {
		_, err = r.exec.Exec(ctx,
			`INSERT INTO scheduled_tasks
			 (id, schedule_id, instance_id, task_id, machine_id, operator_id,
			  start_at, end_at, setup_minutes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			task.ID(),
			schedule.ID(),
			task.InstanceID(),
			task.TaskID(),
			task.MachineID(),
			task.OperatorID(),
			task.StartAt().UTC(),
			task.EndAt().UTC(),
			task.SetupMinutes(),
			task.CreatedAt().UTC(),
			task.UpdatedAt().UTC(),
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to store scheduled task: %w", err)
		}
	}

	return schedule.ID(), nil
}

// FindByID retrieves a schedule with its tasks.
func (r *PostgresScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	row := r.exec.QueryRow(ctx,
		`SELECT pattern_id, horizon_start, status, objective_values,
		        solve_time_ms, variable_count, constraint_count, workers_used, evaluations,
		        version, created_at, updated_at
		 FROM schedules WHERE id = $1`, id)

	var patternID uuid.UUID
	var horizonStart, createdAt, updatedAt time.Time
	var status string
	var valuesJSON []byte
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

	var values map[domain.ObjectiveKind]float64
	if err := json.Unmarshal(valuesJSON, &values); err != nil {
		return nil, fmt.Errorf("schedule %s has malformed objective values: %w", id, err)
	}

	tasks, err := r.loadTasks(ctx, id)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateSchedule(
		id, patternID, horizonStart,
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
		createdAt, updatedAt,
	), nil
}

// LatestVersion returns the highest stored schedule version for a pattern,
// zero when the pattern has no schedules yet.
func (r *PostgresScheduleRepository) LatestVersion(ctx context.Context, patternID uuid.UUID) (int, error) {
	row := r.exec.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schedules WHERE pattern_id = $1`,
		patternID)
	var latest int
	if err := row.Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to read latest schedule version: %w", err)
	}
	return latest, nil
}

func (r *PostgresScheduleRepository) loadTasks(ctx context.Context, scheduleID uuid.UUID) ([]*domain.ScheduledTask, error) {
	rows, err := r.exec.Query(ctx,
		`SELECT id, instance_id, task_id, machine_id, operator_id,
		        start_at, end_at, setup_minutes, created_at, updated_at
		 FROM scheduled_tasks WHERE schedule_id = $1 ORDER BY start_at, id`,
		scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.ScheduledTask
	for rows.Next() {
		var id, instanceID, taskID, machineID uuid.UUID
		var operatorID *uuid.UUID
		var startAt, endAt, createdAt, updatedAt time.Time
		var setupMinutes int
		err := rows.Scan(&id, &instanceID, &taskID, &machineID, &operatorID,
			&startAt, &endAt, &setupMinutes, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, domain.RehydrateScheduledTask(
			id, instanceID, taskID, machineID, operatorID,
			startAt, endAt, setupMinutes, createdAt, updatedAt))
	}
	return tasks, rows.Err()
}
