package domain

import (
	"errors"
	"sort"
	"time"

	sharedDomain "github.com/felixgeelhaar/jobforge/internal/shared/domain"
	"github.com/google/uuid"
)

var ErrInvalidTaskInterval = errors.New("scheduled task end must be after start")

// SolveStatus is the terminal outcome of a solve.
type SolveStatus string

const (
	StatusOptimal    SolveStatus = "OPTIMAL"
	StatusFeasible   SolveStatus = "FEASIBLE"
	StatusInfeasible SolveStatus = "INFEASIBLE"
	StatusTimeout    SolveStatus = "TIMEOUT"
	StatusCancelled  SolveStatus = "CANCELLED"
	StatusError      SolveStatus = "ERROR"
)

// HasSolution reports whether the status carries a usable assignment.
func (s SolveStatus) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// ScheduledTask is the resolved start/end/machine/operator for one
// (instance, task) operation. Immutable after extraction.
type ScheduledTask struct {
	sharedDomain.BaseEntity
	instanceID   uuid.UUID
	taskID       uuid.UUID
	machineID    uuid.UUID
	operatorID   *uuid.UUID
	startAt      time.Time
	endAt        time.Time
	setupMinutes int
}

// NewScheduledTask creates a resolved task assignment.
func NewScheduledTask(
	instanceID, taskID, machineID uuid.UUID,
	operatorID *uuid.UUID,
	startAt, endAt time.Time,
	setupMinutes int,
) (*ScheduledTask, error) {
	if !endAt.After(startAt) {
		return nil, ErrInvalidTaskInterval
	}
	return &ScheduledTask{
		BaseEntity:   sharedDomain.NewBaseEntity(),
		instanceID:   instanceID,
		taskID:       taskID,
		machineID:    machineID,
		operatorID:   operatorID,
		startAt:      startAt,
		endAt:        endAt,
		setupMinutes: setupMinutes,
	}, nil
}

func (t *ScheduledTask) InstanceID() uuid.UUID  { return t.instanceID }
func (t *ScheduledTask) TaskID() uuid.UUID      { return t.taskID }
func (t *ScheduledTask) MachineID() uuid.UUID   { return t.machineID }
func (t *ScheduledTask) OperatorID() *uuid.UUID { return t.operatorID }
func (t *ScheduledTask) StartAt() time.Time     { return t.startAt }
func (t *ScheduledTask) EndAt() time.Time       { return t.endAt }
func (t *ScheduledTask) SetupMinutes() int      { return t.setupMinutes }

// Duration returns the occupied interval length, setup included.
func (t *ScheduledTask) Duration() time.Duration { return t.endAt.Sub(t.startAt) }

// PerformanceMetrics describes how a solve went, for the response surface.
type PerformanceMetrics struct {
	SolveTime       time.Duration
	VariableCount   int
	ConstraintCount int
	WorkersUsed     int
	Evaluations     int64
}

// Schedule is the aggregate result of one solve: status, objective values,
// metrics, and the resolved task assignments. Re-solves produce new Schedule
// versions; an extracted Schedule is never mutated.
type Schedule struct {
	sharedDomain.BaseAggregateRoot
	patternID       uuid.UUID
	horizonStart    time.Time
	status          SolveStatus
	objectiveValues map[ObjectiveKind]float64
	metrics         PerformanceMetrics
	tasks           []*ScheduledTask
}

// NewSchedule assembles a schedule from extraction output and records the
// solved event.
func NewSchedule(
	patternID uuid.UUID,
	horizonStart time.Time,
	status SolveStatus,
	objectiveValues map[ObjectiveKind]float64,
	metrics PerformanceMetrics,
	tasks []*ScheduledTask,
) *Schedule {
	values := make(map[ObjectiveKind]float64, len(objectiveValues))
	for k, v := range objectiveValues {
		values[k] = v
	}
	s := &Schedule{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		patternID:         patternID,
		horizonStart:      horizonStart,
		status:            status,
		objectiveValues:   values,
		metrics:           metrics,
		tasks:             tasks,
	}
	s.sortTasks()
	s.AddDomainEvent(NewScheduleSolved(s.ID(), patternID, status, values))
	return s
}

func (s *Schedule) PatternID() uuid.UUID      { return s.patternID }
func (s *Schedule) HorizonStart() time.Time   { return s.horizonStart }
func (s *Schedule) Status() SolveStatus       { return s.status }
func (s *Schedule) Tasks() []*ScheduledTask   { return s.tasks }
func (s *Schedule) Metrics() PerformanceMetrics { return s.metrics }

// ObjectiveValues returns a copy of the raw per-component objective values.
func (s *Schedule) ObjectiveValues() map[ObjectiveKind]float64 {
	out := make(map[ObjectiveKind]float64, len(s.objectiveValues))
	for k, v := range s.objectiveValues {
		out[k] = v
	}
	return out
}

// ObjectiveValue returns one component value and whether it was reported.
func (s *Schedule) ObjectiveValue(kind ObjectiveKind) (float64, bool) {
	v, ok := s.objectiveValues[kind]
	return v, ok
}

// Makespan returns the span from horizon start to the latest task end.
func (s *Schedule) Makespan() time.Duration {
	if len(s.tasks) == 0 {
		return 0
	}
	latest := s.tasks[0].EndAt()
	for _, t := range s.tasks[1:] {
		if t.EndAt().After(latest) {
			latest = t.EndAt()
		}
	}
	return latest.Sub(s.horizonStart)
}

func (s *Schedule) sortTasks() {
	sort.Slice(s.tasks, func(i, j int) bool {
		if !s.tasks[i].StartAt().Equal(s.tasks[j].StartAt()) {
			return s.tasks[i].StartAt().Before(s.tasks[j].StartAt())
		}
		return s.tasks[i].ID().String() < s.tasks[j].ID().String()
	})
}

// RehydrateSchedule recreates a schedule from persisted state.
func RehydrateSchedule(
	id uuid.UUID,
	patternID uuid.UUID,
	horizonStart time.Time,
	status SolveStatus,
	objectiveValues map[ObjectiveKind]float64,
	metrics PerformanceMetrics,
	tasks []*ScheduledTask,
	version int,
	createdAt, updatedAt time.Time,
) *Schedule {
	base := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)
	s := &Schedule{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(base, version),
		patternID:         patternID,
		horizonStart:      horizonStart,
		status:            status,
		objectiveValues:   objectiveValues,
		metrics:           metrics,
		tasks:             tasks,
	}
	s.sortTasks()
	return s
}

// RehydrateScheduledTask recreates a scheduled task from persisted state.
func RehydrateScheduledTask(
	id uuid.UUID,
	instanceID, taskID, machineID uuid.UUID,
	operatorID *uuid.UUID,
	startAt, endAt time.Time,
	setupMinutes int,
	createdAt, updatedAt time.Time,
) *ScheduledTask {
	return &ScheduledTask{
		BaseEntity:   sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		instanceID:   instanceID,
		taskID:       taskID,
		machineID:    machineID,
		operatorID:   operatorID,
		startAt:      startAt,
		endAt:        endAt,
		setupMinutes: setupMinutes,
	}
}
