package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// GetScheduleQuery requests one stored schedule by id.
type GetScheduleQuery struct {
	ScheduleID uuid.UUID
}

// ScheduledTaskView is the read model of one task assignment.
type ScheduledTaskView struct {
	InstanceID   uuid.UUID
	TaskID       uuid.UUID
	MachineID    uuid.UUID
	OperatorID   *uuid.UUID
	StartAt      time.Time
	EndAt        time.Time
	SetupMinutes int
}

// ScheduleView is the read model of a stored schedule.
type ScheduleView struct {
	ID              uuid.UUID
	PatternID       uuid.UUID
	HorizonStart    time.Time
	Status          domain.SolveStatus
	ObjectiveValues map[domain.ObjectiveKind]float64
	Makespan        time.Duration
	Metrics         domain.PerformanceMetrics
	Tasks           []ScheduledTaskView
}

// GetScheduleHandler handles the GetScheduleQuery.
type GetScheduleHandler struct {
	store domain.ScheduleStore
}

// NewGetScheduleHandler creates a new handler.
func NewGetScheduleHandler(store domain.ScheduleStore) *GetScheduleHandler {
	return &GetScheduleHandler{store: store}
}

// Handle executes the query.
func (h *GetScheduleHandler) Handle(ctx context.Context, q GetScheduleQuery) (*ScheduleView, error) {
	schedule, err := h.store.FindByID(ctx, q.ScheduleID)
	if err != nil {
		return nil, err
	}

	view := &ScheduleView{
		ID:              schedule.ID(),
		PatternID:       schedule.PatternID(),
		HorizonStart:    schedule.HorizonStart(),
		Status:          schedule.Status(),
		ObjectiveValues: schedule.ObjectiveValues(),
		Makespan:        schedule.Makespan(),
		Metrics:         schedule.Metrics(),
	}
	for _, t := range schedule.Tasks() {
		view.Tasks = append(view.Tasks, ScheduledTaskView{
			InstanceID:   t.InstanceID(),
			TaskID:       t.TaskID(),
			MachineID:    t.MachineID(),
			OperatorID:   t.OperatorID(),
			StartAt:      t.StartAt(),
			EndAt:        t.EndAt(),
			SetupMinutes: t.SetupMinutes(),
		})
	}
	return view, nil
}
