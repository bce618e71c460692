package domain

import (
	sharedDomain "github.com/felixgeelhaar/jobforge/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	RoutingKeyScheduleSolved      = "schedule.solved"
	RoutingKeyScheduleSolveFailed = "schedule.solve_failed"
)

// ScheduleSolved is emitted when a solve reaches a terminal state with a
// stored schedule.
type ScheduleSolved struct {
	sharedDomain.BaseEvent
	PatternID       uuid.UUID
	Status          SolveStatus
	ObjectiveValues map[ObjectiveKind]float64
}

// NewScheduleSolved creates a ScheduleSolved event.
func NewScheduleSolved(
	scheduleID, patternID uuid.UUID,
	status SolveStatus,
	values map[ObjectiveKind]float64,
) ScheduleSolved {
	return ScheduleSolved{
		BaseEvent:       sharedDomain.NewBaseEvent(scheduleID, "Schedule", RoutingKeyScheduleSolved),
		PatternID:       patternID,
		Status:          status,
		ObjectiveValues: values,
	}
}

// ScheduleSolveFailed is emitted when a solve terminates without any
// storable schedule (validation failure, infeasibility, error).
type ScheduleSolveFailed struct {
	sharedDomain.BaseEvent
	PatternID uuid.UUID
	Status    SolveStatus
	Reason    string
}

// NewScheduleSolveFailed creates a ScheduleSolveFailed event.
func NewScheduleSolveFailed(patternID uuid.UUID, status SolveStatus, reason string) ScheduleSolveFailed {
	return ScheduleSolveFailed{
		BaseEvent: sharedDomain.NewBaseEvent(patternID, "Schedule", RoutingKeyScheduleSolveFailed),
		PatternID: patternID,
		Status:    status,
		Reason:    reason,
	}
}
