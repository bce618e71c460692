package domain

import (
	"context"

	"github.com/google/uuid"
)

// ProblemRepository is the read side the engine consumes: patterns, resource
// definitions, and per-instance overrides.
type ProblemRepository interface {
	LoadPattern(ctx context.Context, patternID uuid.UUID) (*Pattern, error)
	LoadResources(ctx context.Context) (*ResourcePool, error)
	LoadInstances(ctx context.Context, ids []uuid.UUID) ([]JobInstance, error)
}

// ScheduleStore persists extracted schedules. The engine never writes to
// storage directly; it hands completed schedules to this port.
// LatestVersion reports the highest stored version for a pattern, zero when
// none exists; re-solves store the next version.
type ScheduleStore interface {
	Store(ctx context.Context, schedule *Schedule) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	LatestVersion(ctx context.Context, patternID uuid.UUID) (int, error)
}
