package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobInstance is a concrete realization of a pattern: one physical job to be
// produced, with its own due date, priority and release time.
type JobInstance struct {
	ID            uuid.UUID
	PatternID     uuid.UUID
	Priority      int // 1 = highest
	EarliestStart time.Time
	DueDate       time.Time // zero value means no due date
}

// HasDueDate reports whether the instance carries a due date.
func (j JobInstance) HasDueDate() bool { return !j.DueDate.IsZero() }
