package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPhaseOrder    = errors.New("constraint phases must be applied in order")
	ErrModelNotBuilt = errors.New("model has not been built")
	ErrNoSolution    = errors.New("no solution available")
)

// StaticInfeasibilityError is raised when bound propagation empties a
// variable's domain before search starts. It names the offending phase,
// constraint and operation so callers can retry with reduced scope.
type StaticInfeasibilityError struct {
	Phase      Phase
	Constraint string
	InstanceID uuid.UUID
	TaskID     uuid.UUID
	Detail     string
}

func (e *StaticInfeasibilityError) Error() string {
	return fmt.Sprintf("statically infeasible at %s (%s): task %s of instance %s: %s",
		e.Phase, e.Constraint, e.TaskID, e.InstanceID, e.Detail)
}

// SearchInfeasibleError means the search space was exhausted after full
// building without finding any solution. Distinct from static infeasibility:
// the variable domains were non-empty but no reachable assignment satisfied
// every constraint. Detail states whether the exhausted space was the whole
// space or only the earliest-placement schedules.
type SearchInfeasibleError struct {
	Detail string
}

func (e *SearchInfeasibleError) Error() string {
	return fmt.Sprintf("search found no feasible schedule: %s", e.Detail)
}

// TimeoutError reports wall-clock budget exhaustion. HasSolution
// distinguishes a timeout that still carries a feasible incumbent from one
// with none.
type TimeoutError struct {
	Budget      time.Duration
	HasSolution bool
}

func (e *TimeoutError) Error() string {
	if e.HasSolution {
		return fmt.Sprintf("time budget %s exhausted; best feasible solution retained", e.Budget)
	}
	return fmt.Sprintf("time budget %s exhausted with no feasible solution", e.Budget)
}

// ExtractionInvariantViolation is a fatal internal-defect signal: the
// extractor's independent re-validation found a hard constraint violated by
// the solver's concrete assignment. Never auto-recovered.
type ExtractionInvariantViolation struct {
	Constraint string
	InstanceID uuid.UUID
	TaskID     uuid.UUID
	Detail     string
}

func (e *ExtractionInvariantViolation) Error() string {
	return fmt.Sprintf("extraction invariant violated by %s: task %s of instance %s: %s",
		e.Constraint, e.TaskID, e.InstanceID, e.Detail)
}

// CancellationError reports a caller-initiated cancellation.
type CancellationError struct {
	HasSolution bool
}

func (e *CancellationError) Error() string {
	if e.HasSolution {
		return "solve cancelled; best feasible solution retained"
	}
	return "solve cancelled"
}

// emptyDomainError is the internal propagation failure; the builder wraps it
// into a StaticInfeasibilityError with phase context.
type emptyDomainError struct {
	op         int
	constraint string
	detail     string
}

func (e *emptyDomainError) Error() string {
	return fmt.Sprintf("empty domain for operation %d (%s): %s", e.op, e.constraint, e.detail)
}
