package commands

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/application/services"
	schedulingDomain "github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/solver"
)

// ValidateProblemCommand checks a problem without solving it: input
// validation, constraint composition and bound propagation only.
type ValidateProblemCommand struct {
	PatternID   uuid.UUID
	InstanceIDs []uuid.UUID
	Toggles     solver.Toggles
	Phase       solver.Phase
}

// ValidateProblemResult reports the composed model's shape, or why the
// problem can never be scheduled.
type ValidateProblemResult struct {
	Valid              bool
	OperationCount     int
	VariableCount      int
	ConstraintCount    int
	MakespanLowerBound int

	// Reason carries the validation or static infeasibility error when
	// Valid is false.
	Reason error
}

// ValidateProblemHandler handles the ValidateProblemCommand.
type ValidateProblemHandler struct {
	problems schedulingDomain.ProblemRepository
	patterns *services.PatternCache
}

// NewValidateProblemHandler creates a new handler.
func NewValidateProblemHandler(
	problems schedulingDomain.ProblemRepository,
	patterns *services.PatternCache,
) *ValidateProblemHandler {
	return &ValidateProblemHandler{problems: problems, patterns: patterns}
}

// Handle executes the command. Malformed input and static infeasibility are
// reported in the result, not as errors; errors are reserved for storage
// failures.
func (h *ValidateProblemHandler) Handle(ctx context.Context, cmd ValidateProblemCommand) (*ValidateProblemResult, error) {
	pattern, err := h.patterns.Get(ctx, cmd.PatternID)
	if err != nil {
		if errors.Is(err, schedulingDomain.ErrPatternNotFound) {
			return &ValidateProblemResult{Reason: err}, nil
		}
		return nil, err
	}
	pool, err := h.problems.LoadResources(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := h.problems.LoadInstances(ctx, cmd.InstanceIDs)
	if err != nil {
		if errors.Is(err, schedulingDomain.ErrInstanceNotFound) {
			return &ValidateProblemResult{Reason: err}, nil
		}
		return nil, err
	}

	pm, err := solver.Load(pattern, pool, instances, cmd.Toggles)
	if err != nil {
		return &ValidateProblemResult{Reason: err}, nil
	}

	model, err := buildPhases(pm, cmd.Phase)
	if err != nil {
		return &ValidateProblemResult{OperationCount: len(pm.Ops), Reason: err}, nil
	}

	return &ValidateProblemResult{
		Valid:              true,
		OperationCount:     len(pm.Ops),
		VariableCount:      model.VariableCount(),
		ConstraintCount:    model.ConstraintCount(),
		MakespanLowerBound: model.Bounds.Makespan,
	}, nil
}

// buildPhases composes constraint phases strictly in order up to the
// requested phase.
func buildPhases(pm *solver.ProblemModel, maxPhase solver.Phase) (*solver.Model, error) {
	if maxPhase <= solver.PhaseNone || maxPhase > solver.PhaseCalendars {
		maxPhase = solver.PhaseCalendars
	}
	b := solver.NewBuilder(pm)
	var err error
	if b, err = b.Phase1(); err != nil {
		return nil, err
	}
	if maxPhase >= solver.PhaseResources {
		if b, err = b.Phase2(); err != nil {
			return nil, err
		}
	}
	if maxPhase >= solver.PhaseCalendars {
		if b, err = b.Phase3(); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
