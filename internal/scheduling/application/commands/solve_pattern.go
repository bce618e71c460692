package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/application/services"
	schedulingDomain "github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/solver"
	"github.com/felixgeelhaar/jobforge/internal/shared/infrastructure/eventbus"
)

// SolvePatternCommand is one solve request: a pattern, the instances to
// schedule, the optional-constraint toggles, and the search budget.
type SolvePatternCommand struct {
	PatternID   uuid.UUID
	InstanceIDs []uuid.UUID
	Toggles     solver.Toggles

	// Phase caps constraint composition; zero means all three phases.
	Phase solver.Phase

	// Budget is the wall-clock allowance; zero falls back to the handler's
	// default.
	Budget time.Duration

	// Hint optionally seeds the search with a previous assignment. It is
	// advisory: validated before use and dropped when stale.
	Hint *solver.Assignment
}

// SolvePatternResult is the response surface of a solve.
type SolvePatternResult struct {
	ScheduleID      uuid.UUID
	Status          schedulingDomain.SolveStatus
	ObjectiveValues map[schedulingDomain.ObjectiveKind]float64
	Schedule        *schedulingDomain.Schedule
	Metrics         schedulingDomain.PerformanceMetrics
}

// SolveDefaults are the deployment-level fallbacks applied when a command or
// pattern leaves a knob unset.
type SolveDefaults struct {
	// Budget is the wall-clock allowance used when the command carries none.
	Budget time.Duration
	// ParetoLimit caps the pareto front when the pattern configures none.
	ParetoLimit int
	// MaxHorizonMinutes caps the planning horizon; zero keeps the solver's
	// built-in cap.
	MaxHorizonMinutes int
}

// SolvePatternHandler orchestrates a solve end to end: load, build phases,
// search, extract, store, publish.
type SolvePatternHandler struct {
	problems  schedulingDomain.ProblemRepository
	store     schedulingDomain.ScheduleStore
	patterns  *services.PatternCache
	engine    *solver.Engine
	publisher eventbus.Publisher
	defaults  SolveDefaults
	logger    *slog.Logger
}

// NewSolvePatternHandler creates a new handler.
func NewSolvePatternHandler(
	problems schedulingDomain.ProblemRepository,
	store schedulingDomain.ScheduleStore,
	patterns *services.PatternCache,
	engine *solver.Engine,
	publisher eventbus.Publisher,
	defaults SolveDefaults,
	logger *slog.Logger,
) *SolvePatternHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.Budget <= 0 {
		defaults.Budget = 30 * time.Second
	}
	return &SolvePatternHandler{
		problems:  problems,
		store:     store,
		patterns:  patterns,
		engine:    engine,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger,
	}
}

// Handle executes the command.
func (h *SolvePatternHandler) Handle(ctx context.Context, cmd SolvePatternCommand) (*SolvePatternResult, error) {
	pattern, err := h.patterns.Get(ctx, cmd.PatternID)
	if err != nil {
		return nil, err
	}
	pool, err := h.problems.LoadResources(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := h.problems.LoadInstances(ctx, cmd.InstanceIDs)
	if err != nil {
		return nil, err
	}

	toggles := cmd.Toggles
	if toggles.MaxHorizonMinutes <= 0 {
		toggles.MaxHorizonMinutes = h.defaults.MaxHorizonMinutes
	}
	pm, err := solver.Load(pattern, pool, instances, toggles)
	if err != nil {
		return nil, err
	}

	model, err := h.buildModel(pm, cmd.Phase)
	if err != nil {
		h.publishFailure(ctx, cmd.PatternID, schedulingDomain.StatusInfeasible, err)
		return nil, err
	}

	strategy, err := solver.StrategyFor(h.effectiveObjectives(pattern, toggles))
	if err != nil {
		return nil, err
	}

	budget := cmd.Budget
	if budget <= 0 {
		budget = h.defaults.Budget
	}

	h.logger.Info("solve started",
		"pattern_id", cmd.PatternID,
		"instances", len(instances),
		"operations", len(pm.Ops),
		"phase", model.Phase.String(),
		"strategy", strategy.Name(),
		"budget", budget,
	)

	result, solveErr := strategy.Run(ctx, h.engine, model, budget, cmd.Hint)
	if result.Best == nil {
		h.publishFailure(ctx, cmd.PatternID, result.Status, solveErr)
		if solveErr == nil {
			solveErr = solver.ErrNoSolution
		}
		return nil, solveErr
	}

	metrics := schedulingDomain.PerformanceMetrics{
		SolveTime:       result.Elapsed,
		VariableCount:   model.VariableCount(),
		ConstraintCount: model.ConstraintCount(),
		WorkersUsed:     result.WorkersUsed,
		Evaluations:     result.Evaluations,
	}

	extractor := solver.NewExtractor(model)
	schedule, err := extractor.Extract(result, result.Values, metrics)
	if err != nil {
		var viol *solver.ExtractionInvariantViolation
		if errors.As(err, &viol) {
			h.logger.Error("extraction invariant violated",
				"constraint", viol.Constraint,
				"instance_id", viol.InstanceID,
				"task_id", viol.TaskID,
				"detail", viol.Detail,
			)
		}
		h.publishFailure(ctx, cmd.PatternID, schedulingDomain.StatusError, err)
		return nil, err
	}

	latest, err := h.store.LatestVersion(ctx, schedule.PatternID())
	if err != nil {
		return nil, err
	}
	schedule.SetVersion(latest + 1)

	scheduleID, err := h.store.Store(ctx, schedule)
	if err != nil {
		return nil, err
	}
	h.publishEvents(ctx, schedule)

	h.logger.Info("solve finished",
		"schedule_id", scheduleID,
		"status", schedule.Status(),
		"evaluations", metrics.Evaluations,
		"solve_time", metrics.SolveTime,
	)

	return &SolvePatternResult{
		ScheduleID:      scheduleID,
		Status:          schedule.Status(),
		ObjectiveValues: schedule.ObjectiveValues(),
		Schedule:        schedule,
		Metrics:         metrics,
	}, nil
}

// effectiveObjectives resolves the objective configuration for one solve:
// the pattern's own configuration when multi-objective is on, otherwise its
// first term alone. A pareto strategy without a limit takes the deployment
// default.
func (h *SolvePatternHandler) effectiveObjectives(pattern *schedulingDomain.Pattern, toggles solver.Toggles) schedulingDomain.ObjectiveConfiguration {
	objectives := pattern.Objectives
	if !toggles.EnableMultiObjective {
		// Multi-objective off: fall back to the first configured term, or
		// makespan when the pattern carries no configuration.
		objectives = schedulingDomain.DefaultObjectives()
		if len(pattern.Objectives.Terms) > 0 {
			objectives.Terms = pattern.Objectives.Terms[:1]
		}
	}
	if objectives.Strategy == schedulingDomain.StrategyPareto && objectives.ParetoLimit <= 0 {
		objectives.ParetoLimit = h.defaults.ParetoLimit
	}
	return objectives
}

// buildModel composes constraint phases strictly in order up to the
// requested phase.
func (h *SolvePatternHandler) buildModel(pm *solver.ProblemModel, maxPhase solver.Phase) (*solver.Model, error) {
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

func (h *SolvePatternHandler) publishEvents(ctx context.Context, schedule *schedulingDomain.Schedule) {
	if h.publisher == nil {
		return
	}
	for _, event := range schedule.DomainEvents() {
		if err := eventbus.PublishDomainEvent(ctx, h.publisher, event); err != nil {
			h.logger.Warn("failed to publish domain event",
				"routing_key", event.RoutingKey(),
				"error", err,
			)
		}
	}
	schedule.ClearDomainEvents()
}

func (h *SolvePatternHandler) publishFailure(ctx context.Context, patternID uuid.UUID, status schedulingDomain.SolveStatus, cause error) {
	if h.publisher == nil {
		return
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	event := schedulingDomain.NewScheduleSolveFailed(patternID, status, reason)
	if err := eventbus.PublishDomainEvent(ctx, h.publisher, event); err != nil {
		h.logger.Warn("failed to publish solve failure event", "error", err)
	}
}
