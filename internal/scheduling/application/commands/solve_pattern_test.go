package commands

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/application/services"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/felixgeelhaar/jobforge/internal/scheduling/solver"
)

var commandTestAnchor = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

type fakeProblemRepo struct {
	pattern   *domain.Pattern
	pool      *domain.ResourcePool
	instances []domain.JobInstance
}

func (r *fakeProblemRepo) LoadPattern(_ context.Context, id uuid.UUID) (*domain.Pattern, error) {
	if r.pattern == nil || r.pattern.ID != id {
		return nil, domain.ErrPatternNotFound
	}
	return r.pattern, nil
}

func (r *fakeProblemRepo) LoadResources(context.Context) (*domain.ResourcePool, error) {
	return r.pool, nil
}

func (r *fakeProblemRepo) LoadInstances(_ context.Context, ids []uuid.UUID) ([]domain.JobInstance, error) {
	var out []domain.JobInstance
	for _, id := range ids {
		found := false
		for _, inst := range r.instances {
			if inst.ID == id {
				out = append(out, inst)
				found = true
				break
			}
		}
		if !found {
			return nil, domain.ErrInstanceNotFound
		}
	}
	return out, nil
}

type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*domain.Schedule
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{schedules: make(map[uuid.UUID]*domain.Schedule)}
}

func (s *fakeScheduleStore) Store(_ context.Context, schedule *domain.Schedule) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.ID()] = schedule
	return schedule.ID(), nil
}

func (s *fakeScheduleStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	return schedule, nil
}

func (s *fakeScheduleStore) LatestVersion(_ context.Context, patternID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := 0
	for _, schedule := range s.schedules {
		if schedule.PatternID() == patternID && schedule.Version() > latest {
			latest = schedule.Version()
		}
	}
	return latest, nil
}

type fakePublisher struct {
	mu          sync.Mutex
	routingKeys []string
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.routingKeys...)
}

// newFlowShopRepo builds a two-step chain on one machine: cut (25m) then
// weld (30m), one instance released at the anchor.
func newFlowShopRepo() *fakeProblemRepo {
	mill := domain.Machine{ID: uuid.New(), Name: "mill", Capacity: 1, DepartmentID: "machining", HourlyCost: 60}
	cut := domain.Task{
		ID: uuid.New(), Name: "cut", TypeCode: "cut",
		Modes: []domain.TaskMode{{MachineID: mill.ID, DurationMinutes: 25}},
	}
	weld := domain.Task{
		ID: uuid.New(), Name: "weld", TypeCode: "weld",
		Modes: []domain.TaskMode{{MachineID: mill.ID, DurationMinutes: 30}},
	}
	pattern := &domain.Pattern{
		ID:    uuid.New(),
		Name:  "bracket",
		Tasks: []domain.Task{cut, weld},
		Precedences: []domain.Precedence{
			{Predecessor: cut.ID, Successor: weld.ID, MaxDelayMinutes: -1},
		},
		Objectives: domain.DefaultObjectives(),
	}
	return &fakeProblemRepo{
		pattern: pattern,
		pool:    &domain.ResourcePool{Machines: []domain.Machine{mill}},
		instances: []domain.JobInstance{{
			ID:            uuid.New(),
			PatternID:     pattern.ID,
			Priority:      1,
			EarliestStart: commandTestAnchor,
		}},
	}
}

func newSolveHandler(repo *fakeProblemRepo, store *fakeScheduleStore, pub *fakePublisher) *SolvePatternHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := solver.NewEngine(solver.EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1}, logger)
	return NewSolvePatternHandler(repo, store, services.NewPatternCache(repo), engine, pub,
		SolveDefaults{Budget: 5 * time.Second, ParetoLimit: 4}, logger)
}

func TestSolvePatternHandler_SolvesAndStores(t *testing.T) {
	repo := newFlowShopRepo()
	store := newFakeScheduleStore()
	pub := &fakePublisher{}
	h := newSolveHandler(repo, store, pub)

	res, err := h.Handle(context.Background(), SolvePatternCommand{
		PatternID:   repo.pattern.ID,
		InstanceIDs: []uuid.UUID{repo.instances[0].ID},
		Budget:      2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOptimal, res.Status)
	assert.Equal(t, 55.0, res.ObjectiveValues[domain.ObjectiveMakespan])
	assert.Greater(t, res.Metrics.Evaluations, int64(0))
	assert.Equal(t, 2, res.Metrics.WorkersUsed)

	stored, err := store.FindByID(context.Background(), res.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, repo.pattern.ID, stored.PatternID())
	require.Len(t, stored.Tasks(), 2)
	assert.Equal(t, commandTestAnchor, stored.Tasks()[0].StartAt())
	assert.Equal(t, commandTestAnchor.Add(55*time.Minute), stored.Tasks()[1].EndAt())

	assert.Equal(t, []string{domain.RoutingKeyScheduleSolved}, pub.keys())
	assert.Empty(t, stored.DomainEvents(), "events are cleared after publishing")
}

func TestSolvePatternHandler_PatternNotFound(t *testing.T) {
	repo := newFlowShopRepo()
	h := newSolveHandler(repo, newFakeScheduleStore(), &fakePublisher{})

	_, err := h.Handle(context.Background(), SolvePatternCommand{PatternID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrPatternNotFound)
}

func TestSolvePatternHandler_StaticInfeasibilityPublishesFailure(t *testing.T) {
	repo := newFlowShopRepo()
	// The mill's calendar can never hold the 30 minute weld.
	repo.pool.Machines[0].Calendar = []domain.Window{{Start: 0, End: 26}}
	pub := &fakePublisher{}
	h := newSolveHandler(repo, newFakeScheduleStore(), pub)

	_, err := h.Handle(context.Background(), SolvePatternCommand{
		PatternID:   repo.pattern.ID,
		InstanceIDs: []uuid.UUID{repo.instances[0].ID},
	})

	var sie *solver.StaticInfeasibilityError
	require.ErrorAs(t, err, &sie)
	assert.Equal(t, []string{domain.RoutingKeyScheduleSolveFailed}, pub.keys())
}

func TestSolvePatternHandler_MultiObjectiveToggle(t *testing.T) {
	repo := newFlowShopRepo()
	repo.pattern.Objectives = domain.ObjectiveConfiguration{
		Strategy: domain.StrategyLexicographic,
		Terms: []domain.ObjectiveTerm{
			{Kind: domain.ObjectiveMakespan},
			{Kind: domain.ObjectiveMachineIdle},
		},
	}
	h := newSolveHandler(repo, newFakeScheduleStore(), &fakePublisher{})

	// Toggle off: only the first configured term is optimized.
	res, err := h.Handle(context.Background(), SolvePatternCommand{
		PatternID:   repo.pattern.ID,
		InstanceIDs: []uuid.UUID{repo.instances[0].ID},
		Budget:      2 * time.Second,
	})
	require.NoError(t, err)
	assert.Len(t, res.ObjectiveValues, 1)

	res, err = h.Handle(context.Background(), SolvePatternCommand{
		PatternID:   repo.pattern.ID,
		InstanceIDs: []uuid.UUID{repo.instances[0].ID},
		Budget:      2 * time.Second,
		Toggles:     solver.Toggles{EnableMultiObjective: true},
	})
	require.NoError(t, err)
	assert.Len(t, res.ObjectiveValues, 2)
}

func TestSolvePatternHandler_ResolveStoresNextVersion(t *testing.T) {
	repo := newFlowShopRepo()
	store := newFakeScheduleStore()
	h := newSolveHandler(repo, store, &fakePublisher{})

	cmd := SolvePatternCommand{
		PatternID:   repo.pattern.ID,
		InstanceIDs: []uuid.UUID{repo.instances[0].ID},
		Budget:      2 * time.Second,
	}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.NotEqual(t, first.ScheduleID, second.ScheduleID)

	assert.Equal(t, 1, first.Schedule.Version())
	assert.Equal(t, 2, second.Schedule.Version())

	latest, err := store.LatestVersion(context.Background(), repo.pattern.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
}

func TestSolvePatternHandler_ParetoLimitDefaultsFromDeployment(t *testing.T) {
	repo := newFlowShopRepo()
	repo.pattern.Objectives = domain.ObjectiveConfiguration{
		Strategy: domain.StrategyPareto,
		Terms: []domain.ObjectiveTerm{
			{Kind: domain.ObjectiveMakespan},
			{Kind: domain.ObjectiveMachineIdle},
		},
	}
	h := newSolveHandler(repo, newFakeScheduleStore(), &fakePublisher{})

	objectives := h.effectiveObjectives(repo.pattern, solver.Toggles{EnableMultiObjective: true})
	assert.Equal(t, 4, objectives.ParetoLimit)

	// A configured limit is never overridden.
	repo.pattern.Objectives.ParetoLimit = 2
	objectives = h.effectiveObjectives(repo.pattern, solver.Toggles{EnableMultiObjective: true})
	assert.Equal(t, 2, objectives.ParetoLimit)
}
