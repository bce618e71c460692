package solver

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(cfg EngineConfig) *Engine {
	return NewEngine(cfg, testLogger())
}

func makespanSpec(m *Model, budget time.Duration) SolveSpec {
	return SolveSpec{
		Model:      m,
		Evaluate:   func(a *Assignment) float64 { return float64(a.Makespan()) },
		LowerBound: float64(m.Bounds.Makespan),
		Regular:    true,
		Budget:     budget,
	}
}

func TestEngine_ProvenOptimal(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
	out, err := eng.Solve(context.Background(), makespanSpec(m, 2*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.True(t, out.Proven)
	require.NotNil(t, out.Best)
	assert.Equal(t, 75.0, out.Score)
	assert.Equal(t, 75, out.Best.Makespan())
	assert.Equal(t, 2, out.WorkersUsed)
	assert.Greater(t, out.Evaluations, int64(0))
}

func TestEngine_TimeoutKeepsIncumbent(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	// No enumeration and no usable bound: the budget is the only stop.
	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 0, Seed: 1})
	spec := makespanSpec(m, 150*time.Millisecond)
	spec.LowerBound = -1

	out, err := eng.Solve(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusTimeout, out.Status)
	assert.False(t, out.Proven)
	require.NotNil(t, out.Best)
	assert.Equal(t, 75.0, out.Score, "the dispatch pass already finds the serial optimum")
}

func TestEngine_CancelledBeforeStart(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
	out, err := eng.Solve(ctx, makespanSpec(m, time.Second))

	assert.Equal(t, domain.StatusCancelled, out.Status)
	var ce *CancellationError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.HasSolution)
}

func TestEngine_DeterministicAcrossRuns(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	// Complete enumeration with no early bound stop: the incumbent is the
	// deterministic minimum over the whole space regardless of worker races.
	run := func() Outcome {
		eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 42})
		spec := makespanSpec(m, 2*time.Second)
		spec.LowerBound = -1
		out, err := eng.Solve(context.Background(), spec)
		require.NoError(t, err)
		return out
	}

	a, b := run(), run()
	assert.Equal(t, domain.StatusOptimal, a.Status)
	assert.Equal(t, a.Score, b.Score)
	assert.Equal(t, a.Best, b.Best)
}

func TestEngine_HintSeedsIncumbent(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	hint := NewAssignment(3)
	for i := range hint.Mode {
		hint.Mode[i] = 0
	}
	hint.Start[0], hint.End[0] = 0, 25
	hint.Start[1], hint.End[1] = 25, 55
	hint.Start[2], hint.End[2] = 55, 75

	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
	spec := makespanSpec(m, 2*time.Second)
	spec.Hint = hint

	out, err := eng.Solve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.Equal(t, 75.0, out.Score)
}

func TestEngine_InvalidHintDropped(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	hint := NewAssignment(3)
	for i := range hint.Mode {
		hint.Mode[i] = 0
	}
	// Broken duration link: never trusted, never recorded.
	hint.Start[0], hint.End[0] = 0, 5

	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
	spec := makespanSpec(m, 2*time.Second)
	spec.Hint = hint

	out, err := eng.Solve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.Equal(t, 75.0, out.Score)
}

func TestEngine_SerializesOnSharedMachine(t *testing.T) {
	press := domain.Machine{ID: uuid.New(), Name: "press", Capacity: 1}
	drill := domain.Task{
		ID: uuid.New(), Name: "drill", TypeCode: "drill",
		Modes: []domain.TaskMode{{MachineID: press.ID, DurationMinutes: 30}},
	}
	bore := domain.Task{
		ID: uuid.New(), Name: "bore", TypeCode: "bore",
		Modes: []domain.TaskMode{{MachineID: press.ID, DurationMinutes: 45}},
	}
	pattern := &domain.Pattern{
		ID: uuid.New(), Name: "plate",
		Tasks:      []domain.Task{drill, bore},
		Objectives: domain.DefaultObjectives(),
	}
	pool := &domain.ResourcePool{Machines: []domain.Machine{press}}
	instances := []domain.JobInstance{{ID: uuid.New(), PatternID: pattern.ID, Priority: 1, EarliestStart: fixtureAnchor}}

	pm, err := Load(pattern, pool, instances, Toggles{})
	require.NoError(t, err)
	m, err := buildAllPhases(pm)
	require.NoError(t, err)

	// Independent tasks, but one machine: the workload bound already sums
	// the serialized work.
	assert.Equal(t, 75, m.Bounds.Makespan)

	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
	out, err := eng.Solve(context.Background(), makespanSpec(m, 2*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOptimal, out.Status)
	assert.True(t, out.Proven)
	assert.Equal(t, 75.0, out.Score)
}

func TestEngine_SymmetryBreakingPicksCanonicalMachine(t *testing.T) {
	left := domain.Machine{ID: uuid.New(), Name: "cnc-left", Capacity: 1}
	right := domain.Machine{ID: uuid.New(), Name: "cnc-right", Capacity: 1}
	modes := func() []domain.TaskMode {
		return []domain.TaskMode{
			{MachineID: left.ID, DurationMinutes: 30},
			{MachineID: right.ID, DurationMinutes: 30},
		}
	}
	pattern := &domain.Pattern{
		ID: uuid.New(), Name: "twin",
		Tasks: []domain.Task{
			{ID: uuid.New(), Name: "rough", TypeCode: "rough", Modes: modes()},
			{ID: uuid.New(), Name: "finish", TypeCode: "finish", Modes: modes()},
		},
		Objectives: domain.DefaultObjectives(),
	}
	pool := &domain.ResourcePool{Machines: []domain.Machine{left, right}}
	instances := []domain.JobInstance{{ID: uuid.New(), PatternID: pattern.ID, Priority: 1, EarliestStart: fixtureAnchor}}

	run := func() Outcome {
		pm, err := Load(pattern, pool, instances, Toggles{EnableSymmetryBreaking: true})
		require.NoError(t, err)
		m, err := buildAllPhases(pm)
		require.NoError(t, err)

		eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
		spec := makespanSpec(m, 2*time.Second)
		spec.LowerBound = -1
		out, err := eng.Solve(context.Background(), spec)
		require.NoError(t, err)
		return out
	}

	a, b := run(), run()
	assert.Equal(t, domain.StatusOptimal, a.Status)
	assert.Equal(t, 30.0, a.Score)

	// Of the two mirror-image optima only the canonical one survives the
	// tie-break, run after run.
	require.NotNil(t, a.Best)
	assert.Equal(t, 0, a.Best.Mode[0])
	assert.Equal(t, 1, a.Best.Mode[1])
	assert.Equal(t, a.Best, b.Best)
}

func TestEngine_SetupToggleNeverImprovesOptimum(t *testing.T) {
	solve := func(toggles Toggles) float64 {
		f := newShopFixture(1)
		// Pin polish to the lathe so the weld-to-polish changeover cannot be
		// dodged by switching machines.
		f.pattern.Tasks[2].Modes = []domain.TaskMode{{MachineID: f.lathe.ID, DurationMinutes: 20}}
		f.pattern.SetupRules = []domain.SetupRule{{FromType: "weld", ToType: "polish", SetupMinutes: 10}}

		m, err := f.buildModel(toggles)
		require.NoError(t, err)

		eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
		spec := makespanSpec(m, 2*time.Second)
		spec.LowerBound = -1
		out, err := eng.Solve(context.Background(), spec)
		require.NoError(t, err)
		require.Equal(t, domain.StatusOptimal, out.Status)
		return out.Score
	}

	plain := solve(Toggles{})
	withSetups := solve(Toggles{EnableSetupTimes: true})

	assert.Equal(t, 75.0, plain)
	assert.Equal(t, 85.0, withSetups)
	assert.GreaterOrEqual(t, withSetups, plain)
}

func TestEngine_SearchProvesInfeasibility(t *testing.T) {
	// Two instances both need the mill for their cut, but its calendar only
	// holds one. Propagation cannot see the contention; enumeration can.
	f := newShopFixture(2)
	f.pool.Machines[0].Calendar = []domain.Window{{Start: 0, End: 40}}

	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
	spec := makespanSpec(m, 2*time.Second)
	spec.LowerBound = -1

	out, err := eng.Solve(context.Background(), spec)
	assert.Equal(t, domain.StatusInfeasible, out.Status)
	var sie *SearchInfeasibleError
	require.ErrorAs(t, err, &sie)
	assert.Nil(t, out.Best)
}

func TestEngine_IdleMinimumNotClaimedProven(t *testing.T) {
	// Two 10-minute jobs released 30 minutes apart on one saw. Every
	// earliest-placement schedule leaves a 20-minute gap, yet starting the
	// first job at minute 20 closes it entirely. Idle time is not regular,
	// so finishing the enumeration must not promote the gap to an optimum.
	saw := domain.Machine{ID: uuid.New(), Name: "saw", Capacity: 1}
	pattern := &domain.Pattern{
		ID: uuid.New(), Name: "blank",
		Tasks: []domain.Task{{
			ID: uuid.New(), Name: "trim", TypeCode: "trim",
			Modes: []domain.TaskMode{{MachineID: saw.ID, DurationMinutes: 10}},
		}},
		Objectives: domain.DefaultObjectives(),
	}
	pool := &domain.ResourcePool{Machines: []domain.Machine{saw}}
	instances := []domain.JobInstance{
		{ID: uuid.New(), PatternID: pattern.ID, Priority: 1, EarliestStart: fixtureAnchor},
		{ID: uuid.New(), PatternID: pattern.ID, Priority: 1, EarliestStart: fixtureAnchor.Add(30 * time.Minute)},
	}

	pm, err := Load(pattern, pool, instances, Toggles{})
	require.NoError(t, err)
	m, err := buildAllPhases(pm)
	require.NoError(t, err)

	eng := testEngine(EngineConfig{Workers: 2, ExhaustiveLimit: 8, Seed: 1})
	out, err := eng.Solve(context.Background(), SolveSpec{
		Model:      m,
		Evaluate:   func(a *Assignment) float64 { return Evaluate(m.PM, a, domain.ObjectiveMachineIdle) },
		LowerBound: -1,
		Regular:    regularKind(domain.ObjectiveMachineIdle),
		Budget:     2 * time.Second,
	})
	require.NoError(t, err)

	require.NotNil(t, out.Best)
	assert.Equal(t, 20.0, out.Score)
	assert.Equal(t, domain.StatusFeasible, out.Status)
	assert.False(t, out.Proven)

	// The delayed placement the enumeration never visits beats the incumbent.
	delayed := NewAssignment(2)
	delayed.Mode[0], delayed.Mode[1] = 0, 0
	delayed.Start[0], delayed.End[0] = 20, 30
	delayed.Start[1], delayed.End[1] = 30, 40
	require.NoError(t, m.Check(delayed))
	assert.Equal(t, 0.0, Evaluate(m.PM, delayed, domain.ObjectiveMachineIdle))
}
