package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

func TestExtractor_NoSolution(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	_, err = NewExtractor(m).Extract(Result{}, nil, domain.PerformanceMetrics{})
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestExtractor_BuildsSchedule(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	a := NewAssignment(3)
	for i := range a.Mode {
		a.Mode[i] = 0
	}
	a.Start[0], a.End[0] = 0, 25
	a.Start[1], a.End[1] = 25, 55
	a.Start[2], a.End[2] = 55, 75

	values := map[domain.ObjectiveKind]float64{domain.ObjectiveMakespan: 75}
	metrics := domain.PerformanceMetrics{
		SolveTime:     120 * time.Millisecond,
		VariableCount: m.VariableCount(),
		WorkersUsed:   2,
	}
	res := Result{Outcome: Outcome{Best: a, Status: domain.StatusOptimal, Score: 75}}

	schedule, err := NewExtractor(m).Extract(res, values, metrics)
	require.NoError(t, err)

	assert.Equal(t, f.pattern.ID, schedule.PatternID())
	assert.Equal(t, fixtureAnchor, schedule.HorizonStart())
	assert.Equal(t, domain.StatusOptimal, schedule.Status())
	assert.Equal(t, 75*time.Minute, schedule.Makespan())
	assert.Equal(t, metrics, schedule.Metrics())

	v, ok := schedule.ObjectiveValue(domain.ObjectiveMakespan)
	require.True(t, ok)
	assert.Equal(t, 75.0, v)

	tasks := schedule.Tasks()
	require.Len(t, tasks, 3)
	// Sorted by start time.
	assert.Equal(t, f.cut.ID, tasks[0].TaskID())
	assert.Equal(t, f.weld.ID, tasks[1].TaskID())
	assert.Equal(t, f.polish.ID, tasks[2].TaskID())

	assert.Equal(t, fixtureAnchor, tasks[0].StartAt())
	assert.Equal(t, fixtureAnchor.Add(25*time.Minute), tasks[0].EndAt())
	assert.Equal(t, f.mill.ID, tasks[0].MachineID())
	assert.Nil(t, tasks[0].OperatorID())
	assert.Equal(t, f.instances[0].ID, tasks[0].InstanceID())
}

func TestExtractor_RejectsCorruptAssignment(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	a := NewAssignment(3)
	for i := range a.Mode {
		a.Mode[i] = 0
	}
	a.Start[0], a.End[0] = 0, 25
	a.Start[1], a.End[1] = 25, 55
	a.Start[2], a.End[2] = 55, 70

	res := Result{Outcome: Outcome{Best: a, Status: domain.StatusOptimal}}
	_, err = NewExtractor(m).Extract(res, nil, domain.PerformanceMetrics{})

	var eiv *ExtractionInvariantViolation
	require.ErrorAs(t, err, &eiv)
	assert.Equal(t, "duration-link", eiv.Constraint)
	assert.Equal(t, f.instances[0].ID, eiv.InstanceID)
	assert.Equal(t, f.polish.ID, eiv.TaskID)
}

func TestExtractor_ResolvesOperator(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	a := NewAssignment(3)
	for i := range a.Mode {
		a.Mode[i] = 0
	}
	a.Start[0], a.End[0] = 0, 25
	a.Start[1], a.End[1] = 25, 55
	a.Start[2], a.End[2] = 55, 75
	a.Operator[1] = 0

	res := Result{Outcome: Outcome{Best: a, Status: domain.StatusFeasible}}
	schedule, err := NewExtractor(m).Extract(res, nil, domain.PerformanceMetrics{})
	require.NoError(t, err)

	weld := schedule.Tasks()[1]
	require.NotNil(t, weld.OperatorID())
	assert.Equal(t, f.operator.ID, *weld.OperatorID())
}
