package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

func TestBuilder_PhaseOrder(t *testing.T) {
	f := newShopFixture(1)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	b := NewBuilder(pm)
	_, err = b.Phase2()
	assert.ErrorIs(t, err, ErrPhaseOrder)
	_, err = b.Phase3()
	assert.ErrorIs(t, err, ErrPhaseOrder)
	_, err = b.Build()
	assert.ErrorIs(t, err, ErrModelNotBuilt)

	b, err = b.Phase1()
	require.NoError(t, err)
	_, err = b.Phase1()
	assert.ErrorIs(t, err, ErrPhaseOrder)
	_, err = b.Phase3()
	assert.ErrorIs(t, err, ErrPhaseOrder)

	// Building after phase 1 alone is allowed.
	m, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, PhaseCore, m.Phase)
}

func TestBuilder_AllPhases(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	assert.Equal(t, PhaseCalendars, m.Phase)
	assert.Equal(t, 8, m.VariableCount())
	assert.Greater(t, m.ConstraintCount(), 0)

	// Critical path 25 + 30 + 20.
	assert.Equal(t, 75, m.Bounds.Makespan)
}

func TestBuilder_WorkloadLowerBound(t *testing.T) {
	// Three independent single-task instances pinned to one machine: the
	// workload bound 3 * 25 exceeds the critical path bound 25.
	f := newShopFixture(3)
	f.pattern.Tasks = []domain.Task{f.cut}
	f.pattern.Precedences = nil

	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)
	assert.Equal(t, 75, m.Bounds.Makespan)
}

func TestBuilder_StaticInfeasibility_CalendarTooNarrow(t *testing.T) {
	// A 50 minute operation against a calendar of windows no longer than 40
	// minutes: phase 3 propagation proves it can never run.
	f := newShopFixture(1)
	f.pattern.Tasks = []domain.Task{{
		ID: f.cut.ID, Name: "cut", TypeCode: "cut",
		Modes: []domain.TaskMode{{MachineID: f.mill.ID, DurationMinutes: 50}},
	}}
	f.pattern.Precedences = nil
	f.pool.Machines[0].Calendar = []domain.Window{{Start: 0, End: 40}}

	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	b, err := NewBuilder(pm).Phase1()
	require.NoError(t, err)
	b, err = b.Phase2()
	require.NoError(t, err)
	_, err = b.Phase3()

	require.Error(t, err)
	var sie *StaticInfeasibilityError
	require.ErrorAs(t, err, &sie)
	assert.Equal(t, PhaseCalendars, sie.Phase)
	assert.Equal(t, f.instances[0].ID, sie.InstanceID)
	assert.Equal(t, f.cut.ID, sie.TaskID)
}

func TestBuilder_StaticInfeasibility_ImpossibleDelayChain(t *testing.T) {
	// Forcing weld to start both after cut ends and no later than its own
	// release makes the domain empty in phase 1.
	f := newShopFixture(1)
	f.pattern.Precedences[0].MinDelayMinutes = 30
	f.pattern.Precedences[0].MaxDelayMinutes = 30
	f.pattern.Precedences = append(f.pattern.Precedences, domain.Precedence{
		Predecessor: f.cut.ID, Successor: f.weld.ID, MinDelayMinutes: 0, MaxDelayMinutes: 10,
	})

	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	_, err = NewBuilder(pm).Phase1()
	require.Error(t, err)
	var sie *StaticInfeasibilityError
	require.ErrorAs(t, err, &sie)
	assert.Equal(t, PhaseCore, sie.Phase)
}

func TestBuilder_TogglesAddConstraints(t *testing.T) {
	f := newShopFixture(1)
	plain, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	f2 := newShopFixture(1)
	f2.pattern.SetupRules = []domain.SetupRule{{FromType: "cut", ToType: "weld", SetupMinutes: 10}}
	toggled, err := f2.buildModel(Toggles{
		EnableSetupTimes:       true,
		EnableSkillMatching:    true,
		EnableSymmetryBreaking: true,
		DepartmentWIPLimits:    map[string]int{"machining": 2},
	})
	require.NoError(t, err)

	assert.Greater(t, len(toggled.Constraints), len(plain.Constraints))
}

func TestModel_CheckRejectsCorruptAssignment(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	a := NewAssignment(len(m.PM.Ops))
	for i := range m.PM.Ops {
		a.Mode[i] = 0
	}
	// cut and weld fine, polish overlapping weld's machine interval is not
	// the defect here; the broken duration link is.
	a.Start[0], a.End[0] = 0, 25
	a.Start[1], a.End[1] = 25, 55
	a.Start[2], a.End[2] = 55, 70 // 15 minutes, mode says 20

	err = m.Check(a)
	require.Error(t, err)
	var v *violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "duration-link", v.constraint)
	assert.Equal(t, 2, v.op)
}
