package solver

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

func TestLoad_FlattensOperations(t *testing.T) {
	f := newShopFixture(2)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	assert.Len(t, pm.Ops, 6)
	assert.Len(t, pm.Topo, 6)
	assert.Equal(t, fixtureAnchor, pm.HorizonStart)

	// Instance-major, tasks in pattern order.
	assert.Equal(t, f.instances[0].ID, pm.Ops[0].InstanceID)
	assert.Equal(t, f.cut.ID, pm.Ops[0].TaskID)
	assert.Equal(t, f.instances[1].ID, pm.Ops[3].InstanceID)

	// Precedence arcs stay within one instance.
	weld := pm.Ops[1]
	require.Len(t, weld.Preds, 1)
	assert.Equal(t, 0, weld.Preds[0].Op)
	require.Len(t, weld.Succs, 1)
	assert.Equal(t, 2, weld.Succs[0].Op)
}

func TestLoad_ReleaseAndDueMinutes(t *testing.T) {
	f := newShopFixture(1)
	f.instances[0].EarliestStart = fixtureAnchor.Add(45 * time.Minute)
	f.instances[0].DueDate = fixtureAnchor.Add(4 * time.Hour)
	f.instances = append(f.instances, domain.JobInstance{
		ID:            uuid.New(),
		PatternID:     f.pattern.ID,
		Priority:      2,
		EarliestStart: fixtureAnchor,
	})

	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	// Anchor is the earliest release over all instances.
	assert.Equal(t, fixtureAnchor, pm.HorizonStart)
	assert.Equal(t, 45, pm.Ops[0].Release)
	assert.Equal(t, 240, pm.Ops[0].Due)
	assert.Equal(t, 0, pm.Ops[3].Release)
	assert.Equal(t, -1, pm.Ops[3].Due, "missing due date maps to -1")
}

func TestLoad_ValidationFailures(t *testing.T) {
	base := func() *shopFixture { return newShopFixture(1) }

	tests := []struct {
		name   string
		mutate func(f *shopFixture)
	}{
		{"no tasks", func(f *shopFixture) { f.pattern.Tasks = nil }},
		{"no machines", func(f *shopFixture) { f.pool.Machines = nil }},
		{"no instances", func(f *shopFixture) { f.instances = nil }},
		{"task without modes", func(f *shopFixture) { f.pattern.Tasks[0].Modes = nil }},
		{"mode references unknown machine", func(f *shopFixture) {
			f.pattern.Tasks[0].Modes[0].MachineID = uuid.New()
		}},
		{"non-positive duration", func(f *shopFixture) {
			f.pattern.Tasks[0].Modes[0].DurationMinutes = 0
		}},
		{"negative setup", func(f *shopFixture) {
			f.pattern.Tasks[0].Modes[0].SetupMinutes = -5
		}},
		{"zero machine capacity", func(f *shopFixture) { f.pool.Machines[0].Capacity = 0 }},
		{"precedence to unknown task", func(f *shopFixture) {
			f.pattern.Precedences[0].Successor = uuid.New()
		}},
		{"max delay below min delay", func(f *shopFixture) {
			f.pattern.Precedences[0].MinDelayMinutes = 30
			f.pattern.Precedences[0].MaxDelayMinutes = 10
		}},
		{"precedence cycle", func(f *shopFixture) {
			f.pattern.Precedences = append(f.pattern.Precedences, domain.Precedence{
				Predecessor: f.polish.ID, Successor: f.cut.ID, MaxDelayMinutes: -1,
			})
		}},
		{"instance of a different pattern", func(f *shopFixture) {
			f.instances[0].PatternID = uuid.New()
		}},
		{"due date before earliest start", func(f *shopFixture) {
			f.instances[0].EarliestStart = fixtureAnchor.Add(2 * time.Hour)
			f.instances[0].DueDate = fixtureAnchor.Add(time.Hour)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.mutate(f)
			_, err := f.load(Toggles{})
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "expected a validation error, got %v", err)
		})
	}
}

func TestComputeHorizon_SerialStack(t *testing.T) {
	f := newShopFixture(1)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	// One instance: 25 + 30 + 20 with no setups or delays.
	assert.Equal(t, 75, pm.Horizon)
}

func TestComputeHorizon_RespectsConfiguredCap(t *testing.T) {
	f := newShopFixture(1)

	pm, err := f.load(Toggles{MaxHorizonMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, 60, pm.Horizon, "the serial stack is clamped to the cap")

	// Zero keeps the built-in four week maximum.
	pm, err = f.load(Toggles{})
	require.NoError(t, err)
	assert.Equal(t, 75, pm.Horizon)
}

func TestPlacementComplete(t *testing.T) {
	pm, err := newShopFixture(1).load(Toggles{})
	require.NoError(t, err)
	assert.True(t, pm.placementComplete())

	// A finite max delay can force delaying the predecessor itself.
	f := newShopFixture(1)
	f.pattern.Precedences[0].MaxDelayMinutes = 10
	pm, err = f.load(Toggles{})
	require.NoError(t, err)
	assert.False(t, pm.placementComplete())

	// With several operators the first qualified pick is one of many.
	f = newShopFixture(1)
	f.pattern.Tasks[1].Modes[0].NeedsOperator = true
	f.pool.Operators = append(f.pool.Operators, domain.Operator{
		ID: uuid.New(), Name: "riley",
		Skills: []domain.Skill{{Name: "welding", Level: 3}},
	})
	pm, err = f.load(Toggles{})
	require.NoError(t, err)
	assert.False(t, pm.placementComplete())
}

func TestNetWindows_SubtractsMaintenance(t *testing.T) {
	f := newShopFixture(1)
	f.pool.Machines[0].Calendar = []domain.Window{{Start: 0, End: 60}}
	f.pool.Machines[0].Maintenance = []domain.Window{{Start: 20, End: 30}}

	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	assert.Equal(t, []domain.Window{{Start: 0, End: 20}, {Start: 30, End: 60}}, pm.NetWindows(0))
	// No calendar means one full-horizon window.
	assert.Equal(t, []domain.Window{{Start: 0, End: pm.Horizon}}, pm.NetWindows(1))
}

func TestSetupBetween_MachineSpecificWinsOverGeneric(t *testing.T) {
	f := newShopFixture(1)
	f.pattern.SetupRules = []domain.SetupRule{
		{FromType: "cut", ToType: "weld", SetupMinutes: 10},
		{MachineID: f.mill.ID, FromType: "cut", ToType: "weld", SetupMinutes: 25},
	}
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	assert.Equal(t, 25, pm.SetupBetween(0, "cut", "weld"))
	assert.Equal(t, 10, pm.SetupBetween(1, "cut", "weld"))
	assert.Equal(t, 0, pm.SetupBetween(0, "weld", "cut"))
}
