package solver

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

var fixtureAnchor = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

// shopFixture is a small three-task flow shop: cut on the mill, weld on the
// lathe, polish on either machine. One instance yields three operations with
// a 75 minute critical path.
type shopFixture struct {
	pattern   *domain.Pattern
	pool      *domain.ResourcePool
	instances []domain.JobInstance

	mill, lathe      domain.Machine
	cut, weld, polish domain.Task
	operator         domain.Operator
}

func newShopFixture(instanceCount int) *shopFixture {
	f := &shopFixture{}
	f.mill = domain.Machine{ID: uuid.New(), Name: "mill", Capacity: 1, DepartmentID: "machining", HourlyCost: 60}
	f.lathe = domain.Machine{ID: uuid.New(), Name: "lathe", Capacity: 1, DepartmentID: "machining", HourlyCost: 40}
	f.operator = domain.Operator{
		ID:     uuid.New(),
		Name:   "casey",
		Skills: []domain.Skill{{Name: "welding", Level: 3}},
	}

	f.cut = domain.Task{
		ID: uuid.New(), Name: "cut", TypeCode: "cut",
		Modes: []domain.TaskMode{{MachineID: f.mill.ID, DurationMinutes: 25}},
	}
	f.weld = domain.Task{
		ID: uuid.New(), Name: "weld", TypeCode: "weld",
		Modes: []domain.TaskMode{{MachineID: f.lathe.ID, DurationMinutes: 30}},
	}
	f.polish = domain.Task{
		ID: uuid.New(), Name: "polish", TypeCode: "polish",
		Modes: []domain.TaskMode{
			{MachineID: f.mill.ID, DurationMinutes: 20},
			{MachineID: f.lathe.ID, DurationMinutes: 20},
		},
	}

	f.pattern = &domain.Pattern{
		ID:   uuid.New(),
		Name: "bracket",
		Tasks: []domain.Task{f.cut, f.weld, f.polish},
		Precedences: []domain.Precedence{
			{Predecessor: f.cut.ID, Successor: f.weld.ID, MaxDelayMinutes: -1},
			{Predecessor: f.weld.ID, Successor: f.polish.ID, MaxDelayMinutes: -1},
		},
		Objectives: domain.DefaultObjectives(),
	}
	f.pool = &domain.ResourcePool{
		Machines:  []domain.Machine{f.mill, f.lathe},
		Operators: []domain.Operator{f.operator},
	}
	for i := 0; i < instanceCount; i++ {
		f.instances = append(f.instances, domain.JobInstance{
			ID:            uuid.New(),
			PatternID:     f.pattern.ID,
			Priority:      1 + i,
			EarliestStart: fixtureAnchor,
		})
	}
	return f
}

func (f *shopFixture) load(toggles Toggles) (*ProblemModel, error) {
	return Load(f.pattern, f.pool, f.instances, toggles)
}

// buildModel composes all three phases over the fixture.
func (f *shopFixture) buildModel(toggles Toggles) (*Model, error) {
	pm, err := f.load(toggles)
	if err != nil {
		return nil, err
	}
	return buildAllPhases(pm)
}

func buildAllPhases(pm *ProblemModel) (*Model, error) {
	b := NewBuilder(pm)
	var err error
	if b, err = b.Phase1(); err != nil {
		return nil, err
	}
	if b, err = b.Phase2(); err != nil {
		return nil, err
	}
	if b, err = b.Phase3(); err != nil {
		return nil, err
	}
	return b.Build()
}
