package solver

import (
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
	"github.com/google/uuid"
)

// DefaultMaxHorizonMinutes caps the scheduling horizon at four weeks.
const DefaultMaxHorizonMinutes = 4 * 7 * 24 * 60

// Toggles enable optional constraint families per solve request.
type Toggles struct {
	EnableSetupTimes       bool
	EnableSkillMatching    bool
	EnableMultiObjective   bool
	EnableSymmetryBreaking bool
	MaxOvertimeMinutes     int
	DepartmentWIPLimits    map[string]int

	// MaxHorizonMinutes caps the scheduling horizon; zero uses
	// DefaultMaxHorizonMinutes.
	MaxHorizonMinutes int
}

// Arc is one precedence edge between operations, delays measured from the
// predecessor's end. MaxDelay < 0 means unbounded.
type Arc struct {
	Op       int
	MinDelay int
	MaxDelay int
}

// Mode is a flattened eligible option for one operation.
type Mode struct {
	Machine        int // machine index in the pool
	Duration       int
	Setup          int // mode-fixed setup, occupies the interval
	CostPerHour    float64
	NeedsOperator  bool
	RequiredSkills []domain.SkillRequirement
}

// Operation is one (instance, task) pair, the unit the solver schedules.
type Operation struct {
	Index        int
	Instance     int // instance index
	TaskIdx      int // task index within the pattern
	InstanceID   uuid.UUID
	TaskID       uuid.UUID
	TypeCode     string
	Priority     int
	Release      int // earliest start, minutes from horizon anchor
	Due          int // -1 when the instance has no due date
	Modes        []Mode
	Preds        []Arc
	Succs        []Arc
	SeqResources []int // indexes into the pool's sequence resources
}

// MinDuration returns the shortest occupied interval over the given
// eligibility mask (nil mask means all modes).
func (o *Operation) MinDuration(eligible []bool) int {
	best := -1
	for m, mode := range o.Modes {
		if eligible != nil && !eligible[m] {
			continue
		}
		if d := mode.Duration + mode.Setup; best < 0 || d < best {
			best = d
		}
	}
	return best
}

// MaxDuration returns the longest occupied interval over the given mask.
func (o *Operation) MaxDuration(eligible []bool) int {
	best := 0
	for m, mode := range o.Modes {
		if eligible != nil && !eligible[m] {
			continue
		}
		if d := mode.Duration + mode.Setup; d > best {
			best = d
		}
	}
	return best
}

// ProblemModel is the immutable in-memory representation of one solve
// request: a pattern instantiated with concrete job instances against a
// resource pool. Read-only for the duration of a solve.
type ProblemModel struct {
	Pattern   *domain.Pattern
	Pool      *domain.ResourcePool
	Instances []domain.JobInstance
	Toggles   Toggles

	HorizonStart time.Time
	Horizon      int // minutes

	Ops  []Operation
	Topo []int // one topological order of Ops

	netWindows [][]domain.Window // per machine: calendar minus maintenance
}

// Load builds a ProblemModel, validating the inputs. It is a pure
// transformation: it fails with a ValidationError on malformed input and has
// no side effects.
func Load(
	pattern *domain.Pattern,
	pool *domain.ResourcePool,
	instances []domain.JobInstance,
	toggles Toggles,
) (*ProblemModel, error) {
	if pattern == nil || len(pattern.Tasks) == 0 {
		return nil, domain.NewValidationError("pattern", "pattern has no tasks")
	}
	if pool == nil || len(pool.Machines) == 0 {
		return nil, domain.NewValidationError("resources", "resource pool has no machines")
	}
	if len(instances) == 0 {
		return nil, domain.NewValidationError("instances", "at least one job instance is required")
	}

	machineIdx := make(map[uuid.UUID]int, len(pool.Machines))
	for i, m := range pool.Machines {
		if m.Capacity < 1 {
			return nil, domain.NewValidationError("machine", fmt.Sprintf("machine %s has capacity %d", m.Name, m.Capacity))
		}
		machineIdx[m.ID] = i
	}
	for _, r := range pool.SequenceResources {
		if r.MaxConcurrent < 1 {
			return nil, domain.NewValidationError("sequenceResource", fmt.Sprintf("resource %s has concurrency limit %d", r.Name, r.MaxConcurrent))
		}
	}

	taskIdx := make(map[uuid.UUID]int, len(pattern.Tasks))
	for i, t := range pattern.Tasks {
		if len(t.Modes) == 0 {
			return nil, domain.NewValidationError("task", fmt.Sprintf("task %s has no eligible modes", t.Name))
		}
		for _, m := range t.Modes {
			if _, ok := machineIdx[m.MachineID]; !ok {
				return nil, domain.NewValidationError("taskMode", fmt.Sprintf("task %s references unknown machine %s", t.Name, m.MachineID))
			}
			if m.DurationMinutes <= 0 {
				return nil, domain.NewValidationError("taskMode", fmt.Sprintf("task %s has a non-positive duration", t.Name))
			}
			if m.SetupMinutes < 0 {
				return nil, domain.NewValidationError("taskMode", fmt.Sprintf("task %s has a negative setup", t.Name))
			}
		}
		taskIdx[t.ID] = i
	}

	for _, p := range pattern.Precedences {
		if _, ok := taskIdx[p.Predecessor]; !ok {
			return nil, domain.NewValidationError("precedence", fmt.Sprintf("unknown predecessor task %s", p.Predecessor))
		}
		if _, ok := taskIdx[p.Successor]; !ok {
			return nil, domain.NewValidationError("precedence", fmt.Sprintf("unknown successor task %s", p.Successor))
		}
		if p.MinDelayMinutes < 0 {
			return nil, domain.NewValidationError("precedence", "min delay must not be negative")
		}
		if p.MaxDelayMinutes >= 0 && p.MaxDelayMinutes < p.MinDelayMinutes {
			return nil, domain.NewValidationError("precedence", "max delay is below min delay")
		}
	}
	taskOrder, err := topoSortTasks(pattern, taskIdx)
	if err != nil {
		return nil, err
	}

	anchor := instances[0].EarliestStart
	for _, inst := range instances {
		if inst.EarliestStart.Before(anchor) {
			anchor = inst.EarliestStart
		}
	}
	anchor = anchor.UTC().Truncate(time.Minute)

	for _, inst := range instances {
		if inst.PatternID != pattern.ID {
			return nil, domain.NewValidationError("instance", fmt.Sprintf("instance %s belongs to a different pattern", inst.ID))
		}
		if inst.HasDueDate() && inst.DueDate.Before(inst.EarliestStart) {
			return nil, domain.NewValidationError("instance", fmt.Sprintf("instance %s due date precedes its earliest start", inst.ID))
		}
	}

	pm := &ProblemModel{
		Pattern:      pattern,
		Pool:         pool,
		Instances:    instances,
		Toggles:      toggles,
		HorizonStart: anchor,
	}

	// Flatten (instance, task) pairs into operations, instance-major, tasks
	// in pattern order.
	nTasks := len(pattern.Tasks)
	opIndex := func(inst, task int) int { return inst*nTasks + task }
	pm.Ops = make([]Operation, 0, len(instances)*nTasks)
	for ii, inst := range instances {
		release := int(inst.EarliestStart.UTC().Sub(anchor).Minutes())
		due := -1
		if inst.HasDueDate() {
			due = int(inst.DueDate.UTC().Sub(anchor).Minutes())
		}
		for ti, task := range pattern.Tasks {
			op := Operation{
				Index:      opIndex(ii, ti),
				Instance:   ii,
				TaskIdx:    ti,
				InstanceID: inst.ID,
				TaskID:     task.ID,
				TypeCode:   task.TypeCode,
				Priority:   inst.Priority,
				Release:    release,
				Due:        due,
			}
			for _, m := range task.Modes {
				op.Modes = append(op.Modes, Mode{
					Machine:        machineIdx[m.MachineID],
					Duration:       m.DurationMinutes,
					Setup:          m.SetupMinutes,
					CostPerHour:    m.CostPerHour,
					NeedsOperator:  m.NeedsOperator,
					RequiredSkills: m.RequiredSkills,
				})
			}
			for ri, r := range pool.SequenceResources {
				if r.AppliesTo(task.TypeCode) {
					op.SeqResources = append(op.SeqResources, ri)
				}
			}
			pm.Ops = append(pm.Ops, op)
		}
	}
	for ii := range instances {
		for _, p := range pattern.Precedences {
			pred := opIndex(ii, taskIdx[p.Predecessor])
			succ := opIndex(ii, taskIdx[p.Successor])
			pm.Ops[pred].Succs = append(pm.Ops[pred].Succs, Arc{Op: succ, MinDelay: p.MinDelayMinutes, MaxDelay: p.MaxDelayMinutes})
			pm.Ops[succ].Preds = append(pm.Ops[succ].Preds, Arc{Op: pred, MinDelay: p.MinDelayMinutes, MaxDelay: p.MaxDelayMinutes})
		}
	}

	pm.Topo = make([]int, 0, len(pm.Ops))
	for ii := range instances {
		for _, ti := range taskOrder {
			pm.Topo = append(pm.Topo, opIndex(ii, ti))
		}
	}

	pm.Horizon = pm.computeHorizon()
	pm.netWindows = make([][]domain.Window, len(pool.Machines))
	for i := range pool.Machines {
		pm.netWindows[i] = subtractWindows(pool.Machines[i].Calendar, pool.Machines[i].Maintenance, pm.Horizon)
	}

	return pm, nil
}

// NetWindows returns the machine's availability windows with maintenance
// blackouts subtracted, sorted by start.
func (pm *ProblemModel) NetWindows(machine int) []domain.Window {
	return pm.netWindows[machine]
}

// SetupBetween resolves the sequence-dependent setup gap between two type
// codes on a machine index.
func (pm *ProblemModel) SetupBetween(machine int, from, to string) int {
	return pm.Pattern.SetupBetween(pm.Pool.Machines[machine].ID, from, to)
}

// computeHorizon derives a safe upper bound on the schedule length: the
// latest release plus the serial stack of worst-case operation lengths,
// delays, and setup gaps, clamped to the default maximum.
func (pm *ProblemModel) computeHorizon() int {
	maxSetupGap := 0
	for _, r := range pm.Pattern.SetupRules {
		if r.SetupMinutes > maxSetupGap {
			maxSetupGap = r.SetupMinutes
		}
	}
	h := 0
	for i := range pm.Ops {
		op := &pm.Ops[i]
		if op.Release > h {
			h = op.Release
		}
	}
	for i := range pm.Ops {
		op := &pm.Ops[i]
		h += op.MaxDuration(nil) + maxSetupGap
		for _, a := range op.Succs {
			h += a.MinDelay
		}
	}
	maxH := pm.Toggles.MaxHorizonMinutes
	if maxH <= 0 {
		maxH = DefaultMaxHorizonMinutes
	}
	if h > maxH {
		h = maxH
	}
	return h
}

// placementComplete reports whether the earliest-placement decoder can reach
// every schedule that matters: a finite max-delay arc can require delaying a
// predecessor, and with several operators the first qualified pick is not the
// only one.
func (pm *ProblemModel) placementComplete() bool {
	for i := range pm.Ops {
		for _, a := range pm.Ops[i].Preds {
			if a.MaxDelay >= 0 {
				return false
			}
		}
	}
	if len(pm.Pool.Operators) > 1 {
		for i := range pm.Ops {
			for _, md := range pm.Ops[i].Modes {
				if md.NeedsOperator {
					return false
				}
			}
		}
	}
	return true
}

// topoSortTasks orders pattern tasks topologically, failing with a
// ValidationError when the precedence graph has a cycle.
func topoSortTasks(pattern *domain.Pattern, taskIdx map[uuid.UUID]int) ([]int, error) {
	n := len(pattern.Tasks)
	indeg := make([]int, n)
	succs := make([][]int, n)
	for _, p := range pattern.Precedences {
		from, to := taskIdx[p.Predecessor], taskIdx[p.Successor]
		succs[from] = append(succs[from], to)
		indeg[to]++
	}
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, s := range succs[i] {
			indeg[s]--
			if indeg[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	if len(order) != n {
		return nil, domain.NewValidationError("precedence", "precedence graph contains a cycle")
	}
	return order, nil
}

// subtractWindows removes blackout windows from availability windows over
// [0, horizon). An empty availability list means always available.
func subtractWindows(avail, blackout []domain.Window, horizon int) []domain.Window {
	if len(avail) == 0 {
		avail = []domain.Window{{Start: 0, End: horizon}}
	}
	out := make([]domain.Window, 0, len(avail))
	for _, w := range avail {
		if w.Start < 0 {
			w.Start = 0
		}
		if w.End > horizon {
			w.End = horizon
		}
		segs := []domain.Window{w}
		for _, b := range blackout {
			next := segs[:0:0]
			for _, s := range segs {
				if !b.Overlaps(s.Start, s.End) {
					next = append(next, s)
					continue
				}
				if b.Start > s.Start {
					next = append(next, domain.Window{Start: s.Start, End: b.Start})
				}
				if b.End < s.End {
					next = append(next, domain.Window{Start: b.End, End: s.End})
				}
			}
			segs = next
		}
		for _, s := range segs {
			if s.Length() > 0 {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
