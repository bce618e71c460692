package solver

// Phase orders constraint composition. Phases are applied strictly
// increasing; each may only add restrictions on top of earlier ones, so a
// caller may solve after Phase 1 alone as a smoke test.
type Phase int

const (
	PhaseNone      Phase = 0
	PhaseCore      Phase = 1 // timing, precedence, mode selection, no-overlap
	PhaseResources Phase = 2 // capacity, skills, operators, variable durations
	PhaseCalendars Phase = 3 // shift windows, setup times, maintenance
)

func (p Phase) String() string {
	switch p {
	case PhaseCore:
		return "phase 1 (core)"
	case PhaseResources:
		return "phase 2 (resources)"
	case PhaseCalendars:
		return "phase 3 (calendars)"
	default:
		return "phase 0 (none)"
	}
}

// Constraint is one family of restrictions over the variable space.
// Propagate tightens variable bounds or prunes mode indicators before
// search; Check independently re-validates a concrete assignment and is the
// extractor's defense against encoding defects.
type Constraint interface {
	Name() string
	Phase() Phase
	Cardinality() int
	Propagate(pm *ProblemModel, vs *VariableSpace) error
	Check(pm *ProblemModel, a *Assignment) error
}

// LowerBounds carries redundant derived bounds. They aid tractability and
// optimality proofs; correctness never depends on any particular formula.
type LowerBounds struct {
	Makespan int
}

// Builder composes constraints phase by phase. It is an explicit value
// threaded between phase calls; each call returns the updated builder, so
// there is no hidden global model under construction.
type Builder struct {
	pm          *ProblemModel
	vs          *VariableSpace
	phase       Phase
	constraints []Constraint
	bounds      LowerBounds
}

// NewBuilder starts a builder for a loaded problem model.
func NewBuilder(pm *ProblemModel) Builder {
	return Builder{pm: pm, vs: NewVariableSpace(pm), phase: PhaseNone}
}

// Phase returns the highest phase applied so far.
func (b Builder) Phase() Phase { return b.phase }

// Phase1 adds the mandatory core constraints: duration linkage, precedence
// with optional delays, exactly-one-mode selection, and per-machine
// no-overlap, plus the redundant derived constraints.
func (b Builder) Phase1() (Builder, error) {
	if b.phase != PhaseNone {
		return b, ErrPhaseOrder
	}
	cs := []Constraint{
		newDurationLink(b.pm),
		newPrecedenceConstraint(b.pm),
		newExactlyOneMode(b.pm),
		newMachineNoOverlap(b.pm),
		newTransitiveClosure(b.pm),
	}
	if b.pm.Toggles.EnableSymmetryBreaking {
		cs = append(cs, newSymmetryBreaking(b.pm))
	}
	return b.apply(PhaseCore, cs)
}

// Phase2 adds resource constraints: cumulative machine capacity, sequence
// resource concurrency, department WIP limits, operator load, and skill
// eligibility with variable-duration modes.
func (b Builder) Phase2() (Builder, error) {
	if b.phase != PhaseCore {
		return b, ErrPhaseOrder
	}
	cs := []Constraint{
		newCumulativeCapacity(b.pm),
		newSequenceResourceCap(b.pm),
		newOperatorCapacity(b.pm),
		newVariableDuration(b.pm),
	}
	if len(b.pm.Toggles.DepartmentWIPLimits) > 0 {
		cs = append(cs, newDepartmentWIP(b.pm))
	}
	if b.pm.Toggles.EnableSkillMatching {
		cs = append(cs, newSkillEligibility(b.pm))
	}
	return b.apply(PhaseResources, cs)
}

// Phase3 adds calendar constraints: shift/calendar window containment,
// maintenance blackout exclusion, and sequence-dependent setup times.
func (b Builder) Phase3() (Builder, error) {
	if b.phase != PhaseResources {
		return b, ErrPhaseOrder
	}
	cs := []Constraint{
		newCalendarWindows(b.pm),
		newMaintenanceBlackout(b.pm),
	}
	if b.pm.Toggles.EnableSetupTimes {
		cs = append(cs, newSetupTimes(b.pm))
	}
	return b.apply(PhaseCalendars, cs)
}

// apply registers the new constraints, propagates to a fixpoint, and
// recomputes the derived lower bounds. Propagation wiping out a domain turns
// into a StaticInfeasibilityError carrying the current phase.
func (b Builder) apply(phase Phase, cs []Constraint) (Builder, error) {
	b.constraints = append(append([]Constraint(nil), b.constraints...), cs...)
	b.phase = phase

	// Two rounds: constraint-specific pruning can expose new precedence
	// tightening and vice versa. Bounds only shrink, so this is monotone.
	for round := 0; round < 2; round++ {
		for _, c := range b.constraints {
			if err := c.Propagate(b.pm, b.vs); err != nil {
				return b, b.wrapInfeasibility(phase, err)
			}
		}
		if err := b.vs.Propagate(b.pm); err != nil {
			return b, b.wrapInfeasibility(phase, err)
		}
	}

	b.bounds = deriveLowerBounds(b.pm, b.vs)
	return b, nil
}

func (b Builder) wrapInfeasibility(phase Phase, err error) error {
	if ede, ok := err.(*emptyDomainError); ok {
		op := &b.pm.Ops[ede.op]
		return &StaticInfeasibilityError{
			Phase:      phase,
			Constraint: ede.constraint,
			InstanceID: op.InstanceID,
			TaskID:     op.TaskID,
			Detail:     ede.detail,
		}
	}
	return err
}

// Build freezes the composed constraints into an immutable model. Valid
// after any phase from 1 on.
func (b Builder) Build() (*Model, error) {
	if b.phase < PhaseCore {
		return nil, ErrModelNotBuilt
	}
	return &Model{
		PM:          b.pm,
		VS:          b.vs.Clone(),
		Phase:       b.phase,
		Constraints: append([]Constraint(nil), b.constraints...),
		Bounds:      b.bounds,
	}, nil
}

// Model is the immutable constrained problem handed to the search engine.
// Workers share it read-only.
type Model struct {
	PM          *ProblemModel
	VS          *VariableSpace
	Phase       Phase
	Constraints []Constraint
	Bounds      LowerBounds
}

// Check re-validates a concrete assignment against every registered
// constraint, returning the first violation.
func (m *Model) Check(a *Assignment) error {
	for _, c := range m.Constraints {
		if err := c.Check(m.PM, a); err != nil {
			return err
		}
	}
	return nil
}

// VariableCount reports the decision variable count for metrics.
func (m *Model) VariableCount() int { return m.VS.VariableCount() }

// ConstraintCount reports the expanded constraint count for metrics.
func (m *Model) ConstraintCount() int {
	n := 0
	for _, c := range m.Constraints {
		n += c.Cardinality()
	}
	return n
}

// setupsActive reports whether sequence-dependent setup gaps bind.
func (m *Model) setupsActive() bool {
	return m.Phase >= PhaseCalendars && m.PM.Toggles.EnableSetupTimes
}

// windowsActive reports whether calendar/shift containment binds.
func (m *Model) windowsActive() bool { return m.Phase >= PhaseCalendars }

// resourcesActive reports whether capacity/skill/operator constraints bind.
func (m *Model) resourcesActive() bool { return m.Phase >= PhaseResources }

// skillsActive reports whether skill-based operator matching binds.
func (m *Model) skillsActive() bool {
	return m.Phase >= PhaseResources && m.PM.Toggles.EnableSkillMatching
}

// deriveLowerBounds computes the redundant makespan lower bounds: the
// critical path over propagated end bounds and the per-machine workload
// bound for operations pinned to a single machine.
func deriveLowerBounds(pm *ProblemModel, vs *VariableSpace) LowerBounds {
	lb := 0
	for i := range pm.Ops {
		if vs.EndLB[i] > lb {
			lb = vs.EndLB[i]
		}
	}
	type load struct {
		work    int
		release int
		any     bool
	}
	loads := make([]load, len(pm.Pool.Machines))
	for i := range pm.Ops {
		op := &pm.Ops[i]
		machine := -1
		for mi, mode := range op.Modes {
			if !vs.ModeEligible(i, mi) {
				continue
			}
			if machine == -1 {
				machine = mode.Machine
			} else if machine != mode.Machine {
				machine = -2
				break
			}
		}
		if machine < 0 {
			continue
		}
		l := &loads[machine]
		if !l.any || op.Release < l.release {
			l.release = op.Release
		}
		l.work += op.MinDuration(vs.Eligible[i])
		l.any = true
	}
	for mi, l := range loads {
		if !l.any {
			continue
		}
		cap := pm.Pool.Machines[mi].Capacity
		if b := l.release + (l.work+cap-1)/cap; b > lb {
			lb = b
		}
	}
	return LowerBounds{Makespan: lb}
}
