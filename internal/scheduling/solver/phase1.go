package solver

import (
	"fmt"
	"sort"
)

// violation is a concrete constraint breach found during re-validation. The
// extractor wraps it with instance/task identity.
type violation struct {
	constraint string
	op         int
	detail     string
}

func (v *violation) Error() string {
	return fmt.Sprintf("%s violated by operation %d: %s", v.constraint, v.op, v.detail)
}

// durationLink enforces end = start + processing duration + mode setup for
// the selected mode, within release and horizon.
type durationLink struct {
	cardinality int
}

func newDurationLink(pm *ProblemModel) *durationLink {
	return &durationLink{cardinality: len(pm.Ops)}
}

func (c *durationLink) Name() string     { return "duration-link" }
func (c *durationLink) Phase() Phase     { return PhaseCore }
func (c *durationLink) Cardinality() int { return c.cardinality }

func (c *durationLink) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	// End bounds follow start bounds and surviving mode durations; the
	// variable space refreshes them during its fixpoint pass.
	return nil
}

func (c *durationLink) Check(pm *ProblemModel, a *Assignment) error {
	for i := range pm.Ops {
		op := &pm.Ops[i]
		mode := op.Modes[a.Mode[i]]
		want := a.Start[i] + mode.Setup + mode.Duration
		if a.End[i] != want {
			return &violation{constraint: c.Name(), op: i,
				detail: fmt.Sprintf("end %d != start %d + setup %d + duration %d", a.End[i], a.Start[i], mode.Setup, mode.Duration)}
		}
		if a.Start[i] < op.Release {
			return &violation{constraint: c.Name(), op: i,
				detail: fmt.Sprintf("start %d before release %d", a.Start[i], op.Release)}
		}
		if a.End[i] > pm.Horizon {
			return &violation{constraint: c.Name(), op: i,
				detail: fmt.Sprintf("end %d beyond horizon %d", a.End[i], pm.Horizon)}
		}
	}
	return nil
}

// precedenceConstraint enforces successor.start >= predecessor.end plus the
// optional min delay, and the optional max delay ceiling.
type precedenceConstraint struct {
	cardinality int
}

func newPrecedenceConstraint(pm *ProblemModel) *precedenceConstraint {
	n := 0
	for i := range pm.Ops {
		n += len(pm.Ops[i].Preds)
	}
	return &precedenceConstraint{cardinality: n}
}

func (c *precedenceConstraint) Name() string     { return "precedence" }
func (c *precedenceConstraint) Phase() Phase     { return PhaseCore }
func (c *precedenceConstraint) Cardinality() int { return c.cardinality }

func (c *precedenceConstraint) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	// The forward/backward arc passes live in VariableSpace.Propagate so
	// every phase shares one fixpoint loop.
	return vs.Propagate(pm)
}

func (c *precedenceConstraint) Check(pm *ProblemModel, a *Assignment) error {
	for i := range pm.Ops {
		for _, arc := range pm.Ops[i].Preds {
			if a.Start[i] < a.End[arc.Op]+arc.MinDelay {
				return &violation{constraint: c.Name(), op: i,
					detail: fmt.Sprintf("start %d before predecessor end %d + min delay %d", a.Start[i], a.End[arc.Op], arc.MinDelay)}
			}
			if arc.MaxDelay >= 0 && a.Start[i] > a.End[arc.Op]+arc.MaxDelay {
				return &violation{constraint: c.Name(), op: i,
					detail: fmt.Sprintf("start %d after predecessor end %d + max delay %d", a.Start[i], a.End[arc.Op], arc.MaxDelay)}
			}
		}
	}
	return nil
}

// exactlyOneMode enforces that each operation selects exactly one eligible
// mode.
type exactlyOneMode struct {
	cardinality int
}

func newExactlyOneMode(pm *ProblemModel) *exactlyOneMode {
	return &exactlyOneMode{cardinality: len(pm.Ops)}
}

func (c *exactlyOneMode) Name() string     { return "exactly-one-mode" }
func (c *exactlyOneMode) Phase() Phase     { return PhaseCore }
func (c *exactlyOneMode) Cardinality() int { return c.cardinality }

func (c *exactlyOneMode) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	for i := range pm.Ops {
		eligible := false
		for m := range pm.Ops[i].Modes {
			if vs.ModeEligible(i, m) {
				eligible = true
				break
			}
		}
		if !eligible {
			return &emptyDomainError{op: i, constraint: c.Name(), detail: "no eligible modes"}
		}
	}
	return nil
}

func (c *exactlyOneMode) Check(pm *ProblemModel, a *Assignment) error {
	for i := range pm.Ops {
		if a.Mode[i] < 0 || a.Mode[i] >= len(pm.Ops[i].Modes) {
			return &violation{constraint: c.Name(), op: i,
				detail: fmt.Sprintf("mode index %d out of range", a.Mode[i])}
		}
	}
	return nil
}

// machineNoOverlap is the disjunctive constraint: intervals of operations
// sharing a capacity-one machine never overlap in time.
type machineNoOverlap struct {
	cardinality int
}

func newMachineNoOverlap(pm *ProblemModel) *machineNoOverlap {
	perMachine := make([]int, len(pm.Pool.Machines))
	for i := range pm.Ops {
		seen := make(map[int]bool)
		for _, mode := range pm.Ops[i].Modes {
			if !seen[mode.Machine] {
				seen[mode.Machine] = true
				perMachine[mode.Machine]++
			}
		}
	}
	pairs := 0
	for mi, k := range perMachine {
		if pm.Pool.Machines[mi].Capacity == 1 {
			pairs += k * (k - 1) / 2
		}
	}
	return &machineNoOverlap{cardinality: pairs}
}

func (c *machineNoOverlap) Name() string     { return "machine-no-overlap" }
func (c *machineNoOverlap) Phase() Phase     { return PhaseCore }
func (c *machineNoOverlap) Cardinality() int { return c.cardinality }

func (c *machineNoOverlap) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	return nil
}

func (c *machineNoOverlap) Check(pm *ProblemModel, a *Assignment) error {
	byMachine := groupByMachine(pm, a)
	for mi, ivs := range byMachine {
		if pm.Pool.Machines[mi].Capacity != 1 {
			continue
		}
		tl := resourceTimeline{placed: ivs}
		if over := tl.concurrent(0, pm.Horizon); over > 1 {
			return &violation{constraint: c.Name(), op: ivs[0].op,
				detail: fmt.Sprintf("%d concurrent operations on machine %s", over, pm.Pool.Machines[mi].Name)}
		}
	}
	return nil
}

// groupByMachine buckets assignment intervals by the selected mode's
// machine, sorted by start.
func groupByMachine(pm *ProblemModel, a *Assignment) map[int][]placedInterval {
	out := make(map[int][]placedInterval)
	for i := range pm.Ops {
		mode := pm.Ops[i].Modes[a.Mode[i]]
		out[mode.Machine] = append(out[mode.Machine], placedInterval{
			op:       i,
			start:    a.Start[i],
			end:      a.End[i],
			typeCode: pm.Ops[i].TypeCode,
		})
	}
	for mi := range out {
		ivs := out[mi]
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
		out[mi] = ivs
	}
	return out
}
