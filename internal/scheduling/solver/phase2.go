package solver

import (
	"fmt"
	"sort"
)

// cumulativeCapacity bounds concurrent demand on machines with capacity
// above one: at every instant the number of running operations must not
// exceed the machine's capacity.
type cumulativeCapacity struct {
	cardinality int
}

func newCumulativeCapacity(pm *ProblemModel) *cumulativeCapacity {
	n := 0
	for mi := range pm.Pool.Machines {
		if pm.Pool.Machines[mi].Capacity > 1 {
			n++
		}
	}
	return &cumulativeCapacity{cardinality: n * len(pm.Ops)}
}

func (c *cumulativeCapacity) Name() string     { return "cumulative-capacity" }
func (c *cumulativeCapacity) Phase() Phase     { return PhaseResources }
func (c *cumulativeCapacity) Cardinality() int { return c.cardinality }

func (c *cumulativeCapacity) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	return nil
}

func (c *cumulativeCapacity) Check(pm *ProblemModel, a *Assignment) error {
	for mi, ivs := range groupByMachine(pm, a) {
		cap := pm.Pool.Machines[mi].Capacity
		if cap <= 1 {
			continue
		}
		tl := resourceTimeline{placed: ivs}
		if over := tl.concurrent(0, pm.Horizon); over > cap {
			return &violation{constraint: c.Name(), op: ivs[0].op,
				detail: fmt.Sprintf("demand %d exceeds capacity %d on machine %s", over, cap, pm.Pool.Machines[mi].Name)}
		}
	}
	return nil
}

// sequenceResourceCap bounds concurrent reservations of shared exclusive
// resources (tools, fixtures) claimed by matching task type codes.
type sequenceResourceCap struct {
	cardinality int
}

func newSequenceResourceCap(pm *ProblemModel) *sequenceResourceCap {
	n := 0
	for i := range pm.Ops {
		n += len(pm.Ops[i].SeqResources)
	}
	return &sequenceResourceCap{cardinality: n}
}

func (c *sequenceResourceCap) Name() string     { return "sequence-resource" }
func (c *sequenceResourceCap) Phase() Phase     { return PhaseResources }
func (c *sequenceResourceCap) Cardinality() int { return c.cardinality }

func (c *sequenceResourceCap) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	return nil
}

func (c *sequenceResourceCap) Check(pm *ProblemModel, a *Assignment) error {
	for ri, res := range pm.Pool.SequenceResources {
		var ivs []placedInterval
		for i := range pm.Ops {
			for _, r := range pm.Ops[i].SeqResources {
				if r == ri {
					ivs = append(ivs, placedInterval{op: i, start: a.Start[i], end: a.End[i]})
				}
			}
		}
		if len(ivs) == 0 {
			continue
		}
		tl := resourceTimeline{placed: ivs}
		if over := tl.concurrent(0, pm.Horizon); over > res.MaxConcurrent {
			return &violation{constraint: c.Name(), op: ivs[0].op,
				detail: fmt.Sprintf("%d concurrent reservations of %s exceed limit %d", over, res.Name, res.MaxConcurrent)}
		}
	}
	return nil
}

// operatorCapacity enforces operator presence for modes requiring one, the
// no-overlap of one operator's assignments, and the per-operator working
// minute budget (extended by the overtime toggle).
type operatorCapacity struct {
	cardinality int
}

func newOperatorCapacity(pm *ProblemModel) *operatorCapacity {
	return &operatorCapacity{cardinality: len(pm.Ops) * maxInt(1, len(pm.Pool.Operators))}
}

func (c *operatorCapacity) Name() string     { return "operator-capacity" }
func (c *operatorCapacity) Phase() Phase     { return PhaseResources }
func (c *operatorCapacity) Cardinality() int { return c.cardinality }

func (c *operatorCapacity) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	for i := range pm.Ops {
		for m, mode := range pm.Ops[i].Modes {
			if !mode.NeedsOperator || !vs.ModeEligible(i, m) {
				continue
			}
			if len(pm.Pool.Operators) == 0 {
				if err := vs.DisableMode(pm, i, m, c.Name()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *operatorCapacity) Check(pm *ProblemModel, a *Assignment) error {
	byOperator := make(map[int][]placedInterval)
	for i := range pm.Ops {
		mode := pm.Ops[i].Modes[a.Mode[i]]
		if mode.NeedsOperator && a.Operator[i] < 0 {
			return &violation{constraint: c.Name(), op: i, detail: "mode requires an operator but none assigned"}
		}
		if a.Operator[i] >= 0 {
			byOperator[a.Operator[i]] = append(byOperator[a.Operator[i]], placedInterval{op: i, start: a.Start[i], end: a.End[i]})
		}
	}
	for oi, ivs := range byOperator {
		op := pm.Pool.Operators[oi]
		tl := resourceTimeline{placed: ivs}
		if over := tl.concurrent(0, pm.Horizon); over > 1 {
			return &violation{constraint: c.Name(), op: ivs[0].op,
				detail: fmt.Sprintf("operator %s double-booked", op.Name)}
		}
		if op.MaxMinutes > 0 {
			budget := op.MaxMinutes + pm.Toggles.MaxOvertimeMinutes
			if busy := tl.busyMinutes(); busy > budget {
				return &violation{constraint: c.Name(), op: ivs[0].op,
					detail: fmt.Sprintf("operator %s booked %d minutes over budget %d", op.Name, busy, budget)}
			}
		}
	}
	return nil
}

// variableDuration ties the occupied interval length to the selected
// mode: with several eligible modes the interval must match one of the
// surviving durations.
type variableDuration struct {
	cardinality int
}

func newVariableDuration(pm *ProblemModel) *variableDuration {
	n := 0
	for i := range pm.Ops {
		if len(pm.Ops[i].Modes) > 1 {
			n++
		}
	}
	return &variableDuration{cardinality: n}
}

func (c *variableDuration) Name() string     { return "variable-duration" }
func (c *variableDuration) Phase() Phase     { return PhaseResources }
func (c *variableDuration) Cardinality() int { return c.cardinality }

func (c *variableDuration) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	// End bounds are refreshed from surviving modes in the shared fixpoint.
	return vs.Propagate(pm)
}

func (c *variableDuration) Check(pm *ProblemModel, a *Assignment) error {
	for i := range pm.Ops {
		mode := pm.Ops[i].Modes[a.Mode[i]]
		if got, want := a.End[i]-a.Start[i], mode.Setup+mode.Duration; got != want {
			return &violation{constraint: c.Name(), op: i,
				detail: fmt.Sprintf("interval length %d does not match selected mode length %d", got, want)}
		}
	}
	return nil
}

// departmentWIP bounds the number of concurrently running operations per
// department, by the machine's department.
type departmentWIP struct {
	cardinality int
}

func newDepartmentWIP(pm *ProblemModel) *departmentWIP {
	return &departmentWIP{cardinality: len(pm.Toggles.DepartmentWIPLimits)}
}

func (c *departmentWIP) Name() string     { return "department-wip" }
func (c *departmentWIP) Phase() Phase     { return PhaseResources }
func (c *departmentWIP) Cardinality() int { return c.cardinality }

func (c *departmentWIP) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	return nil
}

func (c *departmentWIP) Check(pm *ProblemModel, a *Assignment) error {
	depts := make([]string, 0, len(pm.Toggles.DepartmentWIPLimits))
	for d := range pm.Toggles.DepartmentWIPLimits {
		depts = append(depts, d)
	}
	sort.Strings(depts)
	for _, dept := range depts {
		limit := pm.Toggles.DepartmentWIPLimits[dept]
		var ivs []placedInterval
		for i := range pm.Ops {
			mode := pm.Ops[i].Modes[a.Mode[i]]
			if pm.Pool.Machines[mode.Machine].DepartmentID == dept {
				ivs = append(ivs, placedInterval{op: i, start: a.Start[i], end: a.End[i]})
			}
		}
		if len(ivs) == 0 {
			continue
		}
		tl := resourceTimeline{placed: ivs}
		if over := tl.concurrent(0, pm.Horizon); over > limit {
			return &violation{constraint: c.Name(), op: ivs[0].op,
				detail: fmt.Sprintf("%d concurrent operations in department %s exceed WIP limit %d", over, dept, limit)}
		}
	}
	return nil
}

// skillEligibility forces a mode's indicator to false when no operator can
// cover its skill requirements, and re-validates the assigned operator's
// skills on extraction.
type skillEligibility struct {
	cardinality int
}

func newSkillEligibility(pm *ProblemModel) *skillEligibility {
	n := 0
	for i := range pm.Ops {
		for _, m := range pm.Ops[i].Modes {
			n += len(m.RequiredSkills)
		}
	}
	return &skillEligibility{cardinality: n}
}

func (c *skillEligibility) Name() string     { return "skill-eligibility" }
func (c *skillEligibility) Phase() Phase     { return PhaseResources }
func (c *skillEligibility) Cardinality() int { return c.cardinality }

func (c *skillEligibility) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	for i := range pm.Ops {
		for m, mode := range pm.Ops[i].Modes {
			if !mode.NeedsOperator || len(mode.RequiredSkills) == 0 || !vs.ModeEligible(i, m) {
				continue
			}
			anyone := false
			for _, op := range pm.Pool.Operators {
				if op.HasSkills(mode.RequiredSkills) {
					anyone = true
					break
				}
			}
			if !anyone {
				if err := vs.DisableMode(pm, i, m, c.Name()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *skillEligibility) Check(pm *ProblemModel, a *Assignment) error {
	for i := range pm.Ops {
		mode := pm.Ops[i].Modes[a.Mode[i]]
		if !mode.NeedsOperator || len(mode.RequiredSkills) == 0 {
			continue
		}
		if a.Operator[i] < 0 {
			return &violation{constraint: c.Name(), op: i, detail: "skilled mode has no operator"}
		}
		if !pm.Pool.Operators[a.Operator[i]].HasSkills(mode.RequiredSkills) {
			return &violation{constraint: c.Name(), op: i,
				detail: fmt.Sprintf("operator %s lacks required skills", pm.Pool.Operators[a.Operator[i]].Name)}
		}
	}
	return nil
}
