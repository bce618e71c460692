package solver

// decoder turns a priority order over operations into a concrete schedule
// by serial schedule generation: operations become ready once their
// predecessors are placed, and each is committed at the earliest start all
// claimed resources accept. Decoding is deterministic for a given order and
// mode picker, which makes repeated solves reproducible.
type decoder struct {
	m  *Model
	pm *ProblemModel
}

func newDecoder(m *Model) *decoder {
	return &decoder{m: m, pm: m.PM}
}

// pickFirstMode selects the lowest-index eligible mode. Modes are listed in
// a fixed order, so interchangeable machines are always tried in the same
// sequence and permuting identical machines cannot yield distinct schedules.
func pickFirstMode(op int, eligible []int) int {
	return eligible[0]
}

// pickShortestMode selects the eligible mode with the shortest occupied
// interval, ties broken by index.
func (d *decoder) pickShortestMode(op int, eligible []int) int {
	best := eligible[0]
	bestLen := d.pm.Ops[op].Modes[best].Setup + d.pm.Ops[op].Modes[best].Duration
	for _, m := range eligible[1:] {
		if l := d.pm.Ops[op].Modes[m].Setup + d.pm.Ops[op].Modes[m].Duration; l < bestLen {
			best, bestLen = m, l
		}
	}
	return best
}

// decode places every operation following the given rank vector (lower rank
// schedules earlier among ready operations). It returns false when no
// feasible placement exists under the committed prefix, which the samplers
// treat as a dead decode rather than an infeasibility proof.
func (d *decoder) decode(rank []int, pickMode func(op int, eligible []int) int) (*Assignment, bool) {
	pm := d.pm
	n := len(pm.Ops)
	a := NewAssignment(n)

	machines := make([]*resourceTimeline, len(pm.Pool.Machines))
	for mi := range pm.Pool.Machines {
		tl := newResourceTimeline(pm.Pool.Machines[mi].Capacity, nil)
		if d.m.windowsActive() {
			tl.windows = pm.NetWindows(mi)
		}
		machines[mi] = tl
	}
	operators := make([]*resourceTimeline, len(pm.Pool.Operators))
	for oi := range pm.Pool.Operators {
		tl := newResourceTimeline(1, nil)
		if d.m.windowsActive() && len(pm.Pool.Operators[oi].Shifts) > 0 {
			tl.windows = pm.Pool.Operators[oi].Shifts
		}
		operators[oi] = tl
	}
	seqres := make([]*resourceTimeline, len(pm.Pool.SequenceResources))
	for ri := range pm.Pool.SequenceResources {
		seqres[ri] = newResourceTimeline(pm.Pool.SequenceResources[ri].MaxConcurrent, nil)
	}
	depts := make(map[string]*resourceTimeline, len(pm.Toggles.DepartmentWIPLimits))
	for dept, limit := range pm.Toggles.DepartmentWIPLimits {
		depts[dept] = newResourceTimeline(limit, nil)
	}

	pending := make([]int, n)
	for i := range pm.Ops {
		pending[i] = len(pm.Ops[i].Preds)
	}
	placed := make([]bool, n)

	for scheduled := 0; scheduled < n; scheduled++ {
		// Pick the ready operation with the lowest rank, index breaking ties.
		pick := -1
		for i := 0; i < n; i++ {
			if placed[i] || pending[i] > 0 {
				continue
			}
			if pick < 0 || rank[i] < rank[pick] {
				pick = i
			}
		}
		if pick < 0 {
			return nil, false
		}
		op := &pm.Ops[pick]

		var eligible []int
		for m := range op.Modes {
			if d.m.VS.ModeEligible(pick, m) {
				eligible = append(eligible, m)
			}
		}
		if len(eligible) == 0 {
			return nil, false
		}
		mi := pickMode(pick, eligible)
		mode := op.Modes[mi]
		length := mode.Setup + mode.Duration

		floor := d.m.VS.StartLB[pick]
		for _, arc := range op.Preds {
			if e := a.End[arc.Op] + arc.MinDelay; e > floor {
				floor = e
			}
		}

		s, oi, ok := d.place(pick, mode, floor, length, machines, operators, seqres, depts)
		if !ok {
			return nil, false
		}
		for _, arc := range op.Preds {
			if arc.MaxDelay >= 0 && s > a.End[arc.Op]+arc.MaxDelay {
				return nil, false
			}
		}

		e := s + length
		iv := placedInterval{op: pick, start: s, end: e, typeCode: op.TypeCode}
		machines[mode.Machine].add(iv)
		if oi >= 0 {
			operators[oi].add(iv)
		}
		for _, ri := range op.SeqResources {
			seqres[ri].add(iv)
		}
		if tl := depts[pm.Pool.Machines[mode.Machine].DepartmentID]; tl != nil {
			tl.add(iv)
		}

		a.Mode[pick] = mi
		a.Operator[pick] = oi
		a.Start[pick] = s
		a.End[pick] = e
		placed[pick] = true
		for _, arc := range op.Succs {
			pending[arc.Op]--
		}
	}
	return a, true
}

// place finds the earliest start >= floor accepted by the machine, the
// operator pool if the mode needs one, the claimed sequence resources, and
// the department WIP limit. It advances past the earliest conflict until
// everything agrees or the horizon runs out.
func (d *decoder) place(
	op int,
	mode Mode,
	floor, length int,
	machines, operators, seqres []*resourceTimeline,
	depts map[string]*resourceTimeline,
) (start, operator int, ok bool) {
	pm := d.pm
	machine := machines[mode.Machine]
	needsOp := mode.NeedsOperator && d.m.resourcesActive()

	s := floor
	for guard := 0; guard < 4*len(pm.Ops)+8; guard++ {
		if d.m.setupsActive() && pm.Pool.Machines[mode.Machine].Capacity == 1 {
			s = machine.earliestFitWithSetups(s, length, pm.Horizon, pm.Ops[op].TypeCode,
				func(from, to string) int { return pm.SetupBetween(mode.Machine, from, to) })
		} else {
			s = machine.earliestFit(s, length, pm.Horizon)
		}
		if s < 0 {
			return 0, -1, false
		}
		e := s + length

		conflictEnd := -1
		bump := func(tl *resourceTimeline) bool {
			if tl.fits(s, e) {
				return false
			}
			if r := tl.nextRelief(s); r > s && (conflictEnd < 0 || r < conflictEnd) {
				conflictEnd = r
			} else if conflictEnd < 0 {
				conflictEnd = e
			}
			return true
		}

		blocked := false
		if d.m.resourcesActive() {
			for _, ri := range pm.Ops[op].SeqResources {
				if bump(seqres[ri]) {
					blocked = true
				}
			}
			if tl := depts[pm.Pool.Machines[mode.Machine].DepartmentID]; tl != nil && bump(tl) {
				blocked = true
			}
		}

		oi := -1
		if needsOp && !blocked {
			oi = d.pickOperator(mode, s, e, operators)
			if oi < 0 {
				blocked = true
				conflictEnd = s + 1
				if r := d.earliestOperatorRelief(mode, s, operators); r > s {
					conflictEnd = r
				}
			}
		}

		if !blocked {
			return s, oi, true
		}
		if conflictEnd <= s {
			return 0, -1, false
		}
		s = conflictEnd
	}
	return 0, -1, false
}

// pickOperator returns the first operator, in pool order, who covers the
// mode's skill requirements, whose shifts contain the interval, and who
// stays inside the working-minute budget.
func (d *decoder) pickOperator(mode Mode, s, e int, operators []*resourceTimeline) int {
	pm := d.pm
	for oi := range pm.Pool.Operators {
		op := &pm.Pool.Operators[oi]
		if d.m.skillsActive() && !op.HasSkills(mode.RequiredSkills) {
			continue
		}
		if !operators[oi].fits(s, e) {
			continue
		}
		if op.MaxMinutes > 0 {
			budget := op.MaxMinutes + pm.Toggles.MaxOvertimeMinutes
			if operators[oi].busyMinutes()+(e-s) > budget {
				continue
			}
		}
		return oi
	}
	return -1
}

// earliestOperatorRelief returns the earliest time any skill-qualified
// operator frees up after s, so the placement loop can skip dead time.
func (d *decoder) earliestOperatorRelief(mode Mode, s int, operators []*resourceTimeline) int {
	pm := d.pm
	best := -1
	for oi := range pm.Pool.Operators {
		if d.m.skillsActive() && !pm.Pool.Operators[oi].HasSkills(mode.RequiredSkills) {
			continue
		}
		if r := operators[oi].nextRelief(s); r > s && (best < 0 || r < best) {
			best = r
		}
	}
	return best
}
