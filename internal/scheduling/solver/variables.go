package solver

import "fmt"

// VariableSpace holds the decision-variable domains derived from a problem
// model: bounded integer start/end variables per operation and one boolean
// eligibility indicator per mode when an operation has more than one mode.
// Tight bounds are computed by forward/backward propagation over the
// precedence graph before search begins.
type VariableSpace struct {
	Horizon int

	StartLB []int
	StartUB []int
	EndLB   []int
	EndUB   []int

	// Eligible mirrors the mode indicator variables. Operations with a
	// single mode carry no indicator; their slice stays nil.
	Eligible [][]bool
}

// NewVariableSpace initializes domains from releases and the horizon.
func NewVariableSpace(pm *ProblemModel) *VariableSpace {
	n := len(pm.Ops)
	vs := &VariableSpace{
		Horizon:  pm.Horizon,
		StartLB:  make([]int, n),
		StartUB:  make([]int, n),
		EndLB:    make([]int, n),
		EndUB:    make([]int, n),
		Eligible: make([][]bool, n),
	}
	for i := range pm.Ops {
		op := &pm.Ops[i]
		if len(op.Modes) > 1 {
			vs.Eligible[i] = make([]bool, len(op.Modes))
			for m := range op.Modes {
				vs.Eligible[i][m] = true
			}
		}
		vs.StartLB[i] = op.Release
		vs.StartUB[i] = pm.Horizon - op.MinDuration(vs.Eligible[i])
		vs.EndLB[i] = vs.StartLB[i] + op.MinDuration(vs.Eligible[i])
		vs.EndUB[i] = minInt(pm.Horizon, vs.StartUB[i]+op.MaxDuration(vs.Eligible[i]))
	}
	return vs
}

// ModeEligible reports whether mode m of operation op is still eligible.
func (vs *VariableSpace) ModeEligible(op, m int) bool {
	if vs.Eligible[op] == nil {
		return true
	}
	return vs.Eligible[op][m]
}

// DisableMode forces a mode indicator to false. Returns an error when the
// operation's last mode is removed, which empties its domain.
func (vs *VariableSpace) DisableMode(pm *ProblemModel, op, m int, constraint string) error {
	if vs.Eligible[op] == nil {
		if len(pm.Ops[op].Modes) == 1 {
			return &emptyDomainError{op: op, constraint: constraint, detail: "only eligible mode removed"}
		}
		vs.Eligible[op] = make([]bool, len(pm.Ops[op].Modes))
		for i := range vs.Eligible[op] {
			vs.Eligible[op][i] = true
		}
	}
	vs.Eligible[op][m] = false
	for _, e := range vs.Eligible[op] {
		if e {
			return nil
		}
	}
	return &emptyDomainError{op: op, constraint: constraint, detail: "all modes removed"}
}

// Propagate runs forward/backward bound tightening over the precedence
// graph to a fixpoint. Bounds only shrink; an emptied domain is returned as
// an error naming the operation.
func (vs *VariableSpace) Propagate(pm *ProblemModel) error {
	// Refresh duration-linked end bounds from the surviving modes first.
	for i := range pm.Ops {
		op := &pm.Ops[i]
		minDur := op.MinDuration(vs.Eligible[i])
		maxDur := op.MaxDuration(vs.Eligible[i])
		if minDur < 0 {
			return &emptyDomainError{op: i, constraint: "mode-selection", detail: "no eligible modes"}
		}
		vs.StartUB[i] = minInt(vs.StartUB[i], vs.Horizon-minDur)
		vs.EndLB[i] = maxInt(vs.EndLB[i], vs.StartLB[i]+minDur)
		vs.EndUB[i] = minInt(vs.EndUB[i], minInt(vs.Horizon, vs.StartUB[i]+maxDur))
	}

	for changed := true; changed; {
		changed = false
		for i := range pm.Ops {
			op := &pm.Ops[i]
			minDur := op.MinDuration(vs.Eligible[i])
			maxDur := op.MaxDuration(vs.Eligible[i])

			for _, a := range op.Preds {
				// successor.start >= predecessor.end + minDelay
				if lb := vs.EndLB[a.Op] + a.MinDelay; lb > vs.StartLB[i] {
					vs.StartLB[i] = lb
					changed = true
				}
				// successor.start <= predecessor.end + maxDelay
				if a.MaxDelay >= 0 {
					if ub := vs.EndUB[a.Op] + a.MaxDelay; ub < vs.StartUB[i] {
						vs.StartUB[i] = ub
						changed = true
					}
				}
			}
			for _, a := range op.Succs {
				// predecessor.end <= successor.start - minDelay
				if ub := vs.StartUB[a.Op] - a.MinDelay - minDur; ub < vs.StartUB[i] {
					vs.StartUB[i] = ub
					changed = true
				}
				// predecessor.end >= successor.start - maxDelay
				if a.MaxDelay >= 0 {
					if lb := vs.StartLB[a.Op] - a.MaxDelay - maxDur; lb > vs.StartLB[i] {
						vs.StartLB[i] = lb
						changed = true
					}
				}
			}

			if lb := vs.StartLB[i] + minDur; lb > vs.EndLB[i] {
				vs.EndLB[i] = lb
				changed = true
			}
			if ub := minInt(vs.Horizon, vs.StartUB[i]+maxDur); ub < vs.EndUB[i] {
				vs.EndUB[i] = ub
				changed = true
			}

			if vs.StartLB[i] > vs.StartUB[i] || vs.EndLB[i] > vs.EndUB[i] {
				return &emptyDomainError{
					op:         i,
					constraint: "precedence",
					detail: fmt.Sprintf("start in [%d,%d], end in [%d,%d]",
						vs.StartLB[i], vs.StartUB[i], vs.EndLB[i], vs.EndUB[i]),
				}
			}
		}
	}
	return nil
}

// VariableCount is the number of decision variables: one start and one end
// per operation plus one indicator per mode of multi-mode operations.
func (vs *VariableSpace) VariableCount() int {
	n := 2 * len(vs.StartLB)
	for _, e := range vs.Eligible {
		n += len(e)
	}
	return n
}

// Clone deep-copies the variable space.
func (vs *VariableSpace) Clone() *VariableSpace {
	out := &VariableSpace{
		Horizon:  vs.Horizon,
		StartLB:  append([]int(nil), vs.StartLB...),
		StartUB:  append([]int(nil), vs.StartUB...),
		EndLB:    append([]int(nil), vs.EndLB...),
		EndUB:    append([]int(nil), vs.EndUB...),
		Eligible: make([][]bool, len(vs.Eligible)),
	}
	for i, e := range vs.Eligible {
		if e != nil {
			out.Eligible[i] = append([]bool(nil), e...)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
