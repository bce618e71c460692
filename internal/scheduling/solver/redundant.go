package solver

// transitiveClosure is a redundant constraint: it tightens start bounds
// along transitive precedence chains in one topological sweep, which the
// pairwise arc propagation alone reaches only after several fixpoint
// rounds. It never rejects an assignment the base constraints accept.
type transitiveClosure struct {
	cardinality int
}

func newTransitiveClosure(pm *ProblemModel) *transitiveClosure {
	n := 0
	for i := range pm.Ops {
		n += len(pm.Ops[i].Preds)
	}
	return &transitiveClosure{cardinality: n}
}

func (c *transitiveClosure) Name() string     { return "transitive-closure" }
func (c *transitiveClosure) Phase() Phase     { return PhaseCore }
func (c *transitiveClosure) Cardinality() int { return c.cardinality }

func (c *transitiveClosure) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	for _, i := range pm.Topo {
		op := &pm.Ops[i]
		for _, a := range op.Preds {
			if lb := vs.EndLB[a.Op] + a.MinDelay; lb > vs.StartLB[i] {
				vs.StartLB[i] = lb
			}
		}
		if lb := vs.StartLB[i] + op.MinDuration(vs.Eligible[i]); lb > vs.EndLB[i] {
			vs.EndLB[i] = lb
		}
		if vs.StartLB[i] > vs.StartUB[i] {
			return &emptyDomainError{op: i, constraint: c.Name(), detail: "start bounds crossed on precedence chain"}
		}
	}
	return nil
}

// Check accepts anything the precedence constraint accepts.
func (c *transitiveClosure) Check(pm *ProblemModel, a *Assignment) error {
	return nil
}

// symmetryBreaking marks interchangeable-machine symmetry breaking as
// active. The pruning itself lives in the decoder, which visits machines in
// a fixed order so that permuting identical machines cannot produce distinct
// schedules. As a constraint it only contributes to the model's count and
// never restricts feasibility.
type symmetryBreaking struct {
	cardinality int
}

func newSymmetryBreaking(pm *ProblemModel) *symmetryBreaking {
	n := 0
	for i := range pm.Ops {
		if len(pm.Ops[i].Modes) > 1 {
			n++
		}
	}
	return &symmetryBreaking{cardinality: n}
}

func (c *symmetryBreaking) Name() string     { return "symmetry-breaking" }
func (c *symmetryBreaking) Phase() Phase     { return PhaseCore }
func (c *symmetryBreaking) Cardinality() int { return c.cardinality }

func (c *symmetryBreaking) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	return nil
}

func (c *symmetryBreaking) Check(pm *ProblemModel, a *Assignment) error {
	return nil
}
