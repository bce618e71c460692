package solver

import (
	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// Assignment is one concrete solution: per operation the selected mode, the
// assigned operator (-1 when none), and the occupied interval [Start, End)
// with End = Start + mode setup + processing duration. Sequence-dependent
// setups are idle gaps between consecutive intervals on a machine, so they
// never appear inside an interval.
type Assignment struct {
	Mode     []int
	Operator []int
	Start    []int
	End      []int
}

// NewAssignment allocates an assignment for n operations.
func NewAssignment(n int) *Assignment {
	a := &Assignment{
		Mode:     make([]int, n),
		Operator: make([]int, n),
		Start:    make([]int, n),
		End:      make([]int, n),
	}
	for i := range a.Operator {
		a.Operator[i] = -1
		a.Mode[i] = -1
	}
	return a
}

// Clone deep-copies the assignment.
func (a *Assignment) Clone() *Assignment {
	return &Assignment{
		Mode:     append([]int(nil), a.Mode...),
		Operator: append([]int(nil), a.Operator...),
		Start:    append([]int(nil), a.Start...),
		End:      append([]int(nil), a.End...),
	}
}

// Makespan returns the latest end over all operations, in minutes.
func (a *Assignment) Makespan() int {
	m := 0
	for _, e := range a.End {
		if e > m {
			m = e
		}
	}
	return m
}

// Less orders assignments lexicographically over (start, mode, operator)
// vectors. The arbiter uses it as a deterministic tie-break so that racing
// workers cannot make equal-score outcomes order-dependent.
func (a *Assignment) Less(b *Assignment) bool {
	for i := range a.Start {
		if a.Start[i] != b.Start[i] {
			return a.Start[i] < b.Start[i]
		}
		if a.Mode[i] != b.Mode[i] {
			return a.Mode[i] < b.Mode[i]
		}
		if a.Operator[i] != b.Operator[i] {
			return a.Operator[i] < b.Operator[i]
		}
	}
	return false
}

// latenessWeight maps instance priority (1 = highest) to a lateness weight.
func latenessWeight(priority int) float64 {
	w := 6 - priority
	if w < 1 {
		w = 1
	}
	return float64(w)
}

// Evaluate computes the raw value of one objective component for a concrete
// assignment. All components are minimized.
func Evaluate(pm *ProblemModel, a *Assignment, kind domain.ObjectiveKind) float64 {
	switch kind {
	case domain.ObjectiveMakespan:
		return float64(a.Makespan())

	case domain.ObjectiveTotalCost:
		cost := 0.0
		for i := range pm.Ops {
			mode := pm.Ops[i].Modes[a.Mode[i]]
			occupied := float64(a.End[i]-a.Start[i]) / 60.0
			cost += occupied * pm.Pool.Machines[mode.Machine].HourlyCost
			cost += float64(mode.Duration) / 60.0 * mode.CostPerHour
			if a.Operator[i] >= 0 {
				cost += occupied * pm.Pool.Operators[a.Operator[i]].HourlyCost
			}
		}
		return cost

	case domain.ObjectiveTotalLateness:
		return instanceLateness(pm, a, func(int) float64 { return 1 })

	case domain.ObjectiveWeightedLateness:
		return instanceLateness(pm, a, func(inst int) float64 {
			return latenessWeight(pm.Instances[inst].Priority)
		})

	case domain.ObjectiveMachineIdle:
		return machineIdle(pm, a)
	}
	return 0
}

// EvaluateAll computes every requested component.
func EvaluateAll(pm *ProblemModel, a *Assignment, terms []domain.ObjectiveTerm) map[domain.ObjectiveKind]float64 {
	out := make(map[domain.ObjectiveKind]float64, len(terms))
	for _, t := range terms {
		out[t.Kind] = Evaluate(pm, a, t.Kind)
	}
	return out
}

func instanceLateness(pm *ProblemModel, a *Assignment, weight func(inst int) float64) float64 {
	ends := make(map[int]int, len(pm.Instances))
	for i := range pm.Ops {
		inst := pm.Ops[i].Instance
		if a.End[i] > ends[inst] {
			ends[inst] = a.End[i]
		}
	}
	total := 0.0
	for inst, end := range ends {
		ji := pm.Instances[inst]
		if !ji.HasDueDate() {
			continue
		}
		due := int(ji.DueDate.UTC().Sub(pm.HorizonStart).Minutes())
		if end > due {
			total += weight(inst) * float64(end-due)
		}
	}
	return total
}

func machineIdle(pm *ProblemModel, a *Assignment) float64 {
	type span struct {
		first, last, busy int
		used              bool
	}
	spans := make([]span, len(pm.Pool.Machines))
	for i := range pm.Ops {
		m := pm.Ops[i].Modes[a.Mode[i]].Machine
		s := &spans[m]
		if !s.used {
			s.first, s.last, s.used = a.Start[i], a.End[i], true
		}
		if a.Start[i] < s.first {
			s.first = a.Start[i]
		}
		if a.End[i] > s.last {
			s.last = a.End[i]
		}
		s.busy += a.End[i] - a.Start[i]
	}
	idle := 0
	for m, s := range spans {
		if !s.used {
			continue
		}
		gap := (s.last-s.first)*pm.Pool.Machines[m].Capacity - s.busy
		if gap > 0 {
			idle += gap
		}
	}
	return float64(idle)
}
