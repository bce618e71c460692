package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// Result is a strategy's final answer: the engine outcome of its last run
// plus the raw per-component objective values of the chosen assignment.
// Composite strategies always report raw component values, never their
// internal scalarization.
type Result struct {
	Outcome
	Values map[domain.ObjectiveKind]float64
	// Front holds the non-dominated set for the pareto strategy; nil for
	// every other strategy.
	Front []FrontPoint
}

// FrontPoint is one non-dominated schedule of a pareto solve.
type FrontPoint struct {
	Assignment *Assignment
	Values     map[domain.ObjectiveKind]float64
}

// Strategy turns an objective configuration into one or more engine runs.
// Implementations split the caller's budget across their stages themselves.
type Strategy interface {
	Name() string
	Run(ctx context.Context, eng *Engine, m *Model, budget time.Duration, hint *Assignment) (Result, error)
}

// StrategyFor builds the strategy for a validated configuration.
func StrategyFor(cfg domain.ObjectiveConfiguration) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Strategy {
	case domain.StrategySingle:
		return &singleStrategy{term: cfg.Terms[0]}, nil
	case domain.StrategyLexicographic:
		return &lexicographicStrategy{terms: cfg.Terms}, nil
	case domain.StrategyWeightedSum:
		return &weightedSumStrategy{terms: cfg.Terms}, nil
	case domain.StrategyEpsilonConstraint:
		return &epsilonStrategy{terms: cfg.Terms}, nil
	case domain.StrategyPareto:
		limit := cfg.ParetoLimit
		if limit <= 0 {
			limit = DefaultParetoLimit
		}
		return &paretoStrategy{terms: cfg.Terms, limit: limit}, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, cfg.Strategy)
}

// DefaultParetoLimit caps the non-dominated archive.
const DefaultParetoLimit = 8

// lowerBoundFor returns the model's proven lower bound for a component, or
// -1 when none applies.
func lowerBoundFor(m *Model, kind domain.ObjectiveKind) float64 {
	if kind == domain.ObjectiveMakespan {
		return float64(m.Bounds.Makespan)
	}
	return -1
}

// regularKind reports whether a component never improves when work is
// delayed. Machine idle does: pushing a task later can close a machine's
// leading gap, so earliest-placement enumeration is not exhaustive for it.
func regularKind(kind domain.ObjectiveKind) bool {
	switch kind {
	case domain.ObjectiveMakespan, domain.ObjectiveTotalCost,
		domain.ObjectiveTotalLateness, domain.ObjectiveWeightedLateness:
		return true
	}
	return false
}

func regularTerms(terms []domain.ObjectiveTerm) bool {
	for _, t := range terms {
		if !regularKind(t.Kind) {
			return false
		}
	}
	return true
}

func evaluator(m *Model, kind domain.ObjectiveKind) func(*Assignment) float64 {
	return func(a *Assignment) float64 { return Evaluate(m.PM, a, kind) }
}

// singleStrategy minimizes one component directly.
type singleStrategy struct {
	term domain.ObjectiveTerm
}

func (s *singleStrategy) Name() string { return string(domain.StrategySingle) }

func (s *singleStrategy) Run(ctx context.Context, eng *Engine, m *Model, budget time.Duration, hint *Assignment) (Result, error) {
	out, err := eng.Solve(ctx, SolveSpec{
		Model:      m,
		Evaluate:   evaluator(m, s.term.Kind),
		LowerBound: lowerBoundFor(m, s.term.Kind),
		Regular:    regularKind(s.term.Kind),
		Budget:     budget,
		Hint:       hint,
	})
	res := Result{Outcome: out}
	if out.Best != nil {
		res.Values = EvaluateAll(m.PM, out.Best, []domain.ObjectiveTerm{s.term})
	}
	return res, err
}

// lexicographicStrategy optimizes terms in order. After each stage the
// achieved value becomes a cap for later stages, loosened by the term's
// slack percentage so a strictly better secondary can trade a little of an
// already-fixed primary.
type lexicographicStrategy struct {
	terms []domain.ObjectiveTerm
}

func (s *lexicographicStrategy) Name() string { return string(domain.StrategyLexicographic) }

func (s *lexicographicStrategy) Run(ctx context.Context, eng *Engine, m *Model, budget time.Duration, hint *Assignment) (Result, error) {
	stageBudget := budget / time.Duration(len(s.terms))
	type cap struct {
		kind  domain.ObjectiveKind
		limit float64
	}
	var caps []cap
	allProven := true
	var out Outcome
	var err error

	for _, term := range s.terms {
		fixed := append([]cap(nil), caps...)
		accept := func(a *Assignment) bool {
			for _, c := range fixed {
				if Evaluate(m.PM, a, c.kind) > c.limit+1e-9 {
					return false
				}
			}
			return true
		}
		lb := lowerBoundFor(m, term.Kind)
		if len(fixed) > 0 {
			// Caps restrict the feasible set, so the unconstrained bound no
			// longer proves optimality for this stage.
			lb = -1
		}
		out, err = eng.Solve(ctx, SolveSpec{
			Model:      m,
			Evaluate:   evaluator(m, term.Kind),
			Accept:     accept,
			LowerBound: lb,
			Regular:    regularTerms(s.terms),
			Budget:     stageBudget,
			Hint:       hint,
		})
		if out.Best == nil {
			return Result{Outcome: out}, err
		}
		if !out.Proven {
			allProven = false
		}
		hint = out.Best
		caps = append(caps, cap{kind: term.Kind, limit: out.Score * (1 + term.SlackPct/100)})
	}

	if out.Status == domain.StatusOptimal && !allProven {
		out.Status = domain.StatusFeasible
		out.Proven = false
	}
	return Result{
		Outcome: out,
		Values:  EvaluateAll(m.PM, out.Best, s.terms),
	}, err
}

// weightedSumStrategy minimizes a normalized weighted sum. Terms without an
// explicit normalizer get one derived by briefly solving that term alone, so
// components on wildly different scales contribute comparably.
type weightedSumStrategy struct {
	terms []domain.ObjectiveTerm
}

func (s *weightedSumStrategy) Name() string { return string(domain.StrategyWeightedSum) }

func (s *weightedSumStrategy) Run(ctx context.Context, eng *Engine, m *Model, budget time.Duration, hint *Assignment) (Result, error) {
	missing := 0
	for _, t := range s.terms {
		if t.Normalizer <= 0 {
			missing++
		}
	}
	norms := make([]float64, len(s.terms))
	remaining := budget
	if missing > 0 {
		calibration := budget / 2 / time.Duration(missing)
		for i, t := range s.terms {
			if t.Normalizer > 0 {
				norms[i] = t.Normalizer
				continue
			}
			out, _ := eng.Solve(ctx, SolveSpec{
				Model:      m,
				Evaluate:   evaluator(m, t.Kind),
				LowerBound: lowerBoundFor(m, t.Kind),
				Regular:    regularKind(t.Kind),
				Budget:     calibration,
				Hint:       hint,
			})
			norms[i] = 1
			if out.Best != nil {
				if out.Score > 1 {
					norms[i] = out.Score
				}
				if hint == nil {
					hint = out.Best
				}
			}
			remaining -= calibration
		}
	} else {
		for i, t := range s.terms {
			norms[i] = t.Normalizer
		}
	}

	out, err := eng.Solve(ctx, SolveSpec{
		Model: m,
		Evaluate: func(a *Assignment) float64 {
			sum := 0.0
			for i, t := range s.terms {
				sum += t.Weight * Evaluate(m.PM, a, t.Kind) / norms[i]
			}
			return sum
		},
		LowerBound: -1,
		Regular:    regularTerms(s.terms),
		Budget:     remaining,
		Hint:       hint,
	})
	res := Result{Outcome: out}
	if out.Best != nil {
		res.Values = EvaluateAll(m.PM, out.Best, s.terms)
	}
	return res, err
}

// epsilonStrategy minimizes the first term subject to hard thresholds on
// every later term.
type epsilonStrategy struct {
	terms []domain.ObjectiveTerm
}

func (s *epsilonStrategy) Name() string { return string(domain.StrategyEpsilonConstraint) }

func (s *epsilonStrategy) Run(ctx context.Context, eng *Engine, m *Model, budget time.Duration, hint *Assignment) (Result, error) {
	primary := s.terms[0]
	secondaries := s.terms[1:]
	out, err := eng.Solve(ctx, SolveSpec{
		Model:    m,
		Evaluate: evaluator(m, primary.Kind),
		Accept: func(a *Assignment) bool {
			for _, t := range secondaries {
				if Evaluate(m.PM, a, t.Kind) > t.Threshold+1e-9 {
					return false
				}
			}
			return true
		},
		LowerBound: lowerBoundFor(m, primary.Kind),
		Regular:    regularTerms(s.terms),
		Budget:     budget,
		Hint:       hint,
	})
	res := Result{Outcome: out}
	if out.Best != nil {
		res.Values = EvaluateAll(m.PM, out.Best, s.terms)
	}
	return res, err
}

// paretoStrategy collects a bounded non-dominated archive by running a
// series of weighted scalarizations, each emphasizing a different term.
type paretoStrategy struct {
	terms []domain.ObjectiveTerm
	limit int
}

func (s *paretoStrategy) Name() string { return string(domain.StrategyPareto) }

func (s *paretoStrategy) Run(ctx context.Context, eng *Engine, m *Model, budget time.Duration, hint *Assignment) (Result, error) {
	runs := s.limit
	if runs < len(s.terms)+1 {
		runs = len(s.terms) + 1
	}
	runBudget := budget / time.Duration(runs)

	norms := make([]float64, len(s.terms))
	for i, t := range s.terms {
		norms[i] = t.Normalizer
		if norms[i] <= 0 {
			norms[i] = 1
		}
	}

	var front []FrontPoint
	var out Outcome
	var err error
	for r := 0; r < runs; r++ {
		if ctx.Err() != nil {
			break
		}
		emphasized := r % len(s.terms)
		out, err = eng.Solve(ctx, SolveSpec{
			Model: m,
			Evaluate: func(a *Assignment) float64 {
				sum := 0.0
				for i := range s.terms {
					w := 1.0
					if i == emphasized {
						w = float64(len(s.terms)) + 1
					}
					sum += w * Evaluate(m.PM, a, s.terms[i].Kind) / norms[i]
				}
				return sum
			},
			LowerBound: -1,
			Regular:    regularTerms(s.terms),
			Budget:     runBudget,
			Hint:       hint,
		})
		if out.Best == nil {
			continue
		}
		values := EvaluateAll(m.PM, out.Best, s.terms)
		front = insertNonDominated(front, FrontPoint{Assignment: out.Best, Values: values}, s.terms, s.limit)
		if hint == nil {
			hint = out.Best
		}
	}

	if len(front) == 0 {
		return Result{Outcome: out}, err
	}
	// The representative solution is the front's first point under the first
	// term's ordering.
	sortFront(front, s.terms)
	res := Result{Outcome: out, Front: front, Values: front[0].Values}
	res.Best = front[0].Assignment
	res.Score = front[0].Values[s.terms[0].Kind]
	if !res.Status.HasSolution() && res.Status != domain.StatusTimeout {
		res.Status = domain.StatusFeasible
	}
	res.Proven = false
	if res.Status == domain.StatusOptimal {
		res.Status = domain.StatusFeasible
	}
	return res, nil
}

// dominates reports whether a is at least as good as b on every term and
// strictly better on one.
func dominates(a, b map[domain.ObjectiveKind]float64, terms []domain.ObjectiveTerm) bool {
	strict := false
	for _, t := range terms {
		if a[t.Kind] > b[t.Kind]+1e-9 {
			return false
		}
		if a[t.Kind] < b[t.Kind]-1e-9 {
			strict = true
		}
	}
	return strict
}

func insertNonDominated(front []FrontPoint, p FrontPoint, terms []domain.ObjectiveTerm, limit int) []FrontPoint {
	for _, q := range front {
		if dominates(q.Values, p.Values, terms) || equalValues(q.Values, p.Values, terms) {
			return front
		}
	}
	kept := front[:0]
	for _, q := range front {
		if !dominates(p.Values, q.Values, terms) {
			kept = append(kept, q)
		}
	}
	kept = append(kept, p)
	if len(kept) > limit {
		sortFront(kept, terms)
		kept = kept[:limit]
	}
	return kept
}

func equalValues(a, b map[domain.ObjectiveKind]float64, terms []domain.ObjectiveTerm) bool {
	for _, t := range terms {
		if a[t.Kind] < b[t.Kind]-1e-9 || a[t.Kind] > b[t.Kind]+1e-9 {
			return false
		}
	}
	return true
}

func sortFront(front []FrontPoint, terms []domain.ObjectiveTerm) {
	sort.SliceStable(front, func(i, j int) bool {
		for _, t := range terms {
			if front[i].Values[t.Kind] != front[j].Values[t.Kind] {
				return front[i].Values[t.Kind] < front[j].Values[t.Kind]
			}
		}
		return false
	})
}
