package domain

import (
	"errors"
	"fmt"
)

// StrategyKind selects how multiple objectives are combined into a solve.
type StrategyKind string

const (
	StrategySingle            StrategyKind = "single"
	StrategyLexicographic     StrategyKind = "lexicographic"
	StrategyWeightedSum       StrategyKind = "weighted_sum"
	StrategyEpsilonConstraint StrategyKind = "epsilon_constraint"
	StrategyPareto            StrategyKind = "pareto"
)

// ObjectiveKind names one scalar objective component. All kinds are
// minimized; utilization is reported as idle minutes for that reason.
type ObjectiveKind string

const (
	ObjectiveMakespan         ObjectiveKind = "makespan"
	ObjectiveTotalCost        ObjectiveKind = "total_cost"
	ObjectiveTotalLateness    ObjectiveKind = "total_lateness"
	ObjectiveWeightedLateness ObjectiveKind = "weighted_lateness"
	ObjectiveMachineIdle      ObjectiveKind = "machine_idle"
)

var (
	ErrNoObjectives       = errors.New("objective configuration has no terms")
	ErrUnknownStrategy    = errors.New("unknown objective strategy")
	ErrUnknownObjective   = errors.New("unknown objective kind")
	ErrNegativeWeight     = errors.New("objective weight must be positive")
	ErrNegativeThreshold  = errors.New("epsilon threshold must not be negative")
	ErrSingleNeedsOneTerm = errors.New("single strategy takes exactly one term")
)

// ObjectiveTerm is one component of a multi-objective configuration.
// Weight applies to weighted-sum, Threshold to epsilon-constraint (on
// secondary terms), SlackPct to lexicographic (allowed degradation of an
// already-fixed term, in percent). Normalizer, when > 0, overrides the
// derived normalization constant for weighted-sum.
type ObjectiveTerm struct {
	Kind       ObjectiveKind
	Weight     float64
	Threshold  float64
	SlackPct   float64
	Normalizer float64
}

// ObjectiveConfiguration is the strategy tag plus its ordered term list.
type ObjectiveConfiguration struct {
	Strategy    StrategyKind
	Terms       []ObjectiveTerm
	ParetoLimit int
}

// DefaultObjectives minimizes makespan with the single strategy.
func DefaultObjectives() ObjectiveConfiguration {
	return ObjectiveConfiguration{
		Strategy: StrategySingle,
		Terms:    []ObjectiveTerm{{Kind: ObjectiveMakespan, Weight: 1}},
	}
}

// Validate checks the configuration before a solve is attempted.
func (c ObjectiveConfiguration) Validate() error {
	switch c.Strategy {
	case StrategySingle, StrategyLexicographic, StrategyWeightedSum,
		StrategyEpsilonConstraint, StrategyPareto:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Strategy)
	}
	if len(c.Terms) == 0 {
		return ErrNoObjectives
	}
	if c.Strategy == StrategySingle && len(c.Terms) != 1 {
		return ErrSingleNeedsOneTerm
	}
	for _, t := range c.Terms {
		switch t.Kind {
		case ObjectiveMakespan, ObjectiveTotalCost, ObjectiveTotalLateness,
			ObjectiveWeightedLateness, ObjectiveMachineIdle:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownObjective, t.Kind)
		}
		if c.Strategy == StrategyWeightedSum && t.Weight <= 0 {
			return fmt.Errorf("%w: %s", ErrNegativeWeight, t.Kind)
		}
		if c.Strategy == StrategyEpsilonConstraint && t.Threshold < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeThreshold, t.Kind)
		}
	}
	return nil
}
