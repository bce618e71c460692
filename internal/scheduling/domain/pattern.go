package domain

import (
	"github.com/google/uuid"
)

// Pattern is a reusable task/precedence/mode template from which job
// instances are realized. Patterns are read-only during a solve.
type Pattern struct {
	ID          uuid.UUID
	Name        string
	Tasks       []Task
	Precedences []Precedence
	SetupRules  []SetupRule
	Objectives  ObjectiveConfiguration
}

// Task is one step of a pattern. It carries at least one mode; the solver
// picks exactly one mode per (instance, task) operation.
type Task struct {
	ID       uuid.UUID
	Name     string
	TypeCode string // setup family for sequence-dependent setup rules
	Modes    []TaskMode
}

// TaskMode is one eligible (machine, duration, setup) option for a task.
type TaskMode struct {
	MachineID       uuid.UUID
	DurationMinutes int
	SetupMinutes    int
	CostPerHour     float64
	RequiredSkills  []SkillRequirement
	NeedsOperator   bool
}

// Precedence orders two tasks of the same pattern. Delays are measured from
// the predecessor's end to the successor's start. MaxDelayMinutes < 0 means
// no upper bound.
type Precedence struct {
	Predecessor     uuid.UUID
	Successor       uuid.UUID
	MinDelayMinutes int
	MaxDelayMinutes int
}

// SetupRule defines a sequence-dependent setup time between two task type
// codes when they run back to back on the same machine. MachineID may be
// uuid.Nil to apply the rule on every machine.
type SetupRule struct {
	MachineID    uuid.UUID
	FromType     string
	ToType       string
	SetupMinutes int
}

// TaskByID returns the task with the given ID, or nil.
func (p *Pattern) TaskByID(id uuid.UUID) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}

// SetupBetween resolves the sequence-dependent setup minutes when a task of
// type from is followed by a task of type to on the given machine. Machine
// specific rules win over generic ones.
func (p *Pattern) SetupBetween(machineID uuid.UUID, from, to string) int {
	generic := 0
	for _, r := range p.SetupRules {
		if r.FromType != from || r.ToType != to {
			continue
		}
		if r.MachineID == machineID {
			return r.SetupMinutes
		}
		if r.MachineID == uuid.Nil {
			generic = r.SetupMinutes
		}
	}
	return generic
}
