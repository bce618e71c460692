package domain

import (
	"github.com/google/uuid"
)

// Window is a half-open [Start, End) interval in minutes from the scheduling
// horizon anchor. Calendars, shifts, and maintenance blackouts are all
// expressed as windows; the problem repository materializes them for the
// requested horizon.
type Window struct {
	Start int
	End   int
}

// Length returns the window length in minutes.
func (w Window) Length() int { return w.End - w.Start }

// Contains reports whether the interval [start, end) lies entirely inside
// the window.
func (w Window) Contains(start, end int) bool {
	return start >= w.Start && end <= w.End
}

// Overlaps reports whether the interval [start, end) intersects the window.
func (w Window) Overlaps(start, end int) bool {
	return start < w.End && end > w.Start
}

// Machine is a production resource with a capacity (concurrent operations),
// an availability calendar and maintenance blackout windows.
type Machine struct {
	ID           uuid.UUID
	Name         string
	Capacity     int
	Calendar     []Window // available windows; empty means always available
	Maintenance  []Window // blackout windows subtracted from the calendar
	DepartmentID string
	HourlyCost   float64
}

// Skill is a named capability held by an operator at a proficiency level.
type Skill struct {
	Name  string
	Level int
}

// SkillRequirement names a capability a task mode demands at a minimum level.
type SkillRequirement struct {
	Name     string
	MinLevel int
}

// Operator is a person who can run machines during shift windows.
type Operator struct {
	ID         uuid.UUID
	Name       string
	Skills     []Skill
	Shifts     []Window // working windows; empty means always available
	MaxMinutes int      // max working minutes over the horizon; 0 means unlimited
	HourlyCost float64
}

// HasSkills reports whether the operator satisfies every requirement.
func (o Operator) HasSkills(reqs []SkillRequirement) bool {
	for _, req := range reqs {
		ok := false
		for _, s := range o.Skills {
			if s.Name == req.Name && s.Level >= req.MinLevel {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// SequenceResource is a shared exclusive resource (tool, fixture) reserved
// by tasks of the listed type codes, with a concurrency ceiling.
type SequenceResource struct {
	ID            uuid.UUID
	Name          string
	MaxConcurrent int
	TaskTypeCodes []string
}

// AppliesTo reports whether tasks of the given type code reserve this resource.
func (r SequenceResource) AppliesTo(typeCode string) bool {
	for _, c := range r.TaskTypeCodes {
		if c == typeCode {
			return true
		}
	}
	return false
}

// ResourcePool bundles every resource definition visible to one solve.
type ResourcePool struct {
	Machines          []Machine
	Operators         []Operator
	SequenceResources []SequenceResource
}

// MachineByID returns the machine with the given ID, or nil.
func (p *ResourcePool) MachineByID(id uuid.UUID) *Machine {
	for i := range p.Machines {
		if p.Machines[i].ID == id {
			return &p.Machines[i]
		}
	}
	return nil
}

// OperatorByID returns the operator with the given ID, or nil.
func (p *ResourcePool) OperatorByID(id uuid.UUID) *Operator {
	for i := range p.Operators {
		if p.Operators[i].ID == id {
			return &p.Operators[i]
		}
	}
	return nil
}
