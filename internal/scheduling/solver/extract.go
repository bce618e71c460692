package solver

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// Extractor turns a winning assignment into a Schedule aggregate. It
// re-validates the assignment against every registered constraint first;
// the validation is independent of the search path, so an encoding defect
// surfaces as an ExtractionInvariantViolation instead of a corrupt schedule.
type Extractor struct {
	m *Model
}

func NewExtractor(m *Model) *Extractor {
	return &Extractor{m: m}
}

// Extract builds the schedule for a solved outcome. The caller supplies the
// raw objective values the strategy reported and the metrics of the solve.
func (x *Extractor) Extract(
	res Result,
	values map[domain.ObjectiveKind]float64,
	metrics domain.PerformanceMetrics,
) (*domain.Schedule, error) {
	pm := x.m.PM
	if res.Best == nil {
		return nil, ErrNoSolution
	}
	if err := x.m.Check(res.Best); err != nil {
		return nil, x.wrapViolation(err)
	}

	tasks := make([]*domain.ScheduledTask, 0, len(pm.Ops))
	for i := range pm.Ops {
		op := &pm.Ops[i]
		mode := op.Modes[res.Best.Mode[i]]
		var operatorID *uuid.UUID
		if oi := res.Best.Operator[i]; oi >= 0 {
			id := pm.Pool.Operators[oi].ID
			operatorID = &id
		}
		startAt := pm.HorizonStart.Add(time.Duration(res.Best.Start[i]) * time.Minute)
		endAt := pm.HorizonStart.Add(time.Duration(res.Best.End[i]) * time.Minute)
		task, err := domain.NewScheduledTask(
			op.InstanceID,
			op.TaskID,
			pm.Pool.Machines[mode.Machine].ID,
			operatorID,
			startAt,
			endAt,
			mode.Setup,
		)
		if err != nil {
			return nil, &ExtractionInvariantViolation{
				Constraint: "duration-link",
				InstanceID: op.InstanceID,
				TaskID:     op.TaskID,
				Detail:     err.Error(),
			}
		}
		tasks = append(tasks, task)
	}

	return domain.NewSchedule(
		pm.Pattern.ID,
		pm.HorizonStart,
		res.Status,
		values,
		metrics,
		tasks,
	), nil
}

// wrapViolation maps a constraint check failure to the fatal extraction
// error, attaching instance and task identity.
func (x *Extractor) wrapViolation(err error) error {
	if v, ok := err.(*violation); ok {
		op := &x.m.PM.Ops[v.op]
		return &ExtractionInvariantViolation{
			Constraint: v.constraint,
			InstanceID: op.InstanceID,
			TaskID:     op.TaskID,
			Detail:     v.detail,
		}
	}
	return err
}
