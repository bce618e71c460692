package solver

import (
	"fmt"
)

// calendarWindows confines each operation's occupied interval to a single
// availability window of its machine's calendar (net of maintenance), and
// to one of the assigned operator's shifts.
type calendarWindows struct {
	cardinality int
}

func newCalendarWindows(pm *ProblemModel) *calendarWindows {
	n := 0
	for i := range pm.Ops {
		n += len(pm.Ops[i].Modes)
	}
	return &calendarWindows{cardinality: n}
}

func (c *calendarWindows) Name() string     { return "calendar-windows" }
func (c *calendarWindows) Phase() Phase     { return PhaseCalendars }
func (c *calendarWindows) Cardinality() int { return c.cardinality }

// Propagate disables modes whose machine has no window long enough for the
// occupied interval after the current start lower bound, and lifts the start
// lower bound to the earliest snap point shared by the surviving modes.
func (c *calendarWindows) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	for i := range pm.Ops {
		earliest := -1
		for m, mode := range pm.Ops[i].Modes {
			if !vs.ModeEligible(i, m) {
				continue
			}
			length := mode.Setup + mode.Duration
			s := earliestWindowFit(pm.NetWindows(mode.Machine), vs.StartLB[i], length)
			if s < 0 || s+length > vs.EndUB[i] {
				if err := vs.DisableMode(pm, i, m, c.Name()); err != nil {
					return err
				}
				continue
			}
			if earliest < 0 || s < earliest {
				earliest = s
			}
		}
		if earliest > vs.StartLB[i] {
			vs.StartLB[i] = earliest
		}
	}
	return vs.Propagate(pm)
}

func (c *calendarWindows) Check(pm *ProblemModel, a *Assignment) error {
	for i := range pm.Ops {
		mode := pm.Ops[i].Modes[a.Mode[i]]
		if !fitsSingleWindow(pm.NetWindows(mode.Machine), a.Start[i], a.End[i]) {
			return &violation{constraint: c.Name(), op: i,
				detail: fmt.Sprintf("interval [%d,%d) outside machine %s availability", a.Start[i], a.End[i], pm.Pool.Machines[mode.Machine].Name)}
		}
		if a.Operator[i] >= 0 {
			op := pm.Pool.Operators[a.Operator[i]]
			if len(op.Shifts) > 0 && !fitsSingleWindow(op.Shifts, a.Start[i], a.End[i]) {
				return &violation{constraint: c.Name(), op: i,
					detail: fmt.Sprintf("interval [%d,%d) outside operator %s shifts", a.Start[i], a.End[i], op.Name)}
			}
		}
	}
	return nil
}

// maintenanceBlackout re-validates that no interval touches a maintenance
// window. Propagation already runs against net windows; this check holds
// even if calendars and maintenance disagree.
type maintenanceBlackout struct {
	cardinality int
}

func newMaintenanceBlackout(pm *ProblemModel) *maintenanceBlackout {
	n := 0
	for mi := range pm.Pool.Machines {
		n += len(pm.Pool.Machines[mi].Maintenance)
	}
	return &maintenanceBlackout{cardinality: n * len(pm.Ops)}
}

func (c *maintenanceBlackout) Name() string     { return "maintenance-blackout" }
func (c *maintenanceBlackout) Phase() Phase     { return PhaseCalendars }
func (c *maintenanceBlackout) Cardinality() int { return c.cardinality }

func (c *maintenanceBlackout) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	return nil
}

func (c *maintenanceBlackout) Check(pm *ProblemModel, a *Assignment) error {
	for i := range pm.Ops {
		mode := pm.Ops[i].Modes[a.Mode[i]]
		for _, b := range pm.Pool.Machines[mode.Machine].Maintenance {
			if b.Overlaps(a.Start[i], a.End[i]) {
				return &violation{constraint: c.Name(), op: i,
					detail: fmt.Sprintf("interval [%d,%d) overlaps maintenance [%d,%d) on machine %s",
						a.Start[i], a.End[i], b.Start, b.End, pm.Pool.Machines[mode.Machine].Name)}
			}
		}
	}
	return nil
}

// setupTimes enforces sequence-dependent setup gaps on capacity-one
// machines: between consecutive intervals the idle gap must cover
// setup(predecessor type, successor type).
type setupTimes struct {
	cardinality int
}

func newSetupTimes(pm *ProblemModel) *setupTimes {
	return &setupTimes{cardinality: len(pm.Pattern.SetupRules) * len(pm.Ops)}
}

func (c *setupTimes) Name() string     { return "setup-times" }
func (c *setupTimes) Phase() Phase     { return PhaseCalendars }
func (c *setupTimes) Cardinality() int { return c.cardinality }

func (c *setupTimes) Propagate(pm *ProblemModel, vs *VariableSpace) error {
	return nil
}

func (c *setupTimes) Check(pm *ProblemModel, a *Assignment) error {
	for mi, ivs := range groupByMachine(pm, a) {
		if pm.Pool.Machines[mi].Capacity != 1 {
			continue
		}
		for k := 1; k < len(ivs); k++ {
			prev, cur := ivs[k-1], ivs[k]
			gap := pm.SetupBetween(mi, prev.typeCode, cur.typeCode)
			if cur.start < prev.end+gap {
				return &violation{constraint: c.Name(), op: cur.op,
					detail: fmt.Sprintf("gap %d before operation on machine %s is below setup %d",
						cur.start-prev.end, pm.Pool.Machines[mi].Name, gap)}
			}
		}
	}
	return nil
}
