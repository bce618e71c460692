package solver

import (
	"sort"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// earliestWindowFit returns the earliest start >= from such that
// [start, start+length) lies entirely inside one of the sorted windows,
// or -1 when no window can hold it.
func earliestWindowFit(windows []domain.Window, from, length int) int {
	for _, w := range windows {
		s := maxInt(from, w.Start)
		if s+length <= w.End {
			return s
		}
	}
	return -1
}

// fitsSingleWindow reports whether [start, end) lies inside exactly one of
// the windows. Windows never overlap, so containment in one suffices.
func fitsSingleWindow(windows []domain.Window, start, end int) bool {
	for _, w := range windows {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

// placedInterval is one committed occupation on a resource timeline.
type placedInterval struct {
	op       int
	start    int
	end      int
	typeCode string
}

// resourceTimeline tracks committed intervals on one capacity-bounded
// resource (machine, operator, sequence resource, department), optionally
// restricted to availability windows.
type resourceTimeline struct {
	capacity int
	windows  []domain.Window // nil means unrestricted
	placed   []placedInterval
}

func newResourceTimeline(capacity int, windows []domain.Window) *resourceTimeline {
	return &resourceTimeline{capacity: capacity, windows: windows}
}

// add inserts an interval keeping the list sorted by start.
func (t *resourceTimeline) add(iv placedInterval) {
	i := sort.Search(len(t.placed), func(i int) bool { return t.placed[i].start >= iv.start })
	t.placed = append(t.placed, placedInterval{})
	copy(t.placed[i+1:], t.placed[i:])
	t.placed[i] = iv
}

// busyMinutes sums committed interval lengths.
func (t *resourceTimeline) busyMinutes() int {
	total := 0
	for _, iv := range t.placed {
		total += iv.end - iv.start
	}
	return total
}

// concurrent returns the maximum number of committed intervals active at any
// instant within [start, end). Intervals are half-open.
func (t *resourceTimeline) concurrent(start, end int) int {
	best, cur := 0, 0
	type event struct{ at, delta int }
	events := make([]event, 0, 2*len(t.placed))
	for _, iv := range t.placed {
		s, e := maxInt(iv.start, start), minInt(iv.end, end)
		if s < e {
			events = append(events, event{s, +1}, event{e, -1})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].at != events[j].at {
			return events[i].at < events[j].at
		}
		return events[i].delta < events[j].delta // ends release before starts claim
	})
	for _, ev := range events {
		cur += ev.delta
		if cur > best {
			best = cur
		}
	}
	return best
}

// fits reports whether adding [start, end) keeps the timeline within
// capacity and, when windows bind, inside a single window.
func (t *resourceTimeline) fits(start, end int) bool {
	if t.windows != nil && !fitsSingleWindow(t.windows, start, end) {
		return false
	}
	return t.concurrent(start, end) < t.capacity
}

// nextRelief returns the smallest committed end strictly after at, or -1.
func (t *resourceTimeline) nextRelief(at int) int {
	best := -1
	for _, iv := range t.placed {
		if iv.end > at && (best < 0 || iv.end < best) {
			best = iv.end
		}
	}
	return best
}

// earliestFit finds the earliest start >= from where an interval of the
// given length fits, or -1 when none exists before the horizon.
func (t *resourceTimeline) earliestFit(from, length, horizon int) int {
	s := from
	for guard := 0; guard <= 2*len(t.placed)+len(t.windows)+2; guard++ {
		if t.windows != nil {
			snapped := earliestWindowFit(t.windows, s, length)
			if snapped < 0 {
				return -1
			}
			s = snapped
		}
		if s+length > horizon {
			return -1
		}
		if t.concurrent(s, s+length) < t.capacity {
			return s
		}
		relief := t.nextRelief(s)
		if relief <= s {
			return -1
		}
		s = relief
	}
	return -1
}

// earliestFitWithSetups finds the earliest start on a capacity-one machine
// honoring sequence-dependent setup gaps: the new interval must start at
// least setup(prev, this) after its predecessor's end, and must leave
// setup(this, next) before its successor's start.
func (t *resourceTimeline) earliestFitWithSetups(
	from, length, horizon int,
	typeCode string,
	setup func(fromType, toType string) int,
) int {
	n := len(t.placed)
	for slot := 0; slot <= n; slot++ {
		s := from
		if slot > 0 {
			prev := t.placed[slot-1]
			s = maxInt(s, prev.end+setup(prev.typeCode, typeCode))
		}
		if t.windows != nil {
			snapped := earliestWindowFit(t.windows, s, length)
			if snapped < 0 {
				return -1
			}
			s = snapped
		}
		e := s + length
		if e > horizon {
			return -1
		}
		if slot < n {
			next := t.placed[slot]
			if e+setup(typeCode, next.typeCode) > next.start {
				continue // gap too small, try the next slot
			}
		}
		return s
	}
	return -1
}
