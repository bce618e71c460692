package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

func TestEarliestWindowFit(t *testing.T) {
	windows := []domain.Window{{Start: 10, End: 40}, {Start: 60, End: 100}}

	assert.Equal(t, 10, earliestWindowFit(windows, 0, 30))
	assert.Equal(t, 15, earliestWindowFit(windows, 15, 20))
	assert.Equal(t, 60, earliestWindowFit(windows, 15, 35), "skips a window too small for the tail")
	assert.Equal(t, -1, earliestWindowFit(windows, 0, 50), "no window holds the interval")
	assert.Equal(t, -1, earliestWindowFit(windows, 90, 20))
}

func TestResourceTimeline_Concurrent(t *testing.T) {
	tl := newResourceTimeline(2, nil)
	tl.add(placedInterval{op: 0, start: 0, end: 30})
	tl.add(placedInterval{op: 1, start: 10, end: 40})
	tl.add(placedInterval{op: 2, start: 30, end: 50})

	assert.Equal(t, 2, tl.concurrent(0, 50))
	assert.Equal(t, 1, tl.concurrent(40, 50))
	// Half-open intervals: an end releases capacity at the same instant a
	// start claims it.
	assert.Equal(t, 2, tl.concurrent(25, 35))
	assert.Equal(t, 0, tl.concurrent(50, 60))
}

func TestResourceTimeline_EarliestFit(t *testing.T) {
	tl := newResourceTimeline(1, nil)
	tl.add(placedInterval{op: 0, start: 20, end: 50})

	assert.Equal(t, 0, tl.earliestFit(0, 20, 200), "fits before the committed interval")
	assert.Equal(t, 50, tl.earliestFit(0, 30, 200), "bumped past the committed interval")
	assert.Equal(t, 60, tl.earliestFit(60, 10, 200))
	assert.Equal(t, -1, tl.earliestFit(0, 30, 60), "horizon too tight after the bump")
}

func TestResourceTimeline_EarliestFitWithWindows(t *testing.T) {
	tl := newResourceTimeline(1, []domain.Window{{Start: 0, End: 40}, {Start: 60, End: 120}})
	tl.add(placedInterval{op: 0, start: 0, end: 30})

	assert.Equal(t, 30, tl.earliestFit(0, 10, 200))
	assert.Equal(t, 60, tl.earliestFit(0, 20, 200), "snaps to the next window")
	assert.Equal(t, -1, tl.earliestFit(0, 70, 200))
}

func TestResourceTimeline_EarliestFitWithSetups(t *testing.T) {
	setup := func(from, to string) int {
		if from == "paint" && to == "weld" {
			return 15
		}
		if from == "weld" && to == "paint" {
			return 10
		}
		return 0
	}

	tl := newResourceTimeline(1, nil)
	tl.add(placedInterval{op: 0, start: 0, end: 30, typeCode: "paint"})
	tl.add(placedInterval{op: 1, start: 100, end: 130, typeCode: "paint"})

	// After the first paint job: 30 + setup(paint, weld) = 45, and the weld
	// must leave setup(weld, paint) = 10 before the next paint at 100.
	assert.Equal(t, 45, tl.earliestFitWithSetups(0, 40, 500, "weld", setup))

	// A 50 minute weld would end at 95; 95 + 10 > 100, so it lands after the
	// second paint job instead: 130 + 15 = 145.
	assert.Equal(t, 145, tl.earliestFitWithSetups(0, 50, 500, "weld", setup))

	// Same type code needs no gap.
	assert.Equal(t, 30, tl.earliestFitWithSetups(0, 60, 500, "paint", setup))

	assert.Equal(t, -1, tl.earliestFitWithSetups(0, 50, 150, "weld", setup), "horizon excludes the only slot")
}

func TestResourceTimeline_BusyAndRelief(t *testing.T) {
	tl := newResourceTimeline(1, nil)
	tl.add(placedInterval{op: 0, start: 10, end: 30})
	tl.add(placedInterval{op: 1, start: 40, end: 45})

	assert.Equal(t, 25, tl.busyMinutes())
	assert.Equal(t, 30, tl.nextRelief(15))
	assert.Equal(t, 45, tl.nextRelief(30))
	assert.Equal(t, -1, tl.nextRelief(45))
}
