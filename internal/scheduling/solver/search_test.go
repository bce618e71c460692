package solver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchRank_PriorityThenDueThenSPT(t *testing.T) {
	f := newShopFixture(2) // priorities 1 and 2
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	rank := dispatchRank(pm)

	// Higher-priority instance first, whole block.
	for i := 0; i < 3; i++ {
		assert.Less(t, rank[i], rank[i+3])
	}
	// Within an instance SPT orders polish(20) < cut(25) < weld(30).
	assert.Less(t, rank[2], rank[0])
	assert.Less(t, rank[0], rank[1])
}

func TestDispatchRank_DueDateBreaksPriorityTies(t *testing.T) {
	f := newShopFixture(2)
	f.instances[1].Priority = f.instances[0].Priority
	f.instances[1].DueDate = fixtureAnchor.Add(2 * time.Hour)
	pm, err := f.load(Toggles{})
	require.NoError(t, err)

	rank := dispatchRank(pm)

	// The dated instance outranks the open-ended one.
	for i := 0; i < 3; i++ {
		assert.Less(t, rank[i+3], rank[i])
	}
}

func TestDecode_SerialChain(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	dec := newDecoder(m)
	a, ok := dec.decode(dispatchRank(m.PM), dec.pickShortestMode)
	require.True(t, ok)

	assert.Equal(t, []int{0, 25, 55}, a.Start)
	assert.Equal(t, []int{25, 55, 75}, a.End)
	assert.Equal(t, []int{-1, -1, -1}, a.Operator)
	assert.NoError(t, m.Check(a))
}

func TestDecode_MinDelayShiftsSuccessor(t *testing.T) {
	f := newShopFixture(1)
	// Cut parts must rest five minutes before welding.
	f.pattern.Precedences[0].MinDelayMinutes = 5
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	dec := newDecoder(m)
	a, ok := dec.decode(dispatchRank(m.PM), dec.pickShortestMode)
	require.True(t, ok)

	assert.Equal(t, a.End[0]+5, a.Start[1], "weld waits out the rest period")
	assert.Equal(t, []int{0, 30, 60}, a.Start)
	assert.Equal(t, []int{25, 60, 80}, a.End)
	assert.NoError(t, m.Check(a))
}

func TestDecode_ModePickers(t *testing.T) {
	f := newShopFixture(1)
	f.polish.Modes[1].DurationMinutes = 15
	f.pattern.Tasks[2] = f.polish
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	dec := newDecoder(m)

	a, ok := dec.decode(dispatchRank(m.PM), dec.pickShortestMode)
	require.True(t, ok)
	assert.Equal(t, 1, a.Mode[2], "shortest mode is the 15 minute lathe run")
	assert.Equal(t, 70, a.End[2])

	a, ok = dec.decode(dispatchRank(m.PM), pickFirstMode)
	require.True(t, ok)
	assert.Equal(t, 0, a.Mode[2])
	assert.Equal(t, 75, a.End[2])
}

func TestExhaustive_EnumeratesOrdersAndModes(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	var evals atomic.Int64
	s := newSearcher(m, &evals)

	var seen []*Assignment
	complete := s.exhaustive(context.Background(), func(a *Assignment) bool {
		seen = append(seen, a)
		return true
	})

	require.True(t, complete)
	// One topological order for the chain, two surviving polish modes.
	require.Len(t, seen, 2)
	assert.Equal(t, int64(2), evals.Load())
	modes := []int{seen[0].Mode[2], seen[1].Mode[2]}
	assert.ElementsMatch(t, []int{0, 1}, modes)
}

func TestExhaustive_StopsWhenEmitDeclines(t *testing.T) {
	f := newShopFixture(1)
	m, err := f.buildModel(Toggles{})
	require.NoError(t, err)

	var evals atomic.Int64
	s := newSearcher(m, &evals)

	count := 0
	complete := s.exhaustive(context.Background(), func(a *Assignment) bool {
		count++
		return false
	})

	assert.False(t, complete)
	assert.Equal(t, 1, count)
}
