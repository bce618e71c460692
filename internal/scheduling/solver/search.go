package solver

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"
)

// searcher produces candidate assignments for one immutable model. Every
// worker owns its own searcher; only the model is shared, read-only.
type searcher struct {
	m     *Model
	dec   *decoder
	evals *atomic.Int64
}

func newSearcher(m *Model, evals *atomic.Int64) *searcher {
	return &searcher{m: m, dec: newDecoder(m), evals: evals}
}

// dispatchRank orders operations by instance priority, then due date, then
// shortest occupied interval, then index. The deterministic baseline every
// solve runs first.
func dispatchRank(pm *ProblemModel) []int {
	n := len(pm.Ops)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	due := func(i int) int {
		if pm.Ops[i].Due < 0 {
			return int(^uint(0) >> 1)
		}
		return pm.Ops[i].Due
	}
	sort.SliceStable(idx, func(a, b int) bool {
		oa, ob := &pm.Ops[idx[a]], &pm.Ops[idx[b]]
		if oa.Priority != ob.Priority {
			return oa.Priority < ob.Priority
		}
		if da, db := due(idx[a]), due(idx[b]); da != db {
			return da < db
		}
		if da, db := oa.MinDuration(nil), ob.MinDuration(nil); da != db {
			return da < db
		}
		return idx[a] < idx[b]
	})
	rank := make([]int, n)
	for pos, i := range idx {
		rank[i] = pos
	}
	return rank
}

// releaseRank orders operations by release, then priority, then index.
func releaseRank(pm *ProblemModel) []int {
	n := len(pm.Ops)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		oa, ob := &pm.Ops[idx[a]], &pm.Ops[idx[b]]
		if oa.Release != ob.Release {
			return oa.Release < ob.Release
		}
		if oa.Priority != ob.Priority {
			return oa.Priority < ob.Priority
		}
		return idx[a] < idx[b]
	})
	rank := make([]int, n)
	for pos, i := range idx {
		rank[i] = pos
	}
	return rank
}

// dispatch decodes the deterministic rule orders once each and emits every
// feasible result. Emit returning false stops the pass.
func (s *searcher) dispatch(ctx context.Context, emit func(*Assignment) bool) {
	type attempt struct {
		rank []int
		pick func(op int, eligible []int) int
	}
	attempts := []attempt{
		{dispatchRank(s.m.PM), s.dec.pickShortestMode},
		{dispatchRank(s.m.PM), pickFirstMode},
		{releaseRank(s.m.PM), s.dec.pickShortestMode},
	}
	for _, at := range attempts {
		if ctx.Err() != nil {
			return
		}
		s.evals.Add(1)
		if a, ok := s.dec.decode(at.rank, at.pick); ok {
			if !emit(a) {
				return
			}
		}
	}
}

// sample decodes seeded random priority orders until the context ends. The
// same seed replays the same candidate stream, so solves are reproducible.
func (s *searcher) sample(ctx context.Context, seed int64, emit func(*Assignment) bool) {
	rng := rand.New(rand.NewSource(seed))
	n := len(s.m.PM.Ops)
	base := dispatchRank(s.m.PM)
	for ctx.Err() == nil {
		var rank []int
		if rng.Intn(4) == 0 {
			rank = rng.Perm(n)
		} else {
			// Jitter the dispatch order rather than scrambling it; most good
			// schedules live near the rule-based one.
			rank = make([]int, n)
			for i := range rank {
				rank[i] = base[i]*4 + rng.Intn(7)
			}
		}
		pick := s.dec.pickShortestMode
		if rng.Intn(3) == 0 {
			pick = func(op int, eligible []int) int {
				return eligible[rng.Intn(len(eligible))]
			}
		}
		s.evals.Add(1)
		if a, ok := s.dec.decode(rank, pick); ok {
			if !emit(a) {
				return
			}
		}
	}
}

// exhaustive enumerates every topological operation order combined with
// every surviving mode choice, decoding each into a schedule. It reports
// whether the enumeration ran to completion, which is what lets the engine
// claim a proven optimum or a proven search infeasibility.
func (s *searcher) exhaustive(ctx context.Context, emit func(*Assignment) bool) (complete bool) {
	pm := s.m.PM
	n := len(pm.Ops)

	pending := make([]int, n)
	for i := range pm.Ops {
		pending[i] = len(pm.Ops[i].Preds)
	}
	order := make([]int, 0, n)
	inOrder := make([]bool, n)
	modeChoice := make([]int, n)

	var leaf func() bool
	leaf = func() bool {
		rank := make([]int, n)
		for pos, op := range order {
			rank[op] = pos
		}
		s.evals.Add(1)
		a, ok := s.dec.decode(rank, func(op int, eligible []int) int {
			for _, m := range eligible {
				if m == modeChoice[op] {
					return m
				}
			}
			return eligible[0]
		})
		if !ok {
			return true
		}
		return emit(a)
	}

	var modes func(pos int) bool
	modes = func(pos int) bool {
		if ctx.Err() != nil {
			return false
		}
		if pos == n {
			return leaf()
		}
		op := order[pos]
		for m := range pm.Ops[op].Modes {
			if !s.m.VS.ModeEligible(op, m) {
				continue
			}
			modeChoice[op] = m
			if !modes(pos + 1) {
				return false
			}
		}
		return true
	}

	var orders func() bool
	orders = func() bool {
		if ctx.Err() != nil {
			return false
		}
		if len(order) == n {
			return modes(0)
		}
		for i := 0; i < n; i++ {
			if inOrder[i] || pending[i] > 0 {
				continue
			}
			order = append(order, i)
			inOrder[i] = true
			for _, arc := range pm.Ops[i].Succs {
				pending[arc.Op]--
			}
			cont := orders()
			for _, arc := range pm.Ops[i].Succs {
				pending[arc.Op]++
			}
			inOrder[i] = false
			order = order[:len(order)-1]
			if !cont {
				return false
			}
		}
		return true
	}

	return orders()
}
