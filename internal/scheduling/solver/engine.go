package solver

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// EngineConfig tunes the anytime search.
type EngineConfig struct {
	// Workers is the number of parallel search goroutines. Zero means one
	// per CPU.
	Workers int
	// ExhaustiveLimit is the operation count up to which the engine also
	// runs a complete enumeration, which is what turns a best incumbent
	// into a proven optimum.
	ExhaustiveLimit int
	// Seed makes the randomized samplers reproducible. The same seed on the
	// same model replays the same candidate streams.
	Seed int64
}

// DefaultExhaustiveLimit bounds complete enumeration to small instances.
const DefaultExhaustiveLimit = 8

// SolveSpec is one scalar search request: minimize Evaluate over feasible
// assignments, admitting only those Accept allows.
type SolveSpec struct {
	Model *Model
	// Evaluate maps an assignment to the scalar being minimized.
	Evaluate func(*Assignment) float64
	// Accept filters candidates; nil accepts everything.
	Accept func(*Assignment) bool
	// LowerBound, when >= 0, lets the engine stop early and claim a proven
	// optimum once the incumbent reaches it. Pass -1 when no bound applies.
	LowerBound float64
	// Regular marks Evaluate (and any Accept filter) as measures that never
	// improve when work is delayed. The complete enumeration visits only
	// earliest-placement schedules, so finishing it proves anything only for
	// regular measures; without this flag a finished enumeration still
	// reports FEASIBLE.
	Regular bool
	// Budget is the wall-clock allowance for this request.
	Budget time.Duration
	// Hint seeds the incumbent. It is re-validated before use; an invalid
	// hint is dropped, never trusted.
	Hint *Assignment
}

// Outcome is the result of one scalar search.
type Outcome struct {
	Status      domain.SolveStatus
	Best        *Assignment
	Score       float64
	Proven      bool
	Evaluations int64
	WorkersUsed int
	Elapsed     time.Duration
}

// Engine runs time-boxed parallel anytime search over a built model. It is
// stateless across solves and safe for concurrent use.
type Engine struct {
	cfg    EngineConfig
	logger *slog.Logger
}

func NewEngine(cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// candidate pairs an assignment with its precomputed score so the arbiter
// never re-evaluates.
type candidate struct {
	a     *Assignment
	score float64
}

// Solve searches for the best accepted assignment within the budget.
// Improvements are kept as they arrive, so cancellation and timeout still
// return the best incumbent found so far.
func (e *Engine) Solve(ctx context.Context, spec SolveSpec) (Outcome, error) {
	started := time.Now()
	m := spec.Model
	accept := spec.Accept
	if accept == nil {
		accept = func(*Assignment) bool { return true }
	}

	var evals atomic.Int64
	var bestBits atomic.Uint64
	bestBits.Store(math.Float64bits(math.Inf(1)))

	var best *Assignment
	bestScore := math.Inf(1)
	record := func(c candidate) {
		if c.score < bestScore || (c.score == bestScore && best != nil && c.a.Less(best)) {
			best = c.a
			bestScore = c.score
			bestBits.Store(math.Float64bits(bestScore))
		}
	}

	if spec.Hint != nil {
		if err := m.Check(spec.Hint); err != nil {
			e.logger.Warn("solution hint rejected", "error", err)
		} else if accept(spec.Hint) {
			record(candidate{a: spec.Hint.Clone(), score: spec.Evaluate(spec.Hint)})
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, spec.Budget)
	defer cancel()

	candidates := make(chan candidate, 4*e.cfg.Workers)
	proved := make(chan struct{})
	var provedClosed atomic.Bool

	// emit pre-scores a candidate and drops it when the incumbent already
	// beats it, keeping channel pressure proportional to improvements.
	emit := func(a *Assignment) bool {
		if !accept(a) {
			return searchCtx.Err() == nil
		}
		score := spec.Evaluate(a)
		if score > math.Float64frombits(bestBits.Load()) {
			return searchCtx.Err() == nil
		}
		select {
		case candidates <- candidate{a: a, score: score}:
		case <-searchCtx.Done():
			return false
		}
		return true
	}

	exhaustive := len(m.PM.Ops) <= e.cfg.ExhaustiveLimit
	var enumerated atomic.Bool

	g, workerCtx := errgroup.WithContext(searchCtx)
	workers := e.cfg.Workers
	g.Go(func() error {
		s := newSearcher(m, &evals)
		s.dispatch(workerCtx, emit)
		if exhaustive {
			if s.exhaustive(workerCtx, emit) {
				enumerated.Store(true)
				return errEnumerationDone
			}
			return nil
		}
		s.sample(workerCtx, e.cfg.Seed, emit)
		return nil
	})
	for w := 1; w < workers; w++ {
		seed := e.cfg.Seed + int64(w)
		g.Go(func() error {
			newSearcher(m, &evals).sample(workerCtx, seed, emit)
			return nil
		})
	}

	// Single-writer arbiter: all incumbent updates happen here, so equal
	// scores resolve by the deterministic assignment order no matter how
	// workers race.
	arbiterDone := make(chan struct{})
	go func() {
		defer close(arbiterDone)
		for c := range candidates {
			record(c)
			if spec.LowerBound >= 0 && bestScore <= spec.LowerBound && !provedClosed.Swap(true) {
				close(proved)
			}
		}
	}()

	workerErr := make(chan error, 1)
	go func() { workerErr <- g.Wait() }()

	var gerr error
	select {
	case <-proved:
		cancel()
		gerr = <-workerErr
	case gerr = <-workerErr:
	}
	close(candidates)
	<-arbiterDone

	out := Outcome{
		Best:        best,
		Score:       bestScore,
		Evaluations: evals.Load(),
		WorkersUsed: workers,
		Elapsed:     time.Since(started),
	}
	if gerr != nil && !errors.Is(gerr, errEnumerationDone) {
		out.Status = domain.StatusError
		return out, gerr
	}

	boundProven := best != nil && spec.LowerBound >= 0 && bestScore <= spec.LowerBound
	// The enumeration covers every schedule only when earliest placement
	// loses nothing: no max-delay arc and no contested operator pick.
	enumExact := spec.Regular && m.PM.placementComplete()
	switch {
	case boundProven:
		out.Status = domain.StatusOptimal
		out.Proven = true
	case enumerated.Load() && best != nil && enumExact:
		out.Status = domain.StatusOptimal
		out.Proven = true
	case enumerated.Load() && best != nil:
		out.Status = domain.StatusFeasible
	case enumerated.Load() && enumExact:
		out.Status = domain.StatusInfeasible
		return out, &SearchInfeasibleError{Detail: "complete enumeration found no feasible schedule"}
	case enumerated.Load():
		out.Status = domain.StatusInfeasible
		return out, &SearchInfeasibleError{Detail: "no earliest-placement schedule is feasible"}
	case ctx.Err() != nil:
		out.Status = domain.StatusCancelled
		return out, &CancellationError{HasSolution: best != nil}
	case searchCtx.Err() != nil && best != nil:
		out.Status = domain.StatusTimeout
	case searchCtx.Err() != nil:
		out.Status = domain.StatusTimeout
		return out, &TimeoutError{Budget: spec.Budget, HasSolution: false}
	case best != nil:
		out.Status = domain.StatusFeasible
	default:
		out.Status = domain.StatusInfeasible
		return out, &SearchInfeasibleError{Detail: "search ended with no feasible schedule"}
	}
	return out, nil
}

// errEnumerationDone signals that the exhaustive worker finished the whole
// space; it is the one errgroup error that means success.
var errEnumerationDone = errors.New("enumeration complete")
