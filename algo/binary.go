package algo

import (
	"context"
	"math"
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/errs"
	"golang.org/x/sync/errgroup"
)

// HookPosCandidate marks the evaluation of one boolean candidate. The item is
// a CandidateEvent.
var HookPosCandidate = &sim.HookPos{Name: "Candidate Evaluated"}

// MaxExhaustiveBits bounds the vector length of an exhaustive search.
const MaxExhaustiveBits = 20

// CandidateEvent describes one evaluated candidate.
type CandidateEvent struct {
	Index int
	Bits  []bool
	Cost  float64
}

// An Evaluator returns the cost of a boolean vector. Lower is better; an
// infeasible vector costs +Inf. A returned error aborts the search.
type Evaluator func(ctx context.Context, bits []bool) (float64, error)

// BinaryResult is the outcome of a search over boolean vectors.
type BinaryResult struct {
	Bits      []bool
	Cost      float64
	Evaluated int
}

// A BinarySearch explores fixed-length boolean vectors.
type BinarySearch interface {
	sim.Hookable

	Run(ctx context.Context, eval Evaluator) (BinaryResult, error)
}

// RandomSearch evaluates uniformly drawn vectors.
type RandomSearch struct {
	*sim.HookableBase

	length  int
	samples int
	workers int
	rng     *rand.Rand
}

// NewRandomSearch creates a random search drawing samples vectors of the
// given length.
func NewRandomSearch(
	length, samples, workers int,
	rng *rand.Rand,
) (*RandomSearch, error) {
	if length < 0 {
		return nil, errs.Configf("vector length %d is negative", length)
	}

	if samples <= 0 {
		return nil, errs.Configf("random search sample count %d is not positive",
			samples)
	}

	if rng == nil {
		return nil, errs.Configf("random search needs a random source")
	}

	return &RandomSearch{
		HookableBase: sim.NewHookableBase(),
		length:       length,
		samples:      samples,
		workers:      workers,
		rng:          rng,
	}, nil
}

// Run draws every candidate up front, so the result does not depend on the
// worker count, and returns the cheapest one.
func (s *RandomSearch) Run(ctx context.Context, eval Evaluator) (BinaryResult, error) {
	candidates := make([][]bool, s.samples)
	for i := range candidates {
		bits := make([]bool, s.length)
		for j := range bits {
			bits[j] = s.rng.Intn(2) == 1
		}

		candidates[i] = bits
	}

	return runCandidates(ctx, s, s.HookableBase, candidates, s.workers, eval)
}

// ExhaustiveSearch evaluates all 2^n vectors.
type ExhaustiveSearch struct {
	*sim.HookableBase

	length  int
	workers int
}

// NewExhaustiveSearch creates an exhaustive search over vectors of the given
// length, which must not exceed MaxExhaustiveBits.
func NewExhaustiveSearch(length, workers int) (*ExhaustiveSearch, error) {
	if length < 0 || length > MaxExhaustiveBits {
		return nil, errs.Configf("exhaustive search length %d is not in [0, %d]",
			length, MaxExhaustiveBits)
	}

	return &ExhaustiveSearch{
		HookableBase: sim.NewHookableBase(),
		length:       length,
		workers:      workers,
	}, nil
}

// Run enumerates the vectors in binary counting order, bit i of candidate k
// being bit i of k.
func (s *ExhaustiveSearch) Run(ctx context.Context, eval Evaluator) (BinaryResult, error) {
	n := 1 << s.length
	candidates := make([][]bool, n)

	for k := range candidates {
		bits := make([]bool, s.length)
		for i := range bits {
			bits[i] = k&(1<<i) != 0
		}

		candidates[k] = bits
	}

	return runCandidates(ctx, s, s.HookableBase, candidates, s.workers, eval)
}

// runCandidates evaluates the candidates with bounded parallelism. Hooks fire
// in candidate order after all evaluations finish, and ties go to the lowest
// index.
func runCandidates(
	ctx context.Context,
	domain sim.Hookable,
	hooks *sim.HookableBase,
	candidates [][]bool,
	workers int,
	eval Evaluator,
) (BinaryResult, error) {
	costs := make([]float64, len(candidates))

	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, bits := range candidates {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			cost, err := eval(gctx, append([]bool(nil), bits...))
			if err != nil {
				return err
			}

			costs[i] = cost

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return BinaryResult{}, err
	}

	if err := ctx.Err(); err != nil {
		return BinaryResult{}, err
	}

	result := BinaryResult{Cost: math.Inf(1), Evaluated: len(candidates)}
	bestIndex := -1

	for i, cost := range costs {
		hooks.InvokeHook(sim.HookCtx{
			Domain: domain,
			Pos:    HookPosCandidate,
			Item:   CandidateEvent{Index: i, Bits: candidates[i], Cost: cost},
		})

		if bestIndex == -1 || cost < result.Cost {
			bestIndex = i
			result.Cost = cost
		}
	}

	if bestIndex >= 0 {
		result.Bits = append([]bool(nil), candidates[bestIndex]...)
	}

	return result, nil
}
