package fusion

import (
	"context"
	"math"
	"math/rand"

	"github.com/sarchlab/meshfuse/algo"
	"github.com/sarchlab/meshfuse/arch"
)

func (s *Space) searchBinary(
	ctx context.Context,
	mesh arch.Mesh,
) ([]bool, int, error) {
	n := s.graph.NumTensors()

	var (
		engine algo.BinarySearch
		err    error
	)

	if s.cfg.strategy == StrategyRandom {
		engine, err = algo.NewRandomSearch(n, s.cfg.samples, s.cfg.workers,
			rand.New(rand.NewSource(s.cfg.seed)))
	} else {
		engine, err = algo.NewExhaustiveSearch(n, s.cfg.workers)
	}

	if err != nil {
		return nil, 0, err
	}

	s.attachHooks(engine)

	r, err := engine.Run(ctx, func(ctx context.Context, bits []bool) (float64, error) {
		return s.cost(ctx, bits, mesh)
	})
	if err != nil {
		return nil, 0, err
	}

	return r.Bits, r.Evaluated, nil
}

// fusionState is an annealing state: a full fusion vector whose energy is
// its total cost.
type fusionState struct {
	bits   []bool
	energy func(bits []bool) float64
}

func (f fusionState) Energy() float64 {
	return f.energy(f.bits)
}

// Neighbor flips one fusion bit.
func (f fusionState) Neighbor(rng *rand.Rand) fusionState {
	next := fusionState{
		bits:   append([]bool(nil), f.bits...),
		energy: f.energy,
	}

	if len(next.bits) > 0 {
		i := rng.Intn(len(next.bits))
		next.bits[i] = !next.bits[i]
	}

	return next
}

// searchAnnealing starts from the unfused graph.
func (s *Space) searchAnnealing(
	ctx context.Context,
	mesh arch.Mesh,
) ([]bool, int, error) {
	sa, err := algo.NewAnnealingBuilder[fusionState]().
		WithInitialTemperature(s.cfg.initialTemperature).
		WithMinTemperature(s.cfg.minTemperature).
		WithCoolingRate(s.cfg.coolingRate).
		WithRand(rand.New(rand.NewSource(s.cfg.seed))).
		Build()
	if err != nil {
		return nil, 0, err
	}

	s.attachHooks(sa)

	ev := &recordingEvaluator{space: s, ctx: ctx, mesh: mesh}
	initial := fusionState{
		bits:   make([]bool, s.graph.NumTensors()),
		energy: ev.cost,
	}

	best, _, err := sa.Run(ctx, initial)
	if err != nil {
		return nil, 0, err
	}

	if ev.err != nil {
		return nil, 0, ev.err
	}

	return best.bits, ev.calls, nil
}

// treeState assigns fusion bits one tensor at a time.
type treeState struct {
	bits   []bool
	length int
	reward func(bits []bool) float64
}

func (t treeState) Actions() int {
	if t.Terminal() {
		return 0
	}

	return 2
}

func (t treeState) Apply(action int) treeState {
	bits := make([]bool, len(t.bits), len(t.bits)+1)
	copy(bits, t.bits)

	return treeState{
		bits:   append(bits, action == 1),
		length: t.length,
		reward: t.reward,
	}
}

func (t treeState) Terminal() bool {
	return len(t.bits) >= t.length
}

func (t treeState) Reward() float64 {
	return t.reward(t.bits)
}

func (s *Space) searchTree(
	ctx context.Context,
	mesh arch.Mesh,
) ([]bool, int, error) {
	ev := &recordingEvaluator{space: s, ctx: ctx, mesh: mesh}
	root := treeState{
		length: s.graph.NumTensors(),
		reward: ev.reward,
	}

	tree, err := algo.NewTreeSearchBuilder[treeState]().
		WithBudget(s.cfg.budget).
		WithRand(rand.New(rand.NewSource(s.cfg.seed))).
		Build(root)
	if err != nil {
		return nil, 0, err
	}

	s.attachHooks(tree)

	if err := tree.Search(ctx); err != nil {
		return nil, 0, err
	}

	if ev.err != nil {
		return nil, 0, ev.err
	}

	best, _, ok := tree.Best()
	if !ok {
		return make([]bool, root.length), ev.calls, nil
	}

	return best.bits, ev.calls, nil
}

// recordingEvaluator adapts the space to engines whose scoring functions
// cannot fail. The first error is kept and every later call scores +Inf.
type recordingEvaluator struct {
	space *Space
	ctx   context.Context
	mesh  arch.Mesh
	err   error
	calls int
}

func (e *recordingEvaluator) cost(bits []bool) float64 {
	if e.err != nil {
		return math.Inf(1)
	}

	e.calls++

	c, err := e.space.cost(e.ctx, bits, e.mesh)
	if err != nil {
		e.err = err
		return math.Inf(1)
	}

	return c
}

// reward maps a cost to (0, 1]; infeasible vectors earn 0.
func (e *recordingEvaluator) reward(bits []bool) float64 {
	c := e.cost(bits)
	if math.IsInf(c, 1) || math.IsNaN(c) {
		return 0
	}

	return 1 / (1 + c)
}
