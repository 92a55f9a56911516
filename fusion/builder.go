package fusion

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/errs"
)

// Builder creates fusion spaces.
type Builder struct {
	mapper   GroupMapper
	strategy Strategy
	samples  int
	budget   int
	workers  int
	seed     int64

	initialTemperature float64
	minTemperature     float64
	coolingRate        float64

	hooks []sim.Hook
}

// NewBuilder returns a builder for an exhaustive search with seed 1. The
// random strategy draws 32 samples, the tree search runs 64 iterations and
// annealing cools from 100 to 0.1 by a factor of 0.9.
func NewBuilder() Builder {
	return Builder{
		strategy:           StrategyExhaustive,
		samples:            32,
		budget:             64,
		workers:            1,
		seed:               1,
		initialTemperature: 100,
		minTemperature:     0.1,
		coolingRate:        0.9,
	}
}

// WithMapper sets the inner search run for every group.
func (b Builder) WithMapper(m GroupMapper) Builder {
	b.mapper = m
	return b
}

// WithStrategy sets the outer search engine.
func (b Builder) WithStrategy(s Strategy) Builder {
	b.strategy = s
	return b
}

// WithSamples sets the number of vectors drawn by the random strategy.
func (b Builder) WithSamples(n int) Builder {
	b.samples = n
	return b
}

// WithBudget sets the number of tree-search iterations.
func (b Builder) WithBudget(n int) Builder {
	b.budget = n
	return b
}

// WithWorkers sets how many candidates the random and exhaustive strategies
// evaluate concurrently.
func (b Builder) WithWorkers(n int) Builder {
	b.workers = n
	return b
}

// WithSeed sets the seed of every random source of the search.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithAnnealing sets the annealing schedule.
func (b Builder) WithAnnealing(initial, minimum, coolingRate float64) Builder {
	b.initialTemperature = initial
	b.minTemperature = minimum
	b.coolingRate = coolingRate

	return b
}

// Annealing returns the annealing schedule.
func (b Builder) Annealing() (initial, minimum, coolingRate float64) {
	return b.initialTemperature, b.minTemperature, b.coolingRate
}

// Strategy returns the outer search engine.
func (b Builder) Strategy() Strategy {
	return b.strategy
}

// WithHook attaches a hook to the outer search engine.
func (b Builder) WithHook(hook sim.Hook) Builder {
	b.hooks = append(append([]sim.Hook(nil), b.hooks...), hook)
	return b
}

// Build creates the fusion space of a graph.
func (b Builder) Build(graph *dnn.Graph) (*Space, error) {
	if graph == nil {
		return nil, errs.Configf("fusion space needs a graph")
	}

	if b.mapper == nil {
		return nil, errs.Configf("fusion space needs a group mapper")
	}

	if _, err := ParseStrategy(string(b.strategy)); err != nil {
		return nil, err
	}

	return &Space{
		graph: graph,
		cfg:   b,
		memo:  make(map[memoKey]*evaluation),
	}, nil
}
