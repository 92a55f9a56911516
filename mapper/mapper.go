// Package mapper searches the partition space of one operator group with a
// genetic algorithm, using the partition cost model as fitness and
// feasibility oracle.
package mapper

import (
	"context"
	"log/slog"
	"math"
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/algo"
	"github.com/sarchlab/meshfuse/arch"
	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/errs"
	"github.com/sarchlab/meshfuse/partition"
)

// A Mapping is the best partition found for a group.
type Mapping struct {
	Group  *dnn.Group
	Vector partition.Vector
	Order  []dnn.Dimension
	Cost   partition.Cost
}

// Feasible reports whether the mapping fits the mesh.
func (m Mapping) Feasible() bool {
	return m.Cost.Feasible
}

// Objective returns the total cost, or +Inf when the mapping is infeasible.
func (m Mapping) Objective() float64 {
	if !m.Cost.Feasible {
		return math.Inf(1)
	}

	return m.Cost.Total
}

// Builder creates mappers.
type Builder struct {
	populationSize int
	generations    int
	mutationRate   float64
	crossoverRate  float64
	maxFactor      int
	workers        int
	targetCost     float64
	weights        partition.Weights
	hooks          []sim.Hook
}

// NewBuilder returns a builder with a population of 30, 50 generations, a
// mutation rate of 0.3, a crossover rate of 0.7 and factors drawn from 1..4.
func NewBuilder() Builder {
	return Builder{
		populationSize: 30,
		generations:    50,
		mutationRate:   0.3,
		crossoverRate:  0.7,
		maxFactor:      4,
		workers:        1,
		targetCost:     -1,
		weights:        partition.DefaultWeights(),
	}
}

// WithPopulationSize sets the genetic population size.
func (b Builder) WithPopulationSize(n int) Builder {
	b.populationSize = n
	return b
}

// WithGenerations sets the number of generations.
func (b Builder) WithGenerations(n int) Builder {
	b.generations = n
	return b
}

// WithMutationRate sets the mutation probability.
func (b Builder) WithMutationRate(rate float64) Builder {
	b.mutationRate = rate
	return b
}

// WithCrossoverRate sets the crossover probability.
func (b Builder) WithCrossoverRate(rate float64) Builder {
	b.crossoverRate = rate
	return b
}

// WithMaxFactor sets the largest spatial, temporal and sharing degree drawn
// for a dimension.
func (b Builder) WithMaxFactor(n int) Builder {
	b.maxFactor = n
	return b
}

// WithWorkers sets how many fitness evaluations run concurrently.
func (b Builder) WithWorkers(n int) Builder {
	b.workers = n
	return b
}

// WithTargetCost stops the search as soon as a feasible mapping at or below
// the cost is found. A negative cost disables early stopping.
func (b Builder) WithTargetCost(cost float64) Builder {
	b.targetCost = cost
	return b
}

// WithWeights sets the cost model weights.
func (b Builder) WithWeights(w partition.Weights) Builder {
	b.weights = w
	return b
}

// WithHook attaches a hook to every genetic algorithm the mapper runs.
func (b Builder) WithHook(hook sim.Hook) Builder {
	b.hooks = append(append([]sim.Hook(nil), b.hooks...), hook)
	return b
}

// Build creates the mapper.
func (b Builder) Build() (*Mapper, error) {
	if b.maxFactor <= 0 {
		return nil, errs.Configf("max factor %d is not positive", b.maxFactor)
	}

	if err := b.weights.Validate(); err != nil {
		return nil, err
	}

	return &Mapper{cfg: b}, nil
}

// Mapper runs the inner partition search for operator groups.
type Mapper struct {
	cfg Builder
}

// Map searches the best partition of the group on the mesh. The seed fixes
// the random source, so equal seeds give equal mappings.
func (m *Mapper) Map(
	ctx context.Context,
	group *dnn.Group,
	mesh arch.Mesh,
	seed int64,
) (Mapping, error) {
	analyzer, err := partition.NewAnalyzer(group, mesh, m.cfg.weights)
	if err != nil {
		return Mapping{}, err
	}

	score := func(v partition.Vector, order []dnn.Dimension) partition.Cost {
		a, err := analyzer.Analyze(v, order)
		if err != nil {
			slog.Debug("Partition rejected",
				"Group", group.Name(),
				"Error", err,
			)

			return partition.Cost{Total: math.Inf(1)}
		}

		return a.Cost()
	}

	ga, err := m.newGeneticAlgorithm(rand.New(rand.NewSource(seed)))
	if err != nil {
		return Mapping{}, err
	}

	dims := group.Dimensions()
	ga.Initialize(func(rng *rand.Rand) *PartitionIndividual {
		return newPartitionIndividual(dims, m.cfg.maxFactor, score, rng)
	})

	best, err := ga.Run(ctx)
	if err != nil {
		return Mapping{}, err
	}

	mapping := Mapping{
		Group:  group,
		Vector: best.Vector(),
		Order:  best.Order(),
		Cost:   best.Cost(),
	}

	algo.Trace("Mapping",
		"Group", group.Name(),
		"Generations", ga.Generation(),
		"Feasible", mapping.Cost.Feasible,
		"Cost", mapping.Cost.Total,
		"Partition", mapping.Vector.String(),
	)

	return mapping, nil
}

func (m *Mapper) newGeneticAlgorithm(
	rng *rand.Rand,
) (*algo.GeneticAlgorithm[*PartitionIndividual], error) {
	b := algo.NewGeneticBuilder[*PartitionIndividual]().
		WithPopulationSize(m.cfg.populationSize).
		WithGenerations(m.cfg.generations).
		WithMutationRate(m.cfg.mutationRate).
		WithCrossoverRate(m.cfg.crossoverRate).
		WithWorkers(m.cfg.workers).
		WithRand(rng)

	if m.cfg.targetCost >= 0 {
		target := 1 / (1 + m.cfg.targetCost)
		b = b.WithStopCondition(func(_ *PartitionIndividual, fitness float64) bool {
			return fitness >= target
		})
	}

	ga, err := b.Build()
	if err != nil {
		return nil, err
	}

	for _, h := range m.cfg.hooks {
		ga.AcceptHook(h)
	}

	return ga, nil
}
