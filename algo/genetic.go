package algo

import (
	"context"
	"math"
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/errs"
	"golang.org/x/sync/errgroup"
)

// HookPosGeneration marks the end of a generation. The item is a
// GenerationEvent.
var HookPosGeneration = &sim.HookPos{Name: "GA Generation"}

// GenerationEvent summarizes one generation.
type GenerationEvent struct {
	Generation  int
	BestFitness float64
	MeanFitness float64
}

// An Individual is a candidate of the genetic algorithm. T is the concrete
// individual type, so crossover needs no type recovery. Higher fitness is
// better and fitness must not be negative.
type Individual[T any] interface {
	// Fitness scores the individual. It may be called concurrently on
	// different individuals.
	Fitness() float64

	// Mutate changes the individual in place.
	Mutate(rng *rand.Rand)

	// Clone returns an independent copy.
	Clone() T

	// Crossover combines the individual with another one into a new child.
	Crossover(other T, rng *rand.Rand) T
}

// GeneticBuilder creates genetic algorithms.
type GeneticBuilder[T Individual[T]] struct {
	populationSize int
	generations    int
	mutationRate   float64
	crossoverRate  float64
	workers        int
	stop           func(best T, fitness float64) bool
	rng            *rand.Rand
}

// NewGeneticBuilder returns a builder with a population of 30, 50
// generations, a mutation rate of 0.3 and a crossover rate of 0.7.
func NewGeneticBuilder[T Individual[T]]() GeneticBuilder[T] {
	return GeneticBuilder[T]{
		populationSize: 30,
		generations:    50,
		mutationRate:   0.3,
		crossoverRate:  0.7,
		workers:        1,
	}
}

// WithPopulationSize sets the number of individuals per generation.
func (b GeneticBuilder[T]) WithPopulationSize(n int) GeneticBuilder[T] {
	b.populationSize = n
	return b
}

// WithGenerations sets the maximum number of generations.
func (b GeneticBuilder[T]) WithGenerations(n int) GeneticBuilder[T] {
	b.generations = n
	return b
}

// WithMutationRate sets the probability that a child is mutated.
func (b GeneticBuilder[T]) WithMutationRate(rate float64) GeneticBuilder[T] {
	b.mutationRate = rate
	return b
}

// WithCrossoverRate sets the probability that a child is produced by
// crossover rather than by cloning its first parent.
func (b GeneticBuilder[T]) WithCrossoverRate(rate float64) GeneticBuilder[T] {
	b.crossoverRate = rate
	return b
}

// WithWorkers sets how many fitness evaluations run concurrently.
func (b GeneticBuilder[T]) WithWorkers(n int) GeneticBuilder[T] {
	b.workers = n
	return b
}

// WithStopCondition sets a predicate on the best individual so far. The run
// ends after the first generation for which it returns true.
func (b GeneticBuilder[T]) WithStopCondition(
	stop func(best T, fitness float64) bool,
) GeneticBuilder[T] {
	b.stop = stop
	return b
}

// WithRand sets the random source.
func (b GeneticBuilder[T]) WithRand(rng *rand.Rand) GeneticBuilder[T] {
	b.rng = rng
	return b
}

// Build creates the genetic algorithm.
func (b GeneticBuilder[T]) Build() (*GeneticAlgorithm[T], error) {
	switch {
	case b.populationSize <= 0:
		return nil, errs.Configf("population size %d is not positive",
			b.populationSize)
	case b.generations < 0:
		return nil, errs.Configf("generation count %d is negative",
			b.generations)
	case b.mutationRate < 0 || b.mutationRate > 1:
		return nil, errs.Configf("mutation rate %g is not in [0, 1]",
			b.mutationRate)
	case b.crossoverRate < 0 || b.crossoverRate > 1:
		return nil, errs.Configf("crossover rate %g is not in [0, 1]",
			b.crossoverRate)
	case b.rng == nil:
		return nil, errs.Configf("genetic algorithm needs a random source")
	}

	workers := b.workers
	if workers < 1 {
		workers = 1
	}

	return &GeneticAlgorithm[T]{
		HookableBase:   sim.NewHookableBase(),
		populationSize: b.populationSize,
		generations:    b.generations,
		mutationRate:   b.mutationRate,
		crossoverRate:  b.crossoverRate,
		workers:        workers,
		stop:           b.stop,
		rng:            b.rng,
	}, nil
}

// GeneticAlgorithm evolves a population by roulette-wheel selection,
// crossover and mutation, keeping track of the best individual ever seen.
type GeneticAlgorithm[T Individual[T]] struct {
	*sim.HookableBase

	populationSize int
	generations    int
	mutationRate   float64
	crossoverRate  float64
	workers        int
	stop           func(best T, fitness float64) bool
	rng            *rand.Rand

	population  []T
	fitness     []float64
	best        T
	bestFitness float64
	hasBest     bool
	generation  int
}

// Initialize fills the population with new individuals.
func (ga *GeneticAlgorithm[T]) Initialize(newIndividual func(rng *rand.Rand) T) {
	ga.population = make([]T, ga.populationSize)
	for i := range ga.population {
		ga.population[i] = newIndividual(ga.rng)
	}

	ga.fitness = nil
	ga.hasBest = false
	ga.generation = 0
}

// Population returns the current population.
func (ga *GeneticAlgorithm[T]) Population() []T {
	return append([]T(nil), ga.population...)
}

// Generation returns the number of completed generations.
func (ga *GeneticAlgorithm[T]) Generation() int {
	return ga.generation
}

// Best returns the best individual seen so far and its fitness.
func (ga *GeneticAlgorithm[T]) Best() (T, float64, bool) {
	return ga.best, ga.bestFitness, ga.hasBest
}

// Run evolves the population until the generation budget is used up or the
// stop condition holds. On cancellation it returns the best individual so far
// together with the context error.
func (ga *GeneticAlgorithm[T]) Run(ctx context.Context) (T, error) {
	var zero T

	if len(ga.population) == 0 {
		return zero, errs.Configf("genetic algorithm population is not initialized")
	}

	if err := ga.evaluate(ctx); err != nil {
		return zero, err
	}

	ga.trackBest()

	for ga.generation < ga.generations {
		if err := ctx.Err(); err != nil {
			return ga.best, err
		}

		if ga.stop != nil && ga.stop(ga.best, ga.bestFitness) {
			break
		}

		ga.population = ga.breed()
		if err := ga.evaluate(ctx); err != nil {
			return ga.best, err
		}

		ga.generation++
		ga.trackBest()
		ga.invokeGenerationHook()
	}

	return ga.best, nil
}

func (ga *GeneticAlgorithm[T]) breed() []T {
	total := ga.totalFitness()
	next := make([]T, ga.populationSize)

	for i := range next {
		parent1 := ga.population[ga.selectIndex(total)]
		parent2 := ga.population[ga.selectIndex(total)]

		var child T
		if ga.rng.Float64() < ga.crossoverRate {
			child = parent1.Crossover(parent2, ga.rng)
		} else {
			child = parent1.Clone()
		}

		if ga.rng.Float64() < ga.mutationRate {
			child.Mutate(ga.rng)
		}

		next[i] = child
	}

	return next
}

func (ga *GeneticAlgorithm[T]) evaluate(ctx context.Context) error {
	ga.fitness = make([]float64, len(ga.population))

	if ga.workers == 1 {
		for i, ind := range ga.population {
			ga.fitness[i] = ind.Fitness()
		}

		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ga.workers)

	for i, ind := range ga.population {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			ga.fitness[i] = ind.Fitness()

			return nil
		})
	}

	return g.Wait()
}

// selectionWeight clamps unusable fitness values to zero weight.
func selectionWeight(f float64) float64 {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}

	return f
}

func (ga *GeneticAlgorithm[T]) totalFitness() float64 {
	total := 0.0
	for _, f := range ga.fitness {
		total += selectionWeight(f)
	}

	return total
}

// selectIndex performs roulette-wheel selection: a uniform draw in
// [0, total) is matched against the cumulative fitness. When no individual
// has positive fitness the draw is uniform over the population.
func (ga *GeneticAlgorithm[T]) selectIndex(total float64) int {
	if total <= 0 {
		return ga.rng.Intn(len(ga.population))
	}

	r := ga.rng.Float64() * total
	cumulative := 0.0

	for i, f := range ga.fitness {
		cumulative += selectionWeight(f)
		if cumulative > r {
			return i
		}
	}

	return len(ga.population) - 1
}

func (ga *GeneticAlgorithm[T]) trackBest() {
	for i, f := range ga.fitness {
		if !ga.hasBest || f > ga.bestFitness {
			ga.best = ga.population[i]
			ga.bestFitness = f
			ga.hasBest = true
		}
	}
}

func (ga *GeneticAlgorithm[T]) invokeGenerationHook() {
	mean := 0.0
	for _, f := range ga.fitness {
		mean += f
	}

	mean /= float64(len(ga.fitness))

	ga.InvokeHook(sim.HookCtx{
		Domain: ga,
		Pos:    HookPosGeneration,
		Item: GenerationEvent{
			Generation:  ga.generation,
			BestFitness: ga.bestFitness,
			MeanFitness: mean,
		},
	})
}
