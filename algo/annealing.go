package algo

import (
	"context"
	"math"
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/errs"
)

// HookPosAnnealStep marks the end of an annealing step. The item is an
// AnnealEvent.
var HookPosAnnealStep = &sim.HookPos{Name: "SA Step"}

// AnnealEvent describes one annealing step.
type AnnealEvent struct {
	Step        int
	Temperature float64
	Energy      float64
	Accepted    bool
}

// A State is a point of the annealing search space. Lower energy is better.
type State[S any] interface {
	Energy() float64
	Neighbor(rng *rand.Rand) S
}

// AnnealingBuilder creates simulated annealing runs.
type AnnealingBuilder[S State[S]] struct {
	initialTemperature    float64
	minTemperature        float64
	coolingRate           float64
	useCurrentTemperature bool
	rng                   *rand.Rand
}

// NewAnnealingBuilder returns a builder that cools from 100 to 0.01 by a
// factor of 0.95 per step.
func NewAnnealingBuilder[S State[S]]() AnnealingBuilder[S] {
	return AnnealingBuilder[S]{
		initialTemperature: 100,
		minTemperature:     0.01,
		coolingRate:        0.95,
	}
}

// WithInitialTemperature sets the starting temperature.
func (b AnnealingBuilder[S]) WithInitialTemperature(t float64) AnnealingBuilder[S] {
	b.initialTemperature = t
	return b
}

// WithMinTemperature sets the temperature at which the run stops.
func (b AnnealingBuilder[S]) WithMinTemperature(t float64) AnnealingBuilder[S] {
	b.minTemperature = t
	return b
}

// WithCoolingRate sets the multiplicative cooling factor applied every step.
func (b AnnealingBuilder[S]) WithCoolingRate(rate float64) AnnealingBuilder[S] {
	b.coolingRate = rate
	return b
}

// WithCurrentTemperatureAcceptance makes the acceptance probability use the
// current temperature. By default the initial temperature is used, which
// keeps late-stage acceptance from vanishing.
func (b AnnealingBuilder[S]) WithCurrentTemperatureAcceptance(
	use bool,
) AnnealingBuilder[S] {
	b.useCurrentTemperature = use
	return b
}

// WithRand sets the random source.
func (b AnnealingBuilder[S]) WithRand(rng *rand.Rand) AnnealingBuilder[S] {
	b.rng = rng
	return b
}

// Build creates the simulated annealing run.
func (b AnnealingBuilder[S]) Build() (*SimulatedAnnealing[S], error) {
	switch {
	case b.minTemperature <= 0:
		return nil, errs.Configf("minimum temperature %g is not positive",
			b.minTemperature)
	case b.initialTemperature < b.minTemperature:
		return nil, errs.Configf("initial temperature %g is below minimum %g",
			b.initialTemperature, b.minTemperature)
	case b.coolingRate <= 0 || b.coolingRate >= 1:
		return nil, errs.Configf("cooling rate %g is not in (0, 1)",
			b.coolingRate)
	case b.rng == nil:
		return nil, errs.Configf("simulated annealing needs a random source")
	}

	return &SimulatedAnnealing[S]{
		HookableBase:          sim.NewHookableBase(),
		initialTemperature:    b.initialTemperature,
		minTemperature:        b.minTemperature,
		coolingRate:           b.coolingRate,
		useCurrentTemperature: b.useCurrentTemperature,
		rng:                   b.rng,
	}, nil
}

// SimulatedAnnealing walks a state space by random neighbors, accepting worse
// neighbors with a Boltzmann probability.
type SimulatedAnnealing[S State[S]] struct {
	*sim.HookableBase

	initialTemperature    float64
	minTemperature        float64
	coolingRate           float64
	useCurrentTemperature bool
	rng                   *rand.Rand
}

// Run anneals from the initial state and returns the lowest-energy state
// visited and its energy.
func (sa *SimulatedAnnealing[S]) Run(
	ctx context.Context,
	initial S,
) (best S, bestEnergy float64, err error) {
	current := initial
	energy := current.Energy()
	best, bestEnergy = current, energy
	temperature := sa.initialTemperature

	for step := 0; temperature >= sa.minTemperature; step++ {
		if err := ctx.Err(); err != nil {
			return best, bestEnergy, err
		}

		next := current.Neighbor(sa.rng)
		nextEnergy := next.Energy()

		accepted := sa.accept(energy, nextEnergy, temperature)
		if accepted {
			current, energy = next, nextEnergy

			if energy < bestEnergy {
				best, bestEnergy = current, energy
			}
		}

		sa.InvokeHook(sim.HookCtx{
			Domain: sa,
			Pos:    HookPosAnnealStep,
			Item: AnnealEvent{
				Step:        step,
				Temperature: temperature,
				Energy:      energy,
				Accepted:    accepted,
			},
		})

		temperature *= sa.coolingRate
	}

	return best, bestEnergy, nil
}

func (sa *SimulatedAnnealing[S]) accept(current, next, temperature float64) bool {
	if next < current {
		return true
	}

	// Moves across an infeasible plateau are free.
	if math.IsInf(current, 1) && math.IsInf(next, 1) {
		return true
	}

	t := sa.initialTemperature
	if sa.useCurrentTemperature {
		t = temperature
	}

	p := math.Exp((current - next) / t)

	return sa.rng.Float64() < p
}
