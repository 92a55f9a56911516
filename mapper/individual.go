package mapper

import (
	"math"
	"math/rand"

	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/partition"
)

// scoreFunc evaluates a partition vector and loop order.
type scoreFunc func(v partition.Vector, order []dnn.Dimension) partition.Cost

// PartitionIndividual is a genetic-algorithm candidate: one factor triple per
// group dimension plus a loop order.
type PartitionIndividual struct {
	dims      []dnn.Dimension
	maxFactor int
	score     scoreFunc

	vector partition.Vector
	order  []dnn.Dimension
}

func newPartitionIndividual(
	dims []dnn.Dimension,
	maxFactor int,
	score scoreFunc,
	rng *rand.Rand,
) *PartitionIndividual {
	p := &PartitionIndividual{
		dims:      dims,
		maxFactor: maxFactor,
		score:     score,
	}
	p.randomize(rng)

	return p
}

func (p *PartitionIndividual) randomize(rng *rand.Rand) {
	p.vector = make(partition.Vector, len(p.dims))
	for _, d := range p.dims {
		p.vector.Set(d, p.randomFactor(rng))
	}

	p.order = append([]dnn.Dimension(nil), p.dims...)
	rng.Shuffle(len(p.order), func(i, j int) {
		p.order[i], p.order[j] = p.order[j], p.order[i]
	})
}

func (p *PartitionIndividual) randomFactor(rng *rand.Rand) partition.Factor {
	return partition.Factor{
		Spatial:  rng.Intn(p.maxFactor) + 1,
		Temporal: rng.Intn(p.maxFactor) + 1,
		Sharing:  rng.Intn(p.maxFactor) + 1,
	}
}

// Vector returns the partition vector.
func (p *PartitionIndividual) Vector() partition.Vector {
	return p.vector.Clone()
}

// Order returns the loop order, innermost first.
func (p *PartitionIndividual) Order() []dnn.Dimension {
	return append([]dnn.Dimension(nil), p.order...)
}

// Cost evaluates the individual.
func (p *PartitionIndividual) Cost() partition.Cost {
	return p.score(p.vector, p.order)
}

// Fitness is 1/(1+cost) for a feasible individual and 0 otherwise, so an
// infeasible individual never wins a roulette draw against a feasible one.
func (p *PartitionIndividual) Fitness() float64 {
	return fitnessOf(p.Cost())
}

func fitnessOf(c partition.Cost) float64 {
	if !c.Feasible || math.IsInf(c.Total, 0) || math.IsNaN(c.Total) {
		return 0
	}

	return 1 / (1 + c.Total)
}

// Mutate redraws the factors of one dimension and, half of the time, swaps
// two loops. The order stays a permutation.
func (p *PartitionIndividual) Mutate(rng *rand.Rand) {
	if len(p.dims) == 0 {
		return
	}

	d := p.dims[rng.Intn(len(p.dims))]
	p.vector.Set(d, p.randomFactor(rng))

	if len(p.order) > 1 && rng.Intn(2) == 1 {
		i, j := rng.Intn(len(p.order)), rng.Intn(len(p.order))
		p.order[i], p.order[j] = p.order[j], p.order[i]
	}
}

// Clone returns an independent copy.
func (p *PartitionIndividual) Clone() *PartitionIndividual {
	return &PartitionIndividual{
		dims:      p.dims,
		maxFactor: p.maxFactor,
		score:     p.score,
		vector:    p.vector.Clone(),
		order:     append([]dnn.Dimension(nil), p.order...),
	}
}

// Crossover picks each dimension's factors from either parent uniformly and
// inherits the loop order of one parent.
func (p *PartitionIndividual) Crossover(
	other *PartitionIndividual,
	rng *rand.Rand,
) *PartitionIndividual {
	child := p.Clone()

	for _, d := range p.dims {
		if rng.Intn(2) == 1 {
			child.vector[d.Name] = other.vector[d.Name]
		}
	}

	if rng.Intn(2) == 1 {
		child.order = append([]dnn.Dimension(nil), other.order...)
	}

	return child
}
