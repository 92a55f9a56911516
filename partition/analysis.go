package partition

import (
	"github.com/sarchlab/meshfuse/arch"
	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/errs"
)

// Weights scale the cost components before they are summed. All weights must
// be non-negative so that the total never decreases when a component grows.
type Weights struct {
	Traffic   float64
	Footprint float64
	Reduction float64
}

// DefaultWeights weighs every component equally.
func DefaultWeights() Weights {
	return Weights{Traffic: 1, Footprint: 1, Reduction: 1}
}

// Validate checks that no weight is negative.
func (w Weights) Validate() error {
	if w.Traffic < 0 || w.Footprint < 0 || w.Reduction < 0 {
		return errs.Configf("cost weights %+v contain a negative weight", w)
	}

	return nil
}

// Cost holds the components of an evaluated partition.
type Cost struct {
	Traffic   float64
	Footprint int
	Reduction float64
	Total     float64
	Feasible  bool
}

// An Analyzer evaluates partitions of one operator group on one mesh.
type Analyzer struct {
	group   *dnn.Group
	mesh    arch.Mesh
	weights Weights
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(
	group *dnn.Group,
	mesh arch.Mesh,
	weights Weights,
) (*Analyzer, error) {
	if group == nil {
		return nil, errs.Configf("analyzer needs an operator group")
	}

	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return &Analyzer{group: group, mesh: mesh, weights: weights}, nil
}

// Group returns the analyzed group.
func (z *Analyzer) Group() *dnn.Group {
	return z.group
}

// Mesh returns the target mesh.
func (z *Analyzer) Mesh() arch.Mesh {
	return z.mesh
}

// Analyze binds a partition vector and a loop order to the group. The order
// lists the loops innermost first and must be a permutation of the group
// dimensions; the vector must hold a positive factor for each of them.
func (z *Analyzer) Analyze(v Vector, order []dnn.Dimension) (*Analysis, error) {
	dims := z.group.Dimensions()

	if len(order) != len(dims) {
		return nil, errs.Configf("loop order has %d dimensions, group %s has %d",
			len(order), z.group.Name(), len(dims))
	}

	seen := make(map[string]bool, len(order))
	for _, d := range order {
		if !z.group.HasDimension(d.Name) {
			return nil, errs.Lookupf("loop order dimension %q is not in group %s",
				d.Name, z.group.Name())
		}

		if seen[d.Name] {
			return nil, errs.Configf("loop order repeats dimension %q", d.Name)
		}

		seen[d.Name] = true
	}

	factors := make(map[string]Factor, len(dims))
	for _, d := range dims {
		f, err := v.Factor(d)
		if err != nil {
			return nil, err
		}

		if err := f.Validate(); err != nil {
			return nil, err
		}

		factors[d.Name] = f
	}

	return &Analysis{
		Analyzer: z,
		factors:  factors,
		order:    append([]dnn.Dimension(nil), order...),
	}, nil
}

// An Analysis is the cost model of one partition of a group. It is a pure
// function of the group, the mesh, the vector and the loop order.
type Analysis struct {
	*Analyzer

	factors map[string]Factor
	order   []dnn.Dimension
}

// Order returns the loop order, innermost first.
func (a *Analysis) Order() []dnn.Dimension {
	return append([]dnn.Dimension(nil), a.order...)
}

func (a *Analysis) factor(d dnn.Dimension) Factor {
	f, ok := a.factors[d.Name]
	if !ok {
		panic("partition: dimension " + d.Name + " escaped validation")
	}

	return f
}

// TileSize returns the number of elements of one tile of the tensor: the
// product over its dimensions of ceil(extent / blocks).
func (a *Analysis) TileSize(t *dnn.Tensor) (int, error) {
	for _, d := range t.Dimensions() {
		if _, ok := a.factors[d.Name]; !ok {
			return 0, errs.Lookupf("tensor %s dimension %q is not in group %s",
				t.Name(), d.Name, a.group.Name())
		}
	}

	return a.tileSize(t), nil
}

func (a *Analysis) tileSize(t *dnn.Tensor) int {
	size := 1
	for _, d := range t.Dimensions() {
		size *= ceilDiv(d.Extent, a.factor(d).Blocks())
	}

	return size
}

// Traffic returns the data-movement time of the external tensors.
//
// Loops are walked innermost first. From the first loop indexing the tensor
// outward, every loop multiplies the on-chip volume by temporal*(sharing-1)
// and the off-chip volume by temporal*spatial. Volumes are converted to time
// with the matching mesh bandwidth.
func (a *Analysis) Traffic() float64 {
	traffic := 0.0

	for _, t := range a.group.ExternalTensors() {
		onchip, offchip := a.tensorTraffic(t)
		traffic += onchip/a.mesh.OnchipBandwidth +
			offchip/a.mesh.OffchipBandwidth
	}

	return traffic
}

func (a *Analysis) tensorTraffic(t *dnn.Tensor) (onchip, offchip float64) {
	tile := float64(a.tileSize(t))
	onchip, offchip = tile, tile
	accessed := false

	for _, d := range a.order {
		if t.HasDimension(d.Name) {
			accessed = true
		}

		if !accessed {
			continue
		}

		f := a.factor(d)
		onchip *= float64(f.Temporal * (f.Sharing - 1))
		offchip *= float64(f.Temporal * f.Spatial)
	}

	return onchip, offchip
}

// Footprint returns the on-chip working set of the group.
//
// Each tensor contributes one tile. An internal tensor is sized by its
// producer's loop nest: walking the producer's loops outermost first, once a
// loop that does not index the tensor is reached, every inner loop that does
// index it must be fully buffered, multiplying the tile by that dimension's
// temporal*sharing.
func (a *Analysis) Footprint() int {
	footprint := 0

	for _, t := range a.group.Tensors() {
		if !a.group.IsInternal(t.Name()) {
			footprint += a.tileSize(t)
			continue
		}

		footprint += a.internalFootprint(t, a.group.ProducerOf(t.Name()))
	}

	return footprint
}

func (a *Analysis) internalFootprint(t *dnn.Tensor, producer *dnn.Operator) int {
	footprint := a.tileSize(t)
	expand := false

	for i := len(a.order) - 1; i >= 0; i-- {
		d := a.order[i]

		if !producer.HasDimension(d.Name) {
			continue
		}

		if !t.HasDimension(d.Name) {
			expand = true
			continue
		}

		if expand {
			f := a.factor(d)
			footprint *= f.Temporal * f.Sharing
		}
	}

	return footprint
}

// ReductionCost returns the all-reduce time of spatially split reduction
// dimensions. Each output of an operator whose reduction dimension is spread
// over spatial > 1 cores pays tile * (cores/spatial - 1) elements on the
// on-chip network.
func (a *Analysis) ReductionCost() float64 {
	cost := 0.0
	cores := float64(a.mesh.CoreCount)

	for _, op := range a.group.Operators() {
		for _, d := range op.ReductionDimensions() {
			f := a.factor(d)
			if f.Spatial <= 1 {
				continue
			}

			peers := cores/float64(f.Spatial) - 1
			if peers <= 0 {
				continue
			}

			for _, out := range op.Outputs() {
				cost += float64(a.tileSize(out)) * peers / a.mesh.OnchipBandwidth
			}
		}
	}

	return cost
}

// Constraint reports whether the partition is infeasible: the footprint
// exceeds the mesh capacity or a dimension is spread over more cores than the
// mesh has.
func (a *Analysis) Constraint() bool {
	if a.Footprint() > a.mesh.Capacity() {
		return true
	}

	for _, f := range a.factors {
		if f.Spatial > a.mesh.CoreCount {
			return true
		}
	}

	return false
}

// Evaluate returns the weighted total cost. The footprint is charged as the
// time to fill it over the on-chip network. Lower is better.
func (a *Analysis) Evaluate() float64 {
	return a.total(a.Traffic(), a.Footprint(), a.ReductionCost())
}

func (a *Analysis) total(traffic float64, footprint int, reduction float64) float64 {
	return a.weights.Traffic*traffic +
		a.weights.Footprint*float64(footprint)/a.mesh.OnchipBandwidth +
		a.weights.Reduction*reduction
}

// Cost evaluates every component at once.
func (a *Analysis) Cost() Cost {
	c := Cost{
		Traffic:   a.Traffic(),
		Footprint: a.Footprint(),
		Reduction: a.ReductionCost(),
	}

	c.Total = a.total(c.Traffic, c.Footprint, c.Reduction)
	c.Feasible = !a.Constraint()

	return c
}
