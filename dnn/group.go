package dnn

import (
	"strings"

	"github.com/sarchlab/meshfuse/errs"
)

// A Group is a set of operators connected exclusively through fused tensors.
//
// A tensor is internal to the group when it is fusable and its producer and all
// of its consumers are members; internal tensors stay in on-chip buffers. Every
// other tensor the group touches, including graph inputs that have no producer,
// is external.
type Group struct {
	graph *Graph

	operators  []*Operator
	tensors    []*Tensor
	internal   []*Tensor
	external   []*Tensor
	dimensions []Dimension

	members    map[string]bool
	isInternal map[string]bool
}

// NewGroup creates a group of operators that belong to the graph.
func NewGroup(graph *Graph, operators []*Operator) (*Group, error) {
	g := &Group{graph: graph}

	if err := g.construct(operators); err != nil {
		return nil, err
	}

	return g, nil
}

// construct derives every field of the group from its members. It resets all
// previous state, so calling it again with the same operators yields the same
// group.
func (g *Group) construct(operators []*Operator) error {
	if len(operators) == 0 {
		return errs.Configf("operator group is empty")
	}

	g.operators = nil
	g.tensors = nil
	g.internal = nil
	g.external = nil
	g.members = make(map[string]bool)
	g.isInternal = make(map[string]bool)

	dims := newDimensionSet()
	seen := make(map[string]bool)

	for _, op := range operators {
		if _, err := g.graph.Operator(op.name); err != nil {
			return err
		}

		if g.members[op.name] {
			continue
		}

		g.members[op.name] = true
		g.operators = append(g.operators, op)

		for _, t := range op.Tensors() {
			for _, d := range t.dims {
				dims.add(d)
			}

			if seen[t.name] {
				continue
			}

			seen[t.name] = true
			g.tensors = append(g.tensors, t)
		}
	}

	g.dimensions = dims.list

	for _, t := range g.tensors {
		internal, err := g.classify(t)
		if err != nil {
			return err
		}

		g.isInternal[t.name] = internal
		if internal {
			g.internal = append(g.internal, t)
		} else {
			g.external = append(g.external, t)
		}
	}

	return nil
}

func (g *Group) classify(t *Tensor) (bool, error) {
	producer, err := g.graph.Producer(t.name)
	if err != nil {
		return false, err
	}

	if producer == nil || !g.members[producer.name] {
		return false, nil
	}

	if !g.graph.fusable[t.name] {
		return false, nil
	}

	consumers, err := g.graph.Consumers(t.name)
	if err != nil {
		return false, err
	}

	if len(consumers) == 0 {
		return false, nil
	}

	for _, c := range consumers {
		if !g.members[c.name] {
			return false, nil
		}
	}

	return true, nil
}

// Graph returns the graph the group was built from.
func (g *Group) Graph() *Graph {
	return g.graph
}

// Name returns the member operator names joined by "+".
func (g *Group) Name() string {
	names := make([]string, len(g.operators))
	for i, op := range g.operators {
		names[i] = op.name
	}

	return strings.Join(names, "+")
}

// Operators returns the member operators.
func (g *Group) Operators() []*Operator {
	return append([]*Operator(nil), g.operators...)
}

// Tensors returns every tensor touched by a member operator.
func (g *Group) Tensors() []*Tensor {
	return append([]*Tensor(nil), g.tensors...)
}

// InternalTensors returns the tensors kept in on-chip buffers.
func (g *Group) InternalTensors() []*Tensor {
	return append([]*Tensor(nil), g.internal...)
}

// ExternalTensors returns the tensors moved through off-chip memory.
func (g *Group) ExternalTensors() []*Tensor {
	return append([]*Tensor(nil), g.external...)
}

// Dimensions returns every loop dimension of the group.
func (g *Group) Dimensions() []Dimension {
	return append([]Dimension(nil), g.dimensions...)
}

// HasDimension reports whether a member operator loops over the dimension.
func (g *Group) HasDimension(name string) bool {
	for _, d := range g.dimensions {
		if d.Name == name {
			return true
		}
	}

	return false
}

// Contains reports whether the named operator is a member.
func (g *Group) Contains(operator string) bool {
	return g.members[operator]
}

// IsInternal reports whether the named tensor is internal to the group.
func (g *Group) IsInternal(tensor string) bool {
	return g.isInternal[tensor]
}

// ProducerOf returns the member operator producing the tensor, or nil.
func (g *Group) ProducerOf(tensor string) *Operator {
	for _, op := range g.operators {
		if op.Produces(tensor) {
			return op
		}
	}

	return nil
}

// Groups materializes one group per connected component of the current
// fusion flags.
func (g *Graph) Groups() ([]*Group, error) {
	components := g.ConnectedComponents()
	groups := make([]*Group, 0, len(components))

	for _, c := range components {
		group, err := NewGroup(g, c)
		if err != nil {
			return nil, err
		}

		groups = append(groups, group)
	}

	return groups, nil
}
