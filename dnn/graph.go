package dnn

import (
	"sort"

	"github.com/sarchlab/meshfuse/errs"
)

// An Edge connects the operator producing a tensor to an operator consuming
// it.
type Edge struct {
	Producer *Operator
	Consumer *Operator
	Tensor   *Tensor
}

// Graph owns the operators of a program and tracks, per tensor, whether the
// tensor is kept fused in on-chip buffers.
type Graph struct {
	operators []*Operator
	opIndex   map[string]int

	tensors     []*Tensor
	tensorIndex map[string]int
	fusable     map[string]bool

	producers map[string][]int
	consumers map[string][]int
}

// NewGraph creates a graph from operators. Tensors are collected from the
// operators and ordered by name; every tensor starts as not fusable.
func NewGraph(operators ...*Operator) (*Graph, error) {
	if len(operators) == 0 {
		return nil, errs.Configf("graph has no operators")
	}

	g := &Graph{
		opIndex:     make(map[string]int),
		tensorIndex: make(map[string]int),
		fusable:     make(map[string]bool),
		producers:   make(map[string][]int),
		consumers:   make(map[string][]int),
	}

	byName := make(map[string]*Tensor)
	extents := make(map[string]int)

	for i, op := range operators {
		if op == nil {
			return nil, errs.Configf("operator %d is nil", i)
		}

		if _, dup := g.opIndex[op.name]; dup {
			return nil, errs.Configf("duplicate operator %q", op.name)
		}

		g.opIndex[op.name] = i
		g.operators = append(g.operators, op)

		for _, t := range op.Tensors() {
			if err := g.collectTensor(t, byName, extents); err != nil {
				return nil, err
			}
		}

		for _, t := range op.inputs {
			g.consumers[t.name] = append(g.consumers[t.name], i)
		}

		for _, t := range op.outputs {
			g.producers[t.name] = append(g.producers[t.name], i)
		}
	}

	for name, producers := range g.producers {
		if len(producers) > 1 {
			return nil, errs.Configf(
				"tensor %q is produced by more than one operator", name)
		}
	}

	sort.Slice(g.tensors, func(i, j int) bool {
		return g.tensors[i].name < g.tensors[j].name
	})

	for i, t := range g.tensors {
		g.tensorIndex[t.name] = i
	}

	return g, nil
}

func (g *Graph) collectTensor(
	t *Tensor,
	byName map[string]*Tensor,
	extents map[string]int,
) error {
	for _, d := range t.dims {
		if d.Extent <= 0 {
			return errs.Configf("dimension %q has non-positive extent %d",
				d.Name, d.Extent)
		}

		if e, ok := extents[d.Name]; ok && e != d.Extent {
			return errs.Configf("dimension %q declared with extents %d and %d",
				d.Name, e, d.Extent)
		}

		extents[d.Name] = d.Extent
	}

	if prev, ok := byName[t.name]; ok {
		if !sameShape(prev, t) {
			return errs.Configf("tensor %q declared with two shapes", t.name)
		}

		return nil
	}

	byName[t.name] = t
	g.tensors = append(g.tensors, t)
	g.fusable[t.name] = false

	return nil
}

// Operators returns the operators in declaration order.
func (g *Graph) Operators() []*Operator {
	return append([]*Operator(nil), g.operators...)
}

// Operator returns the named operator.
func (g *Graph) Operator(name string) (*Operator, error) {
	i, ok := g.opIndex[name]
	if !ok {
		return nil, errs.Lookupf("operator %q", name)
	}

	return g.operators[i], nil
}

// Tensors returns every tensor of the graph, ordered by name. This is the
// order used by fusion vectors.
func (g *Graph) Tensors() []*Tensor {
	return append([]*Tensor(nil), g.tensors...)
}

// NumTensors returns the number of distinct tensors.
func (g *Graph) NumTensors() int {
	return len(g.tensors)
}

// Tensor returns the named tensor.
func (g *Graph) Tensor(name string) (*Tensor, error) {
	i, ok := g.tensorIndex[name]
	if !ok {
		return nil, errs.Lookupf("tensor %q", name)
	}

	return g.tensors[i], nil
}

// MarkFusable marks a tensor as kept fused in on-chip buffers.
func (g *Graph) MarkFusable(tensor string) error {
	return g.SetFusable(tensor, true)
}

// SetFusable sets the fusion flag of a tensor.
func (g *Graph) SetFusable(tensor string, fusable bool) error {
	if _, ok := g.fusable[tensor]; !ok {
		return errs.Lookupf("tensor %q", tensor)
	}

	g.fusable[tensor] = fusable

	return nil
}

// IsFusable returns the fusion flag of a tensor.
func (g *Graph) IsFusable(tensor string) (bool, error) {
	f, ok := g.fusable[tensor]
	if !ok {
		return false, errs.Lookupf("tensor %q", tensor)
	}

	return f, nil
}

// SetFusionVector overwrites every fusion flag. Bit i applies to the i-th
// tensor of Tensors().
func (g *Graph) SetFusionVector(bits []bool) error {
	if len(bits) != len(g.tensors) {
		return errs.Configf("fusion vector has %d bits, graph has %d tensors",
			len(bits), len(g.tensors))
	}

	for i, t := range g.tensors {
		g.fusable[t.name] = bits[i]
	}

	return nil
}

// FusionVector returns the fusion flags in tensor order.
func (g *Graph) FusionVector() []bool {
	bits := make([]bool, len(g.tensors))
	for i, t := range g.tensors {
		bits[i] = g.fusable[t.name]
	}

	return bits
}

// Snapshot returns a graph sharing the immutable operators and tensors but
// owning a private copy of the fusion flags.
func (g *Graph) Snapshot() *Graph {
	s := *g
	s.fusable = make(map[string]bool, len(g.fusable))

	for k, v := range g.fusable {
		s.fusable[k] = v
	}

	return &s
}

// Producer returns the operator producing the named tensor, or nil when the
// tensor is a graph input.
func (g *Graph) Producer(tensor string) (*Operator, error) {
	if _, ok := g.tensorIndex[tensor]; !ok {
		return nil, errs.Lookupf("tensor %q", tensor)
	}

	p := g.producers[tensor]
	if len(p) == 0 {
		return nil, nil
	}

	return g.operators[p[0]], nil
}

// Consumers returns the operators consuming the named tensor, in declaration
// order.
func (g *Graph) Consumers(tensor string) ([]*Operator, error) {
	if _, ok := g.tensorIndex[tensor]; !ok {
		return nil, errs.Lookupf("tensor %q", tensor)
	}

	ops := make([]*Operator, 0, len(g.consumers[tensor]))
	for _, i := range g.consumers[tensor] {
		ops = append(ops, g.operators[i])
	}

	return ops, nil
}

// Edges returns every producer to consumer edge, ordered by tensor name and
// then by consumer declaration order.
func (g *Graph) Edges() []Edge {
	return g.edges(func(string) bool { return true })
}

// FusionEdges returns the edges that carry a fusable tensor.
func (g *Graph) FusionEdges() []Edge {
	return g.edges(func(name string) bool { return g.fusable[name] })
}

func (g *Graph) edges(keep func(tensor string) bool) []Edge {
	var edges []Edge

	for _, t := range g.tensors {
		if !keep(t.name) {
			continue
		}

		for _, p := range g.producers[t.name] {
			for _, c := range g.consumers[t.name] {
				if p == c {
					continue
				}

				edges = append(edges, Edge{
					Producer: g.operators[p],
					Consumer: g.operators[c],
					Tensor:   t,
				})
			}
		}
	}

	return edges
}

// ConnectedComponents groups operators connected through fusion edges. Every
// operator lands in exactly one component. Components are discovered by a
// depth-first traversal started from operators in declaration order, and the
// members of each component are listed in declaration order.
func (g *Graph) ConnectedComponents() [][]*Operator {
	adj := make([][]int, len(g.operators))
	for _, e := range g.FusionEdges() {
		p := g.opIndex[e.Producer.name]
		c := g.opIndex[e.Consumer.name]
		adj[p] = append(adj[p], c)
		adj[c] = append(adj[c], p)
	}

	for i := range adj {
		sort.Ints(adj[i])
	}

	visited := make([]bool, len(g.operators))
	components := make([][]*Operator, 0)

	for start := range g.operators {
		if visited[start] {
			continue
		}

		members := g.dfs(start, adj, visited, nil)
		sort.Ints(members)

		component := make([]*Operator, len(members))
		for i, m := range members {
			component[i] = g.operators[m]
		}

		components = append(components, component)
	}

	return components
}

func (g *Graph) dfs(node int, adj [][]int, visited []bool, members []int) []int {
	visited[node] = true
	members = append(members, node)

	for _, next := range adj[node] {
		if !visited[next] {
			members = g.dfs(next, adj, visited, members)
		}
	}

	return members
}
