// Package fusion drives the outer search over fusion decisions. Each
// candidate is a bit vector, one bit per tensor of the graph; a candidate is
// scored by rebuilding the operator groups it induces and summing the best
// partition cost of every group.
package fusion

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/arch"
	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/errs"
	"github.com/sarchlab/meshfuse/mapper"
	"github.com/sarchlab/meshfuse/partition"
)

// A GroupMapper finds the best partition of one operator group.
type GroupMapper interface {
	Map(
		ctx context.Context,
		group *dnn.Group,
		mesh arch.Mesh,
		seed int64,
	) (mapper.Mapping, error)
}

// A Result is the best fusion decision found and its per-group mappings.
type Result struct {
	// Tensors lists the tensor names in fusion-vector order.
	Tensors []string

	// Vector holds one fusion bit per tensor.
	Vector []bool

	// Mappings holds the best mapping of every induced group.
	Mappings []mapper.Mapping

	// TotalCost sums the group costs; +Inf when any group is infeasible.
	TotalCost float64

	// Evaluated counts candidate scorings requested by the search engine.
	// Annealing and tree search may score the same vector more than once.
	Evaluated int
}

// Feasible reports whether every group fits the mesh.
func (r *Result) Feasible() bool {
	return !math.IsInf(r.TotalCost, 1)
}

// FusedTensors returns the names of the tensors kept on chip.
func (r *Result) FusedTensors() []string {
	var names []string
	for i, fused := range r.Vector {
		if fused {
			names = append(names, r.Tensors[i])
		}
	}

	return names
}

type evaluation struct {
	cost     float64
	mappings []mapper.Mapping
}

// Space owns the outer search loop over a graph.
type Space struct {
	graph *dnn.Graph
	cfg   Builder

	mu   sync.Mutex
	memo map[memoKey]*evaluation
}

// memoKey identifies an evaluation. Costs depend on the mesh as much as on
// the vector.
type memoKey struct {
	mesh arch.Mesh
	bits string
}

// Graph returns the searched graph.
func (s *Space) Graph() *dnn.Graph {
	return s.graph
}

// Evaluate scores one fusion vector on the mesh.
func (s *Space) Evaluate(
	ctx context.Context,
	bits []bool,
	mesh arch.Mesh,
) (*Result, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	e, err := s.evaluate(ctx, bits, mesh)
	if err != nil {
		return nil, err
	}

	return s.result(bits, e, 1), nil
}

// SearchFusionSpace runs the configured strategy and returns the cheapest
// fusion vector with its group mappings.
func (s *Space) SearchFusionSpace(
	ctx context.Context,
	mesh arch.Mesh,
) (*Result, error) {
	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.memo = make(map[memoKey]*evaluation)
	s.mu.Unlock()

	var (
		bits      []bool
		evaluated int
		err       error
	)

	switch s.cfg.strategy {
	case StrategyRandom, StrategyExhaustive:
		bits, evaluated, err = s.searchBinary(ctx, mesh)
	case StrategyAnnealing:
		bits, evaluated, err = s.searchAnnealing(ctx, mesh)
	case StrategyTreeSearch:
		bits, evaluated, err = s.searchTree(ctx, mesh)
	default:
		err = errs.Configf("unknown fusion search strategy %q", s.cfg.strategy)
	}

	if err != nil {
		return nil, err
	}

	e, err := s.evaluate(ctx, bits, mesh)
	if err != nil {
		return nil, err
	}

	r := s.result(bits, e, evaluated)

	slog.Info("Fusion search finished",
		"Strategy", string(s.cfg.strategy),
		"Evaluated", r.Evaluated,
		"Fused", r.FusedTensors(),
		"Groups", len(r.Mappings),
		"Cost", r.TotalCost,
	)

	return r, nil
}

func (s *Space) result(bits []bool, e *evaluation, evaluated int) *Result {
	tensors := s.graph.Tensors()
	names := make([]string, len(tensors))

	for i, t := range tensors {
		names[i] = t.Name()
	}

	return &Result{
		Tensors:   names,
		Vector:    append([]bool(nil), bits...),
		Mappings:  append([]mapper.Mapping(nil), e.mappings...),
		TotalCost: e.cost,
		Evaluated: evaluated,
	}
}

// evaluate scores a fusion vector on a private snapshot of the graph, so
// concurrent candidates never share fusion flags. Results are memoized per
// mesh and vector.
func (s *Space) evaluate(
	ctx context.Context,
	bits []bool,
	mesh arch.Mesh,
) (*evaluation, error) {
	key := memoKey{mesh: mesh, bits: bitKey(bits)}

	s.mu.Lock()
	if e, ok := s.memo[key]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	g := s.graph.Snapshot()
	if err := g.SetFusionVector(bits); err != nil {
		return nil, err
	}

	groups, err := g.Groups()
	if err != nil {
		return nil, err
	}

	seed := s.seedFor(bits)
	e := &evaluation{}

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := s.cfg.mapper.Map(ctx, group, mesh, seed+int64(i))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if !errs.IsLookup(err) && !errs.IsConfiguration(err) {
				return nil, err
			}

			slog.Warn("Group mapping failed",
				"Group", group.Name(),
				"Error", err,
			)

			m = mapper.Mapping{
				Group: group,
				Cost:  partition.Cost{Total: math.Inf(1)},
			}
		}

		e.mappings = append(e.mappings, m)
		e.cost += m.Objective()
	}

	s.mu.Lock()
	if s.memo == nil {
		s.memo = make(map[memoKey]*evaluation)
	}
	s.memo[key] = e
	s.mu.Unlock()

	return e, nil
}

func (s *Space) cost(ctx context.Context, bits []bool, mesh arch.Mesh) (float64, error) {
	e, err := s.evaluate(ctx, bits, mesh)
	if err != nil {
		return 0, err
	}

	return e.cost, nil
}

// seedFor derives the inner search seed from the base seed and the vector, so
// a vector is mapped identically whichever strategy or worker reaches it.
func (s *Space) seedFor(bits []bool) int64 {
	h := fnv.New64a()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(s.cfg.seed))
	h.Write(buf[:])
	h.Write([]byte(bitKey(bits)))

	return int64(h.Sum64() >> 1)
}

func bitKey(bits []bool) string {
	key := make([]byte, len(bits))
	for i, b := range bits {
		key[i] = '0'
		if b {
			key[i] = '1'
		}
	}

	return string(key)
}

func (s *Space) attachHooks(h sim.Hookable) {
	for _, hook := range s.cfg.hooks {
		h.AcceptHook(hook)
	}
}
