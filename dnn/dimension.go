// Package dnn defines the computation graph vocabulary: loop dimensions,
// tensors, operators, the graph that owns them and the operator groups induced
// by fusion decisions.
package dnn

import "fmt"

// A Dimension is a named loop axis with a fixed extent. Two dimensions are the
// same axis when their names are equal.
type Dimension struct {
	Name   string
	Extent int
}

// NewDimension creates a dimension.
func NewDimension(name string, extent int) Dimension {
	return Dimension{Name: name, Extent: extent}
}

func (d Dimension) String() string {
	return fmt.Sprintf("%s(%d)", d.Name, d.Extent)
}

// dimensionSet keeps dimensions in first-seen order.
type dimensionSet struct {
	list  []Dimension
	index map[string]int
}

func newDimensionSet() *dimensionSet {
	return &dimensionSet{index: make(map[string]int)}
}

func (s *dimensionSet) add(d Dimension) {
	if _, ok := s.index[d.Name]; ok {
		return
	}

	s.index[d.Name] = len(s.list)
	s.list = append(s.list, d)
}

func (s *dimensionSet) has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s *dimensionSet) remove(name string) {
	i, ok := s.index[name]
	if !ok {
		return
	}

	s.list = append(s.list[:i], s.list[i+1:]...)
	delete(s.index, name)

	for j := i; j < len(s.list); j++ {
		s.index[s.list[j].Name] = j
	}
}
