package dnn

import "strings"

// A Tensor is a named value indexed by an ordered list of dimensions.
// Tensors are immutable once created.
type Tensor struct {
	name string
	dims []Dimension
}

// NewTensor creates a tensor over the given dimensions.
func NewTensor(name string, dims ...Dimension) *Tensor {
	return &Tensor{
		name: name,
		dims: append([]Dimension(nil), dims...),
	}
}

// Name returns the name of the tensor.
func (t *Tensor) Name() string {
	return t.name
}

// Dimensions returns a copy of the tensor dimensions in declaration order.
func (t *Tensor) Dimensions() []Dimension {
	return append([]Dimension(nil), t.dims...)
}

// HasDimension reports whether the tensor is indexed by the named dimension.
func (t *Tensor) HasDimension(name string) bool {
	for _, d := range t.dims {
		if d.Name == name {
			return true
		}
	}

	return false
}

// Volume returns the number of elements of the full tensor.
func (t *Tensor) Volume() int {
	v := 1
	for _, d := range t.dims {
		v *= d.Extent
	}

	return v
}

func (t *Tensor) String() string {
	names := make([]string, len(t.dims))
	for i, d := range t.dims {
		names[i] = d.Name
	}

	return t.name + "[" + strings.Join(names, ",") + "]"
}

func sameShape(a, b *Tensor) bool {
	if len(a.dims) != len(b.dims) {
		return false
	}

	for i := range a.dims {
		if a.dims[i] != b.dims[i] {
			return false
		}
	}

	return true
}
