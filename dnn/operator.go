package dnn

// An Operator consumes input tensors and produces output tensors.
type Operator struct {
	name    string
	inputs  []*Tensor
	outputs []*Tensor

	dims       []Dimension
	reductDims []Dimension
}

// NewOperator creates an operator. The loop dimensions and the reduction
// dimensions are derived from the tensors once, at creation.
func NewOperator(name string, inputs, outputs []*Tensor) *Operator {
	op := &Operator{
		name:    name,
		inputs:  append([]*Tensor(nil), inputs...),
		outputs: append([]*Tensor(nil), outputs...),
	}

	all := newDimensionSet()
	reduct := newDimensionSet()

	for _, t := range op.inputs {
		for _, d := range t.dims {
			all.add(d)
			reduct.add(d)
		}
	}

	for _, t := range op.outputs {
		for _, d := range t.dims {
			all.add(d)
			reduct.remove(d.Name)
		}
	}

	op.dims = all.list
	op.reductDims = reduct.list

	return op
}

// Name returns the name of the operator.
func (op *Operator) Name() string {
	return op.name
}

// Inputs returns the input tensors.
func (op *Operator) Inputs() []*Tensor {
	return append([]*Tensor(nil), op.inputs...)
}

// Outputs returns the output tensors.
func (op *Operator) Outputs() []*Tensor {
	return append([]*Tensor(nil), op.outputs...)
}

// Tensors returns the inputs followed by the outputs.
func (op *Operator) Tensors() []*Tensor {
	tensors := make([]*Tensor, 0, len(op.inputs)+len(op.outputs))
	tensors = append(tensors, op.inputs...)
	tensors = append(tensors, op.outputs...)

	return tensors
}

// Dimensions returns every loop dimension of the operator, in first-seen
// order over the inputs and then the outputs.
func (op *Operator) Dimensions() []Dimension {
	return append([]Dimension(nil), op.dims...)
}

// HasDimension reports whether the operator loops over the named dimension.
func (op *Operator) HasDimension(name string) bool {
	for _, d := range op.dims {
		if d.Name == name {
			return true
		}
	}

	return false
}

// ReductionDimensions returns the dimensions that appear in the inputs but
// not in the outputs, i.e., the contracted axes.
func (op *Operator) ReductionDimensions() []Dimension {
	return append([]Dimension(nil), op.reductDims...)
}

// Produces reports whether the named tensor is an output of the operator.
func (op *Operator) Produces(tensor string) bool {
	for _, t := range op.outputs {
		if t.name == tensor {
			return true
		}
	}

	return false
}

// Consumes reports whether the named tensor is an input of the operator.
func (op *Operator) Consumes(tensor string) bool {
	for _, t := range op.inputs {
		if t.name == tensor {
			return true
		}
	}

	return false
}

func (op *Operator) String() string {
	return op.name
}
