// Package partition models how the loop dimensions of an operator group are
// split across the cores of a mesh and estimates the cost of a split.
package partition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/errs"
)

// A Factor splits one dimension into Spatial*Temporal*Sharing blocks.
type Factor struct {
	// Spatial is the replication degree across distinct cores.
	Spatial int

	// Temporal is the tiling degree within one core.
	Temporal int

	// Sharing is the reuse/broadcast degree among cores.
	Sharing int
}

// Blocks returns the number of blocks the dimension extent is divided into.
func (f Factor) Blocks() int {
	return f.Spatial * f.Temporal * f.Sharing
}

// Validate checks that every degree is positive.
func (f Factor) Validate() error {
	if f.Spatial <= 0 || f.Temporal <= 0 || f.Sharing <= 0 {
		return errs.Configf("factor %v has a non-positive degree", f)
	}

	return nil
}

func (f Factor) String() string {
	return fmt.Sprintf("(%d,%d,%d)", f.Spatial, f.Temporal, f.Sharing)
}

// A Vector assigns a factor to each dimension, keyed by dimension name.
type Vector map[string]Factor

// Set assigns the factor of a dimension.
func (v Vector) Set(d dnn.Dimension, f Factor) {
	v[d.Name] = f
}

// Factor returns the factor of a dimension. A missing dimension is a lookup
// error, never a default.
func (v Vector) Factor(d dnn.Dimension) (Factor, error) {
	f, ok := v[d.Name]
	if !ok {
		return Factor{}, errs.Lookupf("no partition factor for dimension %q",
			d.Name)
	}

	return f, nil
}

// Clone returns a copy of the vector.
func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	for k, f := range v {
		c[k] = f
	}

	return c
}

func (v Vector) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + v[k].String()
	}

	return "{" + strings.Join(parts, " ") + "}"
}

// ceilDiv divides rounding up. Tile sizes always use ceiling division, so a
// dimension that does not split evenly is charged for its largest block.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
