// Package arch describes the spatial hardware the engine maps onto.
package arch

import (
	"fmt"

	"github.com/sarchlab/meshfuse/errs"
)

// A Mesh is a grid of identical cores with a per-core buffer budget, an
// on-chip network and an off-chip memory interface.
type Mesh struct {
	// CoreCount is the number of cores in the mesh.
	CoreCount int

	// FootprintPerCore is the on-chip buffer capacity of one core, in elements.
	FootprintPerCore int

	// OnchipBandwidth is the on-chip network bandwidth, in elements per cycle.
	OnchipBandwidth float64

	// OffchipBandwidth is the off-chip memory bandwidth, in elements per cycle.
	OffchipBandwidth float64
}

// Validate checks that every field is positive.
func (m Mesh) Validate() error {
	switch {
	case m.CoreCount <= 0:
		return errs.Configf("mesh core count %d is not positive", m.CoreCount)
	case m.FootprintPerCore <= 0:
		return errs.Configf("mesh footprint per core %d is not positive",
			m.FootprintPerCore)
	case m.OnchipBandwidth <= 0:
		return errs.Configf("mesh on-chip bandwidth %g is not positive",
			m.OnchipBandwidth)
	case m.OffchipBandwidth <= 0:
		return errs.Configf("mesh off-chip bandwidth %g is not positive",
			m.OffchipBandwidth)
	}

	return nil
}

// Capacity returns the total on-chip buffer capacity of the mesh.
func (m Mesh) Capacity() int {
	return m.CoreCount * m.FootprintPerCore
}

func (m Mesh) String() string {
	return fmt.Sprintf("Mesh(cores=%d, footprint=%d, onchip=%g, offchip=%g)",
		m.CoreCount, m.FootprintPerCore, m.OnchipBandwidth, m.OffchipBandwidth)
}
