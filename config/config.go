// Package config provides the mesh builder and the HCL configuration file of
// the mapping engine.
package config

import (
	"github.com/sarchlab/meshfuse/arch"
)

// MeshBuilder can build meshes.
type MeshBuilder struct {
	coreCount        int
	footprintPerCore int
	onchipBandwidth  float64
	offchipBandwidth float64
}

// WithCoreCount sets the number of cores in the mesh.
func (b MeshBuilder) WithCoreCount(n int) MeshBuilder {
	b.coreCount = n
	return b
}

// WithFootprintPerCore sets the buffer capacity of each core, in elements.
func (b MeshBuilder) WithFootprintPerCore(n int) MeshBuilder {
	b.footprintPerCore = n
	return b
}

// WithOnchipBandwidth sets the bandwidth of the on-chip network.
func (b MeshBuilder) WithOnchipBandwidth(bw float64) MeshBuilder {
	b.onchipBandwidth = bw
	return b
}

// WithOffchipBandwidth sets the bandwidth of the off-chip memory.
func (b MeshBuilder) WithOffchipBandwidth(bw float64) MeshBuilder {
	b.offchipBandwidth = bw
	return b
}

// Build creates a mesh. Every field must be positive.
func (b MeshBuilder) Build() (arch.Mesh, error) {
	m := arch.Mesh{
		CoreCount:        b.coreCount,
		FootprintPerCore: b.footprintPerCore,
		OnchipBandwidth:  b.onchipBandwidth,
		OffchipBandwidth: b.offchipBandwidth,
	}

	if err := m.Validate(); err != nil {
		return arch.Mesh{}, err
	}

	return m, nil
}
