package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/meshfuse/arch"
	"github.com/sarchlab/meshfuse/config"
	"github.com/sarchlab/meshfuse/errs"
	"github.com/sarchlab/meshfuse/fusion"
	"github.com/sarchlab/meshfuse/partition"
)

var _ = Describe("MeshBuilder", func() {
	It("should build a mesh", func() {
		m, err := config.MeshBuilder{}.
			WithCoreCount(16).
			WithFootprintPerCore(1024).
			WithOnchipBandwidth(32).
			WithOffchipBandwidth(8).
			Build()

		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(arch.Mesh{
			CoreCount:        16,
			FootprintPerCore: 1024,
			OnchipBandwidth:  32,
			OffchipBandwidth: 8,
		}))
	})

	It("should reject a mesh with missing fields", func() {
		_, err := config.MeshBuilder{}.WithCoreCount(16).Build()
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})
})

var _ = Describe("File", func() {
	const src = `
mesh {
  cores              = 16
  footprint_per_core = 64 * KiB
  onchip_bandwidth   = 32
  offchip_bandwidth  = 8
}

mapper {
  population = 12
  max_factor = 8
}

search {
  strategy            = "annealing"
  seed                = 7
  initial_temperature = 10
}

weights {
  reduction = 0.5
}
`

	It("should decode every block", func() {
		f, err := config.Parse([]byte(src), "test.hcl")
		Expect(err).NotTo(HaveOccurred())

		m, err := f.Mesh()
		Expect(err).NotTo(HaveOccurred())
		Expect(m.CoreCount).To(Equal(16))
		Expect(m.FootprintPerCore).To(Equal(64 * 1024))

		w, err := f.Weights()
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(partition.Weights{
			Traffic: 1, Footprint: 1, Reduction: 0.5,
		}))

		_, err = f.MapperBuilder()
		Expect(err).NotTo(HaveOccurred())
		Expect(*f.MapperBlock.Population).To(Equal(12))
		Expect(f.MapperBlock.Generations).To(BeNil())

		b, err := f.FusionBuilder()
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Strategy()).To(Equal(fusion.StrategyAnnealing))

		initial, minimum, rate := b.Annealing()
		Expect(initial).To(Equal(10.0))
		Expect(minimum).To(Equal(0.1))
		Expect(rate).To(Equal(0.9))
	})

	It("should keep defaults when optional blocks are missing", func() {
		f, err := config.Parse([]byte(`
mesh {
  cores              = 4
  footprint_per_core = 256
  onchip_bandwidth   = 16
  offchip_bandwidth  = 4
}
`), "mesh.hcl")
		Expect(err).NotTo(HaveOccurred())

		w, err := f.Weights()
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(partition.DefaultWeights()))

		b, err := f.FusionBuilder()
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Strategy()).To(Equal(fusion.StrategyExhaustive))
	})

	It("should require a mesh block", func() {
		_, err := config.Parse([]byte(`search { seed = 1 }`), "empty.hcl")
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})

	It("should report syntax errors", func() {
		_, err := config.Parse([]byte(`mesh {`), "broken.hcl")
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})

	It("should reject an unknown strategy", func() {
		f, err := config.Parse([]byte(`
mesh {
  cores              = 4
  footprint_per_core = 256
  onchip_bandwidth   = 16
  offchip_bandwidth  = 4
}

search {
  strategy = "hillclimb"
}
`), "strategy.hcl")
		Expect(err).NotTo(HaveOccurred())

		_, err = f.FusionBuilder()
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})

	It("should load a file from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "mesh.hcl")
		Expect(os.WriteFile(path, []byte(src), 0o644)).To(Succeed())

		f, err := config.LoadFile(path)
		Expect(err).NotTo(HaveOccurred())

		m, err := f.Mesh()
		Expect(err).NotTo(HaveOccurred())
		Expect(m.OffchipBandwidth).To(Equal(8.0))
	})

	It("should fail on a missing file", func() {
		_, err := config.LoadFile(filepath.Join(GinkgoT().TempDir(), "none.hcl"))
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})
})
