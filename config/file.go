package config

import (
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/sarchlab/meshfuse/arch"
	"github.com/sarchlab/meshfuse/errs"
	"github.com/sarchlab/meshfuse/fusion"
	"github.com/sarchlab/meshfuse/mapper"
	"github.com/sarchlab/meshfuse/partition"
	"github.com/zclconf/go-cty/cty"
)

// A File is a decoded configuration file. A mesh block is required; every
// other block and attribute is optional and keeps the builder default when
// omitted.
//
//	mesh {
//	  cores              = 16
//	  footprint_per_core = 64 * KiB
//	  onchip_bandwidth   = 32
//	  offchip_bandwidth  = 8
//	}
//
//	search {
//	  strategy = "exhaustive"
//	  seed     = 7
//	}
type File struct {
	MeshBlock    *MeshBlock    `hcl:"mesh,block"`
	MapperBlock  *MapperBlock  `hcl:"mapper,block"`
	SearchBlock  *SearchBlock  `hcl:"search,block"`
	WeightsBlock *WeightsBlock `hcl:"weights,block"`
}

// MeshBlock describes the hardware.
type MeshBlock struct {
	Cores            int     `hcl:"cores"`
	FootprintPerCore int     `hcl:"footprint_per_core"`
	OnchipBandwidth  float64 `hcl:"onchip_bandwidth"`
	OffchipBandwidth float64 `hcl:"offchip_bandwidth"`
}

// MapperBlock tunes the inner genetic search.
type MapperBlock struct {
	Population    *int     `hcl:"population,optional"`
	Generations   *int     `hcl:"generations,optional"`
	MutationRate  *float64 `hcl:"mutation_rate,optional"`
	CrossoverRate *float64 `hcl:"crossover_rate,optional"`
	MaxFactor     *int     `hcl:"max_factor,optional"`
	Workers       *int     `hcl:"workers,optional"`
	TargetCost    *float64 `hcl:"target_cost,optional"`
}

// SearchBlock tunes the outer fusion search.
type SearchBlock struct {
	Strategy           *string  `hcl:"strategy,optional"`
	Samples            *int     `hcl:"samples,optional"`
	Seed               *int64   `hcl:"seed,optional"`
	Workers            *int     `hcl:"workers,optional"`
	Budget             *int     `hcl:"budget,optional"`
	InitialTemperature *float64 `hcl:"initial_temperature,optional"`
	MinTemperature     *float64 `hcl:"min_temperature,optional"`
	CoolingRate        *float64 `hcl:"cooling_rate,optional"`
}

// WeightsBlock sets the weights of the cost terms.
type WeightsBlock struct {
	Traffic   *float64 `hcl:"traffic,optional"`
	Footprint *float64 `hcl:"footprint,optional"`
	Reduction *float64 `hcl:"reduction,optional"`
}

// evalContext exposes size units to expressions.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"KiB": cty.NumberIntVal(1 << 10),
			"MiB": cty.NumberIntVal(1 << 20),
			"GiB": cty.NumberIntVal(1 << 30),
		},
	}
}

// Parse decodes a configuration from HCL source. The filename is only used in
// diagnostics.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()

	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errs.Configf("failed to parse %s: %s", filename, diags.Error())
	}

	return decode(f, filename)
}

// LoadFile reads and decodes a configuration file.
func LoadFile(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.Configf("failed to open %s: %v", path, err)
	}

	parser := hclparse.NewParser()

	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errs.Configf("failed to parse %s: %s", path, diags.Error())
	}

	return decode(f, path)
}

func decode(f *hcl.File, filename string) (*File, error) {
	var file File

	diags := gohcl.DecodeBody(f.Body, evalContext(), &file)
	if diags.HasErrors() {
		return nil, errs.Configf("failed to decode %s: %s", filename, diags.Error())
	}

	if file.MeshBlock == nil {
		return nil, errs.Configf("%s has no mesh block", filename)
	}

	return &file, nil
}

// Mesh builds the configured mesh.
func (f *File) Mesh() (arch.Mesh, error) {
	return MeshBuilder{}.
		WithCoreCount(f.MeshBlock.Cores).
		WithFootprintPerCore(f.MeshBlock.FootprintPerCore).
		WithOnchipBandwidth(f.MeshBlock.OnchipBandwidth).
		WithOffchipBandwidth(f.MeshBlock.OffchipBandwidth).
		Build()
}

// Weights returns the configured cost weights.
func (f *File) Weights() (partition.Weights, error) {
	w := partition.DefaultWeights()

	if b := f.WeightsBlock; b != nil {
		setFloat(&w.Traffic, b.Traffic)
		setFloat(&w.Footprint, b.Footprint)
		setFloat(&w.Reduction, b.Reduction)
	}

	if err := w.Validate(); err != nil {
		return partition.Weights{}, err
	}

	return w, nil
}

// MapperBuilder returns a mapper builder carrying the configured values.
func (f *File) MapperBuilder() (mapper.Builder, error) {
	w, err := f.Weights()
	if err != nil {
		return mapper.Builder{}, err
	}

	b := mapper.NewBuilder().WithWeights(w)

	m := f.MapperBlock
	if m == nil {
		return b, nil
	}

	if m.Population != nil {
		b = b.WithPopulationSize(*m.Population)
	}

	if m.Generations != nil {
		b = b.WithGenerations(*m.Generations)
	}

	if m.MutationRate != nil {
		b = b.WithMutationRate(*m.MutationRate)
	}

	if m.CrossoverRate != nil {
		b = b.WithCrossoverRate(*m.CrossoverRate)
	}

	if m.MaxFactor != nil {
		b = b.WithMaxFactor(*m.MaxFactor)
	}

	if m.Workers != nil {
		b = b.WithWorkers(*m.Workers)
	}

	if m.TargetCost != nil {
		b = b.WithTargetCost(*m.TargetCost)
	}

	return b, nil
}

// FusionBuilder returns a fusion space builder carrying the configured
// values. The caller still provides the group mapper.
func (f *File) FusionBuilder() (fusion.Builder, error) {
	b := fusion.NewBuilder()

	s := f.SearchBlock
	if s == nil {
		return b, nil
	}

	if s.Strategy != nil {
		strategy, err := fusion.ParseStrategy(*s.Strategy)
		if err != nil {
			return fusion.Builder{}, err
		}

		b = b.WithStrategy(strategy)
	}

	if s.Samples != nil {
		b = b.WithSamples(*s.Samples)
	}

	if s.Seed != nil {
		b = b.WithSeed(*s.Seed)
	}

	if s.Workers != nil {
		b = b.WithWorkers(*s.Workers)
	}

	if s.Budget != nil {
		b = b.WithBudget(*s.Budget)
	}

	initial, minimum, rate := b.Annealing()
	setFloat(&initial, s.InitialTemperature)
	setFloat(&minimum, s.MinTemperature)
	setFloat(&rate, s.CoolingRate)

	return b.WithAnnealing(initial, minimum, rate), nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
