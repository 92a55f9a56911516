// Package report renders the outcome of a fusion search as tables and as a
// JSON record for downstream tooling.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/sarchlab/meshfuse/arch"
	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/fusion"
	"github.com/sarchlab/meshfuse/mapper"
)

// SearchReport is the complete report of one fusion search.
type SearchReport struct {
	Name   string
	Mesh   arch.Mesh
	Result *fusion.Result
}

// New creates a report of a search result.
func New(name string, mesh arch.Mesh, result *fusion.Result) *SearchReport {
	return &SearchReport{
		Name:   name,
		Mesh:   mesh,
		Result: result,
	}
}

// WriteReport writes the formatted report to a writer.
func (r *SearchReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "FUSION SEARCH REPORT: %s\n", r.Name)
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, r.Mesh)
	fmt.Fprintf(w, "Evaluated %d fusion candidates\n\n", r.Result.Evaluated)

	fmt.Fprintln(w, r.fusionTable())
	fmt.Fprintln(w)

	for i, m := range r.Result.Mappings {
		fmt.Fprintln(w, groupTable(i, m))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, separator)
	if r.Result.Feasible() {
		fmt.Fprintf(w, "Total cost: %.4f over %d groups\n",
			r.Result.TotalCost, len(r.Result.Mappings))
	} else {
		fmt.Fprintln(w, "No feasible mapping found")
	}
	fmt.Fprintln(w, separator)
}

func (r *SearchReport) fusionTable() string {
	t := table.NewWriter()
	t.SetTitle("Fusion Vector")
	t.AppendHeader(table.Row{"Tensor", "Fused"})

	for i, name := range r.Result.Tensors {
		t.AppendRow(table.Row{name, r.Result.Vector[i]})
	}

	return t.Render()
}

func groupTable(index int, m mapper.Mapping) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Group %d: %s", index, m.Group.Name()))
	t.AppendHeader(table.Row{"Dimension", "Extent", "Spatial", "Temporal", "Sharing"})

	for _, d := range m.Order {
		f, err := m.Vector.Factor(d)
		if err != nil {
			t.AppendRow(table.Row{d.Name, d.Extent, "-", "-", "-"})
			continue
		}

		t.AppendRow(table.Row{d.Name, d.Extent, f.Spatial, f.Temporal, f.Sharing})
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"Internal", tensorNames(m.Group.InternalTensors())})
	t.AppendRow(table.Row{"External", tensorNames(m.Group.ExternalTensors())})
	t.AppendSeparator()
	t.AppendFooter(table.Row{
		"Cost",
		fmt.Sprintf("traffic %.4f", m.Cost.Traffic),
		fmt.Sprintf("footprint %d", m.Cost.Footprint),
		fmt.Sprintf("reduction %.4f", m.Cost.Reduction),
		costString(m),
	})

	return t.Render()
}

func costString(m mapper.Mapping) string {
	if !m.Feasible() {
		return "infeasible"
	}

	return fmt.Sprintf("total %.4f", m.Cost.Total)
}

func tensorNames(tensors []*dnn.Tensor) string {
	names := make([]string, len(tensors))
	for i, t := range tensors {
		names[i] = t.Name()
	}

	return strings.Join(names, ", ")
}

// SaveReportToFile saves the formatted report to a file.
func (r *SearchReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer file.Close()

	r.WriteReport(file)

	return nil
}

// Record is the serialized form of a search result.
type Record struct {
	Name      string          `json:"name"`
	Fusion    map[string]bool `json:"fusion"`
	Feasible  bool            `json:"feasible"`
	TotalCost *float64        `json:"total_cost,omitempty"`
	Evaluated int             `json:"evaluated"`
	Groups    []GroupRecord   `json:"groups"`
}

// GroupRecord is the serialized mapping of one group.
type GroupRecord struct {
	Operators []string          `json:"operators"`
	Internal  []string          `json:"internal"`
	External  []string          `json:"external"`
	Factors   map[string][3]int `json:"factors"`
	Order     []string          `json:"order"`
	Cost      CostRecord        `json:"cost"`
}

// CostRecord holds the cost terms of a group. Total is omitted when the group
// does not fit the mesh.
type CostRecord struct {
	Traffic   float64  `json:"traffic"`
	Footprint int      `json:"footprint"`
	Reduction float64  `json:"reduction"`
	Total     *float64 `json:"total,omitempty"`
	Feasible  bool     `json:"feasible"`
}

// Record builds the serialized form of the report.
func (r *SearchReport) Record() Record {
	rec := Record{
		Name:      r.Name,
		Fusion:    make(map[string]bool, len(r.Result.Tensors)),
		Feasible:  r.Result.Feasible(),
		TotalCost: finite(r.Result.TotalCost),
		Evaluated: r.Result.Evaluated,
		Groups:    make([]GroupRecord, 0, len(r.Result.Mappings)),
	}

	for i, name := range r.Result.Tensors {
		rec.Fusion[name] = r.Result.Vector[i]
	}

	for _, m := range r.Result.Mappings {
		rec.Groups = append(rec.Groups, groupRecord(m))
	}

	return rec
}

func groupRecord(m mapper.Mapping) GroupRecord {
	g := GroupRecord{
		Internal: []string{},
		External: []string{},
		Factors:  make(map[string][3]int),
		Order:    []string{},
		Cost: CostRecord{
			Traffic:   finiteOrZero(m.Cost.Traffic),
			Footprint: m.Cost.Footprint,
			Reduction: finiteOrZero(m.Cost.Reduction),
			Feasible:  m.Feasible(),
		},
	}

	if m.Feasible() {
		g.Cost.Total = finite(m.Cost.Total)
	}

	for _, op := range m.Group.Operators() {
		g.Operators = append(g.Operators, op.Name())
	}

	for _, t := range m.Group.InternalTensors() {
		g.Internal = append(g.Internal, t.Name())
	}

	for _, t := range m.Group.ExternalTensors() {
		g.External = append(g.External, t.Name())
	}

	for _, d := range m.Order {
		g.Order = append(g.Order, d.Name)

		if f, err := m.Vector.Factor(d); err == nil {
			g.Factors[d.Name] = [3]int{f.Spatial, f.Temporal, f.Sharing}
		}
	}

	return g
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}

	return &v
}

func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}

	return v
}

// WriteJSON writes the indented JSON record.
func (r *SearchReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return errors.Wrap(enc.Encode(r.Record()), "failed to encode report")
}

// SaveJSONToFile saves the JSON record to a file.
func (r *SearchReport) SaveJSONToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create record file")
	}
	defer file.Close()

	return r.WriteJSON(file)
}
