package dnn_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/meshfuse/dnn"
	"github.com/sarchlab/meshfuse/errs"
)

var _ = Describe("Graph", func() {
	var a attentionGraph

	BeforeEach(func() {
		a = newAttentionGraph()
	})

	It("should order tensors by name", func() {
		Expect(names(a.graph.Tensors())).To(Equal(
			[]string{"tA", "tK", "tO", "tQ", "tV"}))
		Expect(a.graph.NumTensors()).To(Equal(5))
	})

	It("should start with every tensor not fusable", func() {
		Expect(a.graph.FusionVector()).To(Equal(make([]bool, 5)))
		Expect(a.graph.FusionEdges()).To(BeEmpty())
	})

	It("should index producers and consumers", func() {
		p, err := a.graph.Producer("tA")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeIdenticalTo(a.matMul0))

		p, err = a.graph.Producer("tQ")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeNil())

		c, err := a.graph.Consumers("tA")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(ConsistOf(a.matMul1))

		c, err = a.graph.Consumers("tO")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeEmpty())
	})

	It("should list every producer to consumer edge", func() {
		edges := a.graph.Edges()

		Expect(edges).To(HaveLen(1))
		Expect(edges[0].Producer).To(BeIdenticalTo(a.matMul0))
		Expect(edges[0].Consumer).To(BeIdenticalTo(a.matMul1))
		Expect(edges[0].Tensor.Name()).To(Equal("tA"))
	})

	It("should fail loudly on unknown names", func() {
		err := a.graph.MarkFusable("tX")
		Expect(errs.IsLookup(err)).To(BeTrue())

		_, err = a.graph.Operator("MatMul9")
		Expect(errs.IsLookup(err)).To(BeTrue())

		_, err = a.graph.Producer("tX")
		Expect(errs.IsLookup(err)).To(BeTrue())

		_, err = a.graph.IsFusable("tX")
		Expect(errs.IsLookup(err)).To(BeTrue())
	})

	It("should reject a fusion vector of the wrong length", func() {
		err := a.graph.SetFusionVector([]bool{true})
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})

	It("should keep fusion flags private to a snapshot", func() {
		s := a.graph.Snapshot()
		Expect(s.MarkFusable("tA")).To(Succeed())

		fused, err := s.IsFusable("tA")
		Expect(err).NotTo(HaveOccurred())
		Expect(fused).To(BeTrue())

		fused, err = a.graph.IsFusable("tA")
		Expect(err).NotTo(HaveOccurred())
		Expect(fused).To(BeFalse())
	})

	Context("when constructed from invalid operators", func() {
		x := dnn.NewDimension("x", 4)

		It("should reject an empty operator list", func() {
			_, err := dnn.NewGraph()
			Expect(errs.IsConfiguration(err)).To(BeTrue())
		})

		It("should reject duplicate operator names", func() {
			t := dnn.NewTensor("t", x)
			op := dnn.NewOperator("Op", nil, []*dnn.Tensor{t})

			_, err := dnn.NewGraph(op, op)
			Expect(errs.IsConfiguration(err)).To(BeTrue())
		})

		It("should reject non-positive extents", func() {
			t := dnn.NewTensor("t", dnn.NewDimension("z", 0))
			op := dnn.NewOperator("Op", nil, []*dnn.Tensor{t})

			_, err := dnn.NewGraph(op)
			Expect(errs.IsConfiguration(err)).To(BeTrue())
		})

		It("should reject conflicting extents", func() {
			t0 := dnn.NewTensor("t0", x)
			t1 := dnn.NewTensor("t1", dnn.NewDimension("x", 8))
			op := dnn.NewOperator("Op", []*dnn.Tensor{t0}, []*dnn.Tensor{t1})

			_, err := dnn.NewGraph(op)
			Expect(errs.IsConfiguration(err)).To(BeTrue())
		})

		It("should reject a tensor with two producers", func() {
			t := dnn.NewTensor("t", x)
			op0 := dnn.NewOperator("Op0", nil, []*dnn.Tensor{t})
			op1 := dnn.NewOperator("Op1", nil, []*dnn.Tensor{t})

			_, err := dnn.NewGraph(op0, op1)
			Expect(errs.IsConfiguration(err)).To(BeTrue())
		})
	})

	Describe("ConnectedComponents", func() {
		It("should merge operators joined by a fusable tensor", func() {
			Expect(a.graph.MarkFusable("tA")).To(Succeed())

			components := a.graph.ConnectedComponents()

			Expect(components).To(HaveLen(1))
			Expect(components[0]).To(Equal(
				[]*dnn.Operator{a.matMul0, a.matMul1}))
		})

		It("should keep operators apart when no tensor is fusable", func() {
			components := a.graph.ConnectedComponents()

			Expect(components).To(HaveLen(2))
			Expect(components[0]).To(Equal([]*dnn.Operator{a.matMul0}))
			Expect(components[1]).To(Equal([]*dnn.Operator{a.matMul1}))
		})

		It("should ignore fused graph inputs and outputs", func() {
			Expect(a.graph.SetFusionVector(
				[]bool{false, true, true, true, true})).To(Succeed())

			Expect(a.graph.ConnectedComponents()).To(HaveLen(2))
		})

		It("should return the same partition on repeated calls", func() {
			Expect(a.graph.MarkFusable("tA")).To(Succeed())

			first := a.graph.ConnectedComponents()
			for i := 0; i < 5; i++ {
				Expect(a.graph.ConnectedComponents()).To(Equal(first))
			}
		})

		It("should place every operator in exactly one component", func() {
			x := dnn.NewDimension("x", 8)
			t := make([]*dnn.Tensor, 5)
			for i := range t {
				t[i] = dnn.NewTensor(string(rune('a'+i)), x)
			}

			ops := []*dnn.Operator{
				dnn.NewOperator("Op0", []*dnn.Tensor{t[0]}, []*dnn.Tensor{t[1]}),
				dnn.NewOperator("Op1", []*dnn.Tensor{t[1]}, []*dnn.Tensor{t[2]}),
				dnn.NewOperator("Op2", []*dnn.Tensor{t[1]}, []*dnn.Tensor{t[3]}),
				dnn.NewOperator("Op3", []*dnn.Tensor{t[3]}, []*dnn.Tensor{t[4]}),
			}

			g, err := dnn.NewGraph(ops...)
			Expect(err).NotTo(HaveOccurred())
			Expect(g.MarkFusable("b")).To(Succeed())

			components := g.ConnectedComponents()

			Expect(components).To(HaveLen(2))
			Expect(components[0]).To(Equal(
				[]*dnn.Operator{ops[0], ops[1], ops[2]}))
			Expect(components[1]).To(Equal([]*dnn.Operator{ops[3]}))
		})
	})
})
