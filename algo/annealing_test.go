package algo_test

import (
	"context"
	"math"
	"math/rand"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/algo"
	"github.com/sarchlab/meshfuse/errs"
)

// point walks the integers; its energy is the squared distance to 7.
type point struct {
	x int
}

func (p point) Energy() float64 {
	d := float64(p.x - 7)
	return d * d
}

func (p point) Neighbor(rng *rand.Rand) point {
	if rng.Intn(2) == 0 {
		return point{p.x - 1}
	}

	return point{p.x + 1}
}

// plateau steps right; only x = 5 is feasible.
type plateau struct {
	x int
}

func (p plateau) Energy() float64 {
	if p.x == 5 {
		return 0
	}

	return math.Inf(1)
}

func (p plateau) Neighbor(*rand.Rand) plateau { return plateau{p.x + 1} }

// uphill only offers neighbors 10 units worse.
type uphill struct {
	x int
}

func (u uphill) Energy() float64 { return float64(10 * u.x) }

func (u uphill) Neighbor(*rand.Rand) uphill { return uphill{u.x + 1} }

var _ = Describe("SimulatedAnnealing", func() {
	var mockCtrl *gomock.Controller

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should find the minimum", func() {
		sa, err := algo.NewAnnealingBuilder[point]().
			WithInitialTemperature(10).
			WithMinTemperature(0.01).
			WithCoolingRate(0.99).
			WithCurrentTemperatureAcceptance(true).
			WithRand(rand.New(rand.NewSource(1))).
			Build()
		Expect(err).NotTo(HaveOccurred())

		best, energy, err := sa.Run(context.Background(), point{40})
		Expect(err).NotTo(HaveOccurred())
		Expect(best.x).To(Equal(7))
		Expect(energy).To(BeZero())
	})

	It("should never report a state worse than the start", func() {
		sa, err := algo.NewAnnealingBuilder[point]().
			WithRand(rand.New(rand.NewSource(3))).
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, energy, err := sa.Run(context.Background(), point{10})
		Expect(err).NotTo(HaveOccurred())
		Expect(energy).To(BeNumerically("<=", point{10}.Energy()))
	})

	It("should cool once per step", func() {
		sa, err := algo.NewAnnealingBuilder[point]().
			WithInitialTemperature(1).
			WithMinTemperature(0.5).
			WithCoolingRate(0.5).
			WithRand(rand.New(rand.NewSource(1))).
			Build()
		Expect(err).NotTo(HaveOccurred())

		var temperatures []float64
		hook := NewMockHook(mockCtrl)
		hook.EXPECT().
			Func(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(algo.HookPosAnnealStep))
				temperatures = append(temperatures,
					ctx.Item.(algo.AnnealEvent).Temperature)
			}).
			Times(2)
		sa.AcceptHook(hook)

		_, _, err = sa.Run(context.Background(), point{0})
		Expect(err).NotTo(HaveOccurred())
		Expect(temperatures).To(Equal([]float64{1, 0.5}))
	})

	It("should walk across an infeasible plateau", func() {
		sa, err := algo.NewAnnealingBuilder[plateau]().
			WithRand(rand.New(rand.NewSource(1))).
			Build()
		Expect(err).NotTo(HaveOccurred())

		best, energy, err := sa.Run(context.Background(), plateau{0})
		Expect(err).NotTo(HaveOccurred())
		Expect(best.x).To(Equal(5))
		Expect(energy).To(BeZero())
	})

	coldAcceptances := func(useCurrent bool) int {
		sa, err := algo.NewAnnealingBuilder[uphill]().
			WithCurrentTemperatureAcceptance(useCurrent).
			WithRand(rand.New(rand.NewSource(7))).
			Build()
		Expect(err).NotTo(HaveOccurred())

		accepted := 0
		hook := NewMockHook(mockCtrl)
		hook.EXPECT().
			Func(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				e := ctx.Item.(algo.AnnealEvent)
				if e.Temperature < 0.1 && e.Accepted {
					accepted++
				}
			}).
			AnyTimes()
		sa.AcceptHook(hook)

		best, energy, err := sa.Run(context.Background(), uphill{0})
		Expect(err).NotTo(HaveOccurred())
		Expect(best.x).To(Equal(0))
		Expect(energy).To(BeZero())

		return accepted
	}

	It("should accept worse neighbors at the initial temperature by default", func() {
		Expect(coldAcceptances(false)).To(BeNumerically(">", 20))
	})

	It("should freeze at the current temperature when asked", func() {
		Expect(coldAcceptances(true)).To(BeZero())
	})

	It("should stop on cancellation", func() {
		sa, err := algo.NewAnnealingBuilder[point]().
			WithRand(rand.New(rand.NewSource(1))).
			Build()
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		best, _, err := sa.Run(ctx, point{3})
		Expect(err).To(MatchError(context.Canceled))
		Expect(best.x).To(Equal(3))
	})

	DescribeTable("should reject invalid schedules",
		func(b algo.AnnealingBuilder[point]) {
			_, err := b.Build()
			Expect(errs.IsConfiguration(err)).To(BeTrue())
		},
		Entry("minimum temperature", algo.NewAnnealingBuilder[point]().
			WithMinTemperature(0).WithRand(rand.New(rand.NewSource(1)))),
		Entry("initial below minimum", algo.NewAnnealingBuilder[point]().
			WithInitialTemperature(0.001).WithRand(rand.New(rand.NewSource(1)))),
		Entry("cooling rate", algo.NewAnnealingBuilder[point]().
			WithCoolingRate(1).WithRand(rand.New(rand.NewSource(1)))),
		Entry("random source", algo.NewAnnealingBuilder[point]()),
	)
})
