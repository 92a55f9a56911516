package algo_test

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshfuse/algo"
	"github.com/sarchlab/meshfuse/errs"
)

// distanceTo counts the bits that differ from the target.
func distanceTo(target []bool, calls *int64) algo.Evaluator {
	return func(_ context.Context, bits []bool) (float64, error) {
		atomic.AddInt64(calls, 1)

		d := 0
		for i := range bits {
			if bits[i] != target[i] {
				d++
			}
		}

		return float64(d), nil
	}
}

var _ = Describe("ExhaustiveSearch", func() {
	var mockCtrl *gomock.Controller

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should evaluate every vector once", func() {
		target := []bool{true, false, true}

		for _, workers := range []int{1, 4} {
			var calls int64

			s, err := algo.NewExhaustiveSearch(3, workers)
			Expect(err).NotTo(HaveOccurred())

			r, err := s.Run(context.Background(), distanceTo(target, &calls))
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(int64(8)))
			Expect(r.Evaluated).To(Equal(8))
			Expect(r.Bits).To(Equal(target))
			Expect(r.Cost).To(BeZero())
		}
	})

	It("should report candidates in counting order", func() {
		var indices []int
		var bits [][]bool

		hook := NewMockHook(mockCtrl)
		hook.EXPECT().
			Func(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(algo.HookPosCandidate))
				e := ctx.Item.(algo.CandidateEvent)
				indices = append(indices, e.Index)
				bits = append(bits, e.Bits)
			}).
			Times(4)

		s, err := algo.NewExhaustiveSearch(2, 2)
		Expect(err).NotTo(HaveOccurred())
		s.AcceptHook(hook)

		var calls int64
		_, err = s.Run(context.Background(),
			distanceTo([]bool{false, false}, &calls))
		Expect(err).NotTo(HaveOccurred())

		Expect(indices).To(Equal([]int{0, 1, 2, 3}))
		Expect(bits).To(Equal([][]bool{
			{false, false}, {true, false}, {false, true}, {true, true},
		}))
	})

	It("should break ties towards the first vector", func() {
		s, err := algo.NewExhaustiveSearch(2, 1)
		Expect(err).NotTo(HaveOccurred())

		r, err := s.Run(context.Background(),
			func(context.Context, []bool) (float64, error) { return 1, nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Bits).To(Equal([]bool{false, false}))
	})

	It("should abort on an evaluator error", func() {
		boom := errors.New("boom")

		s, err := algo.NewExhaustiveSearch(4, 2)
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Run(context.Background(),
			func(_ context.Context, bits []bool) (float64, error) {
				if bits[3] {
					return 0, boom
				}

				return 1, nil
			})
		Expect(err).To(MatchError(boom))
	})

	It("should stop on cancellation", func() {
		s, err := algo.NewExhaustiveSearch(4, 1)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls int64
		_, err = s.Run(ctx, distanceTo(make([]bool, 4), &calls))
		Expect(err).To(MatchError(context.Canceled))
	})

	It("should reject vectors that are too long", func() {
		_, err := algo.NewExhaustiveSearch(algo.MaxExhaustiveBits+1, 1)
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})
})

var _ = Describe("RandomSearch", func() {
	run := func(seed int64, workers int) algo.BinaryResult {
		s, err := algo.NewRandomSearch(6, 16, workers,
			rand.New(rand.NewSource(seed)))
		Expect(err).NotTo(HaveOccurred())

		var calls int64
		r, err := s.Run(context.Background(),
			distanceTo([]bool{true, true, true, false, false, false}, &calls))
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(int64(16)))

		return r
	}

	It("should draw the requested number of samples", func() {
		r := run(1, 1)

		Expect(r.Evaluated).To(Equal(16))
		Expect(r.Bits).To(HaveLen(6))
	})

	It("should not depend on the worker count", func() {
		Expect(run(9, 1)).To(Equal(run(9, 4)))
	})

	It("should reject a non-positive sample count", func() {
		_, err := algo.NewRandomSearch(4, 0, 1, rand.New(rand.NewSource(1)))
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})

	It("should require a random source", func() {
		_, err := algo.NewRandomSearch(4, 4, 1, nil)
		Expect(errs.IsConfiguration(err)).To(BeTrue())
	})
})
