package kernel

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/satkernel/pkg/config"
	"github.com/operator-framework/satkernel/pkg/engine"
	"github.com/operator-framework/satkernel/pkg/term"
)

var _ = Describe("Kernel", func() {
	var (
		ctx  *term.Context
		k    *Kernel
		a, b term.Formula
	)

	BeforeEach(func() {
		ctx = term.NewContext()
		a, b = ctx.Var("a"), ctx.Var("b")

		logger := logrus.New()
		logger.SetOutput(GinkgoWriter)
		var err error
		k, err = New(ctx, WithLogger(logger), WithParams(config.Params{"proof": true}))
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(k.Close()).To(Succeed())
	})

	Context("with a scoped assertion", func() {
		BeforeEach(func() {
			k.Assert(a)
			k.Push()
			k.Assert(b)
		})

		It("finds a model of both assertions", func() {
			Expect(k.CheckSat()).To(Equal(engine.Sat))
			m, err := k.Model()
			Expect(err).ToNot(HaveOccurred())
			Expect(m.Value(ctx.And(a, b))).To(BeTrue())
		})

		It("forgets the scoped assertion after pop", func() {
			Expect(k.CheckSat()).To(Equal(engine.Sat))
			Expect(k.Pop(1)).To(Succeed())
			Expect(k.Formulas()).To(Equal([]term.Formula{a}))

			Expect(k.CheckSat(ctx.Not(b))).To(Equal(engine.Sat))
			m, err := k.Model()
			Expect(err).ToNot(HaveOccurred())
			Expect(m.Value(a)).To(BeTrue())
			Expect(m.Value(b)).To(BeFalse())
		})

		It("invalidates results on push", func() {
			Expect(k.CheckSat()).To(Equal(engine.Sat))
			k.Push()
			_, err := k.Model()
			Expect(err).To(MatchError(engine.ErrNoResult))
		})
	})

	Context("with contradictory assertions", func() {
		BeforeEach(func() {
			k.Assert(a)
			k.Assert(ctx.Not(a))
		})

		It("reports both in the unsat core", func() {
			Expect(k.CheckSat()).To(Equal(engine.Unsat))
			Expect(k.UnsatCore()).To(ConsistOf(a, ctx.Not(a)))
		})

		It("produces a proof that verifies", func() {
			Expect(k.CheckSat()).To(Equal(engine.Unsat))
			pr, err := k.Proof()
			Expect(err).ToNot(HaveOccurred())
			Expect(pr.Verify()).To(Succeed())
		})

		It("is detected without search", func() {
			Expect(k.Inconsistent()).To(BeTrue())
		})
	})

	Context("when reset mid-session", func() {
		BeforeEach(func() {
			for i := 0; i < 7; i++ {
				k.Push()
				k.Assert(ctx.Not(a))
			}
			k.Assert(a)
			Expect(k.CheckSat()).To(Equal(engine.Unsat))
			Expect(k.Reset()).To(Succeed())
		})

		It("discards every assertion and scope", func() {
			Expect(k.ScopeLevel()).To(BeZero())
			Expect(k.Size()).To(BeZero())
			Expect(k.UnsatCoreSize()).To(BeZero())
			Expect(k.CheckSat(a)).To(Equal(engine.Sat))
		})

		It("keeps the configuration", func() {
			Expect(k.SessionConfig().Proof).To(BeTrue())
		})
	})

	Context("when cancelled by a timer", func() {
		It("reports unknown with a cancellation reason", func() {
			pigeonhole(ctx, k, 12)
			timer := time.AfterFunc(100*time.Millisecond, func() { k.SetCancel(true) })
			defer timer.Stop()

			Expect(k.CheckSat()).To(Equal(engine.Unknown))
			Expect(k.LastFailure()).To(Equal(engine.Canceled))
			Expect(k.IsCancelled()).To(BeTrue())

			By("running the next check to completion")
			Expect(k.Reset()).To(Succeed())
			k.Assert(a)
			Expect(k.CheckSat()).To(Equal(engine.Sat))
		})
	})
})
