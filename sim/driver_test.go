package sim

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("Driver", func() {
	var (
		mockCtrl *gomock.Controller
		first    *MockMiddleware
		second   *MockMiddleware
		driver   *Driver
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		first = NewMockMiddleware(mockCtrl)
		second = NewMockMiddleware(mockCtrl)

		driver = MakeDriverBuilder().WithFreq(100 * Hz).Build("Driver")

		p1 := NewPhase("First")
		p1.AddMiddleware(first)
		p2 := NewPhase("Second")
		p2.AddMiddleware(second)

		driver.AddPhase(p1)
		driver.AddPhase(p2)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run phases in order", func() {
		gomock.InOrder(
			first.EXPECT().Tick().Return(false),
			second.EXPECT().Tick().Return(true),
		)

		Expect(driver.Tick()).To(BeTrue())
		Expect(driver.CurrentTick()).To(Equal(uint64(1)))
	})

	It("should report no progress", func() {
		first.EXPECT().Tick().Return(false)
		second.EXPECT().Tick().Return(false)

		Expect(driver.Tick()).To(BeFalse())
	})

	It("should reject duplicated phase names", func() {
		Expect(func() { driver.AddPhase(NewPhase("First")) }).To(Panic())
	})

	It("should invoke tick hooks", func() {
		hook := NewMockHook(mockCtrl)
		driver.AcceptHook(hook)

		first.EXPECT().Tick().Return(true)
		second.EXPECT().Tick().Return(false)
		gomock.InOrder(
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosBeforeTick))
				Expect(ctx.Item).To(Equal(TickInfo{Tick: 0}))
			}),
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosAfterTick))
				Expect(ctx.Item).To(Equal(TickInfo{Tick: 0, Progress: true}))
			}),
		)

		driver.Tick()
	})

	It("should run until the context is cancelled", func() {
		first.EXPECT().Tick().Return(false).MinTimes(1)
		second.EXPECT().Tick().Return(false).MinTimes(1)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := driver.Run(ctx)

		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(driver.CurrentTick()).To(BeNumerically(">", 0))
	})

	It("should not tick while paused", func() {
		driver.Pause()
		Expect(driver.Paused()).To(BeTrue())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_ = driver.Run(ctx)

		Expect(driver.CurrentTick()).To(Equal(uint64(0)))

		driver.Continue()
		Expect(driver.Paused()).To(BeFalse())
	})
})
