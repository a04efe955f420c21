package control_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/servoctl/internal/control"
)

func primed(cfg control.Config, sp, pos float64) *control.Loop {
	loop, err := control.NewLoop(cfg)
	Expect(err).NotTo(HaveOccurred())
	loop.SetPoint().Prime(sp)
	loop.Position().Prime(pos)
	return loop
}

var _ = Describe("Loop", func() {
	var cfg control.Config

	BeforeEach(func() {
		cfg = control.Config{
			Kp:                10.0,
			Ki:                0.0,
			SampleInterval:    100 * time.Millisecond,
			SmoothingSetPoint: 0.5,
			SmoothingPosition: 0.5,
			Deadzone:          5,
		}
	})

	Describe("construction", func() {
		DescribeTable("fails fast on bad parameters",
			func(mutate func(*control.Config)) {
				mutate(&cfg)
				_, err := control.NewLoop(cfg)
				Expect(err).To(MatchError(control.ErrInvalidConfig))
			},
			Entry("zero set-point smoothing", func(c *control.Config) { c.SmoothingSetPoint = 0 }),
			Entry("position smoothing above one", func(c *control.Config) { c.SmoothingPosition = 1.5 }),
			Entry("NaN gain", func(c *control.Config) { c.Kp = math.NaN() }),
			Entry("infinite integral gain", func(c *control.Config) { c.Ki = math.Inf(1) }),
			Entry("negative gain", func(c *control.Config) { c.Kp = -1 }),
			Entry("zero interval", func(c *control.Config) { c.SampleInterval = 0 }),
			Entry("negative integral limit", func(c *control.Config) { c.IntegralLimit = -1 }),
			Entry("circular without period", func(c *control.Config) {
				c.ErrorMode = control.Circular
				c.Period = 0
			}),
			Entry("unknown error mode", func(c *control.Config) { c.ErrorMode = 7 }),
		)

		It("accepts the defaults", func() {
			_, err := control.NewLoop(control.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("reproduces the reference scenario", func() {
		loop := primed(cfg, 200, 150)
		cmd := loop.Step(200, 150)

		snap := loop.Last()
		Expect(snap.Error).To(BeNumerically("~", 50, 1e-9))
		Expect(snap.Drive).To(BeNumerically("~", 500, 1e-9))
		Expect(cmd).To(Equal(control.Command{Duty: 500, Direction: control.Forward}))
	})

	It("clamps to the configured maximum duty", func() {
		cfg.MaxDuty = 255
		loop := primed(cfg, 200, 150)
		Expect(loop.Step(200, 150)).To(Equal(control.Command{Duty: 255, Direction: control.Forward}))
	})

	Describe("direction", func() {
		It("drives forward when the set-point is ahead", func() {
			loop := primed(cfg, 100, 50)
			Expect(loop.Step(100, 50).Direction).To(Equal(control.Forward))
		})

		It("drives in reverse when the set-point is behind", func() {
			loop := primed(cfg, 50, 100)
			cmd := loop.Step(50, 100)
			Expect(cmd.Direction).To(Equal(control.Reverse))
			Expect(cmd.Duty).To(Equal(uint32(500)))
			Expect(cmd.Signed()).To(Equal(int64(-500)))
		})

		It("goes neutral when on target with no integral", func() {
			cfg.Deadzone = 0
			loop := primed(cfg, 75, 75)
			Expect(loop.Step(75, 75)).To(Equal(control.Command{Direction: control.Neutral}))
		})
	})

	DescribeTable("deadzone suppresses small drive of either sign",
		func(sp, pos float64) {
			cfg.Kp = 1
			loop := primed(cfg, sp, pos)
			Expect(loop.Step(sp, pos)).To(Equal(control.Command{Direction: control.Neutral}))
			Expect(math.Abs(loop.Last().Drive)).To(BeNumerically("<", 5))
		},
		Entry("positive", 104.0, 100.0),
		Entry("negative", 100.0, 104.0),
		Entry("rounds up to just under", 104.4, 100.0),
	)

	It("rounds the drive magnitude", func() {
		cfg.Kp = 1
		loop := primed(cfg, 105.6, 100)
		Expect(loop.Step(105.6, 100).Duty).To(Equal(uint32(6)))
	})

	It("accumulates the integral every cycle", func() {
		cfg.Kp = 0
		cfg.Ki = 10
		loop := primed(cfg, 10, 0)
		loop.Step(10, 0)
		loop.Step(10, 0)
		Expect(loop.Last().Integral).To(BeNumerically("~", 2, 1e-9))
		Expect(loop.Last().Drive).To(BeNumerically("~", 20, 1e-9))
	})

	It("keeps driving from the integral once the error is gone", func() {
		cfg.Kp = 0
		cfg.Ki = 100
		loop := primed(cfg, 10, 0)
		loop.Step(10, 0)
		loop.Position().Prime(10)
		cmd := loop.Step(10, 10)
		Expect(loop.Last().Error).To(BeNumerically("~", 0, 1e-9))
		Expect(cmd.Direction).To(Equal(control.Forward))
	})

	It("bounds the integral when a limit is configured", func() {
		cfg.Kp = 0
		cfg.Ki = 1
		cfg.IntegralLimit = 3
		loop := primed(cfg, 1000, 0)
		for i := 0; i < 1000; i++ {
			loop.Step(1000, 0)
		}
		Expect(loop.Last().Integral).To(Equal(3.0))
	})

	Describe("stale readings", func() {
		It("repeats the previous filtered position for one failed read", func() {
			loop, err := control.NewLoop(cfg)
			Expect(err).NotTo(HaveOccurred())

			loop.Step(100, 40)
			before := loop.Last().Position

			loop.StepHold(control.Sample(100), control.Stale())
			Expect(loop.Last().StalePosition).To(BeTrue())
			Expect(loop.Last().Position).To(Equal(before))

			loop.Step(100, 40)
			Expect(loop.Last().StalePosition).To(BeFalse())
			Expect(loop.Last().Position).To(BeNumerically("~", 0.5*40+0.5*before, 1e-12))
		})

		It("treats non-finite samples as stale", func() {
			loop := primed(cfg, 10, 20)
			loop.Step(math.NaN(), math.Inf(-1))
			snap := loop.Last()
			Expect(snap.StaleSetPoint).To(BeTrue())
			Expect(snap.StalePosition).To(BeTrue())
			Expect(snap.SetPoint).To(Equal(10.0))
			Expect(snap.Position).To(Equal(20.0))
			Expect(math.IsNaN(snap.Drive)).To(BeFalse())
		})
	})

	Describe("error mode", func() {
		BeforeEach(func() {
			cfg.Kp = 1
			cfg.Deadzone = 0
			cfg.Period = 4096
		})

		It("subtracts naively across the seam by default", func() {
			loop := primed(cfg, 10, 4090)
			cmd := loop.Step(10, 4090)
			Expect(loop.Last().Error).To(BeNumerically("~", -4080, 1e-9))
			Expect(cmd.Direction).To(Equal(control.Reverse))
		})

		It("takes the short way round in circular mode", func() {
			cfg.ErrorMode = control.Circular
			loop := primed(cfg, 10, 4090)
			cmd := loop.Step(10, 4090)
			Expect(loop.Last().Error).To(BeNumerically("~", 16, 1e-9))
			Expect(cmd.Direction).To(Equal(control.Forward))
		})

		It("holds still on the seam with a smoothed position filter", func() {
			cfg.ErrorMode = control.Circular
			cfg.SmoothingPosition = 0.09
			loop, err := control.NewLoop(cfg)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 200; i++ {
				pos := 4095.0
				if i%2 == 1 {
					pos = 1
				}
				cmd := loop.Step(0, pos)
				Expect(cmd.Direction).To(Equal(control.Neutral), "cycle %d", i)
				Expect(math.Abs(loop.Last().Error)).To(BeNumerically("<", 0.5))
			}
			Expect(loop.Last().Position).To(SatisfyAny(
				BeNumerically("<", 1),
				BeNumerically(">", 4095),
			))
		})

		It("parses mode names", func() {
			m, err := control.ParseErrorMode("circular")
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(control.Circular))
			_, err = control.ParseErrorMode("spiral")
			Expect(err).To(MatchError(control.ErrInvalidConfig))
		})
	})

	It("resets filters and integral", func() {
		cfg.Ki = 1
		loop := primed(cfg, 100, 0)
		loop.Step(100, 0)
		loop.Reset()
		Expect(loop.SetPoint().Value()).To(BeZero())
		Expect(loop.Position().Value()).To(BeZero())
		Expect(loop.Gains().Integral()).To(BeZero())
		Expect(loop.Last()).To(Equal(control.Snapshot{}))
	})
})
