package control_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/servoctl/internal/control"
)

var _ = Describe("LowPass", func() {
	It("rejects coefficients outside (0,1]", func() {
		for _, a := range []float64{0, -0.1, 1.01, math.NaN()} {
			_, err := control.NewLowPass(a)
			Expect(err).To(MatchError(control.ErrInvalidConfig), "alpha %v", a)
		}
		_, err := control.NewLowPass(1)
		Expect(err).NotTo(HaveOccurred())
	})

	It("blends the new sample with the previous output", func() {
		f, err := control.NewLowPass(0.25)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Next(100)).To(BeNumerically("~", 25, 1e-12))
		Expect(f.Next(100)).To(BeNumerically("~", 43.75, 1e-12))
	})

	It("averages across the seam on a circle", func() {
		f, err := control.NewLowPass(0.5)
		Expect(err).NotTo(HaveOccurred())
		f.Prime(4094)
		Expect(f.NextCircular(2, 4096)).To(BeNumerically("~", 0, 1e-9))
		Expect(f.NextCircular(4095, 4096)).To(BeNumerically("~", 4095.5, 1e-9))
	})

	It("ignores non-finite samples on a circle", func() {
		f, err := control.NewLowPass(0.5)
		Expect(err).NotTo(HaveOccurred())
		f.Prime(100)
		Expect(f.NextCircular(math.NaN(), 4096)).To(Equal(100.0))
	})

	DescribeTable("converges to a constant input from any starting value",
		func(alpha, start, x float64) {
			f, err := control.NewLowPass(alpha)
			Expect(err).NotTo(HaveOccurred())
			f.Prime(start)
			var y float64
			for i := 0; i < 2000; i++ {
				y = f.Next(x)
			}
			Expect(y).To(BeNumerically("~", x, 1e-6))
		},
		Entry("slow from zero", 0.09, 0.0, 2048.0),
		Entry("slow from above", 0.05, 4000.0, 12.0),
		Entry("pass-through", 1.0, -50.0, 3.5),
		Entry("mid", 0.5, 1e6, -7.0),
	)

	DescribeTable("follows a step without overshoot",
		func(alpha, x0, x1 float64) {
			f, err := control.NewLowPass(alpha)
			Expect(err).NotTo(HaveOccurred())
			f.Prime(x0)
			prev := x0
			lo, hi := math.Min(x0, x1), math.Max(x0, x1)
			const tol = 1e-9
			for i := 0; i < 500; i++ {
				y := f.Next(x1)
				Expect(y).To(BeNumerically(">=", lo-tol))
				Expect(y).To(BeNumerically("<=", hi+tol))
				if x1 > x0 {
					Expect(y).To(BeNumerically(">=", prev-tol))
				} else {
					Expect(y).To(BeNumerically("<=", prev+tol))
				}
				prev = y
			}
		},
		Entry("rising", 0.09, 0.0, 1000.0),
		Entry("falling", 0.3, 1000.0, 10.0),
		Entry("unit coefficient", 1.0, 5.0, 6.0),
	)

	It("holds its value for missing or non-finite samples", func() {
		f, _ := control.NewLowPass(0.5)
		f.Next(10)
		Expect(f.Hold()).To(Equal(5.0))
		Expect(f.Next(math.NaN())).To(Equal(5.0))
		Expect(f.Next(math.Inf(1))).To(Equal(5.0))
		Expect(f.Value()).To(Equal(5.0))
	})

	It("resets to zero", func() {
		f, _ := control.NewLowPass(0.5)
		f.Prime(12)
		f.Reset()
		Expect(f.Value()).To(BeZero())
	})
})

var _ = Describe("PI", func() {
	It("integrates error times interval", func() {
		p := control.NewPI(2, 1, 0.1, 0)
		Expect(p.Next(10)).To(BeNumerically("~", 21, 1e-12))
		Expect(p.Integral()).To(BeNumerically("~", 1, 1e-12))
		Expect(p.Next(10)).To(BeNumerically("~", 22, 1e-12))
	})

	It("clamps the integral when a limit is set", func() {
		p := control.NewPI(0, 1, 1, 5)
		for i := 0; i < 100; i++ {
			p.Next(10)
		}
		Expect(p.Integral()).To(Equal(5.0))
		for i := 0; i < 100; i++ {
			p.Next(-10)
		}
		Expect(p.Integral()).To(Equal(-5.0))
	})

	It("winds up without a limit", func() {
		p := control.NewPI(0, 1, 1, 0)
		for i := 0; i < 100; i++ {
			p.Next(10)
		}
		Expect(p.Integral()).To(Equal(1000.0))
	})

	It("accepts live gain changes and ignores bad values", func() {
		p := control.NewPI(1, 0, 0.1, 0)
		p.SetParam("Kp", 3)
		p.SetParam("Ki", math.NaN())
		p.SetParam("Kd", 9)
		Expect(p.GetParams()).To(Equal(map[string]float64{"Kp": 3, "Ki": 0}))
	})
})
