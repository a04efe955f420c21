package control

import (
	"math"

	"github.com/pkg/errors"
)

// LowPass is an exponential low-pass filter:
//
//	y[n] = a*x[n] + (1-a)*y[n-1]
//
// The filter starts at zero unless primed.
type LowPass struct {
	alpha float64
	value float64
}

// NewLowPass returns a filter with smoothing coefficient alpha in (0, 1].
func NewLowPass(alpha float64) (*LowPass, error) {
	if err := checkSmoothing("smoothing", alpha); err != nil {
		return nil, err
	}
	return &LowPass{alpha: alpha}, nil
}

// Next folds a raw sample into the filter and returns the new output.
// Non-finite samples are treated as a missing sample.
func (f *LowPass) Next(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return f.value
	}
	f.value = f.alpha*x + (1-f.alpha)*f.value
	return f.value
}

// NextCircular folds a sample on a circle of the given period. The sample is
// unwrapped against the current output before blending, so readings either
// side of the seam average to the seam. The output stays in [0, period).
func (f *LowPass) NextCircular(x, period float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return f.value
	}
	y := f.value + f.alpha*wrapSigned(x-f.value, period)
	f.value = y - period*math.Floor(y/period)
	return f.value
}

// wrapSigned maps d into [-period/2, period/2).
func wrapSigned(d, period float64) float64 {
	return d - period*math.Floor(d/period+0.5)
}

// Hold returns the previous output unchanged. Used when a sample is missing.
func (f *LowPass) Hold() float64 {
	return f.value
}

// Value returns the current output.
func (f *LowPass) Value() float64 { return f.value }

// Alpha returns the smoothing coefficient.
func (f *LowPass) Alpha() float64 { return f.alpha }

// Prime sets the output directly, skipping the start-up transient from zero.
func (f *LowPass) Prime(v float64) {
	f.value = v
}

// Reset returns the filter to zero.
func (f *LowPass) Reset() {
	f.value = 0
}

func checkSmoothing(name string, a float64) error {
	if math.IsNaN(a) || a <= 0 || a > 1 {
		return errors.Wrapf(ErrInvalidConfig, "%s %v outside (0,1]", name, a)
	}
	return nil
}
