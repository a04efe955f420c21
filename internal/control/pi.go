package control

import "math"

// PI is a proportional-integral law sampled at a fixed interval.
type PI struct {
	Kp float64
	Ki float64

	dt       float64
	limit    float64
	integral float64
}

// NewPI returns a PI stepping every dt seconds. limit bounds |integral|;
// zero leaves the integral unbounded.
func NewPI(kp, ki, dt, limit float64) *PI {
	return &PI{
		Kp:    kp,
		Ki:    ki,
		dt:    dt,
		limit: limit,
	}
}

// Next accumulates err over one interval and returns the drive value.
func (p *PI) Next(err float64) float64 {
	p.integral += err * p.dt
	if p.limit > 0 {
		p.integral = math.Max(-p.limit, math.Min(p.limit, p.integral))
	}
	return err*p.Kp + p.integral*p.Ki
}

// Integral returns the accumulated error.
func (p *PI) Integral() float64 { return p.integral }

// Reset clears the integral.
func (p *PI) Reset() {
	p.integral = 0
}

// GetParams returns tunable parameters for live adjustment
func (p *PI) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Ki": p.Ki,
	}
}

// SetParam adjusts a gain by name. Unknown names are ignored.
func (p *PI) SetParam(name string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return
	}
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	}
}
