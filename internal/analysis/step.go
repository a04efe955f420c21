package analysis

import "math"

// StepMetrics summarizes the response of a position to a step in
// set-point.
type StepMetrics struct {
	Initial float64
	Target  float64
	// Overshoot is the peak excursion past Target, as a fraction of the
	// step size.
	Overshoot float64
	// RiseTime is the time from 10% to 90% of the step, or -1 if never
	// reached.
	RiseTime float64
	// SettlingTime is the last time the response was outside the band,
	// or -1 if it never settled.
	SettlingTime float64
	SteadyState  float64
}

// Step analyzes position against time for a step to target. band is the
// settling band as a fraction of the step size, e.g. 0.05.
func Step(times, position []float64, target, band float64) StepMetrics {
	m := StepMetrics{Target: target, RiseTime: -1, SettlingTime: -1}
	n := len(position)
	if n == 0 || len(times) != n {
		return m
	}
	m.Initial = position[0]
	m.SteadyState = target - position[n-1]

	size := target - m.Initial
	if size == 0 {
		m.SettlingTime = times[0]
		return m
	}
	dir := math.Copysign(1, size)
	progress := func(v float64) float64 { return (v - m.Initial) / size }

	t10, t90 := -1.0, -1.0
	peak := 0.0
	for i, v := range position {
		p := progress(v)
		if t10 < 0 && p >= 0.1 {
			t10 = times[i]
		}
		if t90 < 0 && p >= 0.9 {
			t90 = times[i]
		}
		if over := (v - target) * dir; over > peak {
			peak = over
		}
	}
	if t10 >= 0 && t90 >= 0 {
		m.RiseTime = t90 - t10
	}
	m.Overshoot = peak / math.Abs(size)

	limit := band * math.Abs(size)
	settled := -1
	for i := n - 1; i >= 0; i-- {
		if math.Abs(position[i]-target) > limit {
			break
		}
		settled = i
	}
	if settled >= 0 {
		m.SettlingTime = times[settled]
	}
	return m
}
