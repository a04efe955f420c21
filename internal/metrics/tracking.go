package metrics

import (
	"math"

	"github.com/san-kum/servoctl/internal/driver"
)

// Tracking is the fraction of cycles whose filtered error is within
// tolerance.
type Tracking struct {
	name      string
	tolerance float64
	within    int
	samples   int
}

func NewTracking(tolerance float64) *Tracking {
	return &Tracking{
		name:      "tracking",
		tolerance: tolerance,
	}
}

func (t *Tracking) Name() string {
	return t.name
}

func (t *Tracking) Observe(s driver.Sample) {
	t.samples++
	if math.Abs(s.Error) <= t.tolerance {
		t.within++
	}
}

func (t *Tracking) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return float64(t.within) / float64(t.samples)
}

func (t *Tracking) Reset() {
	t.within = 0
	t.samples = 0
}

// IAE is the integral of |error| over the run.
type IAE struct {
	name string
	dt   float64
	sum  float64
}

func NewIAE(dt float64) *IAE {
	return &IAE{name: "iae", dt: dt}
}

func (m *IAE) Name() string { return m.name }

func (m *IAE) Observe(s driver.Sample) {
	m.sum += math.Abs(s.Error) * m.dt
}

func (m *IAE) Value() float64 { return m.sum }

func (m *IAE) Reset() { m.sum = 0 }

// Dropouts counts failed sensor reads.
type Dropouts struct {
	name  string
	count int
}

func NewDropouts() *Dropouts {
	return &Dropouts{name: "dropouts"}
}

func (d *Dropouts) Name() string { return d.name }

func (d *Dropouts) Observe(s driver.Sample) {
	if s.SensorErr != nil {
		d.count++
	}
}

func (d *Dropouts) Value() float64 { return float64(d.count) }

func (d *Dropouts) Reset() { d.count = 0 }
