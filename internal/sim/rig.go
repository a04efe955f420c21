// Package sim is a bench rig in software: a DC motor plant, an AS5600 on a
// simulated I2C bus, a set-point potentiometer and the H-bridge power
// stage. It lets the position loop run end to end without hardware.
package sim

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/dynamo"
	"github.com/san-kum/servoctl/internal/integrators"
)

// RigConfig describes a simulated bench.
type RigConfig struct {
	Motor      Motor
	Supply     float64
	MaxDuty    uint32
	Integrator string
	// SubSteps is the number of integration steps per Advance.
	SubSteps int

	InitialAngle float64
	SetPoint     float64
	SensorNoise  float64
	PotNoise     float64
	Seed         int64
}

// DefaultRigConfig is a 12 V gear motor with a 10-bit bridge, noiseless.
func DefaultRigConfig() RigConfig {
	return RigConfig{
		Motor:        *NewMotor(),
		Supply:       12,
		MaxDuty:      1000,
		Integrator:   "rk4",
		SubSteps:     20,
		InitialAngle: 1000,
		SetPoint:     2048,
		Seed:         1,
	}
}

// Rig owns the plant state and the simulated peripherals around it.
type Rig struct {
	cfg    RigConfig
	motor  *Motor
	integ  dynamo.Integrator
	Bus    *Bus
	Pot    *Pot
	Bridge *Bridge

	mu    sync.Mutex
	x     dynamo.State
	t     float64
	steps int
}

func NewRig(cfg RigConfig) (*Rig, error) {
	motor := cfg.Motor
	if err := motor.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.Supply > 0) {
		return nil, errors.Wrapf(dynamo.ErrParameterBounds, "supply %v", cfg.Supply)
	}
	if cfg.MaxDuty == 0 {
		return nil, errors.Wrap(dynamo.ErrParameterBounds, "max duty is zero")
	}
	if cfg.SubSteps < 1 {
		cfg.SubSteps = 1
	}
	integ, err := integrators.Get(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	r := &Rig{
		cfg:    cfg,
		motor:  &motor,
		integ:  integ,
		Pot:    NewPot(cfg.SetPoint, cfg.Seed+1),
		Bridge: NewBridge(cfg.MaxDuty),
		x:      dynamo.State{cfg.InitialAngle, 0},
	}
	r.Bus = NewBus(r.Angle, cfg.Seed)
	r.Bus.SetNoise(cfg.SensorNoise)
	r.Pot.SetNoise(cfg.PotNoise)
	return r, nil
}

// Config returns the configuration the rig was built with.
func (r *Rig) Config() RigConfig { return r.cfg }

// Advance integrates the plant for dt seconds under the bridge output
// present now.
func (r *Rig) Advance(dt float64) error {
	if dt <= 0 {
		return nil
	}
	u := dynamo.Control{r.Bridge.Signed() * r.cfg.Supply}

	r.mu.Lock()
	defer r.mu.Unlock()

	h := dt / float64(r.cfg.SubSteps)
	for i := 0; i < r.cfg.SubSteps; i++ {
		next := r.integ.Step(r.motor, r.x, u, r.t, h)
		if !next.IsValid() {
			return &dynamo.StepError{Step: r.steps, Time: r.t, State: r.x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}
		r.x = next
		r.t += h
		r.steps++
	}
	return nil
}

// Angle is the unwrapped shaft angle in counts.
func (r *Rig) Angle() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.x[0]
}

// Wrapped is the shaft angle as the encoder sees it, in [0, 4096).
func (r *Rig) Wrapped() float64 {
	a := math.Mod(r.Angle(), as5600.Resolution)
	if a < 0 {
		a += as5600.Resolution
	}
	return a
}

// Speed is the shaft speed in counts/s.
func (r *Rig) Speed() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.x[1]
}

// Time is the simulated time in seconds.
func (r *Rig) Time() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t
}

// Sensor opens an AS5600 on the rig's bus.
func (r *Rig) Sensor(opts ...as5600.Option) *as5600.Sensor {
	return as5600.New(r.Bus, opts...)
}
