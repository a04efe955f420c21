// Package experiment runs the position loop against the simulated rig for a
// fixed number of cycles and scores the run.
package experiment

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/driver"
	"github.com/san-kum/servoctl/internal/hal"
	"github.com/san-kum/servoctl/internal/metrics"
	"github.com/san-kum/servoctl/internal/sim"
	"github.com/san-kum/servoctl/internal/telemetry"
)

type Config struct {
	Loop   control.Config
	Rig    sim.RigConfig
	Cycles int

	// LostAfter is passed to the driver; zero keeps its default.
	LostAfter int
	// FailEvery and FailOn schedule simulated I2C failures.
	FailEvery int
	FailOn    []int
	// Script moves the set-point knob during the run.
	Script []sim.Step
	// Tolerance is the tracking band in counts.
	Tolerance float64
	// Keep bounds the recorded samples; zero keeps all.
	Keep int
}

// DefaultConfig is 30 s of the bench loop on the default rig.
func DefaultConfig() Config {
	return Config{
		Loop:      control.DefaultConfig(),
		Rig:       sim.DefaultRigConfig(),
		Cycles:    300,
		Tolerance: 10,
	}
}

type Result struct {
	Records []telemetry.Record
	Metrics map[string]float64
	// Lost counts cycles run while the sensor was considered lost.
	Lost int
}

type Experiment struct {
	cfg      Config
	rig      *sim.Rig
	bridge   *hal.HBridge
	drv      *driver.Driver
	recorder *telemetry.Recorder
	metrics  *metrics.Set
	lost     int
	// plantErr is the first failed plant integration.
	plantErr error
}

// New builds the rig and driver. opts are appended to the driver options,
// so extra observers and a logger can be attached.
func New(cfg Config, opts ...driver.Option) (*Experiment, error) {
	if cfg.Cycles < 0 {
		return nil, errors.Errorf("negative cycle count %d", cfg.Cycles)
	}
	loop, err := control.NewLoop(cfg.Loop)
	if err != nil {
		return nil, err
	}
	rig, err := sim.NewRig(cfg.Rig)
	if err != nil {
		return nil, errors.Wrap(err, "build rig")
	}
	rig.Bus.FailEvery(cfg.FailEvery)
	rig.Bus.FailOn(cfg.FailOn...)
	rig.Pot.Script(cfg.Script...)

	bridge, err := hal.NewHBridge(rig.Bridge.Fwd, rig.Bridge.Rev)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:      cfg,
		rig:      rig,
		bridge:   bridge,
		recorder: telemetry.NewRecorder(cfg.Keep),
		metrics:  metrics.Standard(cfg.Loop.SampleInterval.Seconds(), cfg.Tolerance),
	}

	// samples are stamped in simulated time
	mock := clock.NewMock()
	interval := cfg.Loop.SampleInterval
	base := []driver.Option{
		driver.WithClock(mock),
		driver.WithObserver(driver.ObserverFunc(func(driver.Sample) {
			if err := rig.Advance(interval.Seconds()); err != nil && e.plantErr == nil {
				e.plantErr = errors.Wrap(err, "advance plant")
			}
			mock.Add(interval)
		}), e.recorder, e.metrics),
	}
	if cfg.LostAfter > 0 {
		base = append(base, driver.WithLostAfter(cfg.LostAfter))
	}

	e.drv, err = driver.New(rig.Sensor(), rig.Pot, bridge, loop, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Experiment) Config() Config { return e.cfg }
func (e *Experiment) Rig() *sim.Rig { return e.rig }
func (e *Experiment) Driver() *driver.Driver { return e.drv }
func (e *Experiment) Recorder() *telemetry.Recorder { return e.recorder }

// Step runs one cycle in simulated time.
func (e *Experiment) Step(ctx context.Context) (driver.Sample, error) {
	if e.plantErr != nil {
		return driver.Sample{}, e.plantErr
	}
	s, err := e.drv.Cycle(ctx)
	if e.plantErr != nil {
		return s, e.plantErr
	}
	if errors.Is(err, driver.ErrSensorLost) {
		e.lost++
		return s, nil
	}
	return s, err
}

// Run steps Cycles times without wall-clock pacing and leaves the bridge
// neutral.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	for i := 0; i < e.cfg.Cycles; i++ {
		if _, err := e.Step(ctx); err != nil {
			if stopErr := e.drv.Stop(); stopErr != nil {
				return nil, errors.Wrapf(err, "stop after failure: %v", stopErr)
			}
			return nil, err
		}
	}
	if err := e.drv.Stop(); err != nil {
		return nil, err
	}
	return e.Result(), nil
}

// Result is what has been recorded so far.
func (e *Experiment) Result() *Result {
	return &Result{
		Records: e.recorder.Records(),
		Metrics: e.metrics.Values(),
		Lost:    e.lost,
	}
}
