// Package driver runs the position loop against real or simulated
// peripherals: one sensor read, one set-point read, one loop step and one
// actuator write per cycle, paced by a clock.
//
// At most one cycle is ever in flight. Cycle must not be called
// concurrently with itself or with Run.
package driver

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/hal"
)

// DefaultLostAfter is the number of consecutive failed sensor reads after
// which the sensor is considered lost.
const DefaultLostAfter = 10

var (
	// ErrSensorLost is returned by Cycle while the sensor has failed
	// LostAfter times in a row. The actuator is held neutral.
	ErrSensorLost = errors.New("driver: position sensor lost")

	errNilDependency = errors.New("driver: nil dependency")
)

// PositionReader is the encoder as the driver sees it.
type PositionReader interface {
	ReadRawAngle() (as5600.RawAngle, error)
}

// Sample is the record of one cycle.
type Sample struct {
	Cycle int
	Time  time.Time

	RawSetPoint uint16
	RawPosition as5600.RawAngle

	SensorErr error
	AnalogErr error
	// Lost is set while the sensor is considered lost; the loop is not
	// stepped and Command is neutral.
	Lost bool

	control.Snapshot
}

// Observer is notified after every cycle, once the command is applied.
type Observer interface {
	OnCycle(s Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Sample)

func (f ObserverFunc) OnCycle(s Sample) { f(s) }

// Option configures a Driver.
type Option func(*Driver)

// WithClock replaces the wall clock, e.g. with clock.NewMock in tests.
func WithClock(c clock.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithLostAfter sets how many consecutive read failures mean the sensor is
// lost. Zero never gives up.
func WithLostAfter(n int) Option {
	return func(d *Driver) { d.lostAfter = n }
}

// WithObserver registers observers, called in order.
func WithObserver(obs ...Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, obs...) }
}

// Driver owns the sensor, the set-point input and the actuator.
type Driver struct {
	sensor PositionReader
	analog hal.AnalogIn
	act    hal.Actuator
	loop   *control.Loop

	clock     clock.Clock
	log       zerolog.Logger
	lostAfter int
	observers []Observer

	cycle    int
	failures int
}

// New wires a driver. The loop's SampleInterval sets the pace of Run.
func New(sensor PositionReader, analog hal.AnalogIn, act hal.Actuator, loop *control.Loop, opts ...Option) (*Driver, error) {
	if sensor == nil || analog == nil || act == nil || loop == nil {
		return nil, errNilDependency
	}
	d := &Driver{
		sensor:    sensor,
		analog:    analog,
		act:       act,
		loop:      loop,
		clock:     clock.New(),
		log:       zerolog.Nop(),
		lostAfter: DefaultLostAfter,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Loop returns the loop the driver steps.
func (d *Driver) Loop() *control.Loop { return d.loop }

// Failures is the current run of consecutive failed sensor reads.
func (d *Driver) Failures() int { return d.failures }

// Cycle runs one read, filter, PI, actuate sequence. A failed sensor read
// is logged and the loop is stepped with a stale position. The returned
// error is ErrSensorLost or an actuator failure.
func (d *Driver) Cycle(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}

	d.cycle++
	s := Sample{Cycle: d.cycle, Time: d.clock.Now()}

	position := control.Stale()
	raw, err := d.sensor.ReadRawAngle()
	if err != nil {
		d.failures++
		s.SensorErr = err
		d.log.Warn().Err(err).Int("consecutive", d.failures).Msg("I2C read failed")
	} else {
		if d.failures > 0 {
			d.log.Info().Int("after", d.failures).Msg("sensor recovered")
		}
		d.failures = 0
		s.RawPosition = raw
		position = control.Sample(float64(raw))
	}

	setPoint := control.Stale()
	sp, err := d.analog.ReadAnalog()
	if err != nil {
		s.AnalogErr = err
		d.log.Warn().Err(err).Msg("set-point read failed")
	} else {
		s.RawSetPoint = sp
		setPoint = control.Sample(float64(sp))
	}

	var cycleErr error
	if d.lostAfter > 0 && d.failures >= d.lostAfter {
		s.Lost = true
		s.Snapshot = d.loop.Last()
		s.Command = control.Command{Direction: control.Neutral}
		if d.failures == d.lostAfter {
			d.log.Error().Int("failures", d.failures).Msg("sensor lost, holding neutral")
		}
		cycleErr = ErrSensorLost
	} else {
		d.loop.StepHold(setPoint, position)
		s.Snapshot = d.loop.Last()
	}

	if err := d.act.Apply(s.Command); err != nil {
		return s, errors.Wrap(err, "apply command")
	}

	d.log.Debug().
		Int("cycle", s.Cycle).
		Float64("pot", s.SetPoint).
		Float64("rotor", s.Position).
		Float64("drive", s.Drive).
		Uint32("duty", s.Command.Duty).
		Stringer("dir", s.Command.Direction).
		Msg("cycle")

	for _, o := range d.observers {
		o.OnCycle(s)
	}
	return s, cycleErr
}

// Run executes cycles every SampleInterval until ctx is done or, when
// cycles > 0, that many cycles have run. The first cycle starts
// immediately. A lost sensor does not stop the run; an actuator error
// does. The actuator is left neutral on return.
func (d *Driver) Run(ctx context.Context, cycles int) (err error) {
	ticker := d.clock.Ticker(d.loop.Config().SampleInterval)
	defer ticker.Stop()
	defer func() {
		if stopErr := d.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	for n := 0; cycles <= 0 || n < cycles; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		if _, err := d.Cycle(ctx); err != nil && !errors.Is(err, ErrSensorLost) {
			return err
		}
	}
	return nil
}

// Stop commands neutral.
func (d *Driver) Stop() error {
	if err := d.act.Apply(control.Command{Direction: control.Neutral}); err != nil {
		return errors.Wrap(err, "stop actuator")
	}
	return nil
}
