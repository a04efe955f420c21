package control

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidConfig is wrapped by every configuration rejected at construction.
var ErrInvalidConfig = errors.New("control: invalid configuration")

// Direction is the drive direction of the H-bridge.
type Direction uint8

const (
	Neutral Direction = iota
	Forward
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "neutral"
	}
}

// Command is the actuator output of one cycle.
type Command struct {
	Duty      uint32
	Direction Direction
}

// Signed returns the duty with the direction as its sign.
func (c Command) Signed() int64 {
	switch c.Direction {
	case Forward:
		return int64(c.Duty)
	case Reverse:
		return -int64(c.Duty)
	default:
		return 0
	}
}

// ErrorMode selects how the position error is computed.
type ErrorMode uint8

const (
	// Linear subtracts the filtered values directly.
	Linear ErrorMode = iota
	// Circular takes the shortest signed distance around Config.Period.
	Circular
)

func (m ErrorMode) String() string {
	if m == Circular {
		return "circular"
	}
	return "linear"
}

// ParseErrorMode maps "linear" or "circular" to an ErrorMode.
func ParseErrorMode(s string) (ErrorMode, error) {
	switch s {
	case "", "linear":
		return Linear, nil
	case "circular":
		return Circular, nil
	}
	return Linear, errors.Wrapf(ErrInvalidConfig, "unknown error mode %q", s)
}

// Config holds the loop parameters.
type Config struct {
	Kp float64
	Ki float64

	// SampleInterval is the cycle time used for integration. The caller
	// enforces it.
	SampleInterval time.Duration

	SmoothingSetPoint float64
	SmoothingPosition float64

	// Deadzone is the smallest duty magnitude that is actually driven.
	Deadzone uint32
	// MaxDuty clamps the duty magnitude. Zero leaves it unbounded.
	MaxDuty uint32
	// IntegralLimit bounds |integral|. Zero leaves it unbounded.
	IntegralLimit float64

	ErrorMode ErrorMode
	// Period is the wrap length for Circular mode, in input units.
	Period float64
}

// DefaultConfig mirrors the bench servo: P=10, I=0, 100 ms cycle, both
// channels smoothed with 0.09, deadzone 5.
func DefaultConfig() Config {
	return Config{
		Kp:                10.0,
		Ki:                0.0,
		SampleInterval:    100 * time.Millisecond,
		SmoothingSetPoint: 0.09,
		SmoothingPosition: 0.09,
		Deadzone:          5,
		Period:            4096,
	}
}

// Validate rejects parameters that would put NaN or Inf into the loop.
func (c Config) Validate() error {
	if !finite(c.Kp) || c.Kp < 0 {
		return errors.Wrapf(ErrInvalidConfig, "p_gain %v", c.Kp)
	}
	if !finite(c.Ki) || c.Ki < 0 {
		return errors.Wrapf(ErrInvalidConfig, "i_gain %v", c.Ki)
	}
	if c.SampleInterval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "sample_interval %v", c.SampleInterval)
	}
	if err := checkSmoothing("smoothing_set_point", c.SmoothingSetPoint); err != nil {
		return err
	}
	if err := checkSmoothing("smoothing_position", c.SmoothingPosition); err != nil {
		return err
	}
	if !finite(c.IntegralLimit) || c.IntegralLimit < 0 {
		return errors.Wrapf(ErrInvalidConfig, "integral_limit %v", c.IntegralLimit)
	}
	switch c.ErrorMode {
	case Linear:
	case Circular:
		if !finite(c.Period) || c.Period <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "period %v", c.Period)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "error mode %d", c.ErrorMode)
	}
	return nil
}

// Reading is one channel sample. A reading that is not Fresh, or whose
// value is not finite, leaves the channel's filter where it was.
type Reading struct {
	Value float64
	Fresh bool
}

// Sample returns a fresh reading.
func Sample(v float64) Reading { return Reading{Value: v, Fresh: true} }

// Stale returns a reading that carries no new information.
func Stale() Reading { return Reading{} }

func (r Reading) usable() bool { return r.Fresh && finite(r.Value) }

// Snapshot describes the last cycle.
type Snapshot struct {
	SetPoint      float64
	Position      float64
	Error         float64
	Integral      float64
	Drive         float64
	Command       Command
	StaleSetPoint bool
	StalePosition bool
}

// Loop runs one filtered PI position loop.
type Loop struct {
	cfg      Config
	setPoint *LowPass
	position *LowPass
	pi       *PI
	last     Snapshot
}

// NewLoop validates cfg and returns a loop with zeroed state.
func NewLoop(cfg Config) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loop{
		cfg:      cfg,
		setPoint: &LowPass{alpha: cfg.SmoothingSetPoint},
		position: &LowPass{alpha: cfg.SmoothingPosition},
		pi:       NewPI(cfg.Kp, cfg.Ki, cfg.SampleInterval.Seconds(), cfg.IntegralLimit),
	}, nil
}

// Config returns the configuration the loop was built with.
func (l *Loop) Config() Config { return l.cfg }

// Step runs one cycle with fresh samples on both channels.
func (l *Loop) Step(rawSetPoint, rawPosition float64) Command {
	return l.StepHold(Sample(rawSetPoint), Sample(rawPosition))
}

// StepHold runs one cycle. A stale channel repeats its previous filtered
// value; the PI still steps on the resulting error.
func (l *Loop) StepHold(setPoint, position Reading) Command {
	snap := Snapshot{
		StaleSetPoint: !setPoint.usable(),
		StalePosition: !position.usable(),
	}

	if snap.StaleSetPoint {
		snap.SetPoint = l.setPoint.Hold()
	} else {
		snap.SetPoint = l.setPoint.Next(setPoint.Value)
	}
	if snap.StalePosition {
		snap.Position = l.position.Hold()
	} else if l.cfg.ErrorMode == Circular {
		snap.Position = l.position.NextCircular(position.Value, l.cfg.Period)
	} else {
		snap.Position = l.position.Next(position.Value)
	}

	snap.Error = l.positionError(snap.SetPoint, snap.Position)
	snap.Drive = l.pi.Next(snap.Error)
	snap.Integral = l.pi.Integral()
	snap.Command = l.shape(snap.Drive)

	l.last = snap
	return snap.Command
}

func (l *Loop) positionError(sp, pos float64) float64 {
	e := sp - pos
	if l.cfg.ErrorMode == Circular {
		e = wrapSigned(e, l.cfg.Period)
	}
	return e
}

func (l *Loop) shape(drive float64) Command {
	mag := math.Round(math.Abs(drive))
	if !finite(mag) || mag > math.MaxUint32 {
		mag = math.MaxUint32
	}
	duty := uint32(mag)
	if duty == 0 || duty < l.cfg.Deadzone {
		return Command{Direction: Neutral}
	}
	if l.cfg.MaxDuty > 0 && duty > l.cfg.MaxDuty {
		duty = l.cfg.MaxDuty
	}
	dir := Forward
	if drive < 0 {
		dir = Reverse
	}
	return Command{Duty: duty, Direction: dir}
}

// Last returns the snapshot of the most recent cycle.
func (l *Loop) Last() Snapshot { return l.last }

// SetPoint exposes the set-point filter.
func (l *Loop) SetPoint() *LowPass { return l.setPoint }

// Position exposes the position filter.
func (l *Loop) Position() *LowPass { return l.position }

// Gains exposes the PI for live tuning.
func (l *Loop) Gains() *PI { return l.pi }

// Reset zeroes both filters and the integral.
func (l *Loop) Reset() {
	l.setPoint.Reset()
	l.position.Reset()
	l.pi.Reset()
	l.last = Snapshot{}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
