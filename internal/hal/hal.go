// Package hal defines the platform capabilities the position loop consumes
// and the H-bridge actuator built on top of them.
//
// Each capability is a handle owned by exactly one component. Nothing here
// is registered globally; handles are created at start-up and passed to
// the component that needs them.
package hal

import (
	"github.com/san-kum/servoctl/internal/control"
)

// AnalogIn samples one analog channel.
type AnalogIn interface {
	// ReadAnalog returns an unsigned sample in the platform's resolution.
	ReadAnalog() (uint16, error)
}

// PWMOutput is one duty-cycle channel with an enable.
type PWMOutput interface {
	// SetDuty sets the duty in [0, MaxDuty()].
	SetDuty(duty uint32) error
	// Enable connects or disconnects the channel from its pin.
	Enable(on bool) error
	// MaxDuty is the duty value for 100%.
	MaxDuty() uint32
}

// Actuator accepts one command per cycle.
type Actuator interface {
	Apply(cmd control.Command) error
}

// AnalogFunc adapts a plain function to AnalogIn.
type AnalogFunc func() (uint16, error)

func (f AnalogFunc) ReadAnalog() (uint16, error) { return f() }
