// Package as5600 reads the AS5600 12-bit magnetic rotary position sensor
// over an I2C bus.
//
// The sensor owns its bus for as long as it lives. Call [Sensor.Release] to
// hand the bus back to another driver sharing the same wires.
package as5600

import (
	"github.com/pkg/errors"
)

const (
	// DefaultAddress is the fixed 7-bit I2C address of the AS5600.
	DefaultAddress uint16 = 0x36

	// RegStatus holds the magnet detection flags.
	RegStatus byte = 0x0B
	// RegRawAngle is the unscaled, unfiltered angle (2 bytes).
	RegRawAngle byte = 0x0C
	// RegAngle is the scaled angle output (2 bytes). Default read target.
	RegAngle byte = 0x0E

	// Resolution is the number of distinct angle codes per turn.
	Resolution = 4096
	// MaxRaw is the largest value a 12-bit angle register can hold.
	MaxRaw RawAngle = Resolution - 1

	statusMagnetHigh = 1 << 3
	statusMagnetLow  = 1 << 4
	statusDetected   = 1 << 5
)

// ErrReleased is returned by reads on a sensor whose bus has been released.
var ErrReleased = errors.New("as5600: bus released")

// Bus performs a combined write-then-read transaction with a device.
//
// periph.io i2c.Bus, tinygo drivers.I2C and machine.I2C all satisfy it.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// RawAngle is a 12-bit angle code in [0, 4095].
type RawAngle uint16

// Degrees converts the code to degrees in [0, 360).
func (r RawAngle) Degrees() float64 {
	return Degrees(r)
}

// Decode joins the two register bytes and drops the unused high nibble.
func Decode(hi, lo byte) RawAngle {
	return RawAngle((uint16(hi)<<8 | uint16(lo)) & 0x0FFF)
}

// Degrees maps a raw code linearly onto [0, 360). There is no unwrapping at
// the 0/360 seam.
func Degrees(raw RawAngle) float64 {
	return float64(raw&MaxRaw) * 360.0 / Resolution
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithAddress overrides the device address.
func WithAddress(addr uint16) Option {
	return func(s *Sensor) { s.addr = addr }
}

// WithRegister selects the register read by ReadRawAngle, e.g. RegRawAngle.
func WithRegister(reg byte) Option {
	return func(s *Sensor) { s.reg = reg }
}

// Sensor is an AS5600 attached to a bus. Not safe for concurrent use.
type Sensor struct {
	bus  Bus
	addr uint16
	reg  byte
	buf  [2]byte
}

// New takes ownership of bus and returns a sensor at the default address
// reading the ANGLE register.
func New(bus Bus, opts ...Option) *Sensor {
	s := &Sensor{
		bus:  bus,
		addr: DefaultAddress,
		reg:  RegAngle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address returns the configured device address.
func (s *Sensor) Address() uint16 { return s.addr }

// Register returns the configured angle register.
func (s *Sensor) Register() byte { return s.reg }

// ReadRawAngle reads the two angle bytes and returns the 12-bit code.
// Transport errors are returned unchanged and never retried.
func (s *Sensor) ReadRawAngle() (RawAngle, error) {
	if s.bus == nil {
		return 0, ErrReleased
	}
	if err := s.bus.Tx(s.addr, []byte{s.reg}, s.buf[:]); err != nil {
		return 0, err
	}
	return Decode(s.buf[0], s.buf[1]), nil
}

// ReadDegrees reads the angle and converts it to degrees.
func (s *Sensor) ReadDegrees() (float64, error) {
	raw, err := s.ReadRawAngle()
	if err != nil {
		return 0, err
	}
	return Degrees(raw), nil
}

// Status reports the magnet detection flags.
func (s *Sensor) Status() (MagnetStatus, error) {
	if s.bus == nil {
		return MagnetStatus{}, ErrReleased
	}
	var b [1]byte
	if err := s.bus.Tx(s.addr, []byte{RegStatus}, b[:]); err != nil {
		return MagnetStatus{}, err
	}
	return MagnetStatus{
		Detected:  b[0]&statusDetected != 0,
		TooWeak:   b[0]&statusMagnetLow != 0,
		TooStrong: b[0]&statusMagnetHigh != 0,
	}, nil
}

// Release gives the bus back to the caller. The sensor must not be used
// afterwards.
func (s *Sensor) Release() Bus {
	bus := s.bus
	s.bus = nil
	return bus
}

// MagnetStatus mirrors the STATUS register.
type MagnetStatus struct {
	Detected  bool
	TooWeak   bool
	TooStrong bool
}

// OK is true when a magnet is present with usable field strength.
func (m MagnetStatus) OK() bool {
	return m.Detected && !m.TooWeak && !m.TooStrong
}
