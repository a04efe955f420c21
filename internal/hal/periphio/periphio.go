// Package periphio binds the hal capabilities to Linux hardware through
// periph.io: the I2C bus for the encoder, an ADS1115 for the set-point
// potentiometer and GPIO PWM for the H-bridge inputs.
package periphio

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// AnalogMax is the top of the range ReadAnalog reports, matching a 12-bit
// converter so the set-point shares units with the encoder.
const AnalogMax = 4095

// Init loads the periph host drivers. Call once before opening anything.
func Init() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "periph host init")
	}
	return nil
}

// OpenBus opens an I2C bus by name ("" for the first one) and sets its
// clock when speed is non-zero.
func OpenBus(name string, speed physic.Frequency) (i2c.BusCloser, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %q", name)
	}
	if speed > 0 {
		if err := bus.SetSpeed(speed); err != nil {
			bus.Close()
			return nil, errors.Wrapf(err, "set i2c speed %s", speed)
		}
	}
	return bus, nil
}

// Analog reads a periph analog pin and rescales it to [0, AnalogMax].
type Analog struct {
	pin  analog.PinADC
	full physic.ElectricPotential
}

// NewAnalog wraps pin. full is the voltage that maps to AnalogMax.
func NewAnalog(pin analog.PinADC, full physic.ElectricPotential) (*Analog, error) {
	if full <= 0 {
		return nil, errors.Errorf("full scale must be positive, got %s", full)
	}
	return &Analog{pin: pin, full: full}, nil
}

// NewADS1115 opens an ADS1115 on bus and returns the given single-ended
// channel. full is the potentiometer supply voltage.
func NewADS1115(bus i2c.Bus, ch ads1x15.Channel, full physic.ElectricPotential) (*Analog, error) {
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, errors.Wrap(err, "open ads1115")
	}
	pin, err := dev.PinForChannel(ch, full, 128*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		return nil, errors.Wrapf(err, "ads1115 channel %d", ch)
	}
	return NewAnalog(pin, full)
}

// ReadAnalog samples the pin.
func (a *Analog) ReadAnalog() (uint16, error) {
	s, err := a.pin.Read()
	if err != nil {
		return 0, err
	}
	return scale(s.V, a.full), nil
}

// Halt stops the underlying pin.
func (a *Analog) Halt() error {
	return a.pin.Halt()
}

func scale(v, full physic.ElectricPotential) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= full {
		return AnalogMax
	}
	return uint16(float64(v) / float64(full) * AnalogMax)
}

// PWM drives one H-bridge input with GPIO PWM.
type PWM struct {
	pin     gpio.PinOut
	freq    physic.Frequency
	steps   uint32
	duty    gpio.Duty
	enabled bool
}

// NewPWM wraps pin at the given carrier frequency. steps is the duty that
// maps to full on; zero uses periph's native gpio.DutyMax. The pin is
// driven low.
func NewPWM(pin gpio.PinOut, freq physic.Frequency, steps uint32) (*PWM, error) {
	if pin == nil {
		return nil, errors.New("nil pin")
	}
	if steps == 0 {
		steps = uint32(gpio.DutyMax)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "pin %s", pin)
	}
	return &PWM{pin: pin, freq: freq, steps: steps}, nil
}

// OpenPWM looks a pin up by name, e.g. "GPIO12".
func OpenPWM(name string, freq physic.Frequency, steps uint32) (*PWM, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no gpio named %q", name)
	}
	return NewPWM(p, freq, steps)
}

func (p *PWM) MaxDuty() uint32 { return p.steps }

// SetDuty updates the duty, taking effect immediately when enabled.
func (p *PWM) SetDuty(duty uint32) error {
	if duty > p.steps {
		duty = p.steps
	}
	p.duty = gpio.Duty(uint64(duty) * uint64(gpio.DutyMax) / uint64(p.steps))
	if !p.enabled {
		return nil
	}
	return p.pin.PWM(p.duty, p.freq)
}

// Enable starts the carrier or parks the pin low.
func (p *PWM) Enable(on bool) error {
	p.enabled = on
	if on {
		return p.pin.PWM(p.duty, p.freq)
	}
	return p.pin.Out(gpio.Low)
}
