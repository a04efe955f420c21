// Package rpio drives the H-bridge from the Raspberry Pi hardware PWM
// block through go-rpio's /dev/gpiomem mapping.
package rpio

import (
	"github.com/pkg/errors"
	gorpio "github.com/stianeikeland/go-rpio/v4"
)

// Open maps the GPIO registers. Pair with Close.
func Open() error {
	if err := gorpio.Open(); err != nil {
		return errors.Wrap(err, "open gpiomem")
	}
	return nil
}

// Close unmaps the GPIO registers.
func Close() error {
	return gorpio.Close()
}

// pin is the subset of gorpio.Pin used here.
type pin interface {
	Mode(mode gorpio.Mode)
	Freq(freq int)
	DutyCycle(dutyLen, cycleLen uint32)
	Low()
}

// PWM is one hardware PWM channel. Only GPIO 12, 13, 18 and 19 have one.
type PWM struct {
	pin     pin
	freq    int
	cycle   uint32
	duty    uint32
	enabled bool
}

// NewPWM returns channel gpio with the given PWM clock frequency and cycle
// length; the carrier is freq/cycle. The pin starts as a low output.
func NewPWM(gpio uint8, freq int, cycle uint32) (*PWM, error) {
	switch gpio {
	case 12, 13, 18, 19:
	default:
		return nil, errors.Errorf("gpio %d has no hardware pwm", gpio)
	}
	return newPWM(gorpio.Pin(gpio), freq, cycle)
}

func newPWM(p pin, freq int, cycle uint32) (*PWM, error) {
	if freq <= 0 || cycle == 0 {
		return nil, errors.Errorf("invalid pwm clock %d/%d", freq, cycle)
	}
	out := &PWM{pin: p, freq: freq, cycle: cycle}
	out.park()
	return out, nil
}

// MaxDuty is the cycle length.
func (p *PWM) MaxDuty() uint32 { return p.cycle }

// SetDuty updates the duty length.
func (p *PWM) SetDuty(duty uint32) error {
	if duty > p.cycle {
		duty = p.cycle
	}
	p.duty = duty
	if p.enabled {
		p.pin.DutyCycle(p.duty, p.cycle)
	}
	return nil
}

// Enable switches the pin between PWM and a low output.
func (p *PWM) Enable(on bool) error {
	if on == p.enabled {
		return nil
	}
	p.enabled = on
	if !on {
		p.park()
		return nil
	}
	p.pin.Mode(gorpio.Pwm)
	p.pin.Freq(p.freq)
	p.pin.DutyCycle(p.duty, p.cycle)
	return nil
}

func (p *PWM) park() {
	p.pin.Mode(gorpio.Output)
	p.pin.Low()
}
