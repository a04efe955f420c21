//go:build tinygo && rp2040

// Command servoctl-pico is the bench servo firmware for a Raspberry Pi
// Pico: AS5600 on I2C0, the set-point potentiometer on ADC0 and the
// H-bridge on PWM1 (GP2 forward, GP3 reverse).
package main

import (
	"context"
	"fmt"
	"machine"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/driver"
	"github.com/san-kum/servoctl/internal/hal"
)

const (
	pwmPeriod  = 500e3 // ns, 2 kHz
	forwardPin = machine.GPIO2
	reversePin = machine.GPIO3
)

var (
	uart = machine.DefaultUART
	i2c  = machine.I2C0
	pwm  = machine.PWM1
)

// pwmGroup is the part of a TinyGo PWM slice used here.
type pwmGroup interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// channel is one PWM output of a slice.
type channel struct {
	group   pwmGroup
	ch      uint8
	duty    uint32
	enabled bool
}

func (c *channel) MaxDuty() uint32 { return c.group.Top() }

func (c *channel) SetDuty(duty uint32) error {
	if duty > c.MaxDuty() {
		duty = c.MaxDuty()
	}
	c.duty = duty
	if c.enabled {
		c.group.Set(c.ch, duty)
	}
	return nil
}

func (c *channel) Enable(on bool) error {
	c.enabled = on
	if on {
		c.group.Set(c.ch, c.duty)
	} else {
		c.group.Set(c.ch, 0)
	}
	return nil
}

// pot reads the potentiometer and drops the RP2040's 16-bit scaling back
// to the 12 bits the converter actually has.
type pot struct {
	adc machine.ADC
}

func (p pot) ReadAnalog() (uint16, error) {
	return p.adc.Get() >> 4, nil
}

// lines prints each cycle the way the bench display expects.
type lines struct{}

func (lines) OnCycle(s driver.Sample) {
	fmt.Printf("Pot = %d\r\nRotor = %d\r\nError = %d\r\n", int(s.SetPoint), int(s.Position), int(s.Drive))
}

func halt(msg string, err error) {
	for {
		println(msg, err.Error())
		time.Sleep(time.Second)
	}
}

func main() {
	time.Sleep(time.Second)

	if err := i2c.Configure(machine.I2CConfig{Frequency: 100 * machine.KHz}); err != nil {
		halt("i2c:", err)
	}
	sensor := as5600.New(i2c)

	machine.InitADC()
	adc := machine.ADC{Pin: machine.ADC0}
	adc.Configure(machine.ADCConfig{})

	if err := pwm.Configure(machine.PWMConfig{Period: pwmPeriod}); err != nil {
		halt("pwm:", err)
	}
	fwdCh, err := pwm.Channel(forwardPin)
	if err != nil {
		halt("pwm forward:", err)
	}
	revCh, err := pwm.Channel(reversePin)
	if err != nil {
		halt("pwm reverse:", err)
	}
	bridge, err := hal.NewHBridge(&channel{group: pwm, ch: fwdCh}, &channel{group: pwm, ch: revCh})
	if err != nil {
		halt("bridge:", err)
	}

	cfg := control.DefaultConfig()
	cfg.MaxDuty = bridge.MaxDuty()
	loop, err := control.NewLoop(cfg)
	if err != nil {
		halt("loop:", err)
	}

	log := zerolog.New(uart).Level(zerolog.WarnLevel)
	drv, err := driver.New(sensor, pot{adc: adc}, bridge, loop,
		driver.WithLogger(log),
		driver.WithObserver(lines{}),
	)
	if err != nil {
		halt("driver:", err)
	}

	// runs until reset; only a bridge fault returns
	if err := drv.Run(context.Background(), 0); err != nil {
		halt("loop stopped:", err)
	}
}
