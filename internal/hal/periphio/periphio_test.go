package periphio

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/hal"
)

func TestSensorOnPeriphBus(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x36, W: []byte{0x0E}, R: []byte{0x08, 0x00}},
			{Addr: 0x36, W: []byte{0x0E}, R: []byte{0x0F, 0xFF}},
		},
	}
	defer bus.Close()

	enc := as5600.New(bus)
	deg, err := enc.ReadDegrees()
	if err != nil {
		t.Fatal(err)
	}
	if deg != 180.0 {
		t.Errorf("expected 180, got %f", deg)
	}
	raw, err := enc.ReadRawAngle()
	if err != nil {
		t.Fatal(err)
	}
	if raw != 4095 {
		t.Errorf("expected 4095, got %d", raw)
	}
}

func TestPWMEnableDisable(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO12", Num: 12}
	p, err := NewPWM(pin, 2*physic.KiloHertz, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := p.SetDuty(1000); err != nil {
		t.Fatal(err)
	}
	if pin.D != 0 {
		t.Error("duty should not reach the pin while disabled")
	}

	if err := p.Enable(true); err != nil {
		t.Fatal(err)
	}
	if pin.D != gpio.Duty(1000) || pin.F != 2*physic.KiloHertz {
		t.Errorf("expected pwm 1000 @ 2kHz, got %d @ %s", pin.D, pin.F)
	}

	if err := p.Enable(false); err != nil {
		t.Fatal(err)
	}
	if pin.L != gpio.Low {
		t.Error("disabled pin should be low")
	}
}

func TestPWMClampsDuty(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO13", Num: 13}
	p, err := NewPWM(pin, physic.KiloHertz, 0)
	if err != nil {
		t.Fatal(err)
	}
	p.Enable(true)
	p.SetDuty(^uint32(0))
	if pin.D != gpio.DutyMax {
		t.Errorf("expected DutyMax, got %d", pin.D)
	}
}

func TestPWMSteps(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO12", Num: 12}
	p, err := NewPWM(pin, 2*physic.KiloHertz, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxDuty() != 1000 {
		t.Fatalf("expected 1000 steps, got %d", p.MaxDuty())
	}
	p.Enable(true)
	p.SetDuty(500)
	if pin.D != gpio.DutyHalf {
		t.Errorf("expected half duty, got %d", pin.D)
	}
	p.SetDuty(5000)
	if pin.D != gpio.DutyMax {
		t.Errorf("expected full duty, got %d", pin.D)
	}
}

func TestHBridgeOnGPIO(t *testing.T) {
	in1 := &gpiotest.Pin{N: "GPIO12", Num: 12}
	in2 := &gpiotest.Pin{N: "GPIO13", Num: 13}
	fwd, _ := NewPWM(in1, physic.KiloHertz, 0)
	rev, _ := NewPWM(in2, physic.KiloHertz, 0)

	h, err := hal.NewHBridge(fwd, rev)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Apply(control.Command{Duty: 500, Direction: control.Reverse}); err != nil {
		t.Fatal(err)
	}
	if in2.D != 500 {
		t.Errorf("expected reverse duty 500, got %d", in2.D)
	}
	if in1.L != gpio.Low {
		t.Error("forward input should be parked low")
	}
}

func TestScale(t *testing.T) {
	full := 3300 * physic.MilliVolt
	tests := []struct {
		v    physic.ElectricPotential
		want uint16
	}{
		{-10 * physic.MilliVolt, 0},
		{0, 0},
		{1650 * physic.MilliVolt, 2047},
		{full, AnalogMax},
		{5 * physic.Volt, AnalogMax},
	}
	for _, tt := range tests {
		if got := scale(tt.v, full); got != tt.want {
			t.Errorf("scale(%s) = %d, want %d", tt.v, got, tt.want)
		}
	}
}
