package rpio

import (
	"testing"

	gorpio "github.com/stianeikeland/go-rpio/v4"
)

type fakePin struct {
	mode  gorpio.Mode
	freq  int
	duty  uint32
	cycle uint32
	low   int
}

func (f *fakePin) Mode(m gorpio.Mode) { f.mode = m }
func (f *fakePin) Freq(hz int)        { f.freq = hz }
func (f *fakePin) DutyCycle(d, c uint32) {
	f.duty, f.cycle = d, c
}
func (f *fakePin) Low() { f.low++ }

func TestPWMStartsParked(t *testing.T) {
	fp := &fakePin{}
	if _, err := newPWM(fp, 64000, 32); err != nil {
		t.Fatal(err)
	}
	if fp.mode != gorpio.Output || fp.low != 1 {
		t.Errorf("expected low output, got mode %v low %d", fp.mode, fp.low)
	}
}

func TestPWMEnable(t *testing.T) {
	fp := &fakePin{}
	p, err := newPWM(fp, 64000, 32)
	if err != nil {
		t.Fatal(err)
	}
	p.SetDuty(100)
	if fp.cycle != 0 {
		t.Error("duty must not be written while disabled")
	}
	p.Enable(true)
	if fp.mode != gorpio.Pwm || fp.freq != 64000 {
		t.Errorf("expected pwm mode at 64000, got %v %d", fp.mode, fp.freq)
	}
	if fp.duty != 32 || fp.cycle != 32 {
		t.Errorf("expected clamped duty 32/32, got %d/%d", fp.duty, fp.cycle)
	}
	p.SetDuty(8)
	if fp.duty != 8 {
		t.Errorf("expected duty 8, got %d", fp.duty)
	}
	p.Enable(false)
	if fp.mode != gorpio.Output || fp.low != 2 {
		t.Error("expected parked pin after disable")
	}
}

func TestNewPWMRejectsPlainGPIO(t *testing.T) {
	if _, err := NewPWM(4, 64000, 32); err == nil {
		t.Error("expected error for gpio without pwm")
	}
	if _, err := newPWM(&fakePin{}, 0, 32); err == nil {
		t.Error("expected error for zero clock")
	}
}
