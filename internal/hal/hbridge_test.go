package hal

import (
	"errors"
	"testing"

	"github.com/san-kum/servoctl/internal/control"
)

type event struct {
	ch   string
	duty uint32
	on   bool
	kind string
}

type fakePWM struct {
	name    string
	max     uint32
	duty    uint32
	enabled bool
	log     *[]event
	failOn  string
}

func (p *fakePWM) SetDuty(d uint32) error {
	if p.failOn == "duty" {
		return errors.New("pwm fault")
	}
	p.duty = d
	*p.log = append(*p.log, event{ch: p.name, duty: d, kind: "duty"})
	return nil
}

func (p *fakePWM) Enable(on bool) error {
	if p.failOn == "enable" && on {
		return errors.New("pwm fault")
	}
	p.enabled = on
	*p.log = append(*p.log, event{ch: p.name, on: on, kind: "enable"})
	return nil
}

func (p *fakePWM) MaxDuty() uint32 { return p.max }

func newPair(limit uint32) (*fakePWM, *fakePWM, *[]event) {
	log := &[]event{}
	return &fakePWM{name: "in1", max: limit, log: log}, &fakePWM{name: "in2", max: limit, log: log}, log
}

func TestHBridgeStartsStopped(t *testing.T) {
	fwd, rev, _ := newPair(255)
	fwd.enabled, rev.enabled = true, true

	if _, err := NewHBridge(fwd, rev); err != nil {
		t.Fatal(err)
	}
	if fwd.enabled || rev.enabled {
		t.Error("both channels should be disabled after construction")
	}
}

func TestHBridgeRejectsSharedChannel(t *testing.T) {
	fwd, _, _ := newPair(255)
	if _, err := NewHBridge(fwd, fwd); !errors.Is(err, ErrSameChannel) {
		t.Errorf("expected ErrSameChannel, got %v", err)
	}
}

// sliceChan is a value-type output whose type cannot be compared with ==.
type sliceChan struct {
	history []uint32
}

func (c sliceChan) SetDuty(d uint32) error { return nil }
func (c sliceChan) Enable(on bool) error    { return nil }
func (c sliceChan) MaxDuty() uint32         { return 100 }

func TestHBridgeAcceptsUncomparableChannels(t *testing.T) {
	h, err := NewHBridge(sliceChan{}, sliceChan{})
	if err != nil {
		t.Fatal(err)
	}
	if h.MaxDuty() != 100 {
		t.Errorf("max duty = %d, want 100", h.MaxDuty())
	}
	if err := h.Apply(control.Command{Duty: 50, Direction: control.Forward}); err != nil {
		t.Error(err)
	}
}

func TestHBridgeDirections(t *testing.T) {
	tests := []struct {
		name    string
		cmd     control.Command
		fwdOn   bool
		revOn   bool
		fwdDuty uint32
		revDuty uint32
	}{
		{"forward", control.Command{Duty: 100, Direction: control.Forward}, true, false, 100, 0},
		{"reverse", control.Command{Duty: 80, Direction: control.Reverse}, false, true, 0, 80},
		{"neutral", control.Command{Duty: 80, Direction: control.Neutral}, false, false, 0, 0},
		{"zero duty", control.Command{Duty: 0, Direction: control.Forward}, false, false, 0, 0},
		{"clamped", control.Command{Duty: 500, Direction: control.Forward}, true, false, 255, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd, rev, _ := newPair(255)
			h, err := NewHBridge(fwd, rev)
			if err != nil {
				t.Fatal(err)
			}
			// start from the opposite state to exercise the hand-over
			if err := h.Apply(control.Command{Duty: 50, Direction: control.Reverse}); err != nil {
				t.Fatal(err)
			}
			if err := h.Apply(tt.cmd); err != nil {
				t.Fatal(err)
			}
			if fwd.enabled != tt.fwdOn || rev.enabled != tt.revOn {
				t.Errorf("enables: fwd=%v rev=%v", fwd.enabled, rev.enabled)
			}
			if fwd.duty != tt.fwdDuty || rev.duty != tt.revDuty {
				t.Errorf("duties: fwd=%d rev=%d", fwd.duty, rev.duty)
			}
		})
	}
}

func TestHBridgeNeverBothEnabled(t *testing.T) {
	fwd, rev, log := newPair(1000)
	h, err := NewHBridge(fwd, rev)
	if err != nil {
		t.Fatal(err)
	}

	cmds := []control.Command{
		{Duty: 10, Direction: control.Forward},
		{Duty: 900, Direction: control.Reverse},
		{Duty: 20, Direction: control.Forward},
		{Direction: control.Neutral},
		{Duty: 5, Direction: control.Reverse},
	}

	state := map[string]bool{}
	for _, c := range cmds {
		*log = (*log)[:0]
		if err := h.Apply(c); err != nil {
			t.Fatal(err)
		}
		for _, ev := range *log {
			if ev.kind == "enable" {
				state[ev.ch] = ev.on
			}
			if state["in1"] && state["in2"] {
				t.Fatalf("both channels enabled while applying %+v", c)
			}
		}
	}
}

func TestHBridgeUsesSmallerMax(t *testing.T) {
	log := &[]event{}
	fwd := &fakePWM{name: "in1", max: 1000, log: log}
	rev := &fakePWM{name: "in2", max: 255, log: log}
	h, err := NewHBridge(fwd, rev)
	if err != nil {
		t.Fatal(err)
	}
	if h.MaxDuty() != 255 {
		t.Errorf("expected 255, got %d", h.MaxDuty())
	}
}

func TestHBridgeError(t *testing.T) {
	fwd, rev, _ := newPair(255)
	h, err := NewHBridge(fwd, rev)
	if err != nil {
		t.Fatal(err)
	}
	fwd.failOn = "enable"
	if err := h.Apply(control.Command{Duty: 10, Direction: control.Forward}); err == nil {
		t.Error("expected error from faulty channel")
	}
	if rev.enabled {
		t.Error("opposite channel must stay disabled")
	}
}
