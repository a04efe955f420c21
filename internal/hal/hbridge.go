package hal

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/control"
)

// ErrSameChannel is returned when both directions are wired to one output.
var ErrSameChannel = errors.New("hal: forward and reverse share a channel")

// HBridge drives a bidirectional motor through two PWM channels, one per
// direction. At most one channel is enabled at any time.
type HBridge struct {
	fwd PWMOutput
	rev PWMOutput
	max uint32

	last control.Command
}

// NewHBridge takes ownership of the two channels and leaves both disabled.
func NewHBridge(fwd, rev PWMOutput) (*HBridge, error) {
	if fwd == nil || rev == nil {
		return nil, errors.New("hal: nil pwm channel")
	}
	if sameChannel(fwd, rev) {
		return nil, ErrSameChannel
	}
	limit := fwd.MaxDuty()
	if m := rev.MaxDuty(); m < limit {
		limit = m
	}
	h := &HBridge{fwd: fwd, rev: rev, max: limit}
	if err := h.Stop(); err != nil {
		return nil, err
	}
	return h, nil
}

// sameChannel reports whether a and b are the same output. Outputs of
// uncomparable types are never considered the same.
func sameChannel(a, b PWMOutput) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// MaxDuty is the largest duty the bridge will output.
func (h *HBridge) MaxDuty() uint32 { return h.max }

// Last returns the most recently applied command, after clamping.
func (h *HBridge) Last() control.Command { return h.last }

// Apply clamps the duty to the platform maximum, disables the opposite
// channel, then sets and enables the active one. Neutral disables both.
func (h *HBridge) Apply(cmd control.Command) error {
	if cmd.Duty > h.max {
		cmd.Duty = h.max
	}
	var on, off PWMOutput
	switch cmd.Direction {
	case control.Forward:
		on, off = h.fwd, h.rev
	case control.Reverse:
		on, off = h.rev, h.fwd
	default:
		return h.Stop()
	}
	if cmd.Duty == 0 {
		return h.Stop()
	}

	if err := off.Enable(false); err != nil {
		return errors.Wrap(err, "disable opposite channel")
	}
	if err := off.SetDuty(0); err != nil {
		return errors.Wrap(err, "zero opposite channel")
	}
	if err := on.SetDuty(cmd.Duty); err != nil {
		return errors.Wrap(err, "set duty")
	}
	if err := on.Enable(true); err != nil {
		return errors.Wrap(err, "enable channel")
	}
	h.last = cmd
	return nil
}

// Stop disables both channels.
func (h *HBridge) Stop() error {
	var first error
	for _, ch := range []PWMOutput{h.fwd, h.rev} {
		if err := ch.SetDuty(0); err != nil && first == nil {
			first = errors.Wrap(err, "zero channel")
		}
		if err := ch.Enable(false); err != nil && first == nil {
			first = errors.Wrap(err, "disable channel")
		}
	}
	h.last = control.Command{Direction: control.Neutral}
	return first
}
