package as5600

import (
	"errors"
	"math"
	"testing"
)

type fakeBus struct {
	resp    []byte
	err     error
	addr    uint16
	written []byte
	calls   int
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	f.calls++
	f.addr = addr
	f.written = append([]byte(nil), w...)
	if f.err != nil {
		return f.err
	}
	copy(r, f.resp)
	return nil
}

func TestReadRawAngle(t *testing.T) {
	tests := []struct {
		name string
		resp []byte
		want RawAngle
	}{
		{"zero", []byte{0x00, 0x00}, 0},
		{"half turn", []byte{0x08, 0x00}, 2048},
		{"max", []byte{0x0F, 0xFF}, 4095},
		{"high nibble masked", []byte{0xFF, 0xFF}, 4095},
		{"high nibble masked low", []byte{0xA1, 0x23}, 0x123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &fakeBus{resp: tt.resp}
			s := New(bus)
			got, err := s.ReadRawAngle()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
			if bus.addr != DefaultAddress {
				t.Errorf("expected address 0x%02x, got 0x%02x", DefaultAddress, bus.addr)
			}
			if len(bus.written) != 1 || bus.written[0] != RegAngle {
				t.Errorf("expected register write [0x0e], got %x", bus.written)
			}
		})
	}
}

func TestReadRawAngleRange(t *testing.T) {
	bus := &fakeBus{resp: make([]byte, 2)}
	s := New(bus)
	for hi := 0; hi < 256; hi += 7 {
		for lo := 0; lo < 256; lo += 5 {
			bus.resp[0], bus.resp[1] = byte(hi), byte(lo)
			raw, err := s.ReadRawAngle()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if raw > MaxRaw {
				t.Fatalf("raw %d out of range for %02x%02x", raw, hi, lo)
			}
			deg := raw.Degrees()
			if deg < 0 || deg >= 360 {
				t.Fatalf("degrees %f out of range", deg)
			}
		}
	}
}

func TestReadDegrees(t *testing.T) {
	tests := []struct {
		resp []byte
		want float64
	}{
		{[]byte{0x00, 0x00}, 0.0},
		{[]byte{0x08, 0x00}, 180.0},
		{[]byte{0x04, 0x00}, 90.0},
		{[]byte{0x0F, 0xFF}, 4095.0 * 360.0 / 4096.0},
	}

	for _, tt := range tests {
		s := New(&fakeBus{resp: tt.resp})
		got, err := s.ReadDegrees()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("expected %f, got %f", tt.want, got)
		}
	}
}

func TestDegreesStrictlyIncreasing(t *testing.T) {
	prev := -1.0
	for r := RawAngle(0); r <= MaxRaw; r++ {
		d := Degrees(r)
		if d <= prev {
			t.Fatalf("degrees not increasing at %d: %f <= %f", r, d, prev)
		}
		prev = d
	}
}

func TestTransportErrorVerbatim(t *testing.T) {
	nack := errors.New("i2c: nack")
	bus := &fakeBus{err: nack}
	s := New(bus)

	if _, err := s.ReadRawAngle(); err != nack {
		t.Errorf("expected transport error unchanged, got %v", err)
	}
	if _, err := s.ReadDegrees(); err != nack {
		t.Errorf("expected transport error unchanged, got %v", err)
	}
	if bus.calls != 2 {
		t.Errorf("expected exactly one transaction per read, got %d", bus.calls)
	}
}

func TestOptions(t *testing.T) {
	bus := &fakeBus{resp: []byte{0, 1}}
	s := New(bus, WithAddress(0x40), WithRegister(RegRawAngle))
	if _, err := s.ReadRawAngle(); err != nil {
		t.Fatal(err)
	}
	if bus.addr != 0x40 {
		t.Errorf("expected address 0x40, got 0x%02x", bus.addr)
	}
	if bus.written[0] != RegRawAngle {
		t.Errorf("expected register 0x0c, got 0x%02x", bus.written[0])
	}
}

func TestRelease(t *testing.T) {
	bus := &fakeBus{resp: []byte{0, 0}}
	s := New(bus)

	got := s.Release()
	if got != Bus(bus) {
		t.Error("release should return the original bus")
	}
	if bus.calls != 0 {
		t.Error("release should not touch the bus")
	}
	if _, err := s.ReadRawAngle(); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	bus := &fakeBus{resp: []byte{0x20}}
	st, err := New(bus).Status()
	if err != nil {
		t.Fatal(err)
	}
	if !st.OK() {
		t.Errorf("expected magnet ok, got %+v", st)
	}
	if bus.written[0] != RegStatus {
		t.Errorf("expected status register, got 0x%02x", bus.written[0])
	}

	bus.resp = []byte{0x30}
	st, _ = New(bus).Status()
	if st.OK() || !st.TooWeak {
		t.Errorf("expected weak magnet, got %+v", st)
	}
}
