package sim

import (
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/as5600"
)

// ErrNACK is returned for transactions the simulated device does not
// acknowledge.
var ErrNACK = errors.New("sim: i2c nack")

// Bus answers AS5600 register reads with the angle reported by source.
type Bus struct {
	source func() float64

	mu       sync.Mutex
	addr     uint16
	noise    float64
	rng      *rand.Rand
	failOn   map[int]bool
	every    int
	down     bool
	magnet   byte
	tx       int
	failures int
}

// NewBus returns a device at the AS5600 address. source reports the shaft
// angle in counts; it is wrapped to [0, 4096) on every read.
func NewBus(source func() float64, seed int64) *Bus {
	return &Bus{
		source: source,
		addr:   as5600.DefaultAddress,
		rng:    rand.New(rand.NewSource(seed)),
		failOn: make(map[int]bool),
		magnet: 1 << 5,
	}
}

// SetNoise sets the standard deviation of the angle noise, in counts.
func (b *Bus) SetNoise(std float64) {
	b.mu.Lock()
	b.noise = std
	b.mu.Unlock()
}

// FailOn NACKs the given transactions, counted from 1.
func (b *Bus) FailOn(n ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, i := range n {
		b.failOn[i] = true
	}
}

// FailEvery NACKs every k-th transaction. Zero disables it.
func (b *Bus) FailEvery(k int) {
	b.mu.Lock()
	b.every = k
	b.mu.Unlock()
}

// Disconnect NACKs everything until called with false.
func (b *Bus) Disconnect(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}

// SetMagnet sets the STATUS register flags.
func (b *Bus) SetMagnet(s as5600.MagnetStatus) {
	var v byte
	if s.Detected {
		v |= 1 << 5
	}
	if s.TooWeak {
		v |= 1 << 4
	}
	if s.TooStrong {
		v |= 1 << 3
	}
	b.mu.Lock()
	b.magnet = v
	b.mu.Unlock()
}

// Transactions is the number of Tx calls so far.
func (b *Bus) Transactions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tx
}

// Failures is the number of NACKed transactions.
func (b *Bus) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tx++
	if addr != b.addr || b.down || b.failOn[b.tx] || (b.every > 0 && b.tx%b.every == 0) {
		b.failures++
		return ErrNACK
	}
	if len(r) == 0 {
		return nil
	}
	if len(w) == 0 {
		return ErrNACK
	}

	code := b.angle()
	reg := w[0]
	for i := range r {
		r[i] = b.register(reg+byte(i), code)
	}
	return nil
}

func (b *Bus) angle() uint16 {
	v := b.source()
	if b.noise > 0 {
		v += b.rng.NormFloat64() * b.noise
	}
	v = math.Mod(math.Round(v), as5600.Resolution)
	if v < 0 {
		v += as5600.Resolution
	}
	return uint16(v)
}

func (b *Bus) register(reg byte, code uint16) byte {
	switch reg {
	case as5600.RegStatus:
		return b.magnet
	case as5600.RegRawAngle, as5600.RegAngle:
		return byte(code >> 8)
	case as5600.RegRawAngle + 1, as5600.RegAngle + 1:
		return byte(code)
	}
	return 0
}
