package sim

import "sync"

// Channel is one simulated PWM output of the bridge driver.
type Channel struct {
	mu      sync.Mutex
	max     uint32
	duty    uint32
	enabled bool
}

func NewChannel(limit uint32) *Channel {
	return &Channel{max: limit}
}

func (c *Channel) MaxDuty() uint32 { return c.max }

func (c *Channel) SetDuty(duty uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if duty > c.max {
		duty = c.max
	}
	c.duty = duty
	return nil
}

func (c *Channel) Enable(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = on
	return nil
}

// Output is the effective duty fraction in [0, 1].
func (c *Channel) Output() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.max == 0 {
		return 0
	}
	return float64(c.duty) / float64(c.max)
}

func (c *Channel) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Bridge is the power stage: two channels feeding opposite motor terminals.
type Bridge struct {
	Fwd *Channel
	Rev *Channel

	mu     sync.Mutex
	shoots int
}

func NewBridge(maxDuty uint32) *Bridge {
	return &Bridge{Fwd: NewChannel(maxDuty), Rev: NewChannel(maxDuty)}
}

// Signed returns the terminal voltage fraction in [-1, 1]. Both channels
// enabled at once is a shoot-through: it is counted and the motor sees
// nothing.
func (b *Bridge) Signed() float64 {
	if b.Fwd.Enabled() && b.Rev.Enabled() {
		b.mu.Lock()
		b.shoots++
		b.mu.Unlock()
		return 0
	}
	return b.Fwd.Output() - b.Rev.Output()
}

// ShootThroughs counts Signed calls that saw both channels enabled.
func (b *Bridge) ShootThroughs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shoots
}
