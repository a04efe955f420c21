package sim

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// PotMax is the top of the simulated potentiometer range.
const PotMax = 4095

// Step moves the potentiometer to Value at read number At (from 0).
type Step struct {
	At    int
	Value float64
}

// Pot is a set-point potentiometer read through a 12-bit converter.
type Pot struct {
	mu     sync.Mutex
	value  float64
	script []Step
	noise  float64
	rng    *rand.Rand
	reads  int
}

func NewPot(value float64, seed int64) *Pot {
	return &Pot{value: value, rng: rand.New(rand.NewSource(seed))}
}

// Set moves the knob.
func (p *Pot) Set(v float64) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
}

// Value is the current knob position without noise.
func (p *Pot) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// SetNoise sets the standard deviation of the conversion noise.
func (p *Pot) SetNoise(std float64) {
	p.mu.Lock()
	p.noise = std
	p.mu.Unlock()
}

// Script schedules knob moves by read count.
func (p *Pot) Script(steps ...Step) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, steps...)
	sort.SliceStable(p.script, func(i, j int) bool { return p.script[i].At < p.script[j].At })
}

func (p *Pot) ReadAnalog() (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.script) > 0 && p.script[0].At <= p.reads {
		p.value = p.script[0].Value
		p.script = p.script[1:]
	}
	p.reads++

	v := p.value
	if p.noise > 0 {
		v += p.rng.NormFloat64() * p.noise
	}
	return uint16(math.Max(0, math.Min(PotMax, math.Round(v)))), nil
}
