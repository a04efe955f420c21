package metrics

import (
	"sort"
	"sync"

	"github.com/san-kum/servoctl/internal/driver"
)

// Metric scores a run one cycle at a time.
type Metric interface {
	Name() string
	Observe(s driver.Sample)
	Value() float64
	Reset()
}

// Set feeds every cycle to a group of metrics. It is a driver observer.
type Set struct {
	mu      sync.Mutex
	metrics []Metric
}

func NewSet(m ...Metric) *Set {
	return &Set{metrics: m}
}

// Standard is the set saved with every run.
func Standard(dt, tolerance float64) *Set {
	return NewSet(NewControlEffort(), NewIAE(dt), NewTracking(tolerance), NewDropouts())
}

func (s *Set) OnCycle(sample driver.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Observe(sample)
	}
}

// Values returns the current value of each metric by name.
func (s *Set) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Reset()
	}
}

// Names lists metric names in sorted order.
func Names(values map[string]float64) []string {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
