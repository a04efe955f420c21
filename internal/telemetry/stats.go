package telemetry

import (
	"math"
	"sync"

	movingaverage "github.com/RobinUS2/golang-moving-average"

	"github.com/san-kum/servoctl/internal/driver"
)

// DefaultWindow is the number of cycles the running averages span.
const DefaultWindow = 20

// Stats keeps moving averages over the last cycles.
type Stats struct {
	mu     sync.Mutex
	window int
	absErr *movingaverage.MovingAverage
	duty   *movingaverage.MovingAverage
	stale  *movingaverage.MovingAverage
	seen   int
	last   driver.Sample
}

func NewStats(window int) *Stats {
	if window < 1 {
		window = DefaultWindow
	}
	return &Stats{
		window: window,
		absErr: movingaverage.New(window),
		duty:   movingaverage.New(window),
		stale:  movingaverage.New(window),
	}
}

func (s *Stats) OnCycle(sample driver.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.absErr.Add(math.Abs(sample.Error))
	s.duty.Add(float64(sample.Command.Duty))
	if sample.SensorErr != nil {
		s.stale.Add(1)
	} else {
		s.stale.Add(0)
	}
	s.seen++
	s.last = sample
}

// Summary is a point-in-time view of Stats.
type Summary struct {
	Cycles      int
	MeanAbsErr  float64
	MeanDuty    float64
	DropoutRate float64
	Last        driver.Sample
}

func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == 0 {
		return Summary{}
	}
	return Summary{
		Cycles:      s.seen,
		MeanAbsErr:  s.absErr.Avg(),
		MeanDuty:    s.duty.Avg(),
		DropoutRate: s.stale.Avg(),
		Last:        s.last,
	}
}
