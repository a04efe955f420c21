package telemetry

import (
	"sync"
	"time"

	"github.com/san-kum/servoctl/internal/driver"
)

// Recorder keeps the most recent cycles as Records. It is a driver
// observer and is safe to read while the driver runs.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	start   time.Time
	started bool
	records []Record
}

// NewRecorder keeps at most limit records; zero keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) OnCycle(s driver.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.start = s.Time
		r.started = true
	}
	r.records = append(r.records, FromSample(s, r.start))
	if r.limit > 0 && len(r.records) > r.limit {
		r.records = append(r.records[:0], r.records[len(r.records)-r.limit:]...)
	}
}

// Records returns a copy of what has been kept.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len is the number of records kept.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.started = false
}

// Series extracts one column.
func Series(records []Record, pick func(Record) float64) []float64 {
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = pick(rec)
	}
	return out
}
