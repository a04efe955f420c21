package optim

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/servoctl/internal/dynamo"
	"github.com/san-kum/servoctl/internal/experiment"
)

// ErrNoCandidate is returned when no grid point produced a result.
var ErrNoCandidate = errors.New("optim: no grid point could be evaluated")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Candidate is one evaluated grid point.
type Candidate struct {
	Params map[string]float64
	Score  float64
}

// Search evaluates every grid point on a fresh experiment and returns the
// points ordered by metricName, lowest first. Points whose experiment
// fails to build or run are dropped.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) ([]Candidate, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, errors.Errorf("%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	points := g.points()
	scores := make([]float64, len(points))

	dynamo.ParallelFor(len(points), 1, func(start, end int) {
		for i := start; i < end; i++ {
			scores[i] = math.Inf(1)
			if ctx.Err() != nil {
				continue
			}
			exp, err := buildExperiment(points[i])
			if err != nil {
				continue
			}
			result, err := exp.Run(ctx)
			if err != nil {
				continue
			}
			if v, ok := result.Metrics[metricName]; ok && !math.IsNaN(v) {
				scores[i] = v
			}
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := make([]Candidate, 0, len(points))
	for i, p := range points {
		if !math.IsInf(scores[i], 1) {
			ranked = append(ranked, Candidate{Params: p, Score: scores[i]})
		}
	}
	if len(ranked) == 0 {
		return nil, ErrNoCandidate
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score < ranked[j].Score })
	return ranked, nil
}

func (g *GridSearch) points() []map[string]float64 {
	points := []map[string]float64{{}}
	for depth, name := range g.paramNames {
		next := make([]map[string]float64, 0, len(points)*len(g.ranges[depth]))
		for _, p := range points {
			for _, val := range g.ranges[depth] {
				np := make(map[string]float64, len(p)+1)
				for k, v := range p {
					np[k] = v
				}
				np[name] = val
				next = append(next, np)
			}
		}
		points = next
	}
	return points
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
