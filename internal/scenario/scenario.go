// Package scenario runs scripted sequences of simulated experiments from a
// YAML file, and Monte Carlo batches over the rig's starting conditions.
package scenario

import (
	"context"
	"math"
	"math/rand"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/servoctl/internal/config"
	"github.com/san-kum/servoctl/internal/experiment"
	"github.com/san-kum/servoctl/internal/sim"
)

// Scenario is a named list of runs.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Preset is the starting config of every step; empty means defaults.
	Preset string `yaml:"preset"`
	Steps  []Step `yaml:"steps"`
}

// Step is one experiment. Zero fields keep the preset's value.
type Step struct {
	Name      string     `yaml:"name"`
	Cycles    int        `yaml:"cycles"`
	Kp        *float64   `yaml:"p_gain"`
	Ki        *float64   `yaml:"i_gain"`
	ErrorMode string     `yaml:"error_mode"`
	Initial   *float64   `yaml:"initial_angle"`
	SetPoint  *float64   `yaml:"set_point"`
	FailEvery int        `yaml:"fail_every"`
	FailOn    []int      `yaml:"fail_on"`
	Knob      []KnobMove `yaml:"knob"`
}

// KnobMove turns the simulated potentiometer to Value at cycle At.
type KnobMove struct {
	At    int     `yaml:"at"`
	Value float64 `yaml:"value"`
}

// Outcome is the result of one step.
type Outcome struct {
	Step   string
	Result *experiment.Result
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if len(s.Steps) == 0 {
		return nil, errors.Errorf("scenario %s has no steps", path)
	}
	return &s, nil
}

func (s *Scenario) base() (*config.Config, error) {
	if s.Preset == "" {
		return config.DefaultConfig(), nil
	}
	cfg := config.GetPreset(s.Preset)
	if cfg == nil {
		return nil, errors.Errorf("unknown preset %q", s.Preset)
	}
	return cfg, nil
}

// Experiment builds the experiment config of step i.
func (s *Scenario) Experiment(i int) (experiment.Config, error) {
	cfg, err := s.base()
	if err != nil {
		return experiment.Config{}, err
	}
	st := s.Steps[i]
	if st.Cycles > 0 {
		cfg.Sim.Cycles = st.Cycles
	}
	if st.Kp != nil {
		cfg.Loop.Kp = *st.Kp
	}
	if st.Ki != nil {
		cfg.Loop.Ki = *st.Ki
	}
	if st.ErrorMode != "" {
		cfg.Loop.ErrorMode = st.ErrorMode
	}
	if st.Initial != nil {
		cfg.Sim.InitialAngle = *st.Initial
	}
	if st.SetPoint != nil {
		cfg.Sim.SetPoint = *st.SetPoint
	}
	if st.FailEvery > 0 {
		cfg.Sim.FailEvery = st.FailEvery
	}

	ec, err := cfg.Experiment()
	if err != nil {
		return experiment.Config{}, errors.Wrapf(err, "step %d", i+1)
	}
	ec.FailOn = st.FailOn
	for _, k := range st.Knob {
		ec.Script = append(ec.Script, sim.Step{At: k.At, Value: k.Value})
	}
	return ec, nil
}

// Run executes the steps in order and stops at the first failure. progress,
// if non-nil, is called before each step.
func Run(ctx context.Context, s *Scenario, progress func(i int, name string)) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(s.Steps))

	for i, step := range s.Steps {
		name := step.Name
		if name == "" {
			name = s.Name
		}
		if progress != nil {
			progress(i, name)
		}

		ec, err := s.Experiment(i)
		if err != nil {
			return outcomes, err
		}
		exp, err := experiment.New(ec)
		if err != nil {
			return outcomes, errors.Wrapf(err, "step %d setup", i+1)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return outcomes, errors.Wrapf(err, "step %d run", i+1)
		}
		outcomes = append(outcomes, Outcome{Step: name, Result: result})
	}

	return outcomes, nil
}

// MonteCarloConfig perturbs the starting angle and noise seed of a base
// experiment.
type MonteCarloConfig struct {
	Base experiment.Config
	// Spread is the half-width of the uniform initial-angle perturbation.
	Spread    float64
	NumTrials int
	Seed      int64
}

// Trial is one Monte Carlo run.
type Trial struct {
	ID         int
	Initial    float64
	FinalError float64
	// Settled means the final error is within the base tolerance.
	Settled bool
	IAE     float64
}

// RunMonteCarlo runs NumTrials experiments, each from a random starting
// angle with its own noise seed.
func RunMonteCarlo(ctx context.Context, cfg MonteCarloConfig) ([]Trial, error) {
	if cfg.NumTrials <= 0 {
		return nil, errors.Errorf("trials %d", cfg.NumTrials)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	trials := make([]Trial, 0, cfg.NumTrials)

	for id := 0; id < cfg.NumTrials; id++ {
		ec := cfg.Base
		ec.Rig.InitialAngle += (rng.Float64()*2 - 1) * cfg.Spread
		ec.Rig.Seed = rng.Int63()

		exp, err := experiment.New(ec)
		if err != nil {
			return nil, err
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		t := Trial{ID: id, Initial: ec.Rig.InitialAngle, IAE: result.Metrics["iae"], FinalError: math.NaN()}
		if n := len(result.Records); n > 0 {
			t.FinalError = result.Records[n-1].Error
			t.Settled = math.Abs(t.FinalError) <= ec.Tolerance
		}
		trials = append(trials, t)
	}

	return trials, nil
}

// Settled counts the trials that ended within tolerance.
func Settled(trials []Trial) (settled, unsettled int) {
	for _, t := range trials {
		if t.Settled {
			settled++
		} else {
			unsettled++
		}
	}
	return
}
