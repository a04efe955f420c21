package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/servoctl/internal/experiment"
)

const twoSteps = `
name: knob
description: step the knob then lose some reads
preset: bench
steps:
  - name: step
    cycles: 50
    p_gain: 8
    knob:
      - at: 10
        value: 3000
  - name: dropouts
    cycles: 40
    fail_on: [1, 2, 3]
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndExperiment(t *testing.T) {
	s, err := Load(writeScenario(t, twoSteps))
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "knob" || len(s.Steps) != 2 {
		t.Fatalf("unexpected scenario %+v", s)
	}

	ec, err := s.Experiment(0)
	if err != nil {
		t.Fatal(err)
	}
	if ec.Cycles != 50 || ec.Loop.Kp != 8 {
		t.Errorf("step overrides not applied: cycles %d kp %v", ec.Cycles, ec.Loop.Kp)
	}
	if len(ec.Script) != 1 || ec.Script[0].At != 10 || ec.Script[0].Value != 3000 {
		t.Errorf("unexpected script %+v", ec.Script)
	}

	ec, err = s.Experiment(1)
	if err != nil {
		t.Fatal(err)
	}
	if ec.Loop.Kp != 10 {
		t.Errorf("second step should keep the preset gain, got %v", ec.Loop.Kp)
	}
	if len(ec.FailOn) != 3 {
		t.Errorf("expected 3 scheduled failures, got %v", ec.FailOn)
	}
}

func TestLoadRejects(t *testing.T) {
	if _, err := Load(writeScenario(t, "name: empty\n")); err == nil {
		t.Error("expected an error for a scenario without steps")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	s, err := Load(writeScenario(t, "preset: nope\nsteps:\n  - cycles: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Experiment(0); err == nil {
		t.Error("expected unknown preset error")
	}
}

func TestRun(t *testing.T) {
	s, err := Load(writeScenario(t, twoSteps))
	if err != nil {
		t.Fatal(err)
	}

	var seen []string
	outcomes, err := Run(context.Background(), s, func(i int, name string) { seen = append(seen, name) })
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 || len(seen) != 2 || seen[1] != "dropouts" {
		t.Fatalf("unexpected outcomes %d, progress %v", len(outcomes), seen)
	}
	if n := len(outcomes[0].Result.Records); n != 50 {
		t.Errorf("expected 50 records, got %d", n)
	}
	if d := outcomes[1].Result.Metrics["dropouts"]; d != 3 {
		t.Errorf("expected 3 dropouts, got %v", d)
	}
}

func TestMonteCarlo(t *testing.T) {
	base := experiment.DefaultConfig()
	base.Cycles = 600

	trials, err := RunMonteCarlo(context.Background(), MonteCarloConfig{
		Base:      base,
		Spread:    300,
		NumTrials: 4,
		Seed:      7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(trials))
	}
	for _, tr := range trials {
		if tr.Initial < 700 || tr.Initial > 1300 {
			t.Errorf("trial %d started outside the spread: %f", tr.ID, tr.Initial)
		}
	}
	if settled, _ := Settled(trials); settled != 4 {
		t.Errorf("expected every trial to settle, got %d: %+v", settled, trials)
	}

	if _, err := RunMonteCarlo(context.Background(), MonteCarloConfig{Base: base}); err == nil {
		t.Error("expected an error for zero trials")
	}
}
