package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/export"
	"github.com/san-kum/servoctl/internal/scenario"
)

var (
	trials int
	spread float64
	outDir string
)

func runScenario(cmd *cobra.Command, args []string) error {
	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("scenario: %s\n", s.Name)
	if s.Description != "" {
		fmt.Printf("  %s\n", s.Description)
	}

	outcomes, err := scenario.Run(cmd.Context(), s, func(i int, name string) {
		fmt.Printf("running step %d/%d: %s\n", i+1, len(s.Steps), name)
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nSTEP\tCYCLES\tLOST\tIAE\tTRACKING\tDROPOUTS")
	for _, o := range outcomes {
		m := o.Result.Metrics
		fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\t%.3f\t%.0f\n", o.Step, len(o.Result.Records), o.Result.Lost, m["iae"], m["tracking"], m["dropouts"])
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	base, err := cfg.Experiment()
	if err != nil {
		return err
	}

	fmt.Printf("monte carlo: %d trials, initial angle %.0f ± %.0f\n", trials, base.Rig.InitialAngle, spread)
	results, err := scenario.RunMonteCarlo(cmd.Context(), scenario.MonteCarloConfig{
		Base:      base,
		Spread:    spread,
		NumTrials: trials,
		Seed:      cfg.Sim.Seed,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tINITIAL\tFINAL ERROR\tIAE\tSETTLED")
	for _, t := range results {
		fmt.Fprintf(w, "%d\t%.0f\t%.2f\t%.1f\t%t\n", t.ID, t.Initial, t.FinalError, t.IAE, t.Settled)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	settled, unsettled := scenario.Settled(results)
	fmt.Printf("\nsettled: %d  unsettled: %d\n", settled, unsettled)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no data to export")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	runPath := filepath.Join(outDir, meta.ID+".svg")
	if err := os.WriteFile(runPath, []byte(export.RunToSVG(records, 800, 400)), 0644); err != nil {
		return err
	}
	dialPath := filepath.Join(outDir, meta.ID+"_dial.svg")
	dial := export.DialToSVG(records[len(records)-1], as5600.Resolution, 6)
	if err := os.WriteFile(dialPath, []byte(dial), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\nwrote %s\n", runPath, dialPath)
	return nil
}
