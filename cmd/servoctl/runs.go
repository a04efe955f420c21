package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/san-kum/servoctl/internal/analysis"
	"github.com/san-kum/servoctl/internal/storage"
	"github.com/san-kum/servoctl/internal/telemetry"
)

func openStore(cmd *cobra.Command) (*storage.Store, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	return storage.New(cfg.Output.DataDir), nil
}

func loadRun(cmd *cobra.Command, runID string) (*storage.RunMetadata, []telemetry.Record, error) {
	st, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	records, err := st.LoadSamples(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, records, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tTIME\tCYCLES\tKP\tKI\tMODE\tIAE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%g\t%g\t%s\t%.1f\n",
			run.ID,
			run.Source,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Cycles,
			run.Kp,
			run.Ki,
			run.ErrorMode,
			run.Metrics["iae"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("source: %s\n", meta.Source)
	fmt.Printf("samples: %d\n\n", len(records))

	setPoint := telemetry.Series(records, func(r telemetry.Record) float64 { return r.SetPoint })
	position := telemetry.Series(records, func(r telemetry.Record) float64 { return r.Position })
	fmt.Println(asciigraph.PlotMany([][]float64{setPoint, position},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
		asciigraph.Caption("set-point (yellow) and rotor (green)"),
	))
	fmt.Println()

	duty := telemetry.Series(records, func(r telemetry.Record) float64 { return float64(r.Duty) })
	fmt.Println(asciigraph.Plot(duty,
		asciigraph.Height(8),
		asciigraph.Width(80),
		asciigraph.Caption("signed duty"),
	))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return errors.New("not enough data")
	}

	fmt.Printf("analysis: %s\n\n", meta.ID)

	times := telemetry.Series(records, func(r telemetry.Record) float64 { return r.Time })
	position := telemetry.Series(records, func(r telemetry.Record) float64 { return r.Position })
	target := records[len(records)-1].SetPoint
	step := analysis.Step(times, position, target, 0.05)

	fmt.Printf("step %.1f -> %.1f\n", step.Initial, step.Target)
	fmt.Printf("  overshoot:     %.1f%%\n", step.Overshoot*100)
	printSeconds("  rise time:    ", step.RiseTime)
	printSeconds("  settling time:", step.SettlingTime)
	fmt.Printf("  steady error:  %.2f\n\n", step.SteadyState)

	if meta.SampleInterval <= 0 {
		return errors.Errorf("run %s has no sample interval", meta.ID)
	}
	rate := 1 / meta.SampleInterval
	errs := telemetry.Series(records, func(r telemetry.Record) float64 { return r.Error })
	ps := analysis.PowerSpectrum(errs, rate)
	if len(ps.Power) > 1 {
		fmt.Println(asciigraph.Plot(ps.Power[1:],
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("error power spectrum"),
		))
		fmt.Println()
	}
	freq, power := analysis.DominantFrequency(ps)
	fmt.Printf("dominant frequency: %.3f hz (power %.3g)\n", freq, power)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}

func printSeconds(label string, v float64) {
	if v < 0 {
		fmt.Printf("%s n/a\n", label)
		return
	}
	fmt.Printf("%s %.2fs\n", label, v)
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, records, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, records)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(cmd, args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, records)
}
