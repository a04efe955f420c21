package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/san-kum/servoctl/internal/config"
	"github.com/san-kum/servoctl/internal/driver"
	"github.com/san-kum/servoctl/internal/experiment"
	"github.com/san-kum/servoctl/internal/metrics"
	"github.com/san-kum/servoctl/internal/optim"
	"github.com/san-kum/servoctl/internal/storage"
	"github.com/san-kum/servoctl/internal/telemetry"
)

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ec, err := cfg.Experiment()
	if err != nil {
		return err
	}

	opts := []driver.Option{driver.WithLogger(log)}
	lw, closeLines, err := lineOutput(cfg)
	if err != nil {
		return err
	}
	defer closeLines()
	if lw != nil {
		opts = append(opts, driver.WithObserver(lw))
	}

	exp, err := experiment.New(ec, opts...)
	if err != nil {
		return err
	}

	log.Info().Int("cycles", ec.Cycles).Float64("kp", ec.Loop.Kp).Float64("ki", ec.Loop.Ki).Msg("running simulation")
	start := time.Now()
	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	if lw != nil && lw.Err() != nil {
		log.Warn().Err(lw.Err()).Msg("line output stopped")
	}

	fmt.Printf("completed in %v\n", elapsed)
	if !noSave {
		st := storage.New(cfg.Output.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(runMetadata("sim", cfg, result.Metrics), result.Records)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	fmt.Printf("cycles: %d (lost %d)\n", len(result.Records), result.Lost)
	printMetrics(os.Stdout, result.Metrics)
	return nil
}

// lineOutput returns the Pot/Rotor/Error writer the config asks for, or
// nil. The returned close func is always safe to call.
func lineOutput(cfg *config.Config) (*telemetry.LineWriter, func() error, error) {
	noop := func() error { return nil }
	switch {
	case cfg.Output.Serial != "":
		port, err := telemetry.OpenSerial(cfg.Output.Serial, cfg.Output.Baud)
		if err != nil {
			return nil, noop, err
		}
		return telemetry.NewLineWriter(port), port.Close, nil
	case cfg.Output.Lines:
		return telemetry.NewLineWriter(os.Stdout), noop, nil
	}
	return nil, noop, nil
}

func runMetadata(source string, cfg *config.Config, values map[string]float64) storage.RunMetadata {
	return storage.RunMetadata{
		Source:            source,
		Preset:            preset,
		Seed:              cfg.Sim.Seed,
		Kp:                cfg.Loop.Kp,
		Ki:                cfg.Loop.Ki,
		SampleInterval:    cfg.Loop.SampleInterval.Seconds(),
		SmoothingSetPoint: cfg.Loop.SmoothingSetPoint,
		SmoothingPosition: cfg.Loop.SmoothingPosition,
		Deadzone:          cfg.Loop.Deadzone,
		IntegralLimit:     cfg.Loop.IntegralLimit,
		ErrorMode:         cfg.Loop.ErrorMode,
		Metrics:           values,
	}
}

func printMetrics(w io.Writer, values map[string]float64) {
	fmt.Fprintln(w, "\nmetrics:")
	for _, name := range metrics.Names(values) {
		fmt.Fprintf(w, "  %s: %.6f\n", name, values[name])
	}
}

func runTune(cmd *cobra.Command, args []string) error {
	if len(kpRange) != 2 || len(kiRange) != 2 {
		return errors.New("ranges take exactly two values: min,max")
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	base, err := cfg.Experiment()
	if err != nil {
		return err
	}

	grid := optim.NewGridSearch(
		[]string{"Kp", "Ki"},
		[][]float64{
			optim.Linspace(kpRange[0], kpRange[1], steps),
			optim.Linspace(kiRange[0], kiRange[1], steps),
		},
	)
	build := func(p map[string]float64) (*experiment.Experiment, error) {
		ec := base
		ec.Loop.Kp = p["Kp"]
		ec.Loop.Ki = p["Ki"]
		return experiment.New(ec)
	}

	fmt.Printf("searching %d points on %s over %d cycles...\n", steps*steps, metric, base.Cycles)
	start := time.Now()
	ranked, err := grid.Search(context.Background(), build, metric)
	if err != nil {
		return err
	}
	fmt.Printf("done in %v\n\n", time.Since(start))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tKP\tKI\t%s\n", metric)
	for i, c := range ranked {
		if i >= top {
			break
		}
		fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%.3f\n", i+1, c.Params["Kp"], c.Params["Ki"], c.Score)
	}
	return w.Flush()
}
