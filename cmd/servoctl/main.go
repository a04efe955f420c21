package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/servoctl/internal/config"
	"github.com/san-kum/servoctl/internal/logging"
	"github.com/san-kum/servoctl/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	jsonLogs   bool

	kp        float64
	ki        float64
	interval  time.Duration
	errorMode string
	cycles    int
	seed      int64
	failEvery int

	lines    bool
	serialTo string
	noSave   bool
	record   bool
	backend  string

	kpRange []float64
	kiRange []float64
	steps   int
	metric  string
	top     int

	theme string
)

// main registers the commands and runs the root command. With no
// subcommand it opens the preset menu on the simulated rig.
func main() {
	rootCmd := &cobra.Command{
		Use:   "servoctl",
		Short: "position servo loop for an AS5600 encoder and an H-bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			viz.SetTheme(theme)
			return viz.RunInteractive()
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "start from a named preset")
	pf.StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	pf.BoolVar(&jsonLogs, "json", false, "log as JSON instead of console text")
	pf.StringVar(&theme, "theme", "bench", "live view color theme")

	simCmd := &cobra.Command{
		Use:   "sim",
		Short: "run the loop against the simulated rig and save the run",
		Args:  cobra.NoArgs,
		RunE:  runSim,
	}
	addLoopFlags(simCmd)
	simCmd.Flags().IntVar(&cycles, "cycles", config.DefaultCycles, "cycles to run")
	simCmd.Flags().Int64Var(&seed, "seed", 1, "noise seed")
	simCmd.Flags().IntVar(&failEvery, "fail-every", 0, "fail every n-th sensor read")
	addOutputFlags(simCmd)
	simCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")

	hwCmd := &cobra.Command{
		Use:   "hw",
		Short: "run the loop on hardware until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runHardware,
	}
	addLoopFlags(hwCmd)
	hwCmd.Flags().IntVar(&cycles, "cycles", 0, "stop after n cycles (0 runs until interrupted)")
	hwCmd.Flags().StringVar(&backend, "backend", "", "pwm backend: periph or rpio")
	hwCmd.Flags().BoolVar(&record, "record", false, "save the run on exit")
	addOutputFlags(hwCmd)

	angleCmd := &cobra.Command{
		Use:   "angle",
		Short: "read the encoder once",
		Args:  cobra.NoArgs,
		RunE:  readAngle,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "live view on the simulated rig, or on hardware with --hw",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addLoopFlags(liveCmd)
	liveCmd.Flags().Int64Var(&seed, "seed", 1, "noise seed")
	liveCmd.Flags().IntVar(&failEvery, "fail-every", 0, "fail every n-th sensor read")
	liveCmd.Flags().Bool("hw", false, "drive the real servo")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search the gains on the simulated rig",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	tuneCmd.Flags().Float64SliceVar(&kpRange, "kp-range", []float64{0, 20}, "p gain range (min,max)")
	tuneCmd.Flags().Float64SliceVar(&kiRange, "ki-range", []float64{0, 2}, "i gain range (min,max)")
	tuneCmd.Flags().IntVar(&steps, "steps", 5, "grid points per gain")
	tuneCmd.Flags().StringVar(&metric, "metric", "iae", "metric to minimize")
	tuneCmd.Flags().IntVar(&top, "top", 5, "candidates to print")
	tuneCmd.Flags().IntVar(&cycles, "cycles", config.DefaultCycles, "cycles per candidate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot set-point, rotor and duty of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and frequency analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-8s p=%-5g i=%-5g mode=%s\n", name, p.Loop.Kp, p.Loop.Ki, p.Loop.ErrorMode)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of simulations from yaml",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "simulate from random starting angles and count settled runs",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addLoopFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&spread, "spread", 1000, "initial angle spread in counts")
	monteCarloCmd.Flags().IntVar(&cycles, "cycles", config.DefaultCycles, "cycles per trial")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 1, "trial seed")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render a run and its final dial as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVar(&outDir, "out", ".", "output directory")

	rootCmd.AddCommand(simCmd, hwCmd, angleCmd, liveCmd, tuneCmd, listCmd, plotCmd, analyzeCmd,
		exportCmd, exportCSVCmd, exportJSONCmd, presetsCmd, initCmd, scenarioCmd, monteCarloCmd, svgCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&kp, "kp", 10.0, "p gain")
	cmd.Flags().Float64Var(&ki, "ki", 0.0, "i gain")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "sample interval")
	cmd.Flags().StringVar(&errorMode, "error-mode", "linear", "error mode: linear or circular")
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&lines, "lines", false, "print Pot/Rotor/Error lines to stdout")
	cmd.Flags().StringVar(&serialTo, "serial", "", "write Pot/Rotor/Error lines to a serial port")
}

// resolveConfig layers defaults, then the preset, then the config file,
// then any flag set on the command line.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") || cfg.Output.DataDir == "" {
		cfg.Output.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("kp") {
		cfg.Loop.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Loop.Ki = ki
	}
	if flags.Changed("interval") {
		cfg.Loop.SampleInterval = interval
	}
	if flags.Changed("error-mode") {
		cfg.Loop.ErrorMode = errorMode
	}
	if flags.Changed("cycles") {
		cfg.Sim.Cycles = cycles
	}
	if flags.Changed("seed") {
		cfg.Sim.Seed = seed
	}
	if flags.Changed("fail-every") {
		cfg.Sim.FailEvery = failEvery
	}
	if flags.Changed("backend") {
		cfg.Hardware.Backend = backend
	}
	if flags.Changed("lines") {
		cfg.Output.Lines = lines
	}
	if flags.Changed("serial") {
		cfg.Output.Serial = serialTo
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logging.New(os.Stderr, cfg.LogLevel, !jsonLogs)
}
