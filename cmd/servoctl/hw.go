package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/config"
	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/driver"
	"github.com/san-kum/servoctl/internal/hal"
	"github.com/san-kum/servoctl/internal/hal/periphio"
	"github.com/san-kum/servoctl/internal/hal/rpio"
	"github.com/san-kum/servoctl/internal/logging"
	"github.com/san-kum/servoctl/internal/metrics"
	"github.com/san-kum/servoctl/internal/storage"
	"github.com/san-kum/servoctl/internal/telemetry"
	"github.com/san-kum/servoctl/internal/viz"
)

// hardware is the opened peripheral set. close releases it in reverse
// order of opening.
type hardware struct {
	sensor  *as5600.Sensor
	analog  *periphio.Analog
	bridge  *hal.HBridge
	closers []func() error
}

func (h *hardware) close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openBus(cfg *config.Config) (i2c.BusCloser, error) {
	if err := periphio.Init(); err != nil {
		return nil, err
	}
	speed := physic.Frequency(cfg.Sensor.SpeedKHz) * physic.KiloHertz
	return periphio.OpenBus(cfg.Sensor.Bus, speed)
}

func openHardware(cfg *config.Config, log zerolog.Logger) (_ *hardware, err error) {
	hw := &hardware{}
	defer func() {
		if err != nil {
			hw.close()
		}
	}()

	bus, err := openBus(cfg)
	if err != nil {
		return nil, err
	}
	hw.closers = append(hw.closers, bus.Close)

	opts, err := cfg.SensorOptions()
	if err != nil {
		return nil, err
	}
	hw.sensor = as5600.New(bus, opts...)
	if st, err := hw.sensor.Status(); err != nil {
		log.Warn().Err(err).Msg("magnet status unavailable")
	} else if !st.OK() {
		log.Warn().Bool("detected", st.Detected).Bool("weak", st.TooWeak).Bool("strong", st.TooStrong).Msg("magnet out of range")
	}

	full := physic.ElectricPotential(cfg.Hardware.ADCFullScale * float64(physic.Volt))
	hw.analog, err = periphio.NewADS1115(bus, ads1x15.Channel(cfg.Hardware.ADCChannel), full)
	if err != nil {
		return nil, err
	}
	hw.closers = append(hw.closers, hw.analog.Halt)

	var fwd, rev hal.PWMOutput
	switch cfg.Hardware.Backend {
	case "rpio":
		fwd, rev, err = openRPIO(cfg)
		if err != nil {
			return nil, err
		}
		hw.closers = append(hw.closers, rpio.Close)
	default:
		freq := physic.Frequency(cfg.Hardware.PWMFrequency) * physic.Hertz
		if fwd, err = periphio.OpenPWM(cfg.Hardware.PWMForward, freq, cfg.Hardware.PWMSteps); err != nil {
			return nil, err
		}
		if rev, err = periphio.OpenPWM(cfg.Hardware.PWMReverse, freq, cfg.Hardware.PWMSteps); err != nil {
			return nil, err
		}
	}

	hw.bridge, err = hal.NewHBridge(fwd, rev)
	if err != nil {
		return nil, err
	}
	// neutral must be applied while the pins are still mapped
	hw.closers = append(hw.closers, hw.bridge.Stop)

	log.Info().
		Str("backend", cfg.Hardware.Backend).
		Str("fwd", cfg.Hardware.PWMForward).
		Str("rev", cfg.Hardware.PWMReverse).
		Uint32("max_duty", hw.bridge.MaxDuty()).
		Msg("hardware ready")
	return hw, nil
}

func openRPIO(cfg *config.Config) (hal.PWMOutput, hal.PWMOutput, error) {
	fwdPin, err := gpioNumber(cfg.Hardware.PWMForward)
	if err != nil {
		return nil, nil, err
	}
	revPin, err := gpioNumber(cfg.Hardware.PWMReverse)
	if err != nil {
		return nil, nil, err
	}
	if err := rpio.Open(); err != nil {
		return nil, nil, err
	}
	steps := cfg.Hardware.PWMSteps
	clock := cfg.Hardware.PWMFrequency * int(steps)
	fwd, err := rpio.NewPWM(fwdPin, clock, steps)
	if err != nil {
		rpio.Close()
		return nil, nil, err
	}
	rev, err := rpio.NewPWM(revPin, clock, steps)
	if err != nil {
		rpio.Close()
		return nil, nil, err
	}
	return fwd, rev, nil
}

// gpioNumber parses "GPIO12" or "12".
func gpioNumber(name string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(name), "GPIO"), 10, 8)
	if err != nil {
		return 0, errors.Errorf("bad gpio name %q", name)
	}
	return uint8(n), nil
}

func newHardwareDriver(cfg *config.Config, hw *hardware, log zerolog.Logger, obs ...driver.Observer) (*driver.Driver, error) {
	lc, err := cfg.ControlConfig()
	if err != nil {
		return nil, err
	}
	loop, err := control.NewLoop(lc)
	if err != nil {
		return nil, err
	}
	return driver.New(hw.sensor, hw.analog, hw.bridge, loop,
		driver.WithLogger(log),
		driver.WithLostAfter(cfg.Sensor.LostAfter),
		driver.WithObserver(obs...),
	)
}

func runHardware(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	hw, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer hw.close()

	rec := telemetry.NewRecorder(0)
	scores := metrics.Standard(cfg.Loop.SampleInterval.Seconds(), cfg.Sim.Tolerance)
	obs := []driver.Observer{scores}
	if record {
		obs = append(obs, rec)
	}
	lw, closeLines, err := lineOutput(cfg)
	if err != nil {
		return err
	}
	defer closeLines()
	if lw != nil {
		obs = append(obs, lw)
	}

	drv, err := newHardwareDriver(cfg, hw, log, obs...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("interval", cfg.Loop.SampleInterval).Int("cycles", cycles).Msg("loop running")
	runErr := drv.Run(ctx, cycles)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error().Err(runErr).Msg("loop stopped")
	} else {
		runErr = nil
		log.Info().Msg("loop stopped")
	}

	if record && rec.Len() > 0 {
		st := storage.New(cfg.Output.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(runMetadata("hw", cfg, scores.Values()), rec.Records())
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	printMetrics(os.Stdout, scores.Values())
	return runErr
}

func readAngle(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	bus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	opts, err := cfg.SensorOptions()
	if err != nil {
		return err
	}
	sensor := as5600.New(bus, opts...)
	raw, err := sensor.ReadRawAngle()
	if err != nil {
		return errors.Wrap(err, "read angle")
	}
	fmt.Printf("raw:     %d\n", raw)
	fmt.Printf("degrees: %.2f\n", raw.Degrees())

	st, err := sensor.Status()
	if err != nil {
		return errors.Wrap(err, "read status")
	}
	fmt.Printf("magnet:  detected=%t weak=%t strong=%t\n", st.Detected, st.TooWeak, st.TooStrong)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	viz.SetTheme(theme)

	onHW, _ := cmd.Flags().GetBool("hw")
	if !onHW {
		name := preset
		if name == "" {
			name = "sim"
		}
		m, err := viz.SimModel(name, cfg)
		if err != nil {
			return err
		}
		return viz.Run(m)
	}

	// the view owns the terminal, so logs go to a file
	logFile, err := os.Create("servoctl.log")
	if err != nil {
		return err
	}
	defer logFile.Close()
	log, err := logging.New(logFile, cfg.LogLevel, false)
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer hw.close()
	drv, err := newHardwareDriver(cfg, hw, log)
	if err != nil {
		return err
	}
	m := viz.NewModel(drv.Cycle, drv.Loop(), viz.Options{Title: "hardware", Resolution: as5600.Resolution})
	return viz.Run(m)
}
