package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/control"
	"github.com/san-kum/servoctl/internal/driver"
	"github.com/san-kum/servoctl/internal/experiment"
	"github.com/san-kum/servoctl/internal/sim"
)

const (
	DefaultDataDir   = "./runs"
	DefaultCycles    = 300
	DefaultTolerance = 10.0
	DefaultBaud      = 115200
	DefaultPWMFreq   = 2000
)

type Config struct {
	Loop     LoopConfig     `yaml:"loop"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Hardware HardwareConfig `yaml:"hardware"`
	Sim      SimConfig      `yaml:"sim"`
	Output   OutputConfig   `yaml:"output"`
	LogLevel string         `yaml:"log_level"`
}

type LoopConfig struct {
	Kp                float64       `yaml:"p_gain"`
	Ki                float64       `yaml:"i_gain"`
	SampleInterval    time.Duration `yaml:"sample_interval"`
	SmoothingSetPoint float64       `yaml:"smoothing_set_point"`
	SmoothingPosition float64       `yaml:"smoothing_position"`
	Deadzone          uint32        `yaml:"deadzone"`
	MaxDuty           uint32        `yaml:"max_duty"`
	IntegralLimit     float64       `yaml:"integral_limit"`
	ErrorMode         string        `yaml:"error_mode"`
	Period            float64       `yaml:"period"`
}

type SensorConfig struct {
	Bus       string `yaml:"bus"`
	SpeedKHz  int    `yaml:"speed_khz"`
	Address   uint16 `yaml:"address"`
	Register  string `yaml:"register"`
	LostAfter int    `yaml:"lost_after"`
}

type HardwareConfig struct {
	// Backend is "periph" or "rpio".
	Backend      string  `yaml:"backend"`
	ADCChannel   int     `yaml:"adc_channel"`
	ADCFullScale float64 `yaml:"adc_full_scale"`
	PWMForward   string  `yaml:"pwm_forward"`
	PWMReverse   string  `yaml:"pwm_reverse"`
	PWMFrequency int     `yaml:"pwm_frequency"`
	// PWMSteps is the duty that means full on, for either backend.
	PWMSteps uint32 `yaml:"pwm_steps"`
}

type SimConfig struct {
	Integrator     string  `yaml:"integrator"`
	SubSteps       int     `yaml:"substeps"`
	Supply         float64 `yaml:"supply"`
	MaxDuty        uint32  `yaml:"max_duty"`
	Inertia        float64 `yaml:"inertia"`
	TorqueConstant float64 `yaml:"torque_constant"`
	Damping        float64 `yaml:"damping"`
	Coulomb        float64 `yaml:"coulomb"`
	InitialAngle   float64 `yaml:"initial_angle"`
	SetPoint       float64 `yaml:"set_point"`
	SensorNoise    float64 `yaml:"sensor_noise"`
	PotNoise       float64 `yaml:"pot_noise"`
	Seed           int64   `yaml:"seed"`
	Cycles         int     `yaml:"cycles"`
	FailEvery      int     `yaml:"fail_every"`
	Tolerance      float64 `yaml:"tolerance"`
}

type OutputConfig struct {
	DataDir string `yaml:"data_dir"`
	Lines   bool   `yaml:"lines"`
	Serial  string `yaml:"serial"`
	Baud    int    `yaml:"baud"`
}

func DefaultConfig() *Config {
	lc := control.DefaultConfig()
	rc := sim.DefaultRigConfig()
	return &Config{
		Loop: LoopConfig{
			Kp:                lc.Kp,
			Ki:                lc.Ki,
			SampleInterval:    lc.SampleInterval,
			SmoothingSetPoint: lc.SmoothingSetPoint,
			SmoothingPosition: lc.SmoothingPosition,
			Deadzone:          lc.Deadzone,
			ErrorMode:         lc.ErrorMode.String(),
			Period:            lc.Period,
		},
		Sensor: SensorConfig{
			SpeedKHz:  100,
			Address:   as5600.DefaultAddress,
			Register:  "angle",
			LostAfter: driver.DefaultLostAfter,
		},
		Hardware: HardwareConfig{
			Backend:      "periph",
			ADCFullScale: 3.3,
			PWMForward:   "GPIO12",
			PWMReverse:   "GPIO13",
			PWMFrequency: DefaultPWMFreq,
			PWMSteps:     1000,
		},
		Sim: SimConfig{
			Integrator:     rc.Integrator,
			SubSteps:       rc.SubSteps,
			Supply:         rc.Supply,
			MaxDuty:        rc.MaxDuty,
			Inertia:        rc.Motor.Inertia,
			TorqueConstant: rc.Motor.TorqueConstant,
			Damping:        rc.Motor.Damping,
			InitialAngle:   rc.InitialAngle,
			SetPoint:       rc.SetPoint,
			Seed:           rc.Seed,
			Cycles:         DefaultCycles,
			Tolerance:      DefaultTolerance,
		},
		Output: OutputConfig{
			DataDir: DefaultDataDir,
			Baud:    DefaultBaud,
		},
		LogLevel: "info",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks everything that can be checked without hardware.
func (c *Config) Validate() error {
	if _, err := c.ControlConfig(); err != nil {
		return err
	}
	if _, err := c.SensorRegister(); err != nil {
		return err
	}
	switch c.Hardware.Backend {
	case "periph", "rpio":
	default:
		return errors.Errorf("unknown hardware backend %q", c.Hardware.Backend)
	}
	if c.Sim.Cycles < 0 {
		return errors.Errorf("sim cycles %d", c.Sim.Cycles)
	}
	return nil
}

// ControlConfig converts and validates the loop section.
func (c *Config) ControlConfig() (control.Config, error) {
	mode, err := control.ParseErrorMode(c.Loop.ErrorMode)
	if err != nil {
		return control.Config{}, err
	}
	cc := control.Config{
		Kp:                c.Loop.Kp,
		Ki:                c.Loop.Ki,
		SampleInterval:    c.Loop.SampleInterval,
		SmoothingSetPoint: c.Loop.SmoothingSetPoint,
		SmoothingPosition: c.Loop.SmoothingPosition,
		Deadzone:          c.Loop.Deadzone,
		MaxDuty:           c.Loop.MaxDuty,
		IntegralLimit:     c.Loop.IntegralLimit,
		ErrorMode:         mode,
		Period:            c.Loop.Period,
	}
	return cc, cc.Validate()
}

// SensorRegister maps the register name to its address.
func (c *Config) SensorRegister() (byte, error) {
	switch c.Sensor.Register {
	case "", "angle":
		return as5600.RegAngle, nil
	case "raw_angle":
		return as5600.RegRawAngle, nil
	}
	return 0, errors.Errorf("unknown sensor register %q", c.Sensor.Register)
}

// SensorOptions returns the as5600 options for the sensor section.
func (c *Config) SensorOptions() ([]as5600.Option, error) {
	reg, err := c.SensorRegister()
	if err != nil {
		return nil, err
	}
	return []as5600.Option{as5600.WithAddress(c.Sensor.Address), as5600.WithRegister(reg)}, nil
}

// RigConfig converts the sim section.
func (c *Config) RigConfig() sim.RigConfig {
	return sim.RigConfig{
		Motor: sim.Motor{
			Inertia:        c.Sim.Inertia,
			TorqueConstant: c.Sim.TorqueConstant,
			Damping:        c.Sim.Damping,
			Coulomb:        c.Sim.Coulomb,
		},
		Supply:       c.Sim.Supply,
		MaxDuty:      c.Sim.MaxDuty,
		Integrator:   c.Sim.Integrator,
		SubSteps:     c.Sim.SubSteps,
		InitialAngle: c.Sim.InitialAngle,
		SetPoint:     c.Sim.SetPoint,
		SensorNoise:  c.Sim.SensorNoise,
		PotNoise:     c.Sim.PotNoise,
		Seed:         c.Sim.Seed,
	}
}

// Experiment assembles a simulated run from the whole file.
func (c *Config) Experiment() (experiment.Config, error) {
	lc, err := c.ControlConfig()
	if err != nil {
		return experiment.Config{}, err
	}
	return experiment.Config{
		Loop:      lc,
		Rig:       c.RigConfig(),
		Cycles:    c.Sim.Cycles,
		LostAfter: c.Sensor.LostAfter,
		FailEvery: c.Sim.FailEvery,
		Tolerance: c.Sim.Tolerance,
	}, nil
}
