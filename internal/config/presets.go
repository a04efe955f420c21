package config

import "sort"

// Presets are named starting points. Each one is DefaultConfig with a few
// fields changed, and all of them bound the integral.
var Presets = map[string]*Config{
	"bench": preset(func(c *Config) {
		c.Loop.IntegralLimit = 400
	}),
	"pi": preset(func(c *Config) {
		c.Loop.Ki = 1
		c.Loop.IntegralLimit = 200
		c.Sim.Cycles = 600
	}),
	"snappy": preset(func(c *Config) {
		c.Loop.Kp = 4
		c.Loop.SmoothingSetPoint = 0.5
		c.Loop.SmoothingPosition = 0.5
		c.Loop.IntegralLimit = 400
	}),
	"wrap": preset(func(c *Config) {
		c.Loop.Kp = 5
		c.Loop.SmoothingPosition = 1
		c.Loop.ErrorMode = "circular"
		c.Loop.IntegralLimit = 400
		c.Sim.InitialAngle = 4000
		c.Sim.SetPoint = 100
	}),
	"noisy": preset(func(c *Config) {
		c.Loop.IntegralLimit = 400
		c.Sim.SensorNoise = 3
		c.Sim.PotNoise = 5
		c.Sim.FailEvery = 7
		c.Sim.Coulomb = 20
	}),
}

func preset(mutate func(*Config)) *Config {
	c := DefaultConfig()
	mutate(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
