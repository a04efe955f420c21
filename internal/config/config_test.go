package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/servoctl/internal/as5600"
	"github.com/san-kum/servoctl/internal/control"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	lc, err := cfg.ControlConfig()
	if err != nil {
		t.Fatal(err)
	}
	if lc != control.DefaultConfig() {
		t.Errorf("expected loop defaults to match control.DefaultConfig, got %+v", lc)
	}
	if cfg.Sensor.Address != as5600.DefaultAddress {
		t.Errorf("expected address 0x36, got %#x", cfg.Sensor.Address)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if cfg == nil {
				t.Fatal("expected preset, got nil")
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("invalid preset: %v", err)
			}
			if cfg.Loop.IntegralLimit <= 0 {
				t.Error("expected a finite integral limit")
			}
			if _, err := cfg.Experiment(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestGetPresetCopies(t *testing.T) {
	cfg := GetPreset("wrap")
	cfg.Loop.Kp = 99
	if Presets["wrap"].Loop.Kp == 99 {
		t.Error("GetPreset must not alias the preset table")
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servo.yaml")
	cfg := GetPreset("wrap")
	cfg.Loop.SampleInterval = 50 * time.Millisecond
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Loop != cfg.Loop {
		t.Errorf("loop section mismatch:\n got %+v\nwant %+v", loaded.Loop, cfg.Loop)
	}
	if loaded.Sim != cfg.Sim {
		t.Errorf("sim section mismatch")
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servo.yaml")
	data := "loop:\n  p_gain: 3\n  sample_interval: 20ms\nsensor:\n  register: raw_angle\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Loop.Kp != 3 || cfg.Loop.SampleInterval != 20*time.Millisecond {
		t.Errorf("expected overrides, got %+v", cfg.Loop)
	}
	if cfg.Loop.SmoothingPosition != 0.09 {
		t.Errorf("expected default smoothing to survive, got %f", cfg.Loop.SmoothingPosition)
	}
	reg, err := cfg.SensorRegister()
	if err != nil || reg != as5600.RegRawAngle {
		t.Errorf("expected raw angle register, got %#x %v", reg, err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"smoothing", func(c *Config) { c.Loop.SmoothingSetPoint = 2 }},
		{"error mode", func(c *Config) { c.Loop.ErrorMode = "spiral" }},
		{"register", func(c *Config) { c.Sensor.Register = "magnitude" }},
		{"backend", func(c *Config) { c.Hardware.Backend = "arduino" }},
		{"cycles", func(c *Config) { c.Sim.Cycles = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
