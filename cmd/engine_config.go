package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chainsim/chainsim/sim"
)

// EngineFile represents the engine config YAML structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type EngineFile struct {
	Delays        DelaysFile `yaml:"delays"`
	DistanceScale float64    `yaml:"distance_scale"`
	DefaultRisk   float64    `yaml:"default_risk"`
}

// DelaysFile holds pacing delays as Go duration strings ("1.5s", "800ms").
type DelaysFile struct {
	Start    time.Duration `yaml:"start"`
	Process  time.Duration `yaml:"process"`
	Success  time.Duration `yaml:"success"`
	Minor    time.Duration `yaml:"minor"`
	Degraded time.Duration `yaml:"degraded"`
}

func engineFileFrom(cfg sim.EngineConfig) EngineFile {
	d := cfg.Delays
	return EngineFile{
		Delays: DelaysFile{
			Start:    d.Start,
			Process:  d.Process,
			Success:  d.Success,
			Minor:    d.Minor,
			Degraded: d.Degraded,
		},
		DistanceScale: cfg.DistanceScale,
		DefaultRisk:   cfg.DefaultRisk,
	}
}

// EngineConfig converts the file into the engine's configuration.
func (f EngineFile) EngineConfig() sim.EngineConfig {
	return sim.EngineConfig{
		Delays: sim.DelayConfig{
			Start:    f.Delays.Start,
			Process:  f.Delays.Process,
			Success:  f.Delays.Success,
			Minor:    f.Delays.Minor,
			Degraded: f.Delays.Degraded,
		},
		DistanceScale: f.DistanceScale,
		DefaultRisk:   f.DefaultRisk,
	}
}

// loadEngineConfig parses an engine config file on top of the defaults:
// keys absent from the file keep their default value.
// Uses strict field checking.
func loadEngineConfig(path string) (sim.EngineConfig, error) {
	file := engineFileFrom(sim.DefaultEngineConfig())
	if path == "" {
		return file.EngineConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sim.EngineConfig{}, fmt.Errorf("reading engine config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return sim.EngineConfig{}, fmt.Errorf("parsing engine config %s: %w", path, err)
	}
	return file.EngineConfig(), nil
}

// resolveEngineConfig loads the config file and applies explicitly set flags
// on top of it, then validates the result.
func resolveEngineConfig(cmd *cobra.Command, path string) (sim.EngineConfig, error) {
	cfg, err := loadEngineConfig(path)
	if err != nil {
		return sim.EngineConfig{}, err
	}
	if cmd.Flags().Changed("distance-scale") {
		cfg.DistanceScale = distanceScale
	}
	if cmd.Flags().Changed("default-risk") {
		cfg.DefaultRisk = defaultRisk
	}
	if err := cfg.Validate(); err != nil {
		return sim.EngineConfig{}, err
	}
	return cfg, nil
}
