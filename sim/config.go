package sim

import (
	"fmt"
	"math"
	"time"
)

// DefaultDistanceScale turns unit-sphere chord lengths into kilometres
// (mean Earth radius).
const DefaultDistanceScale = 6371.0

// DelayConfig groups the pacing delays of a run.
// Success < Minor < Degraded must hold so a clean stage re-enters fastest.
type DelayConfig struct {
	Start    time.Duration // before the first node is processed
	Process  time.Duration // between marking a node active and evaluating its outcome
	Success  time.Duration // before advancing after a clean outcome
	Minor    time.Duration // before advancing after a minor delay
	Degraded time.Duration // before advancing after a degraded continuation
}

// EngineConfig groups the tunable parameters of the engine.
type EngineConfig struct {
	Delays        DelayConfig
	DistanceScale float64 // multiplier applied to unit-sphere chord distances
	DefaultRisk   float64 // risk applied to nodes without an explicit score
}

// DefaultDelayConfig returns the default pacing delays.
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		Start:    1 * time.Second,
		Process:  1 * time.Second,
		Success:  1500 * time.Millisecond,
		Minor:    2 * time.Second,
		Degraded: 3 * time.Second,
	}
}

// DefaultEngineConfig returns an EngineConfig populated with defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Delays:        DefaultDelayConfig(),
		DistanceScale: DefaultDistanceScale,
		DefaultRisk:   DefaultRisk,
	}
}

// Validate checks delay ordering, the distance scale and the default risk.
func (c EngineConfig) Validate() error {
	d := c.Delays
	for _, nd := range []struct {
		name string
		val  time.Duration
	}{
		{"start", d.Start}, {"process", d.Process}, {"success", d.Success},
		{"minor", d.Minor}, {"degraded", d.Degraded},
	} {
		if nd.val < 0 {
			return fmt.Errorf("delays.%s must be non-negative, got %v", nd.name, nd.val)
		}
	}
	if !(d.Success < d.Minor && d.Minor < d.Degraded) {
		return fmt.Errorf("delays must satisfy success < minor < degraded, got %v, %v, %v", d.Success, d.Minor, d.Degraded)
	}
	if math.IsNaN(c.DistanceScale) || math.IsInf(c.DistanceScale, 0) || c.DistanceScale <= 0 {
		return fmt.Errorf("distance_scale must be a finite positive number, got %v", c.DistanceScale)
	}
	if err := validateRisk(c.DefaultRisk); err != nil {
		return fmt.Errorf("default_risk: %w", err)
	}
	return nil
}

// toTicks converts a delay to simulation ticks (microseconds).
func toTicks(d time.Duration) int64 {
	return d.Microseconds()
}
