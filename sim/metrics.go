// Tracks run-wide accumulated metrics (cost, time, distance, carbon) and the
// per-step snapshot history handed to presentation layers.

package sim

import (
	"fmt"
	"io"
)

// Multiplier ranges for leg metrics. Each is drawn uniformly per leg.
const (
	legCostMin   = 0.5
	legCostMax   = 1.0
	legSpeedMin  = 500.0 // distance units per time unit
	legSpeedMax  = 800.0
	legCarbonMin = 0.2
	legCarbonMax = 0.5
)

// RunMetrics accumulates totals across a run. All fields start at zero and
// never decrease until the next Start.
type RunMetrics struct {
	TotalCost     float64
	TotalTime     float64
	TotalDistance float64
	TotalCarbon   float64
}

// Leg is the metric delta of travelling between two consecutive nodes.
type Leg struct {
	Distance float64
	Cost     float64
	Time     float64
	Carbon   float64
}

// newLeg derives cost, time and carbon for a leg of the given distance.
// Draws are taken in a fixed order: cost, time, carbon.
func newLeg(distance float64, src Float64Source) Leg {
	return Leg{
		Distance: distance,
		Cost:     distance * uniform(src, legCostMin, legCostMax),
		Time:     distance / uniform(src, legSpeedMin, legSpeedMax),
		Carbon:   distance * uniform(src, legCarbonMin, legCarbonMax),
	}
}

// Add accumulates a leg into the totals.
func (m *RunMetrics) Add(l Leg) {
	m.TotalCost += l.Cost
	m.TotalTime += l.Time
	m.TotalDistance += l.Distance
	m.TotalCarbon += l.Carbon
}

// MetricsSnapshot is the state of the totals after one processed step.
type MetricsSnapshot struct {
	StepIndex     int
	NodeName      string
	TotalCost     float64
	TotalTime     float64
	TotalDistance float64
	TotalCarbon   float64
}

// snapshot captures the current totals for the given step.
func (m RunMetrics) snapshot(step int, nodeName string) MetricsSnapshot {
	return MetricsSnapshot{
		StepIndex:     step,
		NodeName:      nodeName,
		TotalCost:     m.TotalCost,
		TotalTime:     m.TotalTime,
		TotalDistance: m.TotalDistance,
		TotalCarbon:   m.TotalCarbon,
	}
}

// Totals returns the snapshot's totals as RunMetrics.
func (s MetricsSnapshot) Totals() RunMetrics {
	return RunMetrics{
		TotalCost:     s.TotalCost,
		TotalTime:     s.TotalTime,
		TotalDistance: s.TotalDistance,
		TotalCarbon:   s.TotalCarbon,
	}
}

// Dominates reports whether every total in m is >= the matching total in prev.
func (m RunMetrics) Dominates(prev RunMetrics) bool {
	return m.TotalCost >= prev.TotalCost &&
		m.TotalTime >= prev.TotalTime &&
		m.TotalDistance >= prev.TotalDistance &&
		m.TotalCarbon >= prev.TotalCarbon
}

// Print writes the end-of-run summary.
func (s RunSnapshot) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Supply Chain Metrics ===")
	fmt.Fprintf(w, "Run ID          : %s\n", s.RunID)
	fmt.Fprintf(w, "Run Status      : %s\n", s.Status)
	fmt.Fprintf(w, "Stages Processed: %d / %d\n", len(s.History), len(s.Path))
	fmt.Fprintf(w, "Total Cost      : %.2f\n", s.Metrics.TotalCost)
	fmt.Fprintf(w, "Total Time      : %.2f\n", s.Metrics.TotalTime)
	fmt.Fprintf(w, "Total Distance  : %.2f km\n", s.Metrics.TotalDistance)
	fmt.Fprintf(w, "Total Carbon    : %.2f\n", s.Metrics.TotalCarbon)
	if failed, ok := s.FailedNode(); ok {
		fmt.Fprintf(w, "Failed At       : %s\n", failed)
	}
}
