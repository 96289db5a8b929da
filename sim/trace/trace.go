package trace

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// TraceLevel controls the verbosity of run tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps captures status changes, metric snapshots and run status.
	TraceLevelSteps TraceLevel = "steps"
	// TraceLevelFull additionally captures every log entry.
	TraceLevelFull TraceLevel = "full"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:  true,
	TraceLevelSteps: true,
	TraceLevelFull:  true,
	"":              true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

func (c TraceConfig) enabled() bool {
	return c.Level != TraceLevelNone && c.Level != ""
}

// RunTrace collects records during a single run, in processing order.
type RunTrace struct {
	Config    TraceConfig       `yaml:"-"`
	Statuses  []StatusRecord    `yaml:"statuses"`
	Logs      []LogRecord       `yaml:"logs,omitempty"`
	Metrics   []MetricsRecord   `yaml:"metrics"`
	RunStatus []RunStatusRecord `yaml:"run_status"`
}

// NewRunTrace creates a RunTrace ready for recording.
func NewRunTrace(config TraceConfig) *RunTrace {
	return &RunTrace{
		Config:    config,
		Statuses:  make([]StatusRecord, 0),
		Logs:      make([]LogRecord, 0),
		Metrics:   make([]MetricsRecord, 0),
		RunStatus: make([]RunStatusRecord, 0),
	}
}

// RecordStatus appends a status batch record.
func (rt *RunTrace) RecordStatus(record StatusRecord) {
	if rt.Config.enabled() {
		rt.Statuses = append(rt.Statuses, record)
	}
}

// RecordLog appends a log record. Only kept at TraceLevelFull.
func (rt *RunTrace) RecordLog(record LogRecord) {
	if rt.Config.Level == TraceLevelFull {
		rt.Logs = append(rt.Logs, record)
	}
}

// RecordMetrics appends a metrics record.
func (rt *RunTrace) RecordMetrics(record MetricsRecord) {
	if rt.Config.enabled() {
		rt.Metrics = append(rt.Metrics, record)
	}
}

// RecordRunStatus appends a run status record.
func (rt *RunTrace) RecordRunStatus(record RunStatusRecord) {
	if rt.Config.enabled() {
		rt.RunStatus = append(rt.RunStatus, record)
	}
}

// Reset discards all records, keeping the configuration.
func (rt *RunTrace) Reset() {
	*rt = *NewRunTrace(rt.Config)
}

// WriteYAML encodes the trace to w.
func (rt *RunTrace) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rt); err != nil {
		return fmt.Errorf("encoding run trace: %w", err)
	}
	return enc.Close()
}
