// Package trace provides run-trace recording for post-run analysis and export.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// StatusChange is a single node status transition.
type StatusChange struct {
	NodeID string `yaml:"node_id"`
	Status string `yaml:"status"`
}

// StatusRecord captures one atomic batch of node status changes.
type StatusRecord struct {
	Clock   int64          `yaml:"clock"`
	Changes []StatusChange `yaml:"changes"`
}

// LogRecord captures one narrative log entry.
type LogRecord struct {
	Clock    int64  `yaml:"clock"`
	ID       int    `yaml:"id"`
	Text     string `yaml:"text"`
	Severity string `yaml:"severity"`
}

// MetricsRecord captures the accumulated totals after one processed step.
type MetricsRecord struct {
	Clock         int64   `yaml:"clock"`
	StepIndex     int     `yaml:"step_index"`
	NodeName      string  `yaml:"node_name"`
	TotalCost     float64 `yaml:"total_cost"`
	TotalTime     float64 `yaml:"total_time"`
	TotalDistance float64 `yaml:"total_distance"`
	TotalCarbon   float64 `yaml:"total_carbon"`
}

// RunStatusRecord captures a change of the overall run status.
type RunStatusRecord struct {
	Clock  int64  `yaml:"clock"`
	Status string `yaml:"status"`
}
