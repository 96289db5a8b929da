package sim

// NodeStatus is the per-run state of one chain node.
// A node without an entry in the status map is NodePending.
type NodeStatus string

const (
	NodePending NodeStatus = "pending"
	NodeActive  NodeStatus = "active"
	NodeSuccess NodeStatus = "success"
	NodeWarning NodeStatus = "warning"
	NodeError   NodeStatus = "error"
	NodeBlocked NodeStatus = "blocked"
)

// IsTerminal reports whether no further transition may happen in this run.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeBlocked || s == NodeError
}

// RunStatus is the overall state of the engine.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Severity classifies a log entry for presentation.
type Severity string

const (
	SeverityNeutral Severity = "neutral"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// StatusUpdate is a single (node, status) change.
type StatusUpdate struct {
	NodeID string
	Status NodeStatus
}

// LogEntry is one line of the run narrative.
type LogEntry struct {
	ID       int // unique and increasing within a run, starting at 1
	Text     string
	Severity Severity
	Clock    int64 // tick at which the entry was appended
}
