package sim

import "github.com/chainsim/chainsim/sim/trace"

// Observer receives engine notifications in processing order. Callbacks run
// synchronously on the engine's goroutine and must not call back into the
// engine's mutating methods. Slices and values passed in are owned by the
// observer.
type Observer interface {
	// NodeStatusChanged delivers one atomic batch of status changes.
	// Blocked propagation arrives as a single batch.
	NodeStatusChanged(clock int64, updates []StatusUpdate)
	LogAppended(entry LogEntry)
	MetricsRecorded(clock int64, snap MetricsSnapshot)
	RunStatusChanged(clock int64, status RunStatus)
}

// ObserverFuncs adapts optional callbacks to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStatus    func(clock int64, updates []StatusUpdate)
	OnLog       func(entry LogEntry)
	OnMetrics   func(clock int64, snap MetricsSnapshot)
	OnRunStatus func(clock int64, status RunStatus)
}

func (f ObserverFuncs) NodeStatusChanged(clock int64, updates []StatusUpdate) {
	if f.OnStatus != nil {
		f.OnStatus(clock, updates)
	}
}

func (f ObserverFuncs) LogAppended(entry LogEntry) {
	if f.OnLog != nil {
		f.OnLog(entry)
	}
}

func (f ObserverFuncs) MetricsRecorded(clock int64, snap MetricsSnapshot) {
	if f.OnMetrics != nil {
		f.OnMetrics(clock, snap)
	}
}

func (f ObserverFuncs) RunStatusChanged(clock int64, status RunStatus) {
	if f.OnRunStatus != nil {
		f.OnRunStatus(clock, status)
	}
}

// TraceObserver records engine notifications into a trace.RunTrace.
// Recording honours the trace level: TraceLevelNone records nothing and
// TraceLevelSteps skips log records.
type TraceObserver struct {
	Trace *trace.RunTrace
}

// NewTraceObserver creates a TraceObserver backed by a fresh trace.
func NewTraceObserver(config trace.TraceConfig) *TraceObserver {
	return &TraceObserver{Trace: trace.NewRunTrace(config)}
}

func (t *TraceObserver) NodeStatusChanged(clock int64, updates []StatusUpdate) {
	batch := make([]trace.StatusChange, len(updates))
	for i, u := range updates {
		batch[i] = trace.StatusChange{NodeID: u.NodeID, Status: string(u.Status)}
	}
	t.Trace.RecordStatus(trace.StatusRecord{Clock: clock, Changes: batch})
}

func (t *TraceObserver) LogAppended(entry LogEntry) {
	t.Trace.RecordLog(trace.LogRecord{
		Clock:    entry.Clock,
		ID:       entry.ID,
		Text:     entry.Text,
		Severity: string(entry.Severity),
	})
}

func (t *TraceObserver) MetricsRecorded(clock int64, snap MetricsSnapshot) {
	t.Trace.RecordMetrics(trace.MetricsRecord{
		Clock:         clock,
		StepIndex:     snap.StepIndex,
		NodeName:      snap.NodeName,
		TotalCost:     snap.TotalCost,
		TotalTime:     snap.TotalTime,
		TotalDistance: snap.TotalDistance,
		TotalCarbon:   snap.TotalCarbon,
	})
}

func (t *TraceObserver) RunStatusChanged(clock int64, status RunStatus) {
	t.Trace.RecordRunStatus(trace.RunStatusRecord{Clock: clock, Status: string(status)})
}
