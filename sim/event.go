package sim

import "github.com/sirupsen/logrus"

// Event defines the interface for all scheduled engine events.
// Each event has a Timestamp (in ticks), the run Generation it was scheduled
// for, and an Execute method that advances engine state when invoked.
type Event interface {
	Timestamp() int64
	Generation() uint64
	Execute(*Engine)
	sequence() uint64
}

// eventHeader carries the scheduling fields shared by every event.
type eventHeader struct {
	time int64  // Scheduled execution time (in ticks)
	gen  uint64 // Run generation at scheduling time
	seq  uint64 // Insertion order, breaks timestamp ties FIFO
}

func (h eventHeader) Timestamp() int64   { return h.time }
func (h eventHeader) Generation() uint64 { return h.gen }
func (h eventHeader) sequence() uint64   { return h.seq }

// ProcessNodeEvent marks the node at Index active and records the leg into it.
// An Index past the end of the path completes the run.
type ProcessNodeEvent struct {
	eventHeader
	Index int
}

// Execute the ProcessNodeEvent
func (e *ProcessNodeEvent) Execute(eng *Engine) {
	logrus.Debugf("<< ProcessNode: index %d at %d ticks", e.Index, e.time)
	eng.processNode(e.Index)
}

// OutcomeEvent applies the outcome of the node at Index once its processing
// delay has elapsed. Roll was drawn when the node became active.
type OutcomeEvent struct {
	eventHeader
	Index int
	Roll  float64
}

// Execute the OutcomeEvent
func (e *OutcomeEvent) Execute(eng *Engine) {
	logrus.Debugf("<< Outcome: index %d roll %.4f at %d ticks", e.Index, e.Roll, e.time)
	eng.evaluateOutcome(e.Index, e.Roll)
}
