// sim/engine.go
package sim

import (
	"container/heap"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Outcome model constants.
const (
	// riskWeight converts a risk score into a failure probability: risk 10 → 0.5.
	riskWeight = 0.05

	// CriticalThreshold is the severity above which a triggering event halts the run.
	CriticalThreshold = 0.85
	// DegradedThreshold is the severity above which the run continues with a long delay.
	DegradedThreshold = 0.5
)

// ErrRunInProgress is returned by Start while a run is still running.
var ErrRunInProgress = errors.New("a run is already in progress")

// FailureChance returns the probability that a node with the given risk
// triggers a disruption event.
func FailureChance(risk float64) float64 {
	return risk * riskWeight
}

// EventQueue implements heap.Interface and orders events by timestamp,
// then by insertion order.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type EventQueue []Event

func (eq EventQueue) Len() int { return len(eq) }
func (eq EventQueue) Less(i, j int) bool {
	if eq[i].Timestamp() != eq[j].Timestamp() {
		return eq[i].Timestamp() < eq[j].Timestamp()
	}
	return eq[i].sequence() < eq[j].sequence()
}
func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(Event))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*eq = old[0 : n-1]
	return item
}

// Engine walks a chain of nodes one at a time, drawing an outcome for each.
// It holds the virtual clock, the pending events and the single mutable run
// state; presentation layers only observe it.
//
// Thread-safety: NOT thread-safe. Must be driven from a single goroutine.
type Engine struct {
	cfg        EngineConfig
	rng        *PartitionedRNG
	legRNG     Float64Source
	outcomeRNG Float64Source

	// Clock is the current simulation time in ticks (microseconds).
	Clock int64
	// EventQueue has all pending events, including stale ones from abandoned runs.
	EventQueue EventQueue
	nextSeq    uint64

	// per-run state, reset by Start
	generation uint64
	runID      string
	path       []ChainNode
	status     RunStatus
	statuses   map[string]NodeStatus
	metrics    RunMetrics
	history    []MetricsSnapshot
	log        []LogEntry
	err        error

	observers []Observer
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithSeed seeds both RNG subsystems from key.
func WithSeed(key SimulationKey) Option {
	return func(e *Engine) { e.rng = NewPartitionedRNG(key) }
}

// WithLegSource overrides the source of leg multiplier draws.
func WithLegSource(src Float64Source) Option {
	return func(e *Engine) { e.legRNG = src }
}

// WithOutcomeSource overrides the source of failure roll and severity draws.
func WithOutcomeSource(src Float64Source) Option {
	return func(e *Engine) { e.outcomeRNG = src }
}

// WithObserver subscribes o before the first run.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// NewEngine creates an idle engine. The configuration is validated up front.
func NewEngine(cfg EngineConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		EventQueue: make(EventQueue, 0),
		status:     RunIdle,
		statuses:   make(map[string]NodeStatus),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = NewPartitionedRNG(NewSimulationKey(DefaultSeed))
	}
	if e.legRNG == nil {
		e.legRNG = e.rng.ForSubsystem(SubsystemLegs)
	}
	if e.outcomeRNG == nil {
		e.outcomeRNG = e.rng.ForSubsystem(SubsystemOutcomes)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Subscribe registers an observer for all subsequent notifications.
func (e *Engine) Subscribe(o Observer) {
	e.observers = append(e.observers, o)
}

// Start begins a new run over path. It is a no-op returning ErrRunInProgress
// while a run is still running. Structural problems in path are reported
// before any state is touched.
func (e *Engine) Start(path []ChainNode) error {
	if e.status == RunRunning {
		return ErrRunInProgress
	}
	return e.begin(path)
}

// Restart abandons the current run, if any, and starts a new one over path.
// Events still queued for the abandoned run are ignored when they fire.
func (e *Engine) Restart(path []ChainNode) error {
	if e.status == RunRunning {
		logrus.Infof("[tick %07d] Abandoning run %s", e.Clock, e.runID)
	}
	return e.begin(path)
}

func (e *Engine) begin(path []ChainNode) error {
	if err := ValidatePath(path, e.cfg.DefaultRisk); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	e.generation++
	e.runID = uuid.NewString()
	e.path = append([]ChainNode(nil), path...)
	e.statuses = make(map[string]NodeStatus, len(path))
	e.metrics = RunMetrics{}
	e.history = make([]MetricsSnapshot, 0, len(path))
	e.log = make([]LogEntry, 0, 2*len(path)+2)
	e.err = nil

	logrus.Infof("[tick %07d] Starting run %s (generation %d) over %d nodes", e.Clock, e.runID, e.generation, len(path))
	e.setRunStatus(RunRunning)
	e.appendLog(SeverityNeutral, "Simulation started: %d stages in the chain", len(path))

	if len(path) == 0 {
		e.setRunStatus(RunCompleted)
		return nil
	}
	e.scheduleAfter(e.cfg.Delays.Start, &ProcessNodeEvent{Index: 0})
	return nil
}

// scheduleAfter stamps ev with the current generation and pushes it delay
// ticks into the future.
func (e *Engine) scheduleAfter(delay time.Duration, ev Event) {
	h := eventHeader{time: e.Clock + toTicks(delay), gen: e.generation, seq: e.nextSeq}
	e.nextSeq++
	switch v := ev.(type) {
	case *ProcessNodeEvent:
		v.eventHeader = h
	case *OutcomeEvent:
		v.eventHeader = h
	}
	heap.Push(&e.EventQueue, ev)
}

// Step runs the next pending event. It returns false when the queue is empty.
// Events scheduled for an earlier generation advance the clock but do not
// touch run state.
func (e *Engine) Step() bool {
	if len(e.EventQueue) == 0 {
		return false
	}
	ev := heap.Pop(&e.EventQueue).(Event)
	if ev.Timestamp() > e.Clock {
		e.Clock = ev.Timestamp()
	}
	if ev.Generation() != e.generation {
		logrus.Debugf("[tick %07d] Dropping stale %T from generation %d", e.Clock, ev, ev.Generation())
		return true
	}
	logrus.Debugf("[tick %07d] Executing %T", e.Clock, ev)
	ev.Execute(e)
	return true
}

// RunUntilIdle drains the event queue in virtual time.
func (e *Engine) RunUntilIdle() {
	for e.Step() {
	}
}

// AdvanceTo runs every event scheduled at or before tick, then moves the
// clock to tick.
func (e *Engine) AdvanceTo(tick int64) {
	for len(e.EventQueue) > 0 && e.EventQueue[0].Timestamp() <= tick {
		e.Step()
	}
	if tick > e.Clock {
		e.Clock = tick
	}
}

// Pending returns the number of queued events, stale ones included.
func (e *Engine) Pending() int { return len(e.EventQueue) }

// processNode is the step function: it activates the node at index, records
// the leg into it and schedules the outcome evaluation.
func (e *Engine) processNode(index int) {
	if index >= len(e.path) {
		e.setRunStatus(RunCompleted)
		e.appendLog(SeveritySuccess, "Supply chain delivered: all %d stages completed", len(e.path))
		return
	}
	node := e.path[index]
	e.setStatuses(StatusUpdate{NodeID: node.ID, Status: NodeActive})

	if index == 0 {
		e.recordSnapshot(index, node)
	} else {
		distance, err := legDistance(e.path[index-1], node, e.cfg.DistanceScale)
		if err != nil {
			e.abort(index, err)
			return
		}
		e.metrics.Add(newLeg(distance, e.legRNG))
		e.recordSnapshot(index, node)
	}

	roll := e.outcomeRNG.Float64()
	e.scheduleAfter(e.cfg.Delays.Process, &OutcomeEvent{Index: index, Roll: roll})
}

// evaluateOutcome applies the outcome of the node at index given its roll.
func (e *Engine) evaluateOutcome(index int, roll float64) {
	node := e.path[index]
	risk := node.EffectiveRisk(e.cfg.DefaultRisk)
	chance := FailureChance(risk)

	if roll >= chance {
		e.setStatuses(StatusUpdate{NodeID: node.ID, Status: NodeSuccess})
		e.appendLog(SeveritySuccess, "%s: stage completed on schedule", node)
		e.scheduleAfter(e.cfg.Delays.Success, &ProcessNodeEvent{Index: index + 1})
		return
	}

	severity := e.outcomeRNG.Float64() + risk*riskWeight
	switch {
	case severity > CriticalThreshold:
		blocked := e.blockFrom(index, NodeError)
		e.appendLog(SeverityDanger, "%s: critical disruption, supply chain halted (%d downstream stages blocked)", node, blocked)
		e.setRunStatus(RunFailed)
	case severity > DegradedThreshold:
		e.setStatuses(StatusUpdate{NodeID: node.ID, Status: NodeWarning})
		e.appendLog(SeverityWarning, "%s: disruption detected, moving forward with delays", node)
		e.scheduleAfter(e.cfg.Delays.Degraded, &ProcessNodeEvent{Index: index + 1})
	default:
		e.setStatuses(StatusUpdate{NodeID: node.ID, Status: NodeWarning})
		e.appendLog(SeverityNeutral, "%s: minor delay absorbed", node)
		e.scheduleAfter(e.cfg.Delays.Minor, &ProcessNodeEvent{Index: index + 1})
	}
}

// abort fails the run on a structural error discovered mid-run.
func (e *Engine) abort(index int, err error) {
	logrus.Warnf("[tick %07d] Run %s aborted at node %d: %v", e.Clock, e.runID, index, err)
	e.err = err
	e.blockFrom(index, NodeError)
	e.appendLog(SeverityDanger, "%s: cannot continue: %v", e.path[index], err)
	e.setRunStatus(RunFailed)
}

// blockFrom sets the node at index to status and every later node to
// NodeBlocked in a single update. It returns the number of blocked nodes.
func (e *Engine) blockFrom(index int, status NodeStatus) int {
	updates := make([]StatusUpdate, 0, len(e.path)-index)
	updates = append(updates, StatusUpdate{NodeID: e.path[index].ID, Status: status})
	for _, n := range e.path[index+1:] {
		updates = append(updates, StatusUpdate{NodeID: n.ID, Status: NodeBlocked})
	}
	e.setStatuses(updates...)
	return len(updates) - 1
}

func (e *Engine) setStatuses(updates ...StatusUpdate) {
	applied := make([]StatusUpdate, 0, len(updates))
	for _, u := range updates {
		if e.statuses[u.NodeID].IsTerminal() {
			logrus.Debugf("[tick %07d] Ignoring %s for terminal node %s", e.Clock, u.Status, u.NodeID)
			continue
		}
		e.statuses[u.NodeID] = u.Status
		applied = append(applied, u)
	}
	if len(applied) == 0 {
		return
	}
	for _, o := range e.observers {
		o.NodeStatusChanged(e.Clock, applied)
	}
}

func (e *Engine) setRunStatus(s RunStatus) {
	e.status = s
	for _, o := range e.observers {
		o.RunStatusChanged(e.Clock, s)
	}
}

func (e *Engine) appendLog(sev Severity, format string, args ...any) {
	entry := LogEntry{
		ID:       len(e.log) + 1,
		Text:     fmt.Sprintf(format, args...),
		Severity: sev,
		Clock:    e.Clock,
	}
	e.log = append(e.log, entry)
	for _, o := range e.observers {
		o.LogAppended(entry)
	}
}

func (e *Engine) recordSnapshot(index int, node ChainNode) {
	snap := e.metrics.snapshot(index, node.String())
	e.history = append(e.history, snap)
	for _, o := range e.observers {
		o.MetricsRecorded(e.Clock, snap)
	}
}

// Status returns the overall run status.
func (e *Engine) Status() RunStatus { return e.status }

// NodeStatus returns the status of the node with the given id in the current
// run. Unknown and untouched nodes report NodePending.
func (e *Engine) NodeStatus(id string) NodeStatus {
	if s, ok := e.statuses[id]; ok {
		return s
	}
	return NodePending
}

// Err returns the structural error that failed the current run, if any.
func (e *Engine) Err() error { return e.err }

// RunID returns the identifier of the current run; empty before the first Start.
func (e *Engine) RunID() string { return e.runID }

// RunSnapshot is a deep copy of the engine's run state.
type RunSnapshot struct {
	RunID      string
	Generation uint64
	Clock      int64
	Status     RunStatus
	Path       []ChainNode
	Statuses   map[string]NodeStatus
	Metrics    RunMetrics
	History    []MetricsSnapshot
	Log        []LogEntry
	Err        error
}

// Snapshot returns a copy of the current run state that later engine
// progress will not mutate.
func (e *Engine) Snapshot() RunSnapshot {
	statuses := make(map[string]NodeStatus, len(e.statuses))
	for id, s := range e.statuses {
		statuses[id] = s
	}
	return RunSnapshot{
		RunID:      e.runID,
		Generation: e.generation,
		Clock:      e.Clock,
		Status:     e.status,
		Path:       append([]ChainNode(nil), e.path...),
		Statuses:   statuses,
		Metrics:    e.metrics,
		History:    append([]MetricsSnapshot(nil), e.history...),
		Log:        append([]LogEntry(nil), e.log...),
		Err:        e.err,
	}
}

// StatusOf returns the status of the node with the given id, NodePending when absent.
func (s RunSnapshot) StatusOf(id string) NodeStatus {
	if st, ok := s.Statuses[id]; ok {
		return st
	}
	return NodePending
}

// CountStatus returns how many path nodes are in status st.
func (s RunSnapshot) CountStatus(st NodeStatus) int {
	count := 0
	for _, n := range s.Path {
		if s.StatusOf(n.ID) == st {
			count++
		}
	}
	return count
}

// FailedNode returns the display name of the node in NodeError, if any.
func (s RunSnapshot) FailedNode() (string, bool) {
	for _, n := range s.Path {
		if s.StatusOf(n.ID) == NodeError {
			return n.String(), true
		}
	}
	return "", false
}
