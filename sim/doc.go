// Package sim provides the stochastic supply-chain simulation engine.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - node.go: ChainNode, the immutable input stage, and path validation
//   - status.go: NodeStatus / RunStatus lifecycles and log severities
//   - event.go: the two scheduled event types (ProcessNodeEvent, OutcomeEvent)
//   - engine.go: Start/Restart, the step function and outcome evaluation
//
// # Scheduling
//
// The engine is a discrete-event loop over a virtual clock measured in ticks
// (microseconds). Start only enqueues events; callers drive the queue with
// Step, RunUntilIdle, AdvanceTo or RunRealtime. Every event carries the run
// generation it was scheduled for, and events from an abandoned run are
// dropped when popped.
//
// # Randomness
//
// Leg multipliers and outcome draws come from separate PartitionedRNG
// subsystems, so a run is reproducible from its SimulationKey and leg draws
// never shift outcome draws.
//
// # Observation
//
// Presentation layers Subscribe an Observer and receive status updates, log
// entries, metric snapshots and run status changes in processing order.
// Snapshot returns deep copies for polling readers.
package sim
