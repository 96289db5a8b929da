package sim

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureChance_RiskRange_WithinHalf(t *testing.T) {
	tests := []struct {
		risk float64
		want float64
	}{
		{0, 0},
		{2, 0.1},
		{7.5, 0.375},
		{10, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, FailureChance(tt.risk), 1e-12, "risk %v", tt.risk)
	}
	for r := MinRisk; r <= MaxRisk; r += 0.25 {
		c := FailureChance(r)
		assert.True(t, c >= 0 && c <= 0.5, "FailureChance(%v) = %v outside [0, 0.5]", r, c)
	}
}

func TestEngine_AllRollsClean_CompletesWithAllSuccess(t *testing.T) {
	// GIVEN the four-stage path and outcome rolls that never trigger an event
	e := newTestEngine(t, constSource(0.99))

	// WHEN the run is started and drained
	require.NoError(t, e.Start(testPath()))
	assert.Equal(t, RunRunning, e.Status())
	e.RunUntilIdle()

	// THEN the run completes with every node successful
	snap := e.Snapshot()
	assert.Equal(t, RunCompleted, snap.Status)
	assert.Equal(t, 4, snap.CountStatus(NodeSuccess))
	require.Len(t, snap.History, 4)
	assert.Equal(t, MetricsSnapshot{StepIndex: 0, NodeName: "Design (Santa Clara)"}, snap.History[0])
	for i, h := range snap.History {
		assert.Equal(t, i, h.StepIndex)
	}
	assert.Greater(t, snap.Metrics.TotalDistance, 1000.0)
	assert.Equal(t, snap.History[3].Totals(), snap.Metrics)

	// start entry + one per node + completion entry
	require.Len(t, snap.Log, 6)
	assert.Equal(t, SeverityNeutral, snap.Log[0].Severity)
	assert.Equal(t, SeveritySuccess, snap.Log[5].Severity)
	for i, entry := range snap.Log {
		assert.Equal(t, i+1, entry.ID)
	}
	assert.NoError(t, snap.Err)
	assert.Zero(t, e.Pending())
}

func TestEngine_CriticalAtSecondNode_BlocksDownstream(t *testing.T) {
	// GIVEN node 0 rolls clean, node 1 rolls 0 (< 0.375) and severity 0.9+0.375 > 0.85
	e := newTestEngine(t, script(0.99, 0.0, 0.9))

	// WHEN the run is drained
	require.NoError(t, e.Start(testPath()))
	e.RunUntilIdle()

	// THEN node 1 errors, later nodes are blocked and the run failed
	snap := e.Snapshot()
	assert.Equal(t, RunFailed, snap.Status)
	assert.Equal(t, NodeSuccess, snap.StatusOf("design"))
	assert.Equal(t, NodeError, snap.StatusOf("fab"))
	assert.Equal(t, NodeBlocked, snap.StatusOf("packaging"))
	assert.Equal(t, NodeBlocked, snap.StatusOf("test"))
	assert.Equal(t, 1, snap.CountStatus(NodeError))

	require.Len(t, snap.History, 2)
	assert.Equal(t, 0, snap.History[0].StepIndex)
	assert.Equal(t, 1, snap.History[1].StepIndex)
	assert.Greater(t, snap.History[1].TotalCost, 0.0, "leg into the failing node is still accounted")

	last := snap.Log[len(snap.Log)-1]
	assert.Equal(t, SeverityDanger, last.Severity)
	assert.Contains(t, last.Text, "2 downstream stages blocked")
	assert.Zero(t, e.Pending(), "engine halts after a critical stoppage")

	name, ok := snap.FailedNode()
	assert.True(t, ok)
	assert.Equal(t, "Wafer Fab (Hsinchu)", name)
}

func TestEngine_OutcomeBranches(t *testing.T) {
	// node 1 has risk 7.5: failure chance 0.375, severity bias 0.375
	tests := []struct {
		name         string
		outcomes     *scriptedSource
		wantStatus   NodeStatus
		wantSeverity Severity
		wantNextAt   int64 // tick at which node 2 becomes active
	}{
		{
			name:         "clean roll",
			outcomes:     script(0.99, 0.375),
			wantStatus:   NodeSuccess,
			wantSeverity: SeveritySuccess,
			wantNextAt:   4500*second/1000 + 1500*second/1000,
		},
		{
			name:         "minor delay",
			outcomes:     script(0.99, 0.0, 0.1),
			wantStatus:   NodeWarning,
			wantSeverity: SeverityNeutral,
			wantNextAt:   4500*second/1000 + 2*second,
		},
		{
			name:         "degraded continuation",
			outcomes:     script(0.99, 0.0, 0.3),
			wantStatus:   NodeWarning,
			wantSeverity: SeverityWarning,
			wantNextAt:   4500*second/1000 + 3*second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN an observer that records when packaging becomes active
			var activeAt int64 = -1
			var fabEntry *LogEntry
			obs := ObserverFuncs{
				OnStatus: func(clock int64, updates []StatusUpdate) {
					for _, u := range updates {
						if u.NodeID == "packaging" && u.Status == NodeActive {
							activeAt = clock
						}
					}
				},
				OnLog: func(entry LogEntry) {
					if fabEntry == nil && entry.ID == 3 {
						fabEntry = &entry
					}
				},
			}
			e := newTestEngine(t, tt.outcomes, WithObserver(obs))

			// WHEN the run is drained
			require.NoError(t, e.Start(testPath()))
			e.RunUntilIdle()

			// THEN node 1 carries the branch status and the run still completes
			snap := e.Snapshot()
			assert.Equal(t, RunCompleted, snap.Status)
			assert.Equal(t, tt.wantStatus, snap.StatusOf("fab"))
			require.NotNil(t, fabEntry)
			assert.Equal(t, tt.wantSeverity, fabEntry.Severity)
			assert.Equal(t, tt.wantNextAt, activeAt)
			assert.Len(t, snap.History, 4)
		})
	}
}

func TestEngine_DelayOrdering_SuccessFastestDegradedSlowest(t *testing.T) {
	d := DefaultDelayConfig()
	assert.Less(t, d.Success, d.Minor)
	assert.Less(t, d.Minor, d.Degraded)
}

func TestEngine_ZeroRisk_NeverFails(t *testing.T) {
	// GIVEN risk-0 nodes and a source that always draws 0
	path := []ChainNode{
		NewChainNode("a", "A", 0, 0, 0),
		NewChainNode("b", "B", 10, 10, 0),
		NewChainNode("c", "C", 20, 20, 0),
	}
	e := newTestEngine(t, constSource(0))

	require.NoError(t, e.Start(path))
	e.RunUntilIdle()

	// THEN roll 0 >= chance 0 is always a clean outcome
	snap := e.Snapshot()
	assert.Equal(t, RunCompleted, snap.Status)
	assert.Equal(t, 3, snap.CountStatus(NodeSuccess))
}

func TestEngine_DefaultRisk_AppliedToNodesWithoutScore(t *testing.T) {
	// default risk 5 gives failure chance 0.25
	node := ChainNode{ID: "solo", Name: "Solo"}
	tests := []struct {
		name string
		roll float64
		want NodeStatus
	}{
		{"roll above chance", 0.3, NodeSuccess},
		{"roll below chance, low severity", 0.2, NodeWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, script(tt.roll, 0.0))
			require.NoError(t, e.Start([]ChainNode{node}))
			e.RunUntilIdle()
			assert.Equal(t, tt.want, e.NodeStatus("solo"))
			assert.Equal(t, RunCompleted, e.Status())
		})
	}
}

func TestEngine_EmptyPath_CompletesImmediately(t *testing.T) {
	e := newTestEngine(t, constSource(0.99))

	require.NoError(t, e.Start(nil))

	snap := e.Snapshot()
	assert.Equal(t, RunCompleted, snap.Status)
	assert.Len(t, snap.Log, 1, "only the start entry")
	assert.Empty(t, snap.History)
	assert.Equal(t, RunMetrics{}, snap.Metrics)
	assert.Zero(t, e.Pending())
}

func TestEngine_SingleNodeWithoutLocation_Completes(t *testing.T) {
	e := newTestEngine(t, constSource(0.99))
	require.NoError(t, e.Start([]ChainNode{{ID: "only", Risk: ptr(1.0)}}))
	e.RunUntilIdle()

	snap := e.Snapshot()
	assert.Equal(t, RunCompleted, snap.Status)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "only", snap.History[0].NodeName)
}

func TestEngine_InvalidPath_RejectedBeforeStateChange(t *testing.T) {
	tests := []struct {
		name    string
		path    []ChainNode
		wantErr error
	}{
		{
			name:    "missing location",
			path:    []ChainNode{NewChainNode("a", "A", 0, 0, 1), {ID: "b", Risk: ptr(1.0)}},
			wantErr: ErrMissingLocation,
		},
		{
			name:    "risk above range",
			path:    []ChainNode{NewChainNode("a", "A", 0, 0, 11)},
			wantErr: ErrRiskOutOfRange,
		},
		{
			name:    "duplicate id",
			path:    []ChainNode{NewChainNode("a", "A", 0, 0, 1), NewChainNode("a", "A2", 1, 1, 1)},
			wantErr: ErrDuplicateNodeID,
		},
		{
			name:    "empty id",
			path:    []ChainNode{NewChainNode("", "A", 0, 0, 1)},
			wantErr: ErrEmptyNodeID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, constSource(0.99))
			err := e.Start(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, RunIdle, e.Status())
			assert.Empty(t, e.RunID())
			assert.Zero(t, e.Pending())
		})
	}
}

func TestEngine_StartWhileRunning_IsNoOp(t *testing.T) {
	// GIVEN a run that has processed its first node
	e := newTestEngine(t, constSource(0.99))
	require.NoError(t, e.Start(testPath()))
	e.AdvanceTo(1500 * second / 1000)
	before := e.Snapshot()

	// WHEN Start is called again
	err := e.Start(testPath())

	// THEN it is rejected and nothing changed
	assert.ErrorIs(t, err, ErrRunInProgress)
	after := e.Snapshot()
	assert.Equal(t, before.RunID, after.RunID)
	assert.Equal(t, before.Generation, after.Generation)
	assert.Equal(t, before.Log, after.Log)
	assert.Equal(t, before.History, after.History)

	e.RunUntilIdle()
	assert.Equal(t, RunCompleted, e.Status())
}

func TestEngine_RestartMidRun_StartsFresh(t *testing.T) {
	// GIVEN a run that has accumulated the first leg
	e := newTestEngine(t, constSource(0.99))
	require.NoError(t, e.Start(testPath()))
	e.AdvanceTo(4 * second)
	first := e.Snapshot()
	require.Len(t, first.History, 2)
	require.Greater(t, first.Metrics.TotalCost, 0.0)
	require.NotZero(t, e.Pending(), "first run still has queued events")

	// WHEN the run is restarted and drained
	var steps []int
	e.Subscribe(ObserverFuncs{OnMetrics: func(_ int64, snap MetricsSnapshot) {
		steps = append(steps, snap.StepIndex)
	}})
	require.NoError(t, e.Restart(testPath()))
	e.RunUntilIdle()

	// THEN the second run started from zero and its events alone were applied
	snap := e.Snapshot()
	assert.NotEqual(t, first.RunID, snap.RunID)
	assert.Equal(t, first.Generation+1, snap.Generation)
	assert.Equal(t, RunCompleted, snap.Status)
	require.Len(t, snap.History, 4)
	assert.Equal(t, RunMetrics{}, snap.History[0].Totals())
	assert.Equal(t, 4, snap.CountStatus(NodeSuccess))
	assert.Equal(t, 1, snap.Log[0].ID)
	assert.Len(t, snap.Log, 6)
	assert.Equal(t, []int{0, 1, 2, 3}, steps, "no step of the abandoned run leaked through")
}

func TestEngine_RetryAfterFailure_ResetsState(t *testing.T) {
	e := newTestEngine(t, script(0.99, 0.0, 0.9))
	require.NoError(t, e.Start(testPath()))
	e.RunUntilIdle()
	require.Equal(t, RunFailed, e.Status())

	// WHEN started again, the remaining draws are all clean
	require.NoError(t, e.Start(testPath()))
	e.RunUntilIdle()

	snap := e.Snapshot()
	assert.Equal(t, RunCompleted, snap.Status)
	assert.Zero(t, snap.CountStatus(NodeBlocked))
	assert.Zero(t, snap.CountStatus(NodeError))
	assert.Len(t, snap.History, 4)
}

func TestEngine_LegMetrics_UseChordDistance(t *testing.T) {
	// GIVEN leg draws fixed at 0: cost ×0.5, speed 500, carbon ×0.2
	e := newTestEngine(t, constSource(0.99), WithLegSource(constSource(0)))
	path := testPath()

	require.NoError(t, e.Start(path))
	e.RunUntilIdle()

	d := ChordDistance(*path[0].Location, *path[1].Location, DefaultDistanceScale)
	h := e.Snapshot().History[1]
	assert.InDelta(t, d, h.TotalDistance, 1e-9)
	assert.InDelta(t, d*0.5, h.TotalCost, 1e-9)
	assert.InDelta(t, d/500, h.TotalTime, 1e-9)
	assert.InDelta(t, d*0.2, h.TotalCarbon, 1e-9)
}

func TestEngine_BlockedPropagation_SingleBatch(t *testing.T) {
	var batches [][]StatusUpdate
	obs := ObserverFuncs{OnStatus: func(_ int64, updates []StatusUpdate) {
		batches = append(batches, updates)
	}}
	e := newTestEngine(t, script(0.99, 0.0, 0.9), WithObserver(obs))

	require.NoError(t, e.Start(testPath()))
	e.RunUntilIdle()

	last := batches[len(batches)-1]
	assert.Equal(t, []StatusUpdate{
		{NodeID: "fab", Status: NodeError},
		{NodeID: "packaging", Status: NodeBlocked},
		{NodeID: "test", Status: NodeBlocked},
	}, last)
}

func TestEngine_SameSeed_IdenticalRuns(t *testing.T) {
	run := func() RunSnapshot {
		e, err := NewEngine(DefaultEngineConfig(), WithSeed(NewSimulationKey(7)))
		require.NoError(t, err)
		require.NoError(t, e.Start(testPath()))
		e.RunUntilIdle()
		return e.Snapshot()
	}
	a, b := run(), run()
	assert.Equal(t, a.Statuses, b.Statuses)
	assert.Equal(t, a.History, b.History)
	assert.Equal(t, a.Log, b.Log)
	assert.Equal(t, a.Clock, b.Clock)
}

func TestEngine_Snapshot_IsDetached(t *testing.T) {
	e := newTestEngine(t, constSource(0.99))
	require.NoError(t, e.Start(testPath()))
	e.RunUntilIdle()

	snap := e.Snapshot()
	snap.Statuses["design"] = NodeBlocked
	snap.History[0].TotalCost = 1e9
	snap.Log[0].Text = "mutated"

	assert.Equal(t, NodeSuccess, e.NodeStatus("design"))
	again := e.Snapshot()
	assert.Zero(t, again.History[0].TotalCost)
	assert.NotEqual(t, "mutated", again.Log[0].Text)
}

func TestEngine_NodeStatus_UnknownIsPending(t *testing.T) {
	e := newTestEngine(t, constSource(0.99))
	assert.Equal(t, NodePending, e.NodeStatus("nope"))
	assert.Equal(t, RunIdle, e.Status())
}

func TestEngine_AdvanceTo_StopsBetweenSteps(t *testing.T) {
	e := newTestEngine(t, constSource(0.99))
	require.NoError(t, e.Start(testPath()))

	e.AdvanceTo(1500 * second / 1000)

	assert.Equal(t, NodeActive, e.NodeStatus("design"))
	assert.Equal(t, NodePending, e.NodeStatus("fab"))
	assert.Len(t, e.Snapshot().History, 1)
	assert.Equal(t, 1500*second/1000, e.Clock)
}

func TestEngine_RandomRuns_HoldInvariants(t *testing.T) {
	// GIVEN many seeded runs over random paths
	gen := rand.New(rand.NewSource(1))
	for seed := int64(0); seed < 200; seed++ {
		n := 1 + gen.Intn(8)
		path := make([]ChainNode, n)
		for i := range path {
			path[i] = NewChainNode(string(rune('a'+i)), "", gen.Float64()*160-80, gen.Float64()*360-180, gen.Float64()*10)
		}

		active := map[string]bool{}
		maxActive := 0
		obs := ObserverFuncs{OnStatus: func(_ int64, updates []StatusUpdate) {
			for _, u := range updates {
				if u.Status == NodeActive {
					active[u.NodeID] = true
				} else {
					delete(active, u.NodeID)
				}
			}
			if len(active) > maxActive {
				maxActive = len(active)
			}
		}}
		e, err := NewEngine(DefaultEngineConfig(), WithSeed(NewSimulationKey(seed)), WithObserver(obs))
		require.NoError(t, err)
		require.NoError(t, e.Start(path))
		e.RunUntilIdle()
		snap := e.Snapshot()

		// THEN every run ends in a terminal status with consistent bookkeeping
		require.LessOrEqual(t, maxActive, 1, "seed %d", seed)
		require.Equal(t, RunMetrics{}, snap.History[0].Totals(), "seed %d", seed)
		for i := 1; i < len(snap.History); i++ {
			require.True(t, snap.History[i].Totals().Dominates(snap.History[i-1].Totals()), "seed %d step %d", seed, i)
		}
		switch snap.Status {
		case RunCompleted:
			require.Zero(t, snap.CountStatus(NodeError), "seed %d", seed)
			require.Len(t, snap.History, n, "seed %d", seed)
		case RunFailed:
			require.Equal(t, 1, snap.CountStatus(NodeError), "seed %d", seed)
			failedAt := -1
			for i, node := range path {
				if snap.StatusOf(node.ID) == NodeError {
					failedAt = i
				}
				if failedAt >= 0 && i > failedAt {
					require.Equal(t, NodeBlocked, snap.StatusOf(node.ID), "seed %d node %d", seed, i)
				}
			}
			require.Len(t, snap.History, failedAt+1, "seed %d", seed)
		default:
			t.Fatalf("seed %d: run ended in %s", seed, snap.Status)
		}
	}
}

func TestEngine_StructuralErrorMidRun_FailsWithoutNaN(t *testing.T) {
	// GIVEN a running engine whose path lost a location after validation
	e := newTestEngine(t, constSource(0.99))
	require.NoError(t, e.Start(testPath()))
	e.path[2].Location = nil

	// WHEN drained
	e.RunUntilIdle()

	// THEN the run fails at the leg into node 2 with a descriptive error
	snap := e.Snapshot()
	assert.Equal(t, RunFailed, snap.Status)
	assert.ErrorIs(t, snap.Err, ErrMissingLocation)
	assert.Equal(t, NodeError, snap.StatusOf("packaging"))
	assert.Equal(t, NodeBlocked, snap.StatusOf("test"))
	for _, h := range snap.History {
		assert.False(t, math.IsNaN(h.TotalDistance), "NaN distance")
	}
}

func TestNewEngine_InvalidConfig_ReturnsError(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.DistanceScale = 0
	_, err := NewEngine(cfg)
	assert.Error(t, err)
}
