package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chainsim/chainsim/sim"
)

// sweepCmd runs many seeded traversals of one chain in virtual time
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run many seeded traversals and report outcome statistics",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if sweepRuns <= 0 {
			logrus.Fatalf("--runs must be positive, got %d", sweepRuns)
		}
		nodes, cfg := loadInputs(cmd)

		report, err := runSweep(nodes, cfg, seed, sweepRuns)
		if err != nil {
			logrus.Fatalf("Sweep aborted: %v", err)
		}
		report.Print(cmd.OutOrStdout())
	},
}

// SweepReport aggregates the outcomes of a seeded sweep.
type SweepReport struct {
	Runs      int
	Completed int
	Failed    int
	// Mean totals over all runs, failed runs included.
	MeanMetrics sim.RunMetrics
	// Mean totals over completed runs only.
	MeanCompletedMetrics sim.RunMetrics
	FailuresByNode       map[string]int // node ID → critical stoppages
	WarningsByNode       map[string]int // node ID → minor or degraded outcomes
	nodeOrder            []sim.ChainNode
}

// runSweep runs n traversals seeded firstSeed, firstSeed+1, ... on a single
// engine, restarting it for each seed's draws.
func runSweep(nodes []sim.ChainNode, cfg sim.EngineConfig, firstSeed int64, n int) (*SweepReport, error) {
	report := &SweepReport{
		FailuresByNode: make(map[string]int),
		WarningsByNode: make(map[string]int),
		nodeOrder:      nodes,
	}
	var sumAll, sumCompleted sim.RunMetrics
	for i := 0; i < n; i++ {
		s := firstSeed + int64(i)
		engine, err := sim.NewEngine(cfg, sim.WithSeed(sim.NewSimulationKey(s)))
		if err != nil {
			return nil, err
		}
		if err := engine.Start(nodes); err != nil {
			return nil, fmt.Errorf("seed %d: %w", s, err)
		}
		engine.RunUntilIdle()
		snap := engine.Snapshot()
		logrus.Debugf("seed %d: %s after %d stages", s, snap.Status, len(snap.History))

		report.Runs++
		addMetrics(&sumAll, snap.Metrics)
		switch snap.Status {
		case sim.RunCompleted:
			report.Completed++
			addMetrics(&sumCompleted, snap.Metrics)
		case sim.RunFailed:
			report.Failed++
		}
		for _, node := range nodes {
			switch snap.StatusOf(node.ID) {
			case sim.NodeError:
				report.FailuresByNode[node.ID]++
			case sim.NodeWarning:
				report.WarningsByNode[node.ID]++
			}
		}
	}
	report.MeanMetrics = scaleMetrics(sumAll, report.Runs)
	report.MeanCompletedMetrics = scaleMetrics(sumCompleted, report.Completed)
	return report, nil
}

func addMetrics(sum *sim.RunMetrics, m sim.RunMetrics) {
	sum.TotalCost += m.TotalCost
	sum.TotalTime += m.TotalTime
	sum.TotalDistance += m.TotalDistance
	sum.TotalCarbon += m.TotalCarbon
}

func scaleMetrics(sum sim.RunMetrics, n int) sim.RunMetrics {
	if n == 0 {
		return sim.RunMetrics{}
	}
	f := float64(n)
	return sim.RunMetrics{
		TotalCost:     sum.TotalCost / f,
		TotalTime:     sum.TotalTime / f,
		TotalDistance: sum.TotalDistance / f,
		TotalCarbon:   sum.TotalCarbon / f,
	}
}

// CompletionRate returns the fraction of runs that completed.
func (r *SweepReport) CompletionRate() float64 {
	if r.Runs == 0 {
		return 0
	}
	return float64(r.Completed) / float64(r.Runs)
}

// MostFragile returns the node ID with the most critical stoppages, ties
// broken by path order. ok is false when no run failed.
func (r *SweepReport) MostFragile() (id string, ok bool) {
	best := 0
	for _, n := range r.nodeOrder {
		if c := r.FailuresByNode[n.ID]; c > best {
			best, id = c, n.ID
		}
	}
	return id, best > 0
}

// Print displays the sweep results.
func (r *SweepReport) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Supply Chain Sweep ===")
	fmt.Fprintf(w, "Runs              : %d\n", r.Runs)
	fmt.Fprintf(w, "Completed         : %d (%.1f%%)\n", r.Completed, 100*r.CompletionRate())
	fmt.Fprintf(w, "Failed            : %d\n", r.Failed)
	fmt.Fprintf(w, "Mean Cost         : %.2f\n", r.MeanMetrics.TotalCost)
	fmt.Fprintf(w, "Mean Time         : %.2f\n", r.MeanMetrics.TotalTime)
	fmt.Fprintf(w, "Mean Distance     : %.2f km\n", r.MeanMetrics.TotalDistance)
	fmt.Fprintf(w, "Mean Carbon       : %.2f\n", r.MeanMetrics.TotalCarbon)
	if r.Completed > 0 {
		fmt.Fprintf(w, "Mean Cost (done)  : %.2f\n", r.MeanCompletedMetrics.TotalCost)
	}

	ids := make([]string, 0, len(r.nodeOrder))
	for _, n := range r.nodeOrder {
		ids = append(ids, n.ID)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return r.FailuresByNode[ids[i]] > r.FailuresByNode[ids[j]]
	})
	fmt.Fprintln(w, "--- Per-stage outcomes ---")
	for _, id := range ids {
		fmt.Fprintf(w, "%-20s critical=%d warnings=%d\n", id, r.FailuresByNode[id], r.WarningsByNode[id])
	}
}
