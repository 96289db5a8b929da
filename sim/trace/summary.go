package trace

// TraceSummary aggregates statistics from a RunTrace.
type TraceSummary struct {
	StatusChanges int
	StepsRecorded int
	// FinalStatus is the last recorded run status, "" if none.
	FinalStatus string
	// FailedNode is the node that ended in "error", "" if none.
	FailedNode   string
	BlockedNodes int
	// FinalStatusByNode maps node ID → last recorded status.
	FinalStatusByNode map[string]string
	// StatusDistribution maps status → number of nodes ending in it.
	StatusDistribution map[string]int
	// FinalTotals is the last metrics record, zero if none.
	FinalTotals MetricsRecord
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *TraceSummary {
	summary := &TraceSummary{
		FinalStatusByNode:  make(map[string]string),
		StatusDistribution: make(map[string]int),
	}
	if rt == nil {
		return summary
	}

	for _, rec := range rt.Statuses {
		for _, c := range rec.Changes {
			summary.StatusChanges++
			summary.FinalStatusByNode[c.NodeID] = c.Status
		}
	}
	for id, st := range summary.FinalStatusByNode {
		summary.StatusDistribution[st]++
		if st == "error" {
			summary.FailedNode = id
		}
	}
	summary.BlockedNodes = summary.StatusDistribution["blocked"]

	summary.StepsRecorded = len(rt.Metrics)
	if n := len(rt.Metrics); n > 0 {
		summary.FinalTotals = rt.Metrics[n-1]
	}
	if n := len(rt.RunStatus); n > 0 {
		summary.FinalStatus = rt.RunStatus[n-1].Status
	}
	return summary
}
