package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chainsim/chainsim/sim"
)

// consoleObserver is the terminal presentation sink: it prints the run
// narrative to out and reports status and metric changes through logrus.
type consoleObserver struct {
	out io.Writer
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out}
}

// severityTags are fixed-width so narrative lines align.
var severityTags = map[sim.Severity]string{
	sim.SeverityNeutral: "[ .. ]",
	sim.SeveritySuccess: "[ OK ]",
	sim.SeverityWarning: "[WARN]",
	sim.SeverityDanger:  "[FAIL]",
}

func (c *consoleObserver) LogAppended(entry sim.LogEntry) {
	fmt.Fprintf(c.out, "%9s %s %s\n", formatClock(entry.Clock), severityTags[entry.Severity], entry.Text)
}

func (c *consoleObserver) NodeStatusChanged(clock int64, updates []sim.StatusUpdate) {
	parts := make([]string, len(updates))
	for i, u := range updates {
		parts[i] = u.NodeID + "=" + string(u.Status)
	}
	logrus.Infof("[tick %07d] status %s", clock, strings.Join(parts, ", "))
}

func (c *consoleObserver) MetricsRecorded(clock int64, snap sim.MetricsSnapshot) {
	logrus.Debugf("[tick %07d] step %d (%s): cost=%.2f time=%.2f distance=%.2f carbon=%.2f",
		clock, snap.StepIndex, snap.NodeName, snap.TotalCost, snap.TotalTime, snap.TotalDistance, snap.TotalCarbon)
}

func (c *consoleObserver) RunStatusChanged(clock int64, status sim.RunStatus) {
	logrus.Infof("[tick %07d] run %s", clock, status)
}

// formatClock renders ticks (microseconds) as seconds.
func formatClock(ticks int64) string {
	return fmt.Sprintf("%.3fs", float64(ticks)/1e6)
}
