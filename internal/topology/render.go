package topology

import (
	"fmt"
	"io"
	"strings"

	"github.com/espmesh/meshctl/internal/protocol"
)

const indentStep = "  "

// Render writes one line per node, indented by depth.
func (t *Topology) Render(w io.Writer) error {
	if t.Len() == 0 {
		_, err := fmt.Fprintf(w, "no nodes now=%dms\n", t.CurrentMs)
		return err
	}
	if _, err := fmt.Fprintf(w, "root=%s nodes=%d now=%dms\n", t.Root, t.Len(), t.CurrentMs); err != nil {
		return err
	}
	var err error
	t.Walk(func(n protocol.StatisticsNodeInfo, depth int) {
		if err == nil {
			_, err = io.WriteString(w, t.line(&n, depth)+"\n")
		}
	})
	return err
}

func (t *Topology) String() string {
	var b strings.Builder
	_ = t.Render(&b)
	return b.String()
}

func (t *Topology) line(n *protocol.StatisticsNodeInfo, depth int) string {
	m := NodeMetrics(n, t.CurrentMs)
	s := fmt.Sprintf("%s%s %s last=%dms rssi=%d layer=%d",
		strings.Repeat(indentStep, depth), n.Mac, m.Liveness(), m.SinceLastMs, n.LastRssi, n.Layer)
	if m.HasThroughput {
		s += fmt.Sprintf(" throughput=%.3fKB/s rate=%.2fpkt/s", m.ThroughputKBps, m.RatePkts)
	}
	return s
}
