package topology

import (
	"github.com/espmesh/meshctl/internal/protocol"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Snapshot is the machine readable form of a Topology, tree order preserved.
type Snapshot struct {
	Root      string         `yaml:"root" cbor:"root"`
	CurrentMs uint64         `yaml:"current_ms" cbor:"current_ms"`
	Nodes     []NodeSnapshot `yaml:"nodes" cbor:"nodes"`
}

type NodeSnapshot struct {
	Mac            string   `yaml:"mac" cbor:"mac"`
	Parent         string   `yaml:"parent" cbor:"parent"`
	Depth          int      `yaml:"depth" cbor:"depth"`
	Layer          uint8    `yaml:"layer" cbor:"layer"`
	Up             bool     `yaml:"up" cbor:"up"`
	SinceLastMs    uint64   `yaml:"since_last_ms" cbor:"since_last_ms"`
	Rssi           int64    `yaml:"rssi" cbor:"rssi"`
	Missed         uint64   `yaml:"missed" cbor:"missed"`
	Messages       uint64   `yaml:"messages" cbor:"messages"`
	BytesSent      uint64   `yaml:"bytes_sent" cbor:"bytes_sent"`
	ThroughputKBps *float64 `yaml:"throughput_kbps,omitempty" cbor:"throughput_kbps,omitempty"`
	RatePkts       *float64 `yaml:"rate_pkts,omitempty" cbor:"rate_pkts,omitempty"`
}

func (t *Topology) Snapshot() Snapshot {
	s := Snapshot{CurrentMs: t.CurrentMs, Nodes: make([]NodeSnapshot, 0, t.Len())}
	if t.Len() != 0 {
		s.Root = t.Root.String()
	}
	t.Walk(func(n protocol.StatisticsNodeInfo, depth int) {
		m := NodeMetrics(&n, t.CurrentMs)
		ns := NodeSnapshot{
			Mac:         n.Mac.String(),
			Parent:      n.ParentMac.String(),
			Depth:       depth,
			Layer:       n.Layer,
			Up:          m.Up,
			SinceLastMs: m.SinceLastMs,
			Rssi:        n.LastRssi,
			Missed:      n.MissedMessages,
			Messages:    n.CountOfMessages,
			BytesSent:   n.TotalBytesSent,
		}
		if m.HasThroughput {
			kbps, rate := m.ThroughputKBps, m.RatePkts
			ns.ThroughputKBps, ns.RatePkts = &kbps, &rate
		}
		s.Nodes = append(s.Nodes, ns)
	})
	return s
}

func (s Snapshot) YAML() ([]byte, error) {
	b, err := yaml.Marshal(s)
	return b, errors.Annotate(err, "snapshot yaml")
}
