package topology

import "github.com/espmesh/meshctl/internal/protocol"

// Node is considered Down when its last keep-alive is this old.
const LivenessThresholdMs = 1000

type Metrics struct {
	SinceLastMs uint64
	Up          bool

	// Throughput fields are meaningful only with HasThroughput.
	// It requires at least 2 messages over non-zero time.
	HasThroughput  bool
	ElapsedSec     float64
	ThroughputKBps float64
	RatePkts       float64
}

func (m Metrics) Liveness() string {
	if m.Up {
		return "Up"
	}
	return "Down"
}

func NodeMetrics(n *protocol.StatisticsNodeInfo, currentMs uint64) Metrics {
	m := Metrics{}
	if currentMs > n.LastKeepAliveMs {
		m.SinceLastMs = currentMs - n.LastKeepAliveMs
	}
	m.Up = m.SinceLastMs < LivenessThresholdMs

	if n.CountOfMessages < 2 || n.LastKeepAliveMs <= n.FirstMessageMs {
		return m
	}
	m.HasThroughput = true
	m.ElapsedSec = float64(n.LastKeepAliveMs-n.FirstMessageMs) / 1000
	m.ThroughputKBps = float64(n.TotalBytesSent) / 1000 / m.ElapsedSec
	m.RatePkts = float64(n.CountOfMessages) / m.ElapsedSec
	return m
}
