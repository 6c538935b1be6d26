// Package topology rebuilds the mesh tree from the flat parent-pointer
// records of a statistics reply. Nothing is cached, every reply gets a
// fresh Topology.
package topology

import (
	"fmt"
	"strings"

	"github.com/espmesh/meshctl/internal/protocol"
	"github.com/juju/errors"
)

// ErrIntegrity means the snapshot does not form a single tree.
type ErrIntegrity struct {
	Reason string
	Macs   []protocol.Mac
}

func (e ErrIntegrity) Error() string {
	ss := make([]string, len(e.Macs))
	for i, m := range e.Macs {
		ss[i] = m.String()
	}
	return fmt.Sprintf("topology integrity: %s macs=[%s]", e.Reason, strings.Join(ss, " "))
}

type Topology struct {
	// Root is the single address referenced as parent but not reporting itself.
	// Its children are the mesh root node(s).
	Root      protocol.Mac
	CurrentMs uint64

	children map[protocol.Mac][]protocol.Mac
	info     map[protocol.Mac]protocol.StatisticsNodeInfo
	order    []protocol.Mac
}

// Build reconstructs the tree. Zero nodes is a valid empty topology.
func Build(s *protocol.StatisticsTreeInfo) (*Topology, error) {
	if s.NumNodes > protocol.MaxNodes {
		return nil, errors.Trace(ErrIntegrity{Reason: fmt.Sprintf("num_nodes=%d over capacity", s.NumNodes)})
	}
	nodes := s.Valid()
	t := &Topology{
		CurrentMs: s.CurrentMs,
		children:  make(map[protocol.Mac][]protocol.Mac, len(nodes)+1),
		info:      make(map[protocol.Mac]protocol.StatisticsNodeInfo, len(nodes)),
		order:     make([]protocol.Mac, 0, len(nodes)),
	}
	if len(nodes) == 0 {
		return t, nil
	}

	keys := make([]protocol.Mac, 0, len(nodes)+1)
	touch := func(mac protocol.Mac) {
		if _, ok := t.children[mac]; !ok {
			t.children[mac] = nil
			keys = append(keys, mac)
		}
	}
	for _, n := range nodes {
		if _, dup := t.info[n.Mac]; dup {
			return nil, errors.Trace(ErrIntegrity{Reason: "duplicate node", Macs: []protocol.Mac{n.Mac}})
		}
		touch(n.ParentMac)
		t.children[n.ParentMac] = append(t.children[n.ParentMac], n.Mac)
		touch(n.Mac)
		t.info[n.Mac] = n
		t.order = append(t.order, n.Mac)
	}

	candidates := make([]protocol.Mac, 0, 1)
	for _, k := range keys {
		if _, ok := t.info[k]; !ok {
			candidates = append(candidates, k)
		}
	}
	switch len(candidates) {
	case 1:
		t.Root = candidates[0]
	case 0:
		return nil, errors.Trace(ErrIntegrity{Reason: "no root candidate"})
	default:
		return nil, errors.Trace(ErrIntegrity{Reason: "multiple root candidates", Macs: candidates})
	}

	seen := make(map[protocol.Mac]struct{}, len(nodes))
	t.Walk(func(n protocol.StatisticsNodeInfo, _ int) { seen[n.Mac] = struct{}{} })
	if len(seen) != len(nodes) {
		lost := make([]protocol.Mac, 0, len(nodes)-len(seen))
		for _, mac := range t.order {
			if _, ok := seen[mac]; !ok {
				lost = append(lost, mac)
			}
		}
		return nil, errors.Trace(ErrIntegrity{Reason: "unreachable from root", Macs: lost})
	}
	return t, nil
}

func (t *Topology) Len() int { return len(t.order) }

// Children of mac in reply order.
func (t *Topology) Children(mac protocol.Mac) []protocol.Mac { return t.children[mac] }

func (t *Topology) Info(mac protocol.Mac) (protocol.StatisticsNodeInfo, bool) {
	n, ok := t.info[mac]
	return n, ok
}

// Walk visits reporting nodes depth-first pre-order. Children of Root have depth 0.
func (t *Topology) Walk(fn func(n protocol.StatisticsNodeInfo, depth int)) {
	if t.Len() == 0 {
		return
	}
	var visit func(mac protocol.Mac, depth int)
	visit = func(mac protocol.Mac, depth int) {
		for _, child := range t.children[mac] {
			fn(t.info[child], depth)
			visit(child, depth+1)
		}
	}
	visit(t.Root, 0)
}
