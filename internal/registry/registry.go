// Package registry maps node hardware addresses to small local ids.
// Ids are assigned on first sight starting at 0 and never change or get
// removed for the lifetime of the process.
package registry

import (
	"fmt"
	"sync"

	"github.com/espmesh/meshctl/internal/protocol"
)

type ErrUnknownNode uint

func (e ErrUnknownNode) Error() string {
	return fmt.Sprintf("unknown node id=%d, run get-nodes first", uint(e))
}

type NodeRecord struct {
	LocalID uint
	Mac     protocol.Mac
}

func (r NodeRecord) String() string { return fmt.Sprintf("%2d - %s", r.LocalID, r.Mac.String()) }

type Registry struct {
	mu   sync.RWMutex
	ids  map[protocol.Mac]uint
	macs []protocol.Mac // index is local id
}

func New() *Registry {
	return &Registry{ids: make(map[protocol.Mac]uint)}
}

// ResolveOrRegister returns existing id of mac or assigns the next one.
// added=true only when a new id was assigned.
func (r *Registry) ResolveOrRegister(mac protocol.Mac) (id uint, added bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[mac]; ok {
		return id, false
	}
	id = uint(len(r.macs))
	r.ids[mac] = id
	r.macs = append(r.macs, mac)
	return id, true
}

func (r *Registry) LookupMac(id uint) (protocol.Mac, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id >= uint(len(r.macs)) {
		return protocol.Mac{}, ErrUnknownNode(id)
	}
	return r.macs[id], nil
}

func (r *Registry) LookupID(mac protocol.Mac) (uint, bool) {
	r.mu.RLock()
	id, ok := r.ids[mac]
	r.mu.RUnlock()
	return id, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.macs)
	r.mu.RUnlock()
	return n
}

// Nodes returns a copy of all records ordered by local id.
func (r *Registry) Nodes() []NodeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs := make([]NodeRecord, len(r.macs))
	for i, mac := range r.macs {
		rs[i] = NodeRecord{LocalID: uint(i), Mac: mac}
	}
	return rs
}
