// Package client talks to the mesh root over a serial byte stream.
//
// The protocol is strict half-duplex request/response without request ids,
// so every call writes one frame and reads at most one reply frame before
// the next call may start. There are no timeouts at this layer: a reply that
// never arrives blocks until the channel is closed.
package client

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/espmesh/meshctl/internal/protocol"
	"github.com/espmesh/meshctl/internal/registry"
	"github.com/espmesh/meshctl/internal/topology"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
	"github.com/temoto/atomic_clock"
)

// ErrChannel is a transport failure. Framing state is unknown after it,
// the caller should close the client and open a new channel.
type ErrChannel struct {
	Op  string
	Err error
}

func (e ErrChannel) Error() string { return fmt.Sprintf("channel %s: %v", e.Op, e.Err) }

type Client struct {
	log *log2.Log
	reg *registry.Registry
	lk  sync.Mutex
	ch  io.ReadWriteCloser

	lastTx   atomic_clock.Clock
	lastRx   atomic_clock.Clock
	txFrames uint64
	rxFrames uint64
}

type Stat struct {
	Nodes    int
	TxFrames uint64
	RxFrames uint64
	// zero when nothing was sent/received yet
	SinceTx time.Duration
	SinceRx time.Duration
}

func New(ch io.ReadWriteCloser, log *log2.Log) *Client {
	return &Client{
		ch:  ch,
		log: log,
		reg: registry.New(),
	}
}

func (self *Client) Registry() *registry.Registry { return self.reg }

// Close does not wait for the call in flight, its blocked read fails with ErrChannel.
func (self *Client) Close() error {
	return errors.Trace(self.ch.Close())
}

func (self *Client) Stat() Stat {
	self.lk.Lock()
	defer self.lk.Unlock()
	s := Stat{Nodes: self.reg.Len(), TxFrames: self.txFrames, RxFrames: self.rxFrames}
	if !self.lastTx.IsZero() {
		s.SinceTx = atomic_clock.Since(&self.lastTx)
	}
	if !self.lastRx.IsZero() {
		s.SinceRx = atomic_clock.Since(&self.lastRx)
	}
	return s
}

// BecomeRoot asks the directly attached node to take the mesh root role.
func (self *Client) BecomeRoot() error {
	return self.send(protocol.Empty{Cmd: protocol.BECOME_ROOT})
}

func (self *Client) ClearStatistics() error {
	return self.send(protocol.Empty{Cmd: protocol.CLEAR_STATISTICS})
}

// StartTransmission makes node dst send keep-alive traffic to the root
// every delayMs with payloadSize bytes.
func (self *Client) StartTransmission(dst uint, delayMs uint32, payloadSize uint16) error {
	return self.forward(dst, protocol.StartKeepAlive{
		ResetIndex:  true,
		DelayMs:     delayMs,
		SendToRoot:  true,
		PayloadSize: payloadSize,
	})
}

// StartTransmissionTo is StartTransmission with node target as receiver instead of root.
func (self *Client) StartTransmissionTo(dst, target uint, delayMs uint32, payloadSize uint16) error {
	targetMac, err := self.reg.LookupMac(target)
	if err != nil {
		return errors.Annotate(err, "start transmission target")
	}
	return self.forward(dst, protocol.StartKeepAlive{
		ResetIndex:  true,
		DelayMs:     delayMs,
		SendToRoot:  false,
		PayloadSize: payloadSize,
		TargetMac:   targetMac,
	})
}

func (self *Client) StopTransmission(dst uint) error {
	return self.forward(dst, protocol.Empty{Cmd: protocol.STOP_KEEP_ALIVE})
}

// BringNodeDown puts node dst to sleep for ms.
func (self *Client) BringNodeDown(dst uint, ms uint64) error {
	return self.forward(dst, protocol.GoToSleep{Ms: ms})
}

// GetNodes registers every reported mac, returns only newly added records.
// Registry is not touched when the reply fails to decode.
func (self *Client) GetNodes() ([]registry.NodeRecord, error) {
	reply, err := self.tx(protocol.Empty{Cmd: protocol.GET_NODES}, protocol.GET_NODES_REPLY)
	if err != nil {
		return nil, errors.Annotate(err, "get nodes")
	}
	nodes := reply.(protocol.GetNodesReply)
	self.log.Debugf("mesh get nodes num_nodes=%d", nodes.NumNodes)
	var added []registry.NodeRecord
	for _, mac := range nodes.Valid() {
		if id, isNew := self.reg.ResolveOrRegister(mac); isNew {
			r := registry.NodeRecord{LocalID: id, Mac: mac}
			self.log.Infof("mesh node added %s", r.String())
			added = append(added, r)
		}
	}
	return added, nil
}

func (self *Client) GetStatistics() (protocol.StatisticsTreeInfo, error) {
	reply, err := self.tx(protocol.Empty{Cmd: protocol.GET_STATISTICS}, protocol.GET_STATISTICS_REPLY)
	if err != nil {
		return protocol.StatisticsTreeInfo{}, errors.Annotate(err, "get statistics")
	}
	return reply.(protocol.StatisticsTreeInfo), nil
}

// TransmissionInfo fetches statistics and rebuilds the tree.
func (self *Client) TransmissionInfo() (*topology.Topology, error) {
	stats, err := self.GetStatistics()
	if err != nil {
		return nil, err
	}
	t, err := topology.Build(&stats)
	if err != nil {
		return nil, errors.Annotatef(err, "transmission info num_nodes=%d", stats.NumNodes)
	}
	return t, nil
}

// GetLatency asks node src to measure round trip src->dst->src.
func (self *Client) GetLatency(src, dst uint) (time.Duration, error) {
	dstMac, err := self.reg.LookupMac(dst)
	if err != nil {
		return 0, errors.Annotate(err, "get latency dst")
	}
	srcMac, err := self.reg.LookupMac(src)
	if err != nil {
		return 0, errors.Annotate(err, "get latency src")
	}
	fw, err := protocol.NewForward(srcMac, protocol.GetLatencyRequest{Dst: dstMac})
	if err != nil {
		return 0, errors.Trace(err)
	}
	reply, err := self.tx(fw, protocol.GET_LATENCY_REPLY)
	if err != nil {
		return 0, errors.Annotatef(err, "get latency src=%d dst=%d", src, dst)
	}
	ms := reply.(protocol.GetLatencyReply).RoundTripMs()
	self.log.Infof("mesh latency %d -> %d round trip %dms", src, dst, ms)
	return time.Duration(ms) * time.Millisecond, nil
}

func (self *Client) forward(dst uint, inner protocol.Payload) error {
	mac, err := self.reg.LookupMac(dst)
	if err != nil {
		return errors.Annotatef(err, "%s", inner.Kind())
	}
	fw, err := protocol.NewForward(mac, inner)
	if err != nil {
		return errors.Trace(err)
	}
	self.log.Debugf("mesh forward %s to id=%d mac=%s", inner.Kind(), dst, mac)
	return self.send(fw)
}

// send is a request without reply.
func (self *Client) send(request protocol.Payload) error {
	self.lk.Lock()
	defer self.lk.Unlock()
	return self.write(request)
}

// tx writes request and reads exactly one reply frame of kind expect.
func (self *Client) tx(request protocol.Payload, expect protocol.CommandKind) (protocol.Payload, error) {
	self.lk.Lock()
	defer self.lk.Unlock()
	if err := self.write(request); err != nil {
		return nil, err
	}

	frame, err := protocol.ReadFrame(channelReader{self.ch})
	if err != nil {
		return nil, errors.Annotatef(err, "reply to %s", request.Kind())
	}
	self.rxFrames++
	self.lastRx.SetNow()
	if self.log.Enabled(log2.LDebug) {
		self.log.Debugf("mesh < %s", frame.String())
	}
	if frame.Header.Cmd != expect {
		return nil, errors.NotValidf("reply cmd=%s expected=%s", frame.Header.Cmd, expect)
	}
	reply, err := protocol.Decode(frame)
	return reply, errors.Annotatef(err, "reply %s", expect)
}

func (self *Client) write(request protocol.Payload) error {
	b, err := protocol.Marshal(request)
	if err != nil {
		return errors.Annotatef(err, "encode %s", request.Kind())
	}
	if self.log.Enabled(log2.LDebug) {
		self.log.Debugf("mesh > cmd=%s len=%d data=%x", request.Kind(), len(b)-protocol.HeaderSize, b[protocol.HeaderSize:])
	}
	if _, err = self.ch.Write(b); err != nil {
		return errors.Trace(ErrChannel{Op: "write", Err: err})
	}
	self.txFrames++
	self.lastTx.SetNow()
	return nil
}

type channelReader struct{ r io.Reader }

func (c channelReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil {
		err = ErrChannel{Op: "read", Err: err}
	}
	return n, err
}
