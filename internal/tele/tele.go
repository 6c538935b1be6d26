// Package tele publishes mesh snapshots over MQTT as canonical CBOR.
package tele

import (
	"context"
	"sync"
	"time"

	"github.com/espmesh/meshctl/internal/topology"
	"github.com/espmesh/meshctl/log2"
	"github.com/fxamacker/cbor/v2"
	"github.com/juju/errors"
)

const DefaultNetworkTimeout = 30 * time.Second

// Tele contract:
// - Init fails only with invalid config, network issues ignored
// - disabled Tele accepts and drops everything
// - delivery failure is logged and counted, never returned
type Tele struct {
	config    Config
	log       *log2.Log
	transport Transporter
	enc       cbor.EncMode
	dec       cbor.DecMode

	mu   sync.Mutex
	stat Stat
}

type Stat struct {
	Sent    uint32
	Dropped uint32
}

// ErrorReport is published on the error topic.
type ErrorReport struct {
	Time    int64  `cbor:"time"`
	Message string `cbor:"message"`
}

func New() *Tele {
	return &Tele{}
}
func NewWithTransporter(trans Transporter) *Tele {
	return &Tele{transport: trans}
}

func (self *Tele) Init(ctx context.Context, log *log2.Log, teleConfig Config) error {
	self.config = teleConfig
	self.log = log
	var err error
	if self.enc, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		return errors.Annotate(err, "tele cbor")
	}
	if self.dec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		return errors.Annotate(err, "tele cbor")
	}
	if !self.config.Enabled {
		return nil
	}
	if self.config.LogDebug {
		self.log = log.Clone(log2.LDebug)
	}

	// test code sets .transport
	if self.transport == nil {
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(ctx, self.log, teleConfig, []byte{connectOffline}); err != nil {
		return errors.Annotate(err, "tele transport")
	}
	self.log.Infof("tele enabled topic=%s", teleConfig.topic("stats"))
	return nil
}

func (self *Tele) Enabled() bool { return self != nil && self.config.Enabled && self.transport != nil }

func (self *Tele) Close() {
	if self.Enabled() {
		self.transport.Close()
	}
}

func (self *Tele) Stat() Stat {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.stat
}

func (self *Tele) Snapshot(s topology.Snapshot) error {
	if !self.Enabled() {
		return nil
	}
	b, err := self.enc.Marshal(s)
	if err != nil {
		return errors.Annotate(err, "tele snapshot encode")
	}
	self.account(self.transport.SendSnapshot(b))
	return nil
}

func (self *Tele) Error(err error) {
	if !self.Enabled() || err == nil {
		return
	}
	b, encErr := self.enc.Marshal(ErrorReport{Time: time.Now().Unix(), Message: err.Error()})
	if encErr != nil {
		self.log.Errorf("tele error encode err=%v", encErr)
		return
	}
	self.account(self.transport.SendError(b))
}

func (self *Tele) DecodeSnapshot(b []byte) (topology.Snapshot, error) {
	var s topology.Snapshot
	err := self.dec.Unmarshal(b, &s)
	return s, errors.Annotate(err, "tele snapshot decode")
}

func (self *Tele) account(ok bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if ok {
		self.stat.Sent++
	} else {
		self.stat.Dropped++
		self.log.Errorf("tele dropped message, total=%d", self.stat.Dropped)
	}
}
