package shell

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/espmesh/meshctl/internal/engine"
	"github.com/espmesh/meshctl/internal/state"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
)

func (self *Shell) doUsage() engine.Doer {
	return engine.Func{Name: "help", F: func(ctx context.Context) error {
		_, err := io.WriteString(self.out, Usage)
		return err
	}}
}

var doBecomeRoot = engine.Func{Name: "root", F: func(ctx context.Context) error {
	return state.GetGlobal(ctx).Client.BecomeRoot()
}}

var doClear = engine.Func{Name: "clear", F: func(ctx context.Context) error {
	return state.GetGlobal(ctx).Client.ClearStatistics()
}}

func doLogLevel(word string, level log2.Level) engine.Doer {
	return engine.Func{Name: word, F: func(ctx context.Context) error {
		state.GetGlobal(ctx).Log.SetLevel(level)
		return nil
	}}
}

func (self *Shell) doGetNodes() engine.Doer {
	return engine.Func{Name: "nodes", F: func(ctx context.Context) error {
		g := state.GetGlobal(ctx)
		added, err := g.Client.GetNodes()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(self.out, "nodes added=%d total=%d\n", len(added), g.Client.Registry().Len())
		return err
	}}
}

func (self *Shell) doList() engine.Doer {
	return engine.Func{Name: "list", F: func(ctx context.Context) error {
		for _, r := range state.GetGlobal(ctx).Client.Registry().Nodes() {
			if _, err := fmt.Fprintln(self.out, r.String()); err != nil {
				return err
			}
		}
		return nil
	}}
}

func (self *Shell) doStats(yaml bool) engine.Doer {
	return engine.Func{Name: "stats", F: func(ctx context.Context) error {
		g := state.GetGlobal(ctx)
		topo, err := g.Client.TransmissionInfo()
		if err != nil {
			return err
		}
		if err = g.Tele.Snapshot(topo.Snapshot()); err != nil {
			g.Error(err)
		}
		if !yaml {
			return errors.Trace(topo.Render(self.out))
		}
		b, err := topo.Snapshot().YAML()
		if err != nil {
			return err
		}
		_, err = self.out.Write(b)
		return err
	}}
}

// nums: id, delay, size [, target]
func doStart(nums []uint64) engine.Doer {
	return engine.Func{Name: "start", F: func(ctx context.Context) error {
		c := state.GetGlobal(ctx).Client
		if len(nums) == 4 {
			return c.StartTransmissionTo(uint(nums[0]), uint(nums[3]), uint32(nums[1]), uint16(nums[2]))
		}
		return c.StartTransmission(uint(nums[0]), uint32(nums[1]), uint16(nums[2]))
	}}
}

func doStop(id uint) engine.Doer {
	return engine.Func{Name: "stop", F: func(ctx context.Context) error {
		return state.GetGlobal(ctx).Client.StopTransmission(id)
	}}
}

func doSleep(id uint, ms uint64) engine.Doer {
	return engine.Func{Name: "sleep", F: func(ctx context.Context) error {
		return state.GetGlobal(ctx).Client.BringNodeDown(id, ms)
	}}
}

func (self *Shell) doLatency(src, dst uint) engine.Doer {
	return engine.Func{Name: "latency", F: func(ctx context.Context) error {
		rtt, err := state.GetGlobal(ctx).Client.GetLatency(src, dst)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(self.out, "latency %d -> %d = %dms\n", src, dst, rtt.Milliseconds())
		return err
	}}
}

func (self *Shell) doStatus() engine.Doer {
	return engine.Func{Name: "status", F: func(ctx context.Context) error {
		g := state.GetGlobal(ctx)
		s := g.Client.Stat()
		_, err := fmt.Fprintf(self.out, "nodes=%d tx=%d rx=%d last_tx=%s last_rx=%s\n",
			s.Nodes, s.TxFrames, s.RxFrames, formatSince(s.SinceTx), formatSince(s.SinceRx))
		if err == nil && g.Tele.Enabled() {
			ts := g.Tele.Stat()
			_, err = fmt.Fprintf(self.out, "tele sent=%d dropped=%d\n", ts.Sent, ts.Dropped)
		}
		return err
	}}
}

func formatSince(d time.Duration) string {
	if d == 0 {
		return "never"
	}
	return d.Round(time.Millisecond).String() + " ago"
}
