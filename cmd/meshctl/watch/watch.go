// Periodic statistics poll, suitable for systemd service.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/espmesh/meshctl/cmd/meshctl/subcmd"
	"github.com/espmesh/meshctl/internal/client"
	"github.com/espmesh/meshctl/internal/state"
	"github.com/juju/errors"
)

var Mod = subcmd.Mod{Name: "watch", Usage: "watch [ROUNDS]   poll statistics every watch.interval_sec", Main: Main}

func Main(ctx context.Context, config *state.Config, args []string) error {
	rounds := uint64(0)
	if len(args) > 1 {
		var err error
		if rounds, err = strconv.ParseUint(args[1], 10, 32); err != nil {
			return errors.NewNotValid(err, "watch ROUNDS")
		}
	}
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		g.Log.Infof("watch signal=%v stopping", sig)
		interrupt(g)
	}()

	subcmd.SdNotify(daemon.SdNotifyReady)
	interval := time.Duration(config.Watch.IntervalSec) * time.Second
	g.Log.Debugf("watch init complete interval=%v rounds=%d", interval, rounds)
	return Loop(ctx, os.Stdout, interval, uint(rounds))
}

// Loop polls until Global is stopped or rounds (0=unlimited) complete.
// Channel error ends the loop, other errors are reported and the loop goes on.
func Loop(ctx context.Context, w io.Writer, interval time.Duration, rounds uint) error {
	g := state.GetGlobal(ctx)
	if !g.Alive.Add(1) {
		return nil
	}
	defer g.Alive.Done()

	tmr := time.NewTicker(interval)
	defer tmr.Stop()
	stopCh := g.Alive.StopChan()
	for i := uint(1); g.Alive.IsRunning(); i++ {
		if err := Round(ctx, w); err != nil {
			if _, ok := errors.Cause(err).(client.ErrChannel); ok {
				if !g.Alive.IsRunning() {
					g.Log.Debugf("watch round=%d interrupted: %v", i, err)
					return nil
				}
				return errors.Annotatef(err, "watch round=%d", i)
			}
			g.Error(err, "watch round=%d", i)
		}
		subcmd.SdNotify(daemon.SdNotifyWatchdog)
		if rounds != 0 && i >= rounds {
			break
		}
		select {
		case <-stopCh:
		case <-tmr.C:
		}
	}
	return nil
}

// interrupt stops the loop and closes the client, so a round blocked
// on a silent root returns instead of hanging until the next reply.
func interrupt(g *state.Global) {
	g.Stop()
	if err := g.Client.Close(); err != nil {
		g.Log.Errorf("watch close client: %v", err)
	}
}

func Round(ctx context.Context, w io.Writer) error {
	g := state.GetGlobal(ctx)
	if g.Config.Watch.RefreshNodes {
		if _, err := g.Client.GetNodes(); err != nil {
			return err
		}
	}
	topo, err := g.Client.TransmissionInfo()
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(w, "--- %s\n", time.Now().Format(time.RFC3339)); err != nil {
		return errors.Trace(err)
	}
	if err = topo.Render(w); err != nil {
		return errors.Trace(err)
	}
	return g.Tele.Snapshot(topo.Snapshot())
}
