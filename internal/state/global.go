package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/espmesh/meshctl/hardware/uart"
	"github.com/espmesh/meshctl/helpers"
	"github.com/espmesh/meshctl/internal/client"
	"github.com/espmesh/meshctl/internal/tele"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Client       *client.Client
	Log          *log2.Log
	Tele         *tele.Tele

	_copy_guard sync.Mutex //nolint:unused
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log, teler *tele.Tele) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
		Tele:  teler,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, ContextKey, g)

	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
// Client is opened on config serial device unless already set by test code.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	if err := cfg.Validate(); err != nil {
		return errors.Trace(err)
	}
	level, _ := log2.ParseLevel(cfg.Log.Level)
	g.Log.SetLevel(level)
	if cfg.Log.File != "" {
		g.Log = g.Log.Tee(log2.NewFile(cfg.Log.File, level, cfg.Log.MaxSizeMB))
		g.Log.Debugf("log file=%s", cfg.Log.File)
	}

	if g.Tele == nil {
		g.Tele = tele.New()
	}
	if err := g.Tele.Init(ctx, g.Log, cfg.Tele); err != nil {
		return errors.Annotate(err, "tele init")
	}

	if g.Client == nil {
		if cfg.Serial.Device == "" {
			return errors.NotValidf("config serial.device empty")
		}
		port, err := uart.Open(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			return errors.Annotatef(err, "serial device=%s baud=%d", cfg.Serial.Device, cfg.Serial.Baud)
		}
		g.Log.Debugf("serial device=%s baud=%d", cfg.Serial.Device, cfg.Serial.Baud)
		g.Client = client.New(port, g.clientLog())
	}
	return nil
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

// clientLog adds frame dumps when log.debug_frames is set.
func (g *Global) clientLog() *log2.Log {
	if g.Config != nil && g.Config.Log.DebugFrames {
		return g.Log.Clone(log2.LDebug)
	}
	return g.Log
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(errors.ErrorStack(err))
		g.Tele.Error(err)
	}
}

// Stop signals long running commands to finish. Safe to call many times.
func (g *Global) Stop() {
	g.Log.Debugf("global stop")
	g.Alive.Stop()
}

func (g *Global) Close() error {
	errs := make([]error, 0, 2)
	if g.Client != nil {
		errs = append(errs, errors.Annotate(g.Client.Close(), "close client"))
	}
	if g.Tele != nil {
		g.Tele.Close()
	}
	return helpers.FoldErrors(errs)
}
