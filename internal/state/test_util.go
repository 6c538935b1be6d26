package state

import (
	"context"
	"testing"

	"github.com/espmesh/meshctl/hardware/uart"
	"github.com/espmesh/meshctl/internal/client"
	"github.com/espmesh/meshctl/internal/tele"
	"github.com/espmesh/meshctl/log2"
)

// NewTestContext builds Global with client on scripted MockUart.
func NewTestContext(t testing.TB, confString string) (context.Context, *Global, *uart.MockUart) {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	log := log2.NewTest(t, log2.LDebug)
	// log := log2.NewStderr(log2.LDebug) // useful with panics
	ctx, g := NewContext(log, tele.New())
	mock := uart.NewMock(t)
	g.Client = client.New(mock, log)
	g.MustInit(ctx, MustReadConfig(log, fs, "test-inline"))
	return ctx, g, mock
}
