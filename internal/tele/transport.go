package tele

import (
	"context"

	"github.com/espmesh/meshctl/log2"
)

// Transporter contract:
// - Init fails only with invalid config, ignores network errors
// - Send* deliver within network timeout or return false
// - application may start without network available
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, teleConfig Config, willPayload []byte) error
	SendSnapshot(payload []byte) bool
	SendError(payload []byte) bool
	Close()
}
