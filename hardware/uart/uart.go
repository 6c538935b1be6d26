// Package uart opens the serial device attached to the mesh root node.
// The result is a plain blocking byte stream: Read returns once at least one
// byte is available, callers use io.ReadFull for exact counts.
package uart

import (
	"io"

	"github.com/juju/errors"
)

const DefaultBaud = 115200

type Uarter interface {
	io.ReadWriteCloser
}

var ErrClosed = errors.New("uart is closed")

var baudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

func checkBaud(baud int) error {
	for _, b := range baudRates {
		if b == baud {
			return nil
		}
	}
	return errors.NotSupportedf("baud=%d", baud)
}
