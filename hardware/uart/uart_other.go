//go:build !linux

package uart

import (
	"runtime"

	"github.com/juju/errors"
)

func Open(path string, baud int) (Uarter, error) {
	return nil, errors.NotSupportedf("uart on %s path=%s", runtime.GOOS, path)
}
