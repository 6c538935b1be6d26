//go:build linux

package uart

import (
	"os"
	"sync"
	"syscall"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

var baudFlags = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

type fileUart struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open configures path as raw 8N1 at baud and discards pending input.
func Open(path string, baud int) (Uarter, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	if err := checkBaud(baud); err != nil {
		return nil, errors.Trace(err)
	}
	f, err := os.OpenFile(path, syscall.O_RDWR|syscall.O_NOCTTY, 0600)
	if err != nil {
		return nil, errors.Annotatef(err, "uart open path=%s", path)
	}
	if err = setRaw(int(f.Fd()), baudFlags[baud]); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "uart termios path=%s baud=%d", path, baud)
	}
	return &fileUart{f: f, path: path}, nil
}

func setRaw(fd int, speed uint32) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	t.Ispeed = speed
	t.Ospeed = speed
	// block until at least one byte, no inter-byte timer
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	// TCSETSF flushes input, stale bytes would desync framing
	return unix.IoctlSetTermios(fd, unix.TCSETSF, t)
}

func (self *fileUart) Read(p []byte) (int, error) {
	f := self.file()
	if f == nil {
		return 0, ErrClosed
	}
	return f.Read(p)
}

func (self *fileUart) Write(p []byte) (int, error) {
	f := self.file()
	if f == nil {
		return 0, ErrClosed
	}
	return f.Write(p)
}

func (self *fileUart) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.f == nil {
		return nil
	}
	err := self.f.Close()
	self.f = nil
	return errors.Annotatef(err, "uart close path=%s", self.path)
}

func (self *fileUart) file() *os.File {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.f
}
