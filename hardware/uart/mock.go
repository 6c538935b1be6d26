package uart

// Public API to easy create mesh root stubs to test your code.
import (
	"bytes"
	"encoding/hex"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/juju/errors"
)

// MockUart replays scripted request/response pairs.
// Every Write must equal the next expected request, then its response
// becomes readable. Reads are served in small chunks to exercise exact reads.
type MockUart struct {
	t         testing.TB
	mu        sync.Mutex
	expects   []mockTx
	index     int
	rbuf      bytes.Buffer
	closed    bool
	ReadChunk int
}

type mockTx struct {
	request  []byte
	response []byte
	err      error
}

func NewMock(t testing.TB) *MockUart {
	return &MockUart{t: t, ReadChunk: 5}
}

func mustHex(t testing.TB, s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("invalid hex=%s err=%v", s, err)
	}
	return b
}

// Expect registers next request and canned response, hex with optional spaces.
func (self *MockUart) Expect(requestHex, responseHex string) {
	self.ExpectBytes(mustHex(self.t, requestHex), mustHex(self.t, responseHex))
}

func (self *MockUart) ExpectBytes(request, response []byte) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.expects = append(self.expects, mockTx{request: request, response: response})
}

// ExpectWriteError makes the next write fail with err.
func (self *MockUart) ExpectWriteError(requestHex string, err error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.expects = append(self.expects, mockTx{request: mustHex(self.t, requestHex), err: err})
}

func (self *MockUart) Write(p []byte) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closed {
		return 0, ErrClosed
	}
	if self.index >= len(self.expects) {
		self.t.Errorf("uart mock unexpected write=%x", p)
		return 0, errors.Errorf("uart mock: premature end of expects")
	}
	call := self.expects[self.index]
	self.index++
	if actual, expect := hex.EncodeToString(p), hex.EncodeToString(call.request); actual != expect {
		self.t.Errorf("uart mock write=%s expected=%s", actual, expect)
	}
	if call.err != nil {
		return 0, call.err
	}
	self.rbuf.Write(call.response)
	return len(p), nil
}

// Read never blocks: empty buffer is io.EOF, like a closed port.
func (self *MockUart) Read(p []byte) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.closed {
		return 0, ErrClosed
	}
	if self.rbuf.Len() == 0 {
		return 0, io.EOF
	}
	if self.ReadChunk > 0 && len(p) > self.ReadChunk {
		p = p[:self.ReadChunk]
	}
	return self.rbuf.Read(p)
}

func (self *MockUart) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.closed = true
	return nil
}

// Done reports unmet expects and unread response bytes.
func (self *MockUart) Done() {
	self.t.Helper()
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.index != len(self.expects) {
		self.t.Errorf("uart mock expects left=%d", len(self.expects)-self.index)
	}
	if self.rbuf.Len() != 0 {
		self.t.Errorf("uart mock unread response=%x", self.rbuf.Bytes())
	}
}
