package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"

	"github.com/juju/errors"
)

// Header binary representation: field:size in bytes, little-endian
// cmd:4 len:2
const HeaderSize = 4 + 2

const PayloadMaxLength = math.MaxUint16

type Header struct {
	Cmd CommandKind
	Len uint16
}

// Frame is the unit exchanged over the channel, self-describing by Header.Len.
type Frame struct {
	Header  Header
	Payload []byte
}

func (f *Frame) String() string {
	return fmt.Sprintf("cmd=%s len=%d data=%s", f.Header.Cmd, f.Header.Len, hex.EncodeToString(f.Payload))
}

// Encode produces header(cmd, len(payload)) || payload.
func Encode(cmd CommandKind, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMaxLength {
		return nil, errors.NotValidf("cmd=%s payload length=%d > max=%d", cmd, len(payload), PayloadMaxLength)
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(cmd))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, errors.NotValidf("header=%x length=%d expected=%d", b, len(b), HeaderSize)
	}
	cmd, err := ParseCommandKind(binary.LittleEndian.Uint32(b[0:4]))
	if err != nil {
		return Header{}, errors.Trace(err)
	}
	return Header{Cmd: cmd, Len: binary.LittleEndian.Uint16(b[4:6])}, nil
}

// DecodeFrame parses one complete frame, b must contain exactly header and payload.
func DecodeFrame(b []byte) (Frame, error) {
	if len(b) < HeaderSize {
		return Frame{}, errors.NotValidf("frame=%x length=%d < min=%d", b, len(b), HeaderSize)
	}
	h, err := DecodeHeader(b[:HeaderSize])
	if err != nil {
		return Frame{}, err
	}
	if int(h.Len) != len(b)-HeaderSize {
		return Frame{}, errors.NotValidf("frame=%x claims length=%d actual=%d", b, h.Len, len(b)-HeaderSize)
	}
	return Frame{Header: h, Payload: b[HeaderSize:]}, nil
}

// ReadFrame performs two blocking exact reads: header, then header.Len bytes of payload.
func ReadFrame(r io.Reader) (Frame, error) {
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return Frame{}, errors.Annotate(err, "read header")
	}
	h, err := DecodeHeader(hb[:])
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Header: h, Payload: make([]byte, h.Len)}
	if h.Len > 0 {
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return Frame{}, errors.Annotatef(err, "read payload cmd=%s len=%d", h.Cmd, h.Len)
		}
	}
	return f, nil
}
