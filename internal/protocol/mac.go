package protocol

import (
	"encoding/hex"
	"strings"

	"github.com/juju/errors"
)

const MacSize = 6

// Mac is a node hardware address, 6 raw bytes on the wire.
// Arrays compare by value so Mac is usable as a map key as is.
type Mac [MacSize]byte

func (m Mac) IsZero() bool { return m == Mac{} }

// String formats colon separated uppercase hex, AA:BB:CC:DD:EE:FF.
func (m Mac) String() string {
	const digits = "0123456789ABCDEF"
	buf := make([]byte, 0, MacSize*3-1)
	for i, b := range m {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, digits[b>>4], digits[b&0xf])
	}
	return string(buf)
}

func (m Mac) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mac) UnmarshalText(b []byte) error {
	parsed, err := ParseMac(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMac accepts AA:BB:CC:DD:EE:FF, AA-BB-.. or plain 12 hex digits.
func ParseMac(s string) (Mac, error) {
	var m Mac
	clean := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(s))
	if len(clean) != MacSize*2 {
		return m, errors.NotValidf("mac=%q", s)
	}
	if _, err := hex.Decode(m[:], []byte(clean)); err != nil {
		return m, errors.NewNotValid(err, "mac="+s)
	}
	return m, nil
}

func MustParseMac(s string) Mac {
	m, err := ParseMac(s)
	if err != nil {
		panic(err)
	}
	return m
}
