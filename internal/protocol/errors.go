package protocol

import "fmt"

// ErrFrameSize means a payload buffer does not match the fixed size of its schema,
// or its num_nodes exceeds the fixed array capacity (Count set).
type ErrFrameSize struct {
	Kind   CommandKind
	Expect int
	Actual int
	Count  int
}

func (e ErrFrameSize) Error() string {
	if e.Count != 0 {
		return fmt.Sprintf("frame decode cmd=%s num_nodes=%d max=%d", e.Kind, e.Count, MaxNodes)
	}
	return fmt.Sprintf("frame decode cmd=%s length=%d expected=%d", e.Kind, e.Actual, e.Expect)
}

// ErrUnknownCommand is a 4-byte command code outside of the enumeration.
type ErrUnknownCommand uint32

func (e ErrUnknownCommand) Error() string {
	return fmt.Sprintf("unknown command code=%08x", uint32(e))
}
