package protocol

import "fmt"

// CommandKind is the 4-byte little-endian command code on the wire.
// Values are stable wire constants, do not reorder.
type CommandKind uint32

const (
	KEEP_ALIVE CommandKind = iota
	START_KEEP_ALIVE
	STOP_KEEP_ALIVE
	BECOME_ROOT
	GO_TO_SLEEP
	GET_NODES
	GET_NODES_REPLY
	GET_STATISTICS
	GET_STATISTICS_REPLY
	CLEAR_STATISTICS
	FORWARD
	ECHO_REQUEST
	ECHO_REPLY
	GET_LATENCY
	GET_LATENCY_REPLY

	commandKindCount
)

var commandKindNames = [commandKindCount]string{
	KEEP_ALIVE:           "KEEP_ALIVE",
	START_KEEP_ALIVE:     "START_KEEP_ALIVE",
	STOP_KEEP_ALIVE:      "STOP_KEEP_ALIVE",
	BECOME_ROOT:          "BECOME_ROOT",
	GO_TO_SLEEP:          "GO_TO_SLEEP",
	GET_NODES:            "GET_NODES",
	GET_NODES_REPLY:      "GET_NODES_REPLY",
	GET_STATISTICS:       "GET_STATISTICS",
	GET_STATISTICS_REPLY: "GET_STATISTICS_REPLY",
	CLEAR_STATISTICS:     "CLEAR_STATISTICS",
	FORWARD:              "FORWARD",
	ECHO_REQUEST:         "ECHO_REQUEST",
	ECHO_REPLY:           "ECHO_REPLY",
	GET_LATENCY:          "GET_LATENCY",
	GET_LATENCY_REPLY:    "GET_LATENCY_REPLY",
}

func (k CommandKind) Valid() bool { return k < commandKindCount }

func (k CommandKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("CommandKind(%d)", uint32(k))
	}
	return commandKindNames[k]
}

// ParseCommandKind checks the raw code against the closed enumeration.
func ParseCommandKind(code uint32) (CommandKind, error) {
	k := CommandKind(code)
	if !k.Valid() {
		return k, ErrUnknownCommand(code)
	}
	return k, nil
}
