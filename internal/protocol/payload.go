package protocol

import (
	"encoding/binary"

	"github.com/juju/errors"
)

// MaxNodes is the fixed capacity of node arrays in replies.
const MaxNodes = 15

const (
	startKeepAliveSize     = 1 + 4 + 1 + 2 + MacSize
	goToSleepSize          = 8
	getLatencyRequestSize  = MacSize
	getLatencyReplySize    = 8 + 8
	getNodesReplySize      = 1 + MaxNodes*MacSize
	statisticsNodeInfoSize = 8*5 + MacSize*2 + 1 + 8 + 8
	statisticsTreeInfoSize = 1 + 8 + MaxNodes*statisticsNodeInfoSize
	forwardFixedSize       = MacSize + 1
)

// Payload is one variant of the closed command set.
// AppendBody writes the fixed little-endian layout, no padding.
type Payload interface {
	Kind() CommandKind
	AppendBody(b []byte) []byte
}

// Marshal encodes the payload with its frame header.
func Marshal(p Payload) ([]byte, error) {
	return Encode(p.Kind(), p.AppendBody(nil))
}

// Empty is any command without a body.
type Empty struct{ Cmd CommandKind }

func (e Empty) Kind() CommandKind        { return e.Cmd }
func (Empty) AppendBody(b []byte) []byte { return b }

// Raw carries an opaque body for kinds without a fixed schema on the client side.
type Raw struct {
	Cmd  CommandKind
	Body []byte
}

func (r Raw) Kind() CommandKind          { return r.Cmd }
func (r Raw) AppendBody(b []byte) []byte { return append(b, r.Body...) }

type StartKeepAlive struct {
	ResetIndex  bool
	DelayMs     uint32
	SendToRoot  bool
	PayloadSize uint16
	TargetMac   Mac
}

func (StartKeepAlive) Kind() CommandKind { return START_KEEP_ALIVE }
func (s StartKeepAlive) AppendBody(b []byte) []byte {
	b = append(b, boolByte(s.ResetIndex))
	b = appendUint32(b, s.DelayMs)
	b = append(b, boolByte(s.SendToRoot))
	b = appendUint16(b, s.PayloadSize)
	return append(b, s.TargetMac[:]...)
}

type GoToSleep struct{ Ms uint64 }

func (GoToSleep) Kind() CommandKind            { return GO_TO_SLEEP }
func (g GoToSleep) AppendBody(b []byte) []byte { return appendUint64(b, g.Ms) }

type GetLatencyRequest struct{ Dst Mac }

func (GetLatencyRequest) Kind() CommandKind            { return GET_LATENCY }
func (g GetLatencyRequest) AppendBody(b []byte) []byte { return append(b, g.Dst[:]...) }

type GetLatencyReply struct {
	StartMs uint64
	EndMs   uint64
}

func (GetLatencyReply) Kind() CommandKind { return GET_LATENCY_REPLY }
func (g GetLatencyReply) AppendBody(b []byte) []byte {
	b = appendUint64(b, g.StartMs)
	return appendUint64(b, g.EndMs)
}

// RoundTripMs is end-start in the mesh clock, saturating at zero.
func (g GetLatencyReply) RoundTripMs() uint64 {
	if g.EndMs < g.StartMs {
		return 0
	}
	return g.EndMs - g.StartMs
}

type GetNodesReply struct {
	NumNodes uint8
	Nodes    [MaxNodes]Mac
}

func (GetNodesReply) Kind() CommandKind { return GET_NODES_REPLY }
func (g GetNodesReply) AppendBody(b []byte) []byte {
	b = append(b, g.NumNodes)
	for i := range g.Nodes {
		b = append(b, g.Nodes[i][:]...)
	}
	return b
}

// Valid returns the meaningful prefix of Nodes.
func (g *GetNodesReply) Valid() []Mac { return g.Nodes[:clampNodes(g.NumNodes)] }

type StatisticsNodeInfo struct {
	FirstMessageMs     uint64
	LastKeepAliveMs    uint64
	LastKeepAliveFarMs uint64
	TotalBytesSent     uint64
	CountOfMessages    uint64
	Mac                Mac
	ParentMac          Mac
	Layer              uint8
	MissedMessages     uint64
	LastRssi           int64
}

func (s *StatisticsNodeInfo) appendBody(b []byte) []byte {
	b = appendUint64(b, s.FirstMessageMs)
	b = appendUint64(b, s.LastKeepAliveMs)
	b = appendUint64(b, s.LastKeepAliveFarMs)
	b = appendUint64(b, s.TotalBytesSent)
	b = appendUint64(b, s.CountOfMessages)
	b = append(b, s.Mac[:]...)
	b = append(b, s.ParentMac[:]...)
	b = append(b, s.Layer)
	b = appendUint64(b, s.MissedMessages)
	return appendUint64(b, uint64(s.LastRssi))
}

func (s *StatisticsNodeInfo) parse(b []byte) {
	le := binary.LittleEndian
	s.FirstMessageMs = le.Uint64(b[0:])
	s.LastKeepAliveMs = le.Uint64(b[8:])
	s.LastKeepAliveFarMs = le.Uint64(b[16:])
	s.TotalBytesSent = le.Uint64(b[24:])
	s.CountOfMessages = le.Uint64(b[32:])
	copy(s.Mac[:], b[40:46])
	copy(s.ParentMac[:], b[46:52])
	s.Layer = b[52]
	s.MissedMessages = le.Uint64(b[53:])
	s.LastRssi = int64(le.Uint64(b[61:]))
}

type StatisticsTreeInfo struct {
	NumNodes  uint8
	CurrentMs uint64
	Nodes     [MaxNodes]StatisticsNodeInfo
}

func (StatisticsTreeInfo) Kind() CommandKind { return GET_STATISTICS_REPLY }
func (s StatisticsTreeInfo) AppendBody(b []byte) []byte {
	b = append(b, s.NumNodes)
	b = appendUint64(b, s.CurrentMs)
	for i := range s.Nodes {
		b = s.Nodes[i].appendBody(b)
	}
	return b
}

func (s *StatisticsTreeInfo) Valid() []StatisticsNodeInfo { return s.Nodes[:clampNodes(s.NumNodes)] }

// clampNodes bounds a hand-built NumNodes to the array capacity.
func clampNodes(n uint8) int {
	if n > MaxNodes {
		return MaxNodes
	}
	return int(n)
}

// Forward asks the root to relay Inner, a complete encoded frame, to Mac.
// ToHost=0 returns the response to the requester.
type Forward struct {
	Mac    Mac
	ToHost uint8
	Inner  []byte
}

// NewForward encodes inner and wraps it for target.
func NewForward(target Mac, inner Payload) (Forward, error) {
	b, err := Marshal(inner)
	if err != nil {
		return Forward{}, errors.Annotatef(err, "forward to=%s", target)
	}
	return Forward{Mac: target, Inner: b}, nil
}

func (Forward) Kind() CommandKind { return FORWARD }
func (f Forward) AppendBody(b []byte) []byte {
	b = append(b, f.Mac[:]...)
	b = append(b, f.ToHost)
	return append(b, f.Inner...)
}

// Unwrap decodes the relayed frame.
func (f Forward) Unwrap() (Payload, error) {
	frame, err := DecodeFrame(f.Inner)
	if err != nil {
		return nil, errors.Annotate(err, "forward inner")
	}
	return Decode(frame)
}

// Decode is the single dispatch from frame to typed payload.
func Decode(f Frame) (Payload, error) {
	b := f.Payload
	switch kind := f.Header.Cmd; kind {
	case BECOME_ROOT, STOP_KEEP_ALIVE, GET_NODES, GET_STATISTICS, CLEAR_STATISTICS:
		if err := checkSize(kind, b, 0); err != nil {
			return nil, err
		}
		return Empty{Cmd: kind}, nil

	case START_KEEP_ALIVE:
		if len(b) == 0 {
			return Empty{Cmd: kind}, nil
		}
		if err := checkSize(kind, b, startKeepAliveSize); err != nil {
			return nil, err
		}
		s := StartKeepAlive{
			ResetIndex:  b[0] != 0,
			DelayMs:     binary.LittleEndian.Uint32(b[1:5]),
			SendToRoot:  b[5] != 0,
			PayloadSize: binary.LittleEndian.Uint16(b[6:8]),
		}
		copy(s.TargetMac[:], b[8:])
		return s, nil

	case GO_TO_SLEEP:
		if err := checkSize(kind, b, goToSleepSize); err != nil {
			return nil, err
		}
		return GoToSleep{Ms: binary.LittleEndian.Uint64(b)}, nil

	case GET_LATENCY:
		if err := checkSize(kind, b, getLatencyRequestSize); err != nil {
			return nil, err
		}
		var g GetLatencyRequest
		copy(g.Dst[:], b)
		return g, nil

	case GET_LATENCY_REPLY:
		if err := checkSize(kind, b, getLatencyReplySize); err != nil {
			return nil, err
		}
		return GetLatencyReply{
			StartMs: binary.LittleEndian.Uint64(b[0:8]),
			EndMs:   binary.LittleEndian.Uint64(b[8:16]),
		}, nil

	case GET_NODES_REPLY:
		g, err := DecodeGetNodesReply(b)
		if err != nil {
			return nil, err
		}
		return g, nil

	case GET_STATISTICS_REPLY:
		s, err := DecodeStatisticsTreeInfo(b)
		if err != nil {
			return nil, err
		}
		return s, nil

	case FORWARD:
		if len(b) < forwardFixedSize {
			return nil, errors.Trace(ErrFrameSize{Kind: kind, Expect: forwardFixedSize, Actual: len(b)})
		}
		fw := Forward{ToHost: b[MacSize], Inner: append([]byte(nil), b[forwardFixedSize:]...)}
		copy(fw.Mac[:], b[:MacSize])
		return fw, nil

	case KEEP_ALIVE, ECHO_REQUEST, ECHO_REPLY:
		return Raw{Cmd: kind, Body: append([]byte(nil), b...)}, nil

	default:
		return nil, errors.Trace(ErrUnknownCommand(kind))
	}
}

func DecodeGetNodesReply(b []byte) (GetNodesReply, error) {
	var g GetNodesReply
	if err := checkSize(GET_NODES_REPLY, b, getNodesReplySize); err != nil {
		return g, err
	}
	g.NumNodes = b[0]
	if g.NumNodes > MaxNodes {
		return g, errors.Trace(ErrFrameSize{Kind: GET_NODES_REPLY, Expect: len(b), Actual: len(b), Count: int(g.NumNodes)})
	}
	for i := range g.Nodes {
		copy(g.Nodes[i][:], b[1+i*MacSize:])
	}
	return g, nil
}

func DecodeStatisticsTreeInfo(b []byte) (StatisticsTreeInfo, error) {
	var s StatisticsTreeInfo
	if err := checkSize(GET_STATISTICS_REPLY, b, statisticsTreeInfoSize); err != nil {
		return s, err
	}
	s.NumNodes = b[0]
	if s.NumNodes > MaxNodes {
		return s, errors.Trace(ErrFrameSize{Kind: GET_STATISTICS_REPLY, Expect: len(b), Actual: len(b), Count: int(s.NumNodes)})
	}
	s.CurrentMs = binary.LittleEndian.Uint64(b[1:9])
	for i := range s.Nodes {
		off := 9 + i*statisticsNodeInfoSize
		s.Nodes[i].parse(b[off : off+statisticsNodeInfoSize])
	}
	return s, nil
}

func checkSize(kind CommandKind, b []byte, expect int) error {
	if len(b) != expect {
		return errors.Trace(ErrFrameSize{Kind: kind, Expect: expect, Actual: len(b)})
	}
	return nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
