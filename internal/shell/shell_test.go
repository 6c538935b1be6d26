package shell

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/espmesh/meshctl/hardware/uart"
	"github.com/espmesh/meshctl/internal/engine"
	"github.com/espmesh/meshctl/internal/protocol"
	"github.com/espmesh/meshctl/internal/registry"
	"github.com/espmesh/meshctl/internal/state"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mac1 = protocol.MustParseMac("AA:BB:CC:DD:EE:01")
	mac2 = protocol.MustParseMac("AA:BB:CC:DD:EE:02")
	macR = protocol.MustParseMac("11:22:33:44:55:66")
)

func frame(t testing.TB, p protocol.Payload) []byte {
	b, err := protocol.Marshal(p)
	require.NoError(t, err)
	return b
}

func expectNodes(t testing.TB, mock *uart.MockUart, macs ...protocol.Mac) {
	r := protocol.GetNodesReply{NumNodes: uint8(len(macs))}
	copy(r.Nodes[:], macs)
	mock.ExpectBytes(frame(t, protocol.Empty{Cmd: protocol.GET_NODES}), frame(t, r))
}

func testShell(t testing.TB) (context.Context, *Shell, *bytes.Buffer, *uart.MockUart) {
	ctx, _, mock := state.NewTestContext(t, "")
	out := new(bytes.Buffer)
	return ctx, New(out), out, mock
}

func TestParseLineError(t *testing.T) {
	t.Parallel()
	type Case struct {
		line   string
		expect string
	}
	cases := []Case{
		{"bogus", "command 'bogus' not valid"},
		{"stop", "stop arguments=[], expected ID not valid"},
		{"stop x", "stop: argument 1='x'"},
		{"start 0 1", "expected ID DELAY_MS SIZE [TO] not valid"},
		{"start 0 1 70000", "start: argument 3='70000'"},
		{"stats -json", "stats arguments=[\"-json\"], expected [-yaml] not valid"},
		{"loop=2 root loop=3", "multiple loop commands"},
		{"loop=x root", "word=loop=x"},
		{"root now", "root takes no arguments"},
		{"log=loud", "word=log=loud"},
		{"s10x", "command 's10x' not valid"},
		{"nodes; latency 1", "latency arguments"},
	}
	rand.New(rand.NewSource(time.Now().UnixNano())).Shuffle(len(cases), func(i int, j int) { cases[i], cases[j] = cases[j], cases[i] })
	sh := New(new(bytes.Buffer))
	for _, c := range cases {
		c := c
		t.Run(c.line, func(t *testing.T) {
			d, err := sh.ParseLine(c.line)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.Contains(t, err.Error(), c.expect)
		})
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	sh := New(new(bytes.Buffer))

	d, err := sh.ParseLine("   ")
	require.NoError(t, err)
	assert.Equal(t, engine.Nothing{}, d)

	d, err = sh.ParseLine("nodes;list ; s100;stats -yaml")
	require.NoError(t, err)
	require.IsType(t, &engine.Seq{}, d)
	assert.Equal(t, 4, d.(*engine.Seq).Len())

	d, err = sh.ParseLine("loop=3 root")
	require.NoError(t, err)
	require.IsType(t, engine.RepeatN{}, d)
	assert.Equal(t, uint(3), d.(engine.RepeatN).N)
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()
	assert.Equal(t, [][]string{{"a", "1"}, {"b"}, {"c", "2"}, {"3"}},
		splitStatements(strings.Fields("a 1; b;c 2 ;; 3")))
	assert.Equal(t, [][]string{{"a", "1"}, {"b"}, {"c", "2"}},
		splitStatements(strings.Fields("a 1; b;c 2 ;;")))
	assert.Nil(t, splitStatements(nil))
}

func TestHelp(t *testing.T) {
	t.Parallel()
	ctx, sh, out, mock := testShell(t)
	defer mock.Done()
	require.NoError(t, sh.Exec(ctx, "stats help"))
	assert.Equal(t, Usage, out.String())
}

func TestNodesList(t *testing.T) {
	t.Parallel()
	ctx, sh, out, mock := testShell(t)
	defer mock.Done()

	expectNodes(t, mock, mac1, mac2)
	require.NoError(t, sh.Exec(ctx, "nodes; list"))
	assert.Equal(t, "nodes added=2 total=2\n 0 - AA:BB:CC:DD:EE:01\n 1 - AA:BB:CC:DD:EE:02\n", out.String())

	out.Reset()
	expectNodes(t, mock, mac2, mac1)
	require.NoError(t, sh.Exec(ctx, "nodes; print_nodes"))
	assert.Equal(t, "nodes added=0 total=2\n 0 - AA:BB:CC:DD:EE:01\n 1 - AA:BB:CC:DD:EE:02\n", out.String())
}

func testStats() protocol.StatisticsTreeInfo {
	s := protocol.StatisticsTreeInfo{NumNodes: 2, CurrentMs: 3000}
	s.Nodes[0] = protocol.StatisticsNodeInfo{Mac: mac2, ParentMac: mac1, LastKeepAliveMs: 100, Layer: 2, LastRssi: -70}
	s.Nodes[1] = protocol.StatisticsNodeInfo{Mac: mac1, ParentMac: macR, LastKeepAliveMs: 2500, Layer: 1, LastRssi: -50,
		FirstMessageMs: 500, CountOfMessages: 5, TotalBytesSent: 4000}
	return s
}

func TestStats(t *testing.T) {
	t.Parallel()
	ctx, sh, out, mock := testShell(t)
	defer mock.Done()

	mock.ExpectBytes(frame(t, protocol.Empty{Cmd: protocol.GET_STATISTICS}), frame(t, testStats()))
	require.NoError(t, sh.Exec(ctx, "stats"))
	assert.Equal(t, `root=11:22:33:44:55:66 nodes=2 now=3000ms
AA:BB:CC:DD:EE:01 Up last=500ms rssi=-50 layer=1 throughput=2.000KB/s rate=2.50pkt/s
  AA:BB:CC:DD:EE:02 Down last=2900ms rssi=-70 layer=2
`, out.String())

	out.Reset()
	mock.ExpectBytes(frame(t, protocol.Empty{Cmd: protocol.GET_STATISTICS}), frame(t, testStats()))
	require.NoError(t, sh.Exec(ctx, "stats -yaml"))
	assert.Contains(t, out.String(), "current_ms: 3000\n")
	assert.Contains(t, out.String(), "mac: AA:BB:CC:DD:EE:02\n")
	assert.Contains(t, out.String(), "throughput_kbps: 2\n")
}

func TestForwardCommands(t *testing.T) {
	t.Parallel()
	type Case struct {
		line   string
		expect string
	}
	cases := []Case{
		{"stop 1", "0a000000 0d00 aabbccddee02 00 020000000000"},
		{"sleep 0 1000", "0a000000 1500 aabbccddee01 00 04000000 0800 e803000000000000"},
		{"start 0 500 32", "0a000000 1b00 aabbccddee01 00 01000000 0e00 01 f4010000 01 2000 000000000000"},
		{"start 0 100 8 1", "0a000000 1b00 aabbccddee01 00 01000000 0e00 01 64000000 00 0800 aabbccddee02"},
	}
	rand.New(rand.NewSource(time.Now().UnixNano())).Shuffle(len(cases), func(i int, j int) { cases[i], cases[j] = cases[j], cases[i] })
	for _, c := range cases {
		c := c
		t.Run(c.line, func(t *testing.T) {
			ctx, sh, _, mock := testShell(t)
			defer mock.Done()
			expectNodes(t, mock, mac1, mac2)
			require.NoError(t, sh.Exec(ctx, "nodes"))
			mock.Expect(c.expect, "")
			require.NoError(t, sh.Exec(ctx, c.line))
		})
	}
}

func TestLatency(t *testing.T) {
	t.Parallel()
	ctx, sh, out, mock := testShell(t)
	defer mock.Done()
	expectNodes(t, mock, mac1, mac2)
	mock.ExpectBytes(
		frame(t, protocol.Forward{Mac: mac2, Inner: frame(t, protocol.GetLatencyRequest{Dst: mac1})}),
		frame(t, protocol.GetLatencyReply{StartMs: 70, EndMs: 95}))
	require.NoError(t, sh.Exec(ctx, "nodes; latency 1 0"))
	assert.Equal(t, "nodes added=2 total=2\nlatency 1 -> 0 = 25ms\n", out.String())
}

func TestLoopRoot(t *testing.T) {
	t.Parallel()
	ctx, sh, _, mock := testShell(t)
	defer mock.Done()
	for i := 0; i < 3; i++ {
		mock.Expect("030000000000", "")
	}
	mock.Expect("090000000000", "")
	require.NoError(t, sh.Exec(ctx, "root; s1 loop=3"))
	require.NoError(t, sh.Exec(ctx, "clear"))
}

func TestUnknownNode(t *testing.T) {
	t.Parallel()
	ctx, sh, _, mock := testShell(t)
	defer mock.Done()
	err := sh.Exec(ctx, "stop 5")
	require.Error(t, err)
	assert.Equal(t, registry.ErrUnknownNode(5), errors.Cause(err))

	// executor logs and continues
	sh.Executor(ctx)("stop 5")
	sh.Executor(ctx)("bogus")
}

func TestStatus(t *testing.T) {
	t.Parallel()
	ctx, sh, out, mock := testShell(t)
	defer mock.Done()
	require.NoError(t, sh.Exec(ctx, "status"))
	assert.Equal(t, "nodes=0 tx=0 rx=0 last_tx=never last_rx=never\n", out.String())

	out.Reset()
	mock.Expect("030000000000", "")
	require.NoError(t, sh.Exec(ctx, "root; status"))
	assert.True(t, strings.HasPrefix(out.String(), "nodes=0 tx=1 rx=0 last_tx="), out.String())
	assert.Contains(t, out.String(), "last_rx=never")
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	ctx, sh, _, mock := testShell(t)
	defer mock.Done()
	g := state.GetGlobal(ctx)
	require.NoError(t, sh.Exec(ctx, "log=error"))
	assert.False(t, g.Log.Enabled(log2.LDebug))
	require.NoError(t, sh.Exec(ctx, "log=debug"))
	assert.True(t, g.Log.Enabled(log2.LDebug))
}

func TestCompleter(t *testing.T) {
	t.Parallel()
	complete := New(nil).Completer()
	buf := prompt.NewBuffer()
	buf.InsertText("sta", false, true)
	texts := []string{}
	for _, s := range complete(*buf.Document()) {
		texts = append(texts, s.Text)
	}
	assert.ElementsMatch(t, []string{"start", "stats", "status"}, texts)
}

func TestWithNodes(t *testing.T) {
	t.Parallel()
	type Case struct {
		line   string
		expect string
	}
	cases := []Case{
		{"stats", "stats"},
		{"root", "root"},
		{"stop 1", "nodes; stop 1"},
		{"clear; latency 0 1", "nodes; clear; latency 0 1"},
		{"nodes; stop 1", "nodes; stop 1"},
		{"loop=2 stop 1", "nodes; loop=2 stop 1"},
		{"stop 1 loop=2", "nodes; stop 1 loop=2"},
		{"loop=3 nodes; stop 1", "loop=3 nodes; stop 1"},
		{"help stop", "help stop"},
		{"", ""},
	}
	rand.New(rand.NewSource(time.Now().UnixNano())).Shuffle(len(cases), func(i int, j int) { cases[i], cases[j] = cases[j], cases[i] })
	for _, c := range cases {
		c := c
		t.Run(c.line, func(t *testing.T) {
			assert.Equal(t, c.expect, WithNodes(c.line))
		})
	}
}
