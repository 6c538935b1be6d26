// Package shell parses operator commands into engine actions against state.Global.
// Same syntax serves one-shot command line and interactive prompt.
package shell

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/espmesh/meshctl/internal/engine"
	"github.com/espmesh/meshctl/internal/state"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
)

const Usage = `syntax: one command with arguments, several commands separated by ;
(mesh)
- root                          make attached node the mesh root
- nodes                         get-nodes, register new macs
- list                          print known nodes (alias print_nodes)
- stats [-yaml]                 get-statistics, print tree or yaml snapshot
- clear                         clear statistics on root
- start ID DELAY_MS SIZE [TO]   node ID sends keep-alive to root or node TO
- stop ID                       stop keep-alive on node ID
- sleep ID MS                   put node ID to sleep
- latency SRC DST               round trip SRC->DST->SRC
- status                        client counters

(meta)
- sN                            pause N milliseconds
- log=debug|info|error          set log level
- loop=N                        repeat N times all commands on this line
- help                          this text
`

type Shell struct {
	out io.Writer
}

func New(out io.Writer) *Shell {
	return &Shell{out: out}
}

// Exec parses and runs one line.
func (self *Shell) Exec(ctx context.Context, line string) error {
	d, err := self.ParseLine(line)
	if err != nil {
		return err
	}
	return d.Do(ctx)
}

// Executor adapts Exec to prompt and script loops, errors are logged.
func (self *Shell) Executor(ctx context.Context) func(string) {
	g := state.GetGlobal(ctx)
	return func(line string) {
		if err := self.Exec(ctx, line); err != nil {
			g.Error(err)
		}
	}
}

func (self *Shell) Completer() func(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "root", Description: "become root"},
		{Text: "nodes", Description: "get nodes from root"},
		{Text: "list", Description: "print known nodes"},
		{Text: "stats", Description: "get statistics, print tree"},
		{Text: "clear", Description: "clear statistics"},
		{Text: "start", Description: "ID DELAY_MS SIZE [TO] start keep-alive"},
		{Text: "stop", Description: "ID stop keep-alive"},
		{Text: "sleep", Description: "ID MS put node to sleep"},
		{Text: "latency", Description: "SRC DST measure round trip"},
		{Text: "status", Description: "client counters"},
		{Text: "sN", Description: "pause for N ms"},
		{Text: "loop=N", Description: "repeat line N times"},
		{Text: "log=debug", Description: "verbose logging"},
		{Text: "help"},
	}

	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterFuzzy(suggests, d.GetWordBeforeCursor(), true)
	}
}

func (self *Shell) ParseLine(line string) (engine.Doer, error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return engine.Nothing{}, nil
	}

	// pre-parse special commands
	loopn := uint(0)
	wordsRest := make([]string, 0, len(words))
	for _, word := range words {
		switch {
		case word == "help":
			return self.doUsage(), nil
		case strings.HasPrefix(word, "loop="):
			if loopn != 0 {
				return nil, errors.Errorf("multiple loop commands, expected at most one")
			}
			i, err := strconv.ParseUint(word[5:], 10, 32)
			if err != nil {
				return nil, errors.Annotatef(err, "word=%s", word)
			}
			loopn = uint(i)
		default:
			wordsRest = append(wordsRest, word)
		}
	}

	tx := engine.NewSeq("input:" + line)
	for _, stmt := range splitStatements(wordsRest) {
		d, err := self.parseCommand(stmt[0], stmt[1:])
		if d == nil && err == nil {
			panic(fmt.Sprintf("code error parseCommand words=%q both doer and err are nil", stmt))
		}
		if err != nil {
			return nil, err
		}
		tx.Append(d)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if loopn != 0 {
		return engine.RepeatN{N: loopn, D: tx}, nil
	}
	return tx, nil
}

func splitStatements(words []string) [][]string {
	var stmts [][]string
	var cur []string
	flush := func() {
		if len(cur) != 0 {
			stmts = append(stmts, cur)
			cur = nil
		}
	}
	for _, w := range words {
		for {
			i := strings.IndexByte(w, ';')
			if i < 0 {
				break
			}
			if i > 0 {
				cur = append(cur, w[:i])
			}
			flush()
			w = w[i+1:]
		}
		if w != "" {
			cur = append(cur, w)
		}
	}
	flush()
	return stmts
}

func (self *Shell) parseCommand(cmd string, args []string) (engine.Doer, error) {
	switch {
	case cmd == "root":
		return self.noArgs(cmd, args, doBecomeRoot)
	case cmd == "nodes":
		return self.noArgs(cmd, args, self.doGetNodes())
	case cmd == "list" || cmd == "print_nodes":
		return self.noArgs(cmd, args, self.doList())
	case cmd == "clear":
		return self.noArgs(cmd, args, doClear)
	case cmd == "status":
		return self.noArgs(cmd, args, self.doStatus())
	case cmd == "stats":
		switch {
		case len(args) == 0:
			return self.doStats(false), nil
		case len(args) == 1 && args[0] == "-yaml":
			return self.doStats(true), nil
		}
		return nil, errors.NotValidf("stats arguments=%q, expected [-yaml]", args)
	case cmd == "start":
		if len(args) != 3 && len(args) != 4 {
			return nil, errors.NotValidf("start arguments=%q, expected ID DELAY_MS SIZE [TO]", args)
		}
		nums, err := parseUints(args, 32, 32, 16, 32)
		if err != nil {
			return nil, errors.Annotate(err, "start")
		}
		return doStart(nums), nil
	case cmd == "stop":
		nums, err := parseArgs(cmd, args, "ID", 32)
		if err != nil {
			return nil, err
		}
		return doStop(uint(nums[0])), nil
	case cmd == "sleep":
		nums, err := parseArgs(cmd, args, "ID MS", 32, 64)
		if err != nil {
			return nil, err
		}
		return doSleep(uint(nums[0]), nums[1]), nil
	case cmd == "latency":
		nums, err := parseArgs(cmd, args, "SRC DST", 32, 32)
		if err != nil {
			return nil, err
		}
		return self.doLatency(uint(nums[0]), uint(nums[1])), nil
	case strings.HasPrefix(cmd, "log="):
		level, err := log2.ParseLevel(cmd[4:])
		if err != nil {
			return nil, errors.Annotatef(err, "word=%s", cmd)
		}
		return self.noArgs(cmd, args, doLogLevel(cmd, level))
	case len(cmd) > 1 && cmd[0] == 's' && isDigits(cmd[1:]):
		i, err := strconv.ParseUint(cmd[1:], 10, 32)
		if err != nil {
			return nil, errors.Annotatef(err, "word=%s", cmd)
		}
		return self.noArgs(cmd, args, engine.Sleep{Duration: time.Duration(i) * time.Millisecond})
	default:
		return nil, errors.NotValidf("command '%s'", cmd)
	}
}

func (self *Shell) noArgs(cmd string, args []string, d engine.Doer) (engine.Doer, error) {
	if len(args) != 0 {
		return nil, errors.NotValidf("%s takes no arguments, got %q", cmd, args)
	}
	return d, nil
}

func parseArgs(cmd string, args []string, syntax string, bits ...int) ([]uint64, error) {
	if len(args) != len(bits) {
		return nil, errors.NotValidf("%s arguments=%q, expected %s", cmd, args, syntax)
	}
	nums, err := parseUints(args, bits...)
	return nums, errors.Annotate(err, cmd)
}

func parseUints(args []string, bits ...int) ([]uint64, error) {
	nums := make([]uint64, len(args))
	for i, a := range args {
		n, err := strconv.ParseUint(a, 10, bits[i])
		if err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("argument %d='%s'", i+1, a))
		}
		nums[i] = n
	}
	return nums, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

var idCommands = map[string]bool{"start": true, "stop": true, "sleep": true, "latency": true}

// WithNodes prepends get-nodes when line addresses nodes by local id
// before any get-nodes of its own. Fresh process has empty registry.
func WithNodes(line string) string {
	words := make([]string, 0, 8)
	for _, word := range strings.Fields(line) {
		switch {
		case word == "help":
			return line
		case strings.HasPrefix(word, "loop="):
			// applies to the whole line, like in ParseLine
		default:
			words = append(words, word)
		}
	}
	for _, stmt := range splitStatements(words) {
		switch {
		case stmt[0] == "nodes":
			return line
		case idCommands[stmt[0]]:
			return "nodes; " + line
		}
	}
	return line
}
