package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/espmesh/meshctl/cmd/meshctl/subcmd"
	"github.com/espmesh/meshctl/cmd/meshctl/watch"
	"github.com/espmesh/meshctl/helpers/cli"
	"github.com/espmesh/meshctl/internal/shell"
	"github.com/espmesh/meshctl/internal/state"
	"github.com/espmesh/meshctl/internal/tele"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
)

var BuildVersion = "unknown" // set by ldflags -X

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	{Name: "cli", Usage: "cli              interactive prompt, script from non-tty stdin", Main: cliMain},
	watch.Mod,
	{Name: "version", Usage: "version          print build version", Main: versionMain},
}

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.String("config", "", "HCL config file")
	flagDevice := cmdline.String("device", "", "serial device, overrides serial.device")
	flagBaud := cmdline.Int("baud", 0, "serial baud rate, overrides serial.baud")
	flagLogLevel := cmdline.String("log-level", "", "error|info|debug, overrides log.level")
	cmdline.Usage = func() {
		w := cmdline.Output()
		fmt.Fprintf(w, "usage: %s [flags] command [args]\n\nflags:\n", cmdline.Name())
		cmdline.PrintDefaults()
		fmt.Fprintf(w, "\ncommands:\n")
		for _, m := range modules {
			fmt.Fprintf(w, "- %s\n", m.Usage)
		}
		fmt.Fprintf(w, "\nany shell command runs once:\n%s", shell.Usage)
	}
	_ = cmdline.Parse(os.Args[1:])
	args := cmdline.Args()
	if len(args) == 0 {
		cmdline.Usage()
		os.Exit(2)
	}

	if subcmd.SdNotify("start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	mod, err := subcmd.Parse(args[0], modules)
	if errors.IsNotFound(err) {
		mod = &subcmd.Mod{Name: "shell", Main: shellMain}
	} else if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	var config *state.Config
	if *flagConfig != "" {
		config = state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	} else {
		config = state.DefaultConfig()
	}
	if *flagDevice != "" {
		config.Serial.Device = *flagDevice
	}
	if *flagBaud != 0 {
		config.Serial.Baud = *flagBaud
	}
	if *flagLogLevel != "" {
		config.Log.Level = *flagLogLevel
	}

	ctx, g := state.NewContext(log, tele.New())
	g.BuildVersion = BuildVersion
	err = mod.Main(ctx, config, args)
	g.Stop()
	if closeErr := g.Close(); closeErr != nil {
		g.Log.Errorf("close: %v", closeErr)
	}
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

func cliMain(ctx context.Context, config *state.Config, args []string) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	g.Log.Debugf("meshctl %s cli on %s", g.BuildVersion, config.Serial.Device)

	sh := shell.New(os.Stdout)
	cli.MainLoop("meshctl", sh.Executor(ctx), sh.Completer())
	return nil
}

// shellMain runs command line words as one shell line.
func shellMain(ctx context.Context, config *state.Config, args []string) error {
	g := state.GetGlobal(ctx)
	sh := shell.New(os.Stdout)
	line := shell.WithNodes(strings.Join(args, " "))
	// syntax errors before opening serial port
	d, err := sh.ParseLine(line)
	if err != nil {
		return err
	}
	g.MustInit(ctx, config)
	return d.Do(ctx)
}

func versionMain(ctx context.Context, config *state.Config, args []string) error {
	fmt.Printf("meshctl %s\n", BuildVersion)
	return nil
}
