package state

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/espmesh/meshctl/hardware/uart"
	"github.com/espmesh/meshctl/internal/tele"
	"github.com/espmesh/meshctl/log2"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		sources   map[string]string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", map[string]string{"main": ""}, func(t testing.TB, c *Config) {
			assert.Equal(t, uart.DefaultBaud, c.Serial.Baud)
			assert.Equal(t, "info", c.Log.Level)
			assert.Equal(t, DefaultWatchInterval, c.Watch.IntervalSec)
			assert.False(t, c.Tele.Enabled)
		}, ""},

		{"full", map[string]string{"main": `
serial { device = "/dev/ttyUSB1" baud = 921600 }
log { level = "debug" file = "/var/log/meshctl.log" debug_frames = true max_size_mb = 5 }
watch { interval_sec = 2 refresh_nodes = true }
tele {
	enable = true
	mqtt_broker = "tcp://localhost:1883"
	client_id = "lab1"
	topic_prefix = "mesh"
	keepalive_sec = 10
}`}, func(t testing.TB, c *Config) {
			assert.Equal(t, "/dev/ttyUSB1", c.Serial.Device)
			assert.Equal(t, 921600, c.Serial.Baud)
			assert.Equal(t, "debug", c.Log.Level)
			assert.Equal(t, "/var/log/meshctl.log", c.Log.File)
			assert.True(t, c.Log.DebugFrames)
			assert.Equal(t, 5, c.Log.MaxSizeMB)
			assert.Equal(t, 2, c.Watch.IntervalSec)
			assert.True(t, c.Watch.RefreshNodes)
			assert.Equal(t, tele.Config{
				Enabled:      true,
				MqttBroker:   "tcp://localhost:1883",
				ClientId:     "lab1",
				TopicPrefix:  "mesh",
				KeepaliveSec: 10,
			}, c.Tele)
		}, ""},

		{"include-override", map[string]string{
			"main":  `serial { device = "/dev/ttyUSB0" } include "local" {}`,
			"local": `serial { device = "/dev/ttyACM0" }`,
		}, func(t testing.TB, c *Config) {
			assert.Equal(t, "/dev/ttyACM0", c.Serial.Device)
		}, ""},

		{"include-optional", map[string]string{
			"main": `include "missing" { optional = true } watch { interval_sec = 9 }`,
		}, func(t testing.TB, c *Config) {
			assert.Equal(t, 9, c.Watch.IntervalSec)
		}, ""},

		{"include-required", map[string]string{"main": `include "missing" {}`}, nil,
			"config required name=missing path=missing not found"},

		{"include-loop", map[string]string{
			"main":  `include "other" {}`,
			"other": `include "main" {}`,
		}, nil, "config include loop: from=other include=main"},

		{"syntax", map[string]string{"main": `serial {`}, nil, "config unmarshal source=main"},
	}
	rand.New(rand.NewSource(time.Now().UnixNano())).Shuffle(len(cases), func(i int, j int) { cases[i], cases[j] = cases[j], cases[i] })
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			log := log2.NewTest(t, log2.LDebug)
			cfg, err := ReadConfig(log, NewMockFullReader(c.sources), "main")
			if c.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
				return
			}
			require.NoError(t, err)
			c.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Log.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config log.level")

	cfg = DefaultConfig()
	cfg.Tele.Enabled = true
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err), errors.ErrorStack(err))
}

func TestGlobal(t *testing.T) {
	t.Parallel()
	ctx, g, mock := NewTestContext(t, `watch { interval_sec = 3 }`)
	assert.Equal(t, g, GetGlobal(ctx))
	assert.Equal(t, 3, g.Config.Watch.IntervalSec)
	assert.False(t, g.Tele.Enabled())

	mock.Expect("030000000000", "")
	require.NoError(t, g.Client.BecomeRoot())
	g.Error(errors.New("not delivered"), "watch round=%d", 1)

	assert.True(t, g.Alive.IsRunning())
	g.Stop()
	g.Stop()
	assert.False(t, g.Alive.IsRunning())

	require.NoError(t, g.Close())
	mock.Done()
	assert.Error(t, g.Client.BecomeRoot())
}

func TestGlobalInitNoDevice(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	ctx, g := NewContext(log, nil)
	err := g.Init(ctx, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err), errors.ErrorStack(err))
	assert.NotNil(t, g.Tele)
}

func TestGetGlobalPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { GetGlobal(context.Background()) })
}
