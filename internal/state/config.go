package state

import (
	"path/filepath"
	"sync"

	"github.com/espmesh/meshctl/hardware/uart"
	"github.com/espmesh/meshctl/helpers"
	"github.com/espmesh/meshctl/internal/tele"
	"github.com/espmesh/meshctl/log2"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
)

const (
	DefaultLogLevel      = "info"
	DefaultWatchInterval = 5
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	Serial struct {
		Device string `hcl:"device"`
		Baud   int    `hcl:"baud"`
	} `hcl:"serial"`
	Log struct {
		Level       string `hcl:"level"`
		File        string `hcl:"file"`
		DebugFrames bool   `hcl:"debug_frames"`
		MaxSizeMB   int    `hcl:"max_size_mb"`
	} `hcl:"log"`
	Watch struct {
		IntervalSec  int  `hcl:"interval_sec"`
		RefreshNodes bool `hcl:"refresh_nodes"`
	} `hcl:"watch"`
	Tele tele.Config `hcl:"tele"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s content='%s'", source.Name, string(bs))
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func (c *Config) applyDefaults() {
	if c.Serial.Baud == 0 {
		c.Serial.Baud = uart.DefaultBaud
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Watch.IntervalSec <= 0 {
		c.Watch.IntervalSec = DefaultWatchInterval
	}
}

// Validate checks values that would only fail late, after the serial port is open.
func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if _, err := log2.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, errors.Annotate(err, "config log.level"))
	}
	if c.Log.MaxSizeMB < 0 {
		errs = append(errs, errors.NotValidf("config log.max_size_mb=%d", c.Log.MaxSizeMB))
	}
	if c.Tele.Enabled && c.Tele.MqttBroker == "" {
		errs = append(errs, errors.NotValidf("config tele.enable=true with empty tele.mqtt_broker"))
	}
	return helpers.FoldErrors(errs)
}

// ReadConfig merges sources in order, later values override earlier.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	c.applyDefaults()
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() *Config {
	c := &Config{includeSeen: make(map[string]struct{})}
	c.applyDefaults()
	return c
}
