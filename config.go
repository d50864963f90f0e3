package kernsim

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/kernsim/model/resource"
	"github.com/viant/kernsim/policy"
	"github.com/viant/kernsim/service/kernel"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the simulator configuration.
// It is usually loaded from YAML; the zero value of every section inherits
// the defaults from DefaultConfig when decoded over it.
type Config struct {
	Kernel   kernel.Config  `json:"kernel" yaml:"kernel"`
	Pool     PoolConfig     `json:"pool" yaml:"pool"`
	Boot     BootConfig     `json:"boot" yaml:"boot"`
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	Events   EventsConfig   `json:"events" yaml:"events"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// PoolConfig seeds the resource pool.
type PoolConfig struct {
	// Inventory maps resource type names (e.g. CHANNEL) to instance counts.
	Inventory map[string]int `json:"inventory" yaml:"inventory"`
	Policy    *policy.Config `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// BootConfig drives the bootstrap program.
type BootConfig struct {
	// Lines are printer payloads: e<text>, n<slot> or s<slot>.
	Lines         []string `json:"lines" yaml:"lines"`
	PrintPriority int      `json:"printPriority" yaml:"printPriority"`
}

type SnapshotConfig struct {
	// URL stores snapshots as JSON files; empty keeps them in memory.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Limit bounds the in-memory journal; 0 keeps every snapshot.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

type EventsConfig struct {
	// Buffer is the event queue capacity; 0 disables kernel events.
	Buffer int `json:"buffer" yaml:"buffer"`
}

type TracingConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// DefaultConfig returns a Config that prints one line with a single channel.
func DefaultConfig() *Config {
	return &Config{
		Kernel: kernel.Config{
			MaxTicks:      1000,
			SnapshotEvery: 0,
		},
		Pool: PoolConfig{
			Inventory: map[string]int{resource.Channel.String(): 1},
		},
		Boot: BootConfig{
			Lines:         []string{"ehello from kernsim"},
			PrintPriority: 3,
		},
		Snapshot: SnapshotConfig{Limit: 64},
		Events:   EventsConfig{Buffer: 1024},
		Log:      LogConfig{Level: "info"},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Kernel.MaxTicks < 0 {
		errs = append(errs, fmt.Errorf("kernel.maxTicks must be >= 0"))
	}
	if c.Kernel.SnapshotEvery < 0 {
		errs = append(errs, fmt.Errorf("kernel.snapshotEvery must be >= 0"))
	}
	if _, err := c.Inventory(); err != nil {
		errs = append(errs, err)
	}
	if err := policy.FromConfig(c.Pool.Policy).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pool.policy: %w", err))
	}
	if c.Snapshot.Limit < 0 {
		errs = append(errs, fmt.Errorf("snapshot.limit must be >= 0"))
	}
	if c.Events.Buffer < 0 {
		errs = append(errs, fmt.Errorf("events.buffer must be >= 0"))
	}
	if c.Log.Level != "" {
		if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Inventory resolves pool.inventory type names.
func (c *Config) Inventory() (map[resource.Type]int, error) {
	ret := make(map[resource.Type]int, len(c.Pool.Inventory))
	for name, count := range c.Pool.Inventory {
		t, err := resource.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("pool.inventory: %w", err)
		}
		if count < 0 {
			return nil, fmt.Errorf("pool.inventory: %v count must be >= 0", t)
		}
		ret[t] += count
	}
	return ret, nil
}

// LoadConfig decodes a YAML document from URL over DefaultConfig. Any afs
// scheme works; plain paths resolve against the local file system.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	URL = url.Normalize(URL, file.Scheme)
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", URL, err)
	}
	ret := DefaultConfig()
	inventory := ret.Pool.Inventory
	ret.Pool.Inventory = nil
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", URL, err)
	}
	if ret.Pool.Inventory == nil {
		ret.Pool.Inventory = inventory
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return ret, nil
}
