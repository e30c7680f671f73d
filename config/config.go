// Package config handles stackvm.toml configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/stackvm/vm"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "stackvm.toml"

// Config represents a stackvm.toml configuration.
type Config struct {
	Limits  Limits  `toml:"limits"`
	Log     Log     `toml:"log"`
	History History `toml:"history"`
	Host    Host    `toml:"host"`

	// Dir is the directory containing the configuration file (set at load
	// time). Relative paths are resolved against it.
	Dir string `toml:"-"`
}

// Limits overrides the engine limits. Zero values keep the defaults.
type Limits struct {
	MaxShift               int `toml:"max-shift"`
	MaxStackSize           int `toml:"max-stack-size"`
	MaxItemSize            int `toml:"max-item-size"`
	MaxComparableSize      int `toml:"max-comparable-size"`
	MaxInvocationStackSize int `toml:"max-invocation-stack-size"`
	MaxTryNestingDepth     int `toml:"max-try-nesting-depth"`
}

// Log configures logging.
type Log struct {
	// Verbosity follows commonlog: 0 errors only, 1 info, 2 debug.
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
	Trace     bool   `toml:"trace"`
}

// History configures the run log.
type History struct {
	Database string `toml:"database"`
	Enabled  bool   `toml:"enabled"`
}

// Host configures the example host services.
type Host struct {
	StorageDir string `toml:"storage-dir"`
	// Strict enables strict script validation on load.
	Strict bool `toml:"strict"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses the file at path, fills defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML data into a validated Config.
func Parse(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a stackvm.toml file, then
// loads it. It returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	def := vm.DefaultLimits()
	fill := func(v *int, d int) {
		if *v == 0 {
			*v = d
		}
	}
	fill(&c.Limits.MaxShift, def.MaxShift)
	fill(&c.Limits.MaxStackSize, def.MaxStackSize)
	fill(&c.Limits.MaxItemSize, def.MaxItemSize)
	fill(&c.Limits.MaxComparableSize, def.MaxComparableSize)
	fill(&c.Limits.MaxInvocationStackSize, def.MaxInvocationStackSize)
	fill(&c.Limits.MaxTryNestingDepth, def.MaxTryNestingDepth)
	if c.History.Database == "" {
		c.History.Database = "stackvm-history.db"
	}
}

// Validate checks limits and log settings.
func (c *Config) Validate() error {
	if err := c.VMLimits().Validate(); err != nil {
		return err
	}
	if c.Log.Verbosity < 0 || c.Log.Verbosity > 2 {
		return fmt.Errorf("log verbosity must be 0, 1 or 2, got %d", c.Log.Verbosity)
	}
	if c.Limits.MaxComparableSize > c.Limits.MaxItemSize {
		return errors.New("max-comparable-size exceeds max-item-size")
	}
	return nil
}

// VMLimits converts the limits section to engine limits.
func (c *Config) VMLimits() vm.Limits {
	return vm.Limits{
		MaxShift:               c.Limits.MaxShift,
		MaxStackSize:           c.Limits.MaxStackSize,
		MaxItemSize:            c.Limits.MaxItemSize,
		MaxComparableSize:      c.Limits.MaxComparableSize,
		MaxInvocationStackSize: c.Limits.MaxInvocationStackSize,
		MaxTryNestingDepth:     c.Limits.MaxTryNestingDepth,
	}
}

// Path resolves p against the configuration directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// HistoryPath returns the resolved run log database path.
func (c *Config) HistoryPath() string {
	return c.Path(c.History.Database)
}

// StoragePath returns the resolved host storage directory. Empty means
// in-memory storage.
func (c *Config) StoragePath() string {
	return c.Path(c.Host.StorageDir)
}
