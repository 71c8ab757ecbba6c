// Package config handles treevm.toml runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const FileName = "treevm.toml"

const (
	DefaultSegmentSize   = 8192
	DefaultPoolBlockSize = 1024
)

var ErrInvalid = errors.New("invalid configuration")

// Config represents a treevm.toml file.
type Config struct {
	Stack       Stack       `toml:"stack"`
	Pool        Pool        `toml:"pool"`
	Diagnostics Diagnostics `toml:"diagnostics"`
	Log         Log         `toml:"log"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

type Stack struct {
	SegmentSize int `toml:"segment-size"`
}

type Pool struct {
	BlockSize int `toml:"block-size"`
}

// Diagnostics turns on lost-node counting in every pool and instruction
// tracing in the reference machine.
type Diagnostics struct {
	Enabled bool `toml:"enabled"`
	Trace   bool `toml:"trace"`
}

type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

func Default() *Config {
	return &Config{
		Stack: Stack{SegmentSize: DefaultSegmentSize},
		Pool:  Pool{BlockSize: DefaultPoolBlockSize},
	}
}

// Load parses a configuration file. Settings missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Path = path
	return c, nil
}

// FindAndLoad walks up from startDir looking for treevm.toml. Defaults are
// returned when there is none.
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

func (c *Config) Validate() error {
	if c.Stack.SegmentSize <= 0 {
		return fmt.Errorf("%w: stack segment-size must be positive, got %d", ErrInvalid, c.Stack.SegmentSize)
	}
	if c.Pool.BlockSize <= 0 {
		return fmt.Errorf("%w: pool block-size must be positive, got %d", ErrInvalid, c.Pool.BlockSize)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("%w: log verbosity must not be negative, got %d", ErrInvalid, c.Log.Verbosity)
	}
	return nil
}
