// Package config handles postfix.toml tool configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "postfix.toml"

// Config represents a postfix.toml file.
type Config struct {
	Log       Log       `toml:"log"`
	Translate Translate `toml:"translate"`
	Run       Run       `toml:"run"`
	Store     Store     `toml:"store"`

	// Dir is the directory containing the postfix.toml file (set at load time).
	Dir string `toml:"-"`
}

// Log configures the commonlog backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Translate selects the diagnostic output printed after translation.
type Translate struct {
	Listing bool `toml:"listing"`
	Symbols bool `toml:"symbols"`
}

// Run configures the stack machine.
type Run struct {
	MaxSteps int `toml:"max-steps"`
}

// Store configures the translation history database.
type Store struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no postfix.toml exists.
func Default() *Config {
	return &Config{
		Translate: Translate{Listing: true},
		Run:       Run{MaxSteps: 1_000_000},
	}
}

// Load parses postfix.toml from the given directory on top of Default.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	c, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// LoadFile parses the configuration file at path on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir = filepath.Dir(path)

	if c.Run.MaxSteps < 0 {
		return nil, fmt.Errorf("%s: run.max-steps must not be negative", path)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a postfix.toml file, then loads
// and returns it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// StorePath returns the store path resolved against the config directory.
func (c *Config) StorePath() string {
	if c.Store.Path == "" || filepath.IsAbs(c.Store.Path) || c.Dir == "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}
