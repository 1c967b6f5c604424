// Package config loads and writes the .rustnav.yaml settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = ".rustnav.yaml"

// Config holds the user settings.
type Config struct {
	// Roots are walked by `rustnav map` and by a server whose client sent no
	// workspace folders. Relative entries are relative to the config file.
	Roots []string `yaml:"roots,omitempty"`
	// Exclude holds doublestar globs relative to each root.
	Exclude          []string `yaml:"exclude,omitempty"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	// PrefetchWorkers bounds concurrent reads in the workspace walk; 0
	// means one per CPU.
	PrefetchWorkers int    `yaml:"prefetch_workers"`
	LogLevel        string `yaml:"log_level"`

	dir string
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{LogLevel: "info"}
}

// Load reads the config at path. A missing file yields Default; an
// unreadable, malformed or invalid one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.dir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.PrefetchWorkers < 0 {
		return fmt.Errorf("prefetch_workers must not be negative, got %d", c.PrefetchWorkers)
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("bad exclude pattern %q", p)
		}
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("bad log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// RootPaths returns the configured roots as absolute paths.
func (c *Config) RootPaths() []string {
	paths := make([]string, 0, len(c.Roots))
	for _, r := range c.Roots {
		if !filepath.IsAbs(r) {
			r = filepath.Join(c.dir, r)
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		paths = append(paths, abs)
	}
	return paths
}

// Marshal renders c as a commented YAML document.
func Marshal(c *Config) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return append([]byte("# rustnav settings\n"), data...), nil
}

// Save writes c to path, creating parent directories.
func Save(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
