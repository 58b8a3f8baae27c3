// Package config loads the daemon's YAML configuration file, following
// the teacher's Load/LoadFrom pattern (internal/config/config.go):
// a missing file is not an error, it just yields defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"scarabd/internal/socketdir"
)

// Config is the daemon-level configuration (spec.md §6, "CLI Surface":
// default shell, scrollback capacity, log level, plugin limits).
type Config struct {
	DefaultShell       string        `yaml:"default_shell"`
	ScrollbackCapacity int           `yaml:"scrollback_capacity"`
	LogLevel           string        `yaml:"log_level"`
	TermEnv            string        `yaml:"term_env"`
	FrameTickHz        int           `yaml:"frame_tick_hz"`
	BlobRegionBytes    int64         `yaml:"blob_region_bytes"`
	DetachedSessionTTL time.Duration `yaml:"detached_session_ttl"`
	Plugins            PluginsConfig `yaml:"plugins"`
}

// PluginsConfig controls the plugin dispatcher's isolation limits
// (spec.md §4.7).
type PluginsConfig struct {
	Dir             string        `yaml:"dir"`
	HookTimeout     time.Duration `yaml:"hook_timeout"`
	MaxFailures     int           `yaml:"max_failures"`
	MaxInstructions int           `yaml:"max_instructions"`
	MaxValueStack   int           `yaml:"max_value_stack"`
	MaxCallStack    int           `yaml:"max_call_stack"`
}

// defaults mirrors the values named throughout spec.md (120 Hz tick,
// 64 MiB blob region, 1 s hook timeout, 3 consecutive failures).
func defaults() Config {
	return Config{
		DefaultShell:       defaultShell(),
		ScrollbackCapacity: 10000,
		LogLevel:           "info",
		TermEnv:            "xterm-256color",
		FrameTickHz:        120,
		BlobRegionBytes:    64 * 1024 * 1024,
		DetachedSessionTTL: 24 * time.Hour,
		Plugins: PluginsConfig{
			Dir:             filepath.Join(socketdir.Dir(), "plugins"),
			HookTimeout:     time.Second,
			MaxFailures:     3,
			MaxInstructions: 1_000_000,
			MaxValueStack:   1024,
			MaxCallStack:    256,
		},
	}
}

func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// Load reads {socketdir.Dir()}/config.yaml, applying defaults on top of
// whatever the file omits.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(socketdir.Dir(), "config.yaml"))
}

// LoadFrom reads the config at path. A missing file yields defaults, not
// an error, matching the teacher's Load/LoadFrom contract.
func LoadFrom(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ScrollbackCapacity < 0 {
		return fmt.Errorf("scrollback_capacity must be >= 0")
	}
	if c.FrameTickHz <= 0 {
		return fmt.Errorf("frame_tick_hz must be > 0")
	}
	if c.Plugins.MaxFailures < 0 {
		return fmt.Errorf("plugins.max_failures must be >= 0")
	}
	return nil
}

// FrameTick converts FrameTickHz into a publish interval.
func (c *Config) FrameTick() time.Duration {
	return time.Second / time.Duration(c.FrameTickHz)
}
