// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MetroScript Contributors

// Package config loads the optional metroscript.yaml configuration file.
//
// Everything has a working default: an embedder that never ships a config
// file gets plugin discovery relative to the executable, text logging at
// info, and no directory watching.
package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
)

// DefaultFileName is the config file looked up next to the executable when
// no explicit path is given.
const DefaultFileName = "metroscript.yaml"

// Config is the root configuration.
type Config struct {
	Logging Logging `koanf:"logging"`
	Plugins Plugins `koanf:"plugins"`
}

// Logging configures the slog setup.
type Logging struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Plugins configures discovery and reload behavior.
type Plugins struct {
	// Dir overrides the plugin directory. Empty means derive it from the
	// executable location (parent directory sibling "plugins").
	Dir string `koanf:"dir"`
	// Disabled lists glob patterns matched against plugin names (source
	// stems); matching sources are skipped at discovery.
	Disabled []string `koanf:"disabled"`
	// Watch enables the fsnotify-based auto reload of the plugin directory.
	Watch bool `koanf:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Plugins: Plugins{},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults untouched. A missing file at an explicit path is an error;
// callers that want "use it if present" should stat first or pass "".
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		code := "CONFIG_LOAD_FAILED"
		if errors.Is(err, fs.ErrNotExist) {
			code = "CONFIG_NOT_FOUND"
		}
		return nil, oops.
			In("config").
			Code(code).
			With("path", path).
			Wrapf(err, "load config")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.
			In("config").
			Code("CONFIG_PARSE_FAILED").
			With("path", path).
			Wrapf(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIfPresent behaves like Load but treats a missing file at path as "no
// config", returning the defaults. Used for the conventional lookup next to
// the executable.
func LoadIfPresent(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks field values that have a closed set of legal inputs.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return oops.
			In("config").
			Code("CONFIG_INVALID").
			With("logging.format", c.Logging.Format).
			Errorf("logging format must be \"text\" or \"json\"")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return oops.
			In("config").
			Code("CONFIG_INVALID").
			With("logging.level", c.Logging.Level).
			Errorf("unknown logging level")
	}
	return nil
}
