// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's configuration.
type Config struct {
	// VaultPath, when set, pins the vault database path explicitly,
	// bypassing the project/global resolution vault.ResolvePath would
	// otherwise perform. Empty means "resolve normally."
	VaultPath string `yaml:"vault_path"`

	// SocketDir is the directory holding the daemon's Unix socket(s),
	// the rotation log, and the daemon log. Created with mode 0700.
	SocketDir string `yaml:"socket_dir"`

	// RotationTick is the scheduler's poll interval, parsed from
	// RotationTickRaw (e.g. "1h", "90m").
	RotationTick    time.Duration `yaml:"-"`
	RotationTickRaw string        `yaml:"rotation_tick"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// Default returns a complete configuration with no file applied.
func Default() *Config {
	return &Config{
		VaultPath:       "",
		SocketDir:       filepath.Join(os.TempDir(), "secret-keeper"),
		RotationTick:    time.Hour,
		RotationTickRaw: "1h",
		LogLevel:        "info",
	}
}

// Load loads configuration from the path named by the
// SECRET_KEEPER_CONFIG environment variable, if set, layered on top of
// [Default]. If the variable is unset, Load returns Default()
// unchanged — unlike a deployment-wide service, a local daemon must
// work with zero configuration.
func Load() (*Config, error) {
	path := os.Getenv("SECRET_KEEPER_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific YAML file, layered on
// top of [Default]. A field absent from the file keeps its default
// value.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.RotationTickRaw != "" {
		tick, err := time.ParseDuration(cfg.RotationTickRaw)
		if err != nil {
			return nil, fmt.Errorf("config: rotation_tick %q: %w", cfg.RotationTickRaw, err)
		}
		cfg.RotationTick = tick
	}

	return cfg, nil
}
