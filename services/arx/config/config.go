// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates service configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	// MaxObjects caps the object store, tombstoned objects included.
	MaxObjects int `yaml:"max_objects"`

	// MaxEdges caps the topology graph, tombstoned edges included.
	MaxEdges int `yaml:"max_edges"`

	// MaxTraversalDepth bounds graph walks in hops.
	MaxTraversalDepth int `yaml:"max_traversal_depth"`

	// Journal configures the change journal.
	Journal JournalConfig `yaml:"journal"`
}

// JournalConfig configures change journal persistence.
type JournalConfig struct {
	// Enabled turns the journal on. Off by default: the in-memory model
	// is authoritative and many deployments replicate through the event
	// stream instead.
	Enabled bool `yaml:"enabled"`

	// Dir is the journal database directory. Required when Enabled and
	// not InMemory.
	Dir string `yaml:"dir"`

	// InMemory keeps the journal off disk. Test and ephemeral use only.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites makes every append durable before the mutation returns.
	SyncWrites bool `yaml:"sync_writes"`
}

// Default limits applied by ApplyDefaults.
const (
	DefaultMaxObjects        = 1_000_000
	DefaultMaxEdges          = 10_000_000
	DefaultMaxTraversalDepth = 10_000
)

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.MaxObjects <= 0 {
		c.MaxObjects = DefaultMaxObjects
	}
	if c.MaxEdges <= 0 {
		c.MaxEdges = DefaultMaxEdges
	}
	if c.MaxTraversalDepth <= 0 {
		c.MaxTraversalDepth = DefaultMaxTraversalDepth
	}
}

// Validate checks the configuration for contradictions. Call after
// ApplyDefaults.
func (c *Config) Validate() error {
	if c.MaxObjects <= 0 {
		return fmt.Errorf("max_objects must be positive, got %d", c.MaxObjects)
	}
	if c.MaxEdges <= 0 {
		return fmt.Errorf("max_edges must be positive, got %d", c.MaxEdges)
	}
	if c.MaxTraversalDepth <= 0 {
		return fmt.Errorf("max_traversal_depth must be positive, got %d", c.MaxTraversalDepth)
	}
	if c.Journal.Enabled && !c.Journal.InMemory && c.Journal.Dir == "" {
		return fmt.Errorf("journal.dir is required when the journal is enabled and persistent")
	}
	return nil
}

// Load reads a YAML configuration file, applies defaults, and validates.
//
// Outputs:
//
//	Config - The loaded configuration
//	error - Non-nil on read, parse, or validation failure
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}
