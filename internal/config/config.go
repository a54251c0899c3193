// Package config provides file configuration for Chronograph.
//
// The config file describes how to reach the storage backend; everything
// the engine knows lives in the backend itself, so the file is small and
// survives a data wipe.
//
// Config file locations (priority order):
//  1. $CHRONOGRAPH_CONFIG
//  2. ./chronograph.yaml
//  3. ~/.config/chronograph/config.yaml
//  4. /etc/chronograph/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path.
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a local single-node cluster.
func DefaultConfig() *Config {
	cfg := &Config{
		Version:        1,
		Backend:        BackendCassandra,
		CreateKeyspace: true,
		CreateTables:   true,
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Backend == "" {
		c.Backend = BackendCassandra
	}
	if c.Keyspace == "" {
		c.Keyspace = "chronograph"
	}
	if len(c.Cassandra.Hosts) == 0 {
		c.Cassandra.Hosts = []string{"127.0.0.1"}
	}
	if c.Cassandra.ReadConsistency == "" {
		c.Cassandra.ReadConsistency = "LOCAL_QUORUM"
	}
	if c.Cassandra.WriteConsistency == "" {
		c.Cassandra.WriteConsistency = "LOCAL_QUORUM"
	}
	if c.Cassandra.ReplicationFactor == 0 {
		c.Cassandra.ReplicationFactor = 1
	}
	if c.Keyspaces.ReadConsistency == "" {
		c.Keyspaces.ReadConsistency = "LOCAL_QUORUM"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = Duration(10 * time.Second)
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = Duration(10 * time.Second)
	}
}
