// Package config loads the application configuration from a YAML (or JSON)
// file, with working defaults when no file is present.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Listen   string       `yaml:"listen" json:"listen"`
	LogLevel string       `yaml:"log_level" json:"log_level"`
	Graph    GraphConfig  `yaml:"graph" json:"graph"`
	Store    StoreConfig  `yaml:"store" json:"store"`
	Orders   OrdersConfig `yaml:"orders" json:"orders"`
	Review   ReviewConfig `yaml:"review" json:"review"`
}

// GraphConfig selects the workflow definition.
type GraphConfig struct {
	// Path to a JSON/YAML definition. Empty uses the built-in order graph.
	Path string `yaml:"path" json:"path"`
	// StepBudget overrides the derived per-turn budget when positive.
	StepBudget int `yaml:"step_budget" json:"step_budget"`
}

// StoreConfig selects the checkpoint backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", "redis".
	Backend string      `yaml:"backend" json:"backend"`
	Path    string      `yaml:"path" json:"path"`
	Redis   RedisConfig `yaml:"redis" json:"redis"`

	// EncryptionKey enables checkpoint encryption when set. Base64 encoded,
	// must decode to 32 bytes (AES-256).
	EncryptionKey string `yaml:"encryption_key" json:"encryption_key"`
	// EncryptionFallbackKeys are old keys still accepted during rotation.
	EncryptionFallbackKeys []string `yaml:"encryption_fallback_keys" json:"encryption_fallback_keys"`
	// MaskEntities lists entity key patterns masked before persisting,
	// e.g. "email".
	MaskEntities []string `yaml:"mask_entities" json:"mask_entities"`
}

// RedisConfig configures the redis store and locker.
type RedisConfig struct {
	Address    string `yaml:"address" json:"address"`
	Password   string `yaml:"password" json:"password"`
	DB         int    `yaml:"db" json:"db"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
	// Lock enables the distributed conversation lock.
	Lock bool `yaml:"lock" json:"lock"`
}

// OrdersConfig selects the order backoffice backend.
type OrdersConfig struct {
	// Backend is one of "memory", "neo4j".
	Backend string      `yaml:"backend" json:"backend"`
	Neo4j   Neo4jConfig `yaml:"neo4j" json:"neo4j"`
}

// Neo4jConfig configures the graph database connection.
type Neo4jConfig struct {
	URI      string `yaml:"uri" json:"uri"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	// Seed loads the demo dataset at startup.
	Seed bool `yaml:"seed" json:"seed"`
}

// ReviewConfig tunes the human-in-the-loop gate.
type ReviewConfig struct {
	// TurnCap bounds unclear replies before a pending refund is cancelled.
	TurnCap int `yaml:"turn_cap" json:"turn_cap"`
	// AllowFollowUp loops once more after a resolution to offer more help.
	AllowFollowUp bool `yaml:"allow_follow_up" json:"allow_follow_up"`
	// FollowUpQuestion overrides the default follow-up prompt.
	FollowUpQuestion string `yaml:"follow_up_question" json:"follow_up_question"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		Store:    StoreConfig{Backend: "memory"},
		Orders:   OrdersConfig{Backend: "memory"},
		Review:   ReviewConfig{TurnCap: 5},
	}
}

// Load reads the configuration file at path. A missing file with an empty
// path yields defaults; an explicitly named missing file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "", "memory", "file", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch c.Orders.Backend {
	case "", "memory", "neo4j":
	default:
		return fmt.Errorf("config: unknown orders backend %q", c.Orders.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.Redis.Address == "" {
		return fmt.Errorf("config: redis store requires an address")
	}
	if c.Orders.Backend == "neo4j" && c.Orders.Neo4j.URI == "" {
		return fmt.Errorf("config: neo4j orders backend requires a uri")
	}
	return nil
}
