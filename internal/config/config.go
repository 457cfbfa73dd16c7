// Package config loads the YAML configuration shared by the node and client
// binaries.
package config

import (
	"e2e_transport/internal/repository/dedup"
	"e2e_transport/internal/service/sender"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("no configuration file found")

type (
	Config struct {
		LogLevel string          `yaml:"log_level"`
		Mongo    Mongo           `yaml:"mongo"`
		Redis    Redis           `yaml:"redis"`
		Dedup    dedup.Config    `yaml:"dedup"`
		Node     Node            `yaml:"node"`
		Network  sender.Features `yaml:"network"`
		Account  Account         `yaml:"account"`
	}

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	}

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	}

	Node struct {
		// Listen is the address the node binds to.
		Listen string `yaml:"listen"`
		// URL is where clients reach the node.
		URL          string        `yaml:"url"`
		PollInterval time.Duration `yaml:"poll_interval"`
		// Room is the community room the node hosts.
		Room string `yaml:"room"`
	}

	Account struct {
		Name string `yaml:"name"`
	}
)

// SearchPaths are tried in order when no explicit path is given.
func SearchPaths() []string {
	paths := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "e2e_transport", "config.yaml"))
	}
	return append(paths, "/etc/e2e_transport/config.yaml")
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Mongo: Mongo{
			URI:      "mongodb://localhost:27017",
			Database: "e2e_transport",
		},
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Dedup: dedup.Config{
			Backend:  dedup.BackendMemory,
			Window:   14 * 24 * time.Hour,
			Capacity: dedup.DefaultCapacity,
		},
		Node: Node{
			Listen:       "localhost:9090",
			URL:          "http://localhost:9090",
			PollInterval: 2 * time.Second,
			Room:         "lobby",
		},
		Network: sender.Features{HasNamespaces: true},
	}
}

// Load reads path, or the first file found on SearchPaths when path is
// empty. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return nil, ErrNotFound
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Dedup.Backend {
	case dedup.BackendMemory, dedup.BackendRedis, dedup.BackendBadger:
	default:
		return fmt.Errorf("config: dedup.backend %q is not one of memory, redis, badger", c.Dedup.Backend)
	}
	if c.Dedup.Window < 0 {
		return fmt.Errorf("config: dedup.window must not be negative")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return fmt.Errorf("config: mongo.uri and mongo.database are required")
	}
	if c.Node.Listen == "" || c.Node.URL == "" {
		return fmt.Errorf("config: node.listen and node.url are required")
	}
	if c.Node.PollInterval <= 0 {
		return fmt.Errorf("config: node.poll_interval must be positive")
	}
	return nil
}
