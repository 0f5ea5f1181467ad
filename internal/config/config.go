// Package config loads the exchange's static configuration from a
// YAML file. It is imported only from cmd/ — every core subsystem
// takes an explicit struct at construction and never reads ambient
// environment itself (spec.md §6).
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the full set of values the core subsystems need at
// construction, mirroring spec.md §6's configuration surface exactly.
type Config struct {
	TCPBindAddr string `mapstructure:"tcp_bind_addr"`
	TCPPort     int    `mapstructure:"tcp_port"`

	MDMulticastGroup string `mapstructure:"md_multicast_group"`
	MDPort           int    `mapstructure:"md_port"`
	MDInterface      string `mapstructure:"md_interface"`
	MDTTL            int    `mapstructure:"md_ttl"`

	SnapshotIntervalMs  int `mapstructure:"snapshot_interval_ms"`
	MaxBookDepth        int `mapstructure:"max_book_depth"`
	HeartbeatTimeoutSec int `mapstructure:"heartbeat_timeout_sec"`
	RingCapacity        int `mapstructure:"ring_capacity"`
}

// Load reads path as YAML and unmarshals it into a Config. Unlike a
// typical ambient-env-aware service config, this one never consults
// the process environment — every value the core needs must be in
// the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields the core subsystems need to construct
// without falling back to a silent default.
func (c *Config) Validate() error {
	if c.TCPBindAddr == "" {
		return fmt.Errorf("tcp_bind_addr is required")
	}
	if c.TCPPort <= 0 {
		return fmt.Errorf("tcp_port must be > 0")
	}
	if c.MDMulticastGroup == "" {
		return fmt.Errorf("md_multicast_group is required")
	}
	if c.MDPort <= 0 {
		return fmt.Errorf("md_port must be > 0")
	}
	if c.SnapshotIntervalMs <= 0 {
		return fmt.Errorf("snapshot_interval_ms must be > 0")
	}
	if c.MaxBookDepth <= 0 {
		return fmt.Errorf("max_book_depth must be > 0")
	}
	if c.HeartbeatTimeoutSec <= 0 {
		return fmt.Errorf("heartbeat_timeout_sec must be > 0")
	}
	if c.RingCapacity <= 0 {
		return fmt.Errorf("ring_capacity must be > 0")
	}
	return nil
}
