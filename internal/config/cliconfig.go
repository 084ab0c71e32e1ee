// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads the YAML file backing cmd/rediscoro-cli, the same
// role internal/config/agent.go plays for cmd/nbackup-agent: the library
// itself (package rediscoro) never parses a config file, only structs
// supplied by the embedding program.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CLIConfig is the full YAML document accepted by `rediscoro-cli connect`.
type CLIConfig struct {
	Redis   RedisConn   `yaml:"redis"`
	Logging LoggingInfo `yaml:"logging"`
}

// RedisConn describes the single connection the CLI opens.
type RedisConn struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`

	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   int    `yaml:"database"`
	ClientName string `yaml:"client_name"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBytesPerSec is human-readable, e.g. "1mb", "0" disables limiting.
	MaxBytesPerSec    string `yaml:"max_bytes_per_sec"`
	MaxBytesPerSecRaw int64  `yaml:"-"`

	Reconnection ReconnectionInfo `yaml:"reconnection"`
}

// ReconnectionInfo mirrors rediscoro.ReconnectionPolicy's shape in YAML form.
type ReconnectionInfo struct {
	Enabled           bool          `yaml:"enabled"`
	ImmediateAttempts int           `yaml:"immediate_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffFactor     float64       `yaml:"backoff_factor"`
	JitterRatio       float64       `yaml:"jitter_ratio"`
}

// LoggingInfo contém configurações de logging, kept in the teacher's naming
// (level/format/file) since internal/logging.NewLogger takes the same three
// knobs.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// LoadCLIConfig reads and validates the YAML file backing rediscoro-cli,
// following LoadAgentConfig's read-unmarshal-validate shape.
func LoadCLIConfig(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cli config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing cli config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating cli config: %w", err)
	}

	return &cfg, nil
}

func (c *CLIConfig) validate() error {
	if c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if c.Redis.Port == 0 {
		return fmt.Errorf("redis.port is required")
	}
	if c.Redis.ConnectTimeout <= 0 {
		c.Redis.ConnectTimeout = 5 * time.Second
	}
	if c.Redis.ResolveTimeout <= 0 {
		c.Redis.ResolveTimeout = 5 * time.Second
	}

	if c.Redis.MaxBytesPerSec == "" {
		c.Redis.MaxBytesPerSec = "0"
	}
	raw, err := ParseByteSize(c.Redis.MaxBytesPerSec)
	if err != nil {
		return fmt.Errorf("redis.max_bytes_per_sec: %w", err)
	}
	c.Redis.MaxBytesPerSecRaw = raw

	r := c.Redis.Reconnection
	if r.Enabled {
		if r.InitialDelay <= 0 {
			return fmt.Errorf("redis.reconnection.initial_delay must be positive when enabled")
		}
		if r.MaxDelay < r.InitialDelay {
			return fmt.Errorf("redis.reconnection.max_delay must be >= initial_delay")
		}
		if r.BackoffFactor < 1 {
			return fmt.Errorf("redis.reconnection.backoff_factor must be >= 1")
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	return nil
}

// ParseByteSize converts human-readable sizes like "256mb", "1gb" to bytes,
// ported verbatim from internal/config/agent.go.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
