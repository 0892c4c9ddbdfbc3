// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/poiesic/chatshard/core"
)

// ErrInvalidConfig is returned when a setting is out of range or unparseable.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds configuration for the conversation store.
type Config struct {
	// Root is the directory holding one subdirectory per owner.
	// Default: "./chats"
	Root string

	// ChunkSize is the number of messages per shard.
	// Clamped to [200, 500] by Normalize. Default: 300
	ChunkSize int

	// Chunking selects the sharded layout for saves. When false, saves
	// rewrite the single legacy file.
	// Default: true
	Chunking bool

	// EnforceIntegrity rejects saves whose header integrity tag differs from
	// the stored one.
	// Default: false
	EnforceIntegrity bool

	// CompareLimit is the largest stored tail compared record by record
	// before a save falls back to truncate-and-append.
	// Default: 200
	CompareLimit int

	// BackupInterval is the per-owner backup throttle window.
	// Default: 10s
	BackupInterval time.Duration

	// MaxBackups is how many backup copies are kept per conversation.
	// Zero keeps all. Default: 50
	MaxBackups int

	// CacheDir is where the summary cache lives. Empty keeps it in memory.
	CacheDir string

	// PoolSize is the worker count for search, reindex and notifications.
	// Default: half the CPU count
	PoolSize int

	// LogLevel is one of debug, info, warn, error.
	// Default: "info"
	LogLevel string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithRoot sets the conversation root directory.
func WithRoot(root string) ConfigOption {
	return func(c *Config) {
		c.Root = root
	}
}

// WithChunkSize sets the shard size.
func WithChunkSize(n int) ConfigOption {
	return func(c *Config) {
		c.ChunkSize = n
	}
}

// WithChunking enables or disables the sharded layout.
func WithChunking(enabled bool) ConfigOption {
	return func(c *Config) {
		c.Chunking = enabled
	}
}

// WithEnforceIntegrity enables or disables integrity tag checks on save.
func WithEnforceIntegrity(enforce bool) ConfigOption {
	return func(c *Config) {
		c.EnforceIntegrity = enforce
	}
}

// WithCompareLimit sets the tail compare limit.
func WithCompareLimit(n int) ConfigOption {
	return func(c *Config) {
		c.CompareLimit = n
	}
}

// WithBackupInterval sets the backup throttle window.
func WithBackupInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.BackupInterval = d
	}
}

// WithMaxBackups sets how many backups are kept per conversation.
func WithMaxBackups(n int) ConfigOption {
	return func(c *Config) {
		c.MaxBackups = n
	}
}

// WithCacheDir sets the summary cache directory.
func WithCacheDir(dir string) ConfigOption {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithPoolSize sets the worker count.
func WithPoolSize(n int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = n
	}
}

// WithLogLevel sets the log level name.
func WithLogLevel(level string) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		Root:           "./chats",
		ChunkSize:      core.DefaultChunkSize,
		Chunking:       true,
		CompareLimit:   200,
		BackupInterval: 10 * time.Second,
		MaxBackups:     50,
		PoolSize:       poolSize,
		LogLevel:       "info",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithRoot("/var/lib/chats"),
//	    WithChunkSize(400),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// The chunk size is clamped into its supported range and the log level
// is lowercased.
func (c *Config) Normalize() {
	c.ChunkSize = core.ClampChunkSize(c.ChunkSize)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Root == "" {
		return fmt.Errorf("%w: Root is required", ErrInvalidConfig)
	}
	if c.CompareLimit < 0 {
		return fmt.Errorf("%w: CompareLimit must not be negative", ErrInvalidConfig)
	}
	if c.BackupInterval <= 0 {
		return fmt.Errorf("%w: BackupInterval must be positive", ErrInvalidConfig)
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("%w: MaxBackups must not be negative", ErrInvalidConfig)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("%w: PoolSize must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: LogLevel %q", ErrInvalidConfig, c.LogLevel)
	}
	return level, nil
}
