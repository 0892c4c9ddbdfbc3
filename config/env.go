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
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvRoot             = "CHATSHARD_ROOT"
	EnvChunkSize        = "CHATSHARD_CHUNK_SIZE"
	EnvChunking         = "CHATSHARD_CHUNKING"
	EnvEnforceIntegrity = "CHATSHARD_ENFORCE_INTEGRITY"
	EnvCompareLimit     = "CHATSHARD_COMPARE_LIMIT"
	EnvBackupInterval   = "CHATSHARD_BACKUP_INTERVAL"
	EnvMaxBackups       = "CHATSHARD_MAX_BACKUPS"
	EnvCacheDir         = "CHATSHARD_CACHE_DIR"
	EnvPoolSize         = "CHATSHARD_POOL_SIZE"
	EnvLogLevel         = "CHATSHARD_LOG_LEVEL"
)

// Load builds a validated Config. envFile is loaded into the environment if
// it exists, without overriding variables that are already set; an empty
// envFile means ".env". Options are applied last.
func Load(envFile string, opts ...ConfigOption) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	stringVar(EnvRoot, &c.Root)
	stringVar(EnvCacheDir, &c.CacheDir)
	stringVar(EnvLogLevel, &c.LogLevel)

	for _, v := range []struct {
		key string
		dst *int
	}{
		{EnvChunkSize, &c.ChunkSize},
		{EnvCompareLimit, &c.CompareLimit},
		{EnvMaxBackups, &c.MaxBackups},
		{EnvPoolSize, &c.PoolSize},
	} {
		if err := intVar(v.key, v.dst); err != nil {
			return err
		}
	}

	if err := boolVar(EnvChunking, &c.Chunking); err != nil {
		return err
	}
	if err := boolVar(EnvEnforceIntegrity, &c.EnforceIntegrity); err != nil {
		return err
	}

	if value, ok := os.LookupEnv(EnvBackupInterval); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvBackupInterval, err)
		}
		c.BackupInterval = d
	}
	return nil
}

func stringVar(key string, dst *string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value
	}
}

func intVar(key string, dst *int) error {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	*dst = n
	return nil
}

func boolVar(key string, dst *bool) error {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	*dst = b
	return nil
}
