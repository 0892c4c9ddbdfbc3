package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/poiesic/chatshard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "./chats", cfg.Root)
	assert.Equal(t, core.DefaultChunkSize, cfg.ChunkSize)
	assert.True(t, cfg.Chunking)
	assert.False(t, cfg.EnforceIntegrity)
	assert.Equal(t, 200, cfg.CompareLimit)
	assert.Equal(t, 10*time.Second, cfg.BackupInterval)
	assert.Equal(t, 50, cfg.MaxBackups)
	assert.Empty(t, cfg.CacheDir)
	assert.GreaterOrEqual(t, cfg.PoolSize, 1)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithRoot("/srv/chats"),
		WithChunkSize(400),
		WithChunking(false),
		WithEnforceIntegrity(true),
		WithCompareLimit(50),
		WithBackupInterval(time.Minute),
		WithMaxBackups(3),
		WithCacheDir("/tmp/cache"),
		WithPoolSize(8),
		WithLogLevel("DEBUG"),
	)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/srv/chats", cfg.Root)
	assert.Equal(t, 400, cfg.ChunkSize)
	assert.False(t, cfg.Chunking)
	assert.True(t, cfg.EnforceIntegrity)
	assert.Equal(t, 50, cfg.CompareLimit)
	assert.Equal(t, time.Minute, cfg.BackupInterval)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.Equal(t, "/tmp/cache", cfg.CacheDir)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.Equal(t, "debug", cfg.LogLevel)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestNormalize_ClampsChunkSize(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 300},
		{-5, 300},
		{100, 200},
		{350, 350},
		{9000, 500},
	}
	for _, tt := range tests {
		cfg := NewConfig(WithChunkSize(tt.in))
		cfg.Normalize()
		assert.Equal(t, tt.want, cfg.ChunkSize, "chunk size %d", tt.in)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		opt  ConfigOption
	}{
		{"empty root", WithRoot("")},
		{"negative compare limit", WithCompareLimit(-1)},
		{"zero backup interval", WithBackupInterval(0)},
		{"negative max backups", WithMaxBackups(-1)},
		{"zero pool size", WithPoolSize(0)},
		{"bad log level", WithLogLevel("loud")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opt).Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
