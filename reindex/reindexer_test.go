package reindex

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
	"github.com/poiesic/chatshard/storage/badger"
	"github.com/poiesic/chatshard/storage/jsonl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      2,
		ReportInterval: 1,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		PoolSize:       2,
	}
}

func TestNewReindexer_Validation(t *testing.T) {
	_, err := NewReindexer(nil, "/tmp", nil, nil)
	assert.ErrorIs(t, err, ErrEngineRequired)

	_, err = NewReindexer(newTestEngine(t), "", nil, nil)
	assert.ErrorIs(t, err, ErrRootRequired)
}

func TestReindexer_MigratesLegacy(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t)

	legacy := filepath.Join(root, "alice", "a.jsonl")
	writeLegacy(t, legacy, 12)
	writeChunked(t, engine, filepath.Join(root, "alice", "b.jsonl"), 7)
	writeLegacy(t, filepath.Join(root, "bob", "c.jsonl"), 0)

	var out bytes.Buffer
	r, err := NewReindexer(engine, root, testConfig(), &out)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Migrated)
	assert.Equal(t, 1, report.Verified)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 19, report.Messages)
	assert.Contains(t, out.String(), "Reindex complete")

	format, err := engine.DetectFormat(legacy)
	require.NoError(t, err)
	assert.Equal(t, jsonl.FormatChunked, format.Kind)
	assert.Equal(t, 12, format.Index.MessageCount)
	assert.Len(t, format.Index.Shards, 3)

	t.Run("second run only verifies", func(t *testing.T) {
		report, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Migrated)
		assert.Equal(t, 3, report.Verified)
	})
}

func TestReindexer_Rebuild(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t)
	path := filepath.Join(root, "alice", "a.jsonl")
	writeChunked(t, engine, path, 9)

	// A sidecar that disagrees with the shards is replaced.
	require.NoError(t, os.WriteFile(jsonl.IndexPath(path), []byte(`{"version":1,"chunk_size":5,"shards":[]}`+"\n"), 0o644))

	config := testConfig()
	config.Rebuild = true
	r, err := NewReindexer(engine, root, config, nil)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rebuilt)

	data, err := os.ReadFile(jsonl.IndexPath(path))
	require.NoError(t, err)
	var idx core.ChatIndex
	require.NoError(t, json.Unmarshal(data, &idx))
	assert.Equal(t, 9, idx.MessageCount)
	assert.NoError(t, core.ValidateIndex(&idx))
}

// savedCheckpoints remembers the processed count of every saved checkpoint.
type savedCheckpoints struct {
	storage.CheckpointRepository
	processed []int
}

func (s *savedCheckpoints) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	s.processed = append(s.processed, checkpoint.Processed)
	return s.CheckpointRepository.SaveCheckpoint(ctx, checkpoint)
}

func TestReindexer_ResumesFromCheckpoint(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t)
	for _, name := range []string{"1.jsonl", "2.jsonl", "3.jsonl"} {
		writeLegacy(t, filepath.Join(root, "owner", name), 2)
	}

	cache, checkpoints, err := badger.NewMemoryCache()
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Task:      Task,
		LastPath:  filepath.Join(root, "owner", "2.jsonl"),
		Processed: 2,
	}))

	saved := &savedCheckpoints{CheckpointRepository: checkpoints}
	r, err := NewReindexer(engine, root, testConfig(), nil, WithCheckpoints(saved))
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Resumed)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, []int{3}, saved.processed, "processed counts carry over from the earlier run")

	format, err := engine.DetectFormat(filepath.Join(root, "owner", "1.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, jsonl.FormatLegacy, format.Kind, "conversations before the checkpoint are not revisited")

	remaining, err := checkpoints.LoadCheckpoint(ctx, Task)
	require.NoError(t, err)
	assert.Nil(t, remaining, "a completed run clears its checkpoint")
}

func TestReindexer_Cancelled(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t)
	writeLegacy(t, filepath.Join(root, "owner", "a.jsonl"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReindexer(engine, root, testConfig(), nil)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "migrated", OutcomeMigrated.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
