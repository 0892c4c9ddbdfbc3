package jsonl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/chatshard/core"
)

// EnsureIndex returns the chat index of a chunked conversation. The sidecar
// is used when it is well formed and agrees with the shard files on disk;
// otherwise the index is rebuilt from the shards and persisted. Concurrent
// calls for the same path share one load.
//
// A conversation without a shard directory has an empty index, which is
// returned without being persisted.
func (e *Engine) EnsureIndex(path string) (*core.ChatIndex, error) {
	v, err, _ := e.indexFlights.Do(path, func() (any, error) {
		return e.loadIndex(path)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.ChatIndex).Clone(), nil
}

func (e *Engine) loadIndex(path string) (*core.ChatIndex, error) {
	ok, err := exists(ChunkDir(path))
	if err != nil {
		return nil, fmt.Errorf("stat chunk dir: %w", err)
	}
	if !ok {
		return core.NewChatIndex(e.chunkSize), nil
	}

	idx, reason := e.readIndexSidecar(path)
	if idx != nil {
		reason = e.checkAgainstDisk(path, idx)
		if reason == "" {
			return idx, nil
		}
	}
	e.logger.Debug("rebuilding chat index", "path", path, "reason", reason)
	return e.RebuildIndex(path)
}

// readIndexSidecar decodes the index sidecar. On failure it returns nil and a
// short reason for the log.
func (e *Engine) readIndexSidecar(path string) (*core.ChatIndex, string) {
	data, err := os.ReadFile(IndexPath(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "missing"
		}
		return nil, err.Error()
	}
	var idx core.ChatIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, "malformed"
	}
	if err := core.ValidateIndex(&idx); err != nil {
		return nil, err.Error()
	}
	return &idx, ""
}

// checkAgainstDisk compares the shard manifest with the shard files.
func (e *Engine) checkAgainstDisk(path string, idx *core.ChatIndex) string {
	for i, s := range idx.Shards {
		info, err := os.Stat(ShardPath(path, i))
		if err != nil {
			return fmt.Sprintf("shard %s: %v", s.File, err)
		}
		if info.Size() != s.Size {
			return fmt.Sprintf("shard %s size %d, index says %d", s.File, info.Size(), s.Size)
		}
	}
	extra, err := exists(ShardPath(path, len(idx.Shards)))
	if err != nil {
		return err.Error()
	}
	if extra {
		return "unindexed shard on disk"
	}
	return ""
}

// InvalidateIndex removes the index sidecar so the next EnsureIndex rebuilds it.
func (e *Engine) InvalidateIndex(path string) error {
	if err := removeIfExists(IndexPath(path)); err != nil {
		return fmt.Errorf("remove index sidecar: %w", err)
	}
	return nil
}

// RebuildIndex reconstructs the index by scanning the shard files and persists it.
// Shards are read in order from 000000 until the first missing number.
func (e *Engine) RebuildIndex(path string) (*core.ChatIndex, error) {
	chunkSize := e.chunkSize
	if prior, _ := e.readIndexSidecar(path); prior != nil {
		chunkSize = prior.ChunkSize
	}

	idx := core.NewChatIndex(chunkSize)
	for i := 0; ; i++ {
		entry, err := scanShard(ShardPath(path, i))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			return nil, fmt.Errorf("scan shard %d: %w", i, err)
		}
		if entry.Count > idx.ChunkSize {
			idx.ChunkSize = entry.Count
		}
		idx.Shards = append(idx.Shards, entry)
	}
	idx.Recompute()

	if err := writeIndex(path, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// scanShard computes the manifest entry of one shard file.
func scanShard(shardPath string) (core.ShardEntry, error) {
	info, err := os.Stat(shardPath)
	if err != nil {
		return core.ShardEntry{}, err
	}

	entry := core.ShardEntry{File: info.Name(), Size: info.Size()}
	var last []byte
	_, err = eachRecordLine(shardPath, func(line []byte) error {
		entry.Count++
		last = append(last[:0], line...)
		return nil
	})
	if err != nil {
		return core.ShardEntry{}, err
	}
	if last != nil {
		entry.LastMes = core.LineSendDate(last)
		entry.LastMessage = core.LineMes(last)
	}
	return entry, nil
}

func writeIndex(path string, idx *core.ChatIndex) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := WriteFileAtomic(IndexPath(path), append(data, '\n')); err != nil {
		return fmt.Errorf("write index sidecar: %w", err)
	}
	return nil
}
