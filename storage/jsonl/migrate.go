package jsonl

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
)

// MigrateToChunked converts a legacy single-file conversation to chunked form.
// The file is streamed: the first line is the header when it looks like one,
// and the remaining records are flushed to a staged shard every chunk-size
// lines. The staged shards become visible in one rename before the index,
// the header sidecar and the placeholder are written. Malformed lines are
// skipped.
//
// Conversations that already have a shard directory are left untouched and
// their current index is returned.
func (e *Engine) MigrateToChunked(path string) (*core.ChatIndex, error) {
	chunked, err := exists(ChunkDir(path))
	if err != nil {
		return nil, fmt.Errorf("stat chunk dir: %w", err)
	}
	if chunked {
		return e.EnsureIndex(path)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open legacy file: %w", err)
	}
	defer f.Close()

	stager, err := newShardStager(path, e.chunkSize)
	if err != nil {
		return nil, err
	}
	defer stager.abort()

	var header *core.Record
	first := true
	skipped := 0
	err = eachLine(f, func(line []byte) error {
		if first {
			first = false
			if core.IsHeaderLine(line) {
				header = core.DecodeRecord(line)
				if header != nil {
					return nil
				}
			}
		}
		if len(bytes.TrimSpace(line)) == 0 {
			return nil
		}
		if !core.IsRecordLine(line) {
			skipped++
			return nil
		}
		return stager.add(line)
	})
	if err != nil {
		return nil, fmt.Errorf("read legacy file: %w", err)
	}
	if header == nil {
		header = core.NewRecord()
	}

	// A leftover index sidecar without shards describes nothing.
	if err := e.InvalidateIndex(path); err != nil {
		return nil, err
	}
	entries, err := stager.finish(ChunkDir(path))
	if err != nil {
		return nil, err
	}

	idx := core.NewChatIndex(e.chunkSize)
	idx.Shards = entries
	idx.Recompute()
	if err := writeIndex(path, idx); err != nil {
		return nil, err
	}
	if err := e.persistHeader(path, header, idx.Summary()); err != nil {
		return nil, err
	}

	if skipped > 0 {
		e.logger.Warn("skipped malformed lines during migration", "path", path, "err", core.SkippedLines(skipped))
	}
	e.logger.Info("migrated legacy conversation",
		"path", path,
		"messages", idx.MessageCount,
		"shards", len(idx.Shards))
	return idx, nil
}
