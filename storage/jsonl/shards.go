package jsonl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/chatshard/core"
)

// shardStager writes numbered shards into a hidden staging directory that is
// renamed over the live shard directory once complete.
type shardStager struct {
	dir       string
	chunkSize int
	pending   [][]byte
	entries   []core.ShardEntry
}

func newShardStager(path string, chunkSize int) (*shardStager, error) {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation dir: %w", err)
	}
	dir, err := os.MkdirTemp(parent, filepath.Base(path)+chunksSuffix+tempMarker+"*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &shardStager{
		dir:       dir,
		chunkSize: chunkSize,
		entries:   []core.ShardEntry{},
	}, nil
}

// add queues a record line, writing a shard whenever chunkSize lines are queued.
func (s *shardStager) add(line []byte) error {
	s.pending = append(s.pending, bytes.Clone(line))
	if len(s.pending) >= s.chunkSize {
		return s.flush()
	}
	return nil
}

func (s *shardStager) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	name := core.ShardFileName(len(s.entries))
	data := joinLines(s.pending)
	if err := writeStagedFile(filepath.Join(s.dir, name), data); err != nil {
		return fmt.Errorf("write shard %s: %w", name, err)
	}
	last := s.pending[len(s.pending)-1]
	s.entries = append(s.entries, core.ShardEntry{
		File:        name,
		Count:       len(s.pending),
		Size:        int64(len(data)),
		LastMes:     core.LineSendDate(last),
		LastMessage: core.LineMes(last),
	})
	s.pending = s.pending[:0]
	return nil
}

// finish writes any queued lines and moves the staged shards to target,
// replacing whatever was there.
func (s *shardStager) finish(target string) ([]core.ShardEntry, error) {
	if err := s.flush(); err != nil {
		return nil, err
	}

	present, err := exists(target)
	if err != nil {
		return nil, err
	}
	aside := ""
	if present {
		aside = s.dir + ".old"
		if err := os.Rename(target, aside); err != nil {
			return nil, fmt.Errorf("move old shards aside: %w", err)
		}
	}
	if err := os.Rename(s.dir, target); err != nil {
		if aside != "" {
			_ = os.Rename(aside, target)
		}
		return nil, fmt.Errorf("install shards: %w", err)
	}
	if aside != "" {
		if err := os.RemoveAll(aside); err != nil {
			return nil, fmt.Errorf("remove old shards: %w", err)
		}
	}
	return s.entries, nil
}

// abort removes the staging directory. It is a no-op after a successful finish.
func (s *shardStager) abort() {
	_ = os.RemoveAll(s.dir)
}

// WriteFull replaces the whole conversation with messages. Shards are staged
// and swapped in, then the index, the header sidecar (with summary) and the
// placeholder primary file are written. A nil header keeps the stored one.
func (e *Engine) WriteFull(path string, header *core.Record, messages []*core.Record) (*core.ChatIndex, error) {
	h, err := e.headerOrEmpty(path, header)
	if err != nil {
		return nil, err
	}
	lines, err := encodeAll(messages)
	if err != nil {
		return nil, err
	}

	stager, err := newShardStager(path, e.chunkSize)
	if err != nil {
		return nil, err
	}
	defer stager.abort()

	for _, line := range lines {
		if err := stager.add(line); err != nil {
			return nil, err
		}
	}
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
	if err := e.persistHeader(path, h, idx.Summary()); err != nil {
		return nil, err
	}
	return idx, nil
}

// AppendOnly appends messages after the last indexed record, filling the last
// shard up to the chunk size before opening new ones. The index is updated
// incrementally from idx and persisted; idx itself is not modified.
func (e *Engine) AppendOnly(path string, idx *core.ChatIndex, messages []*core.Record) (*core.ChatIndex, error) {
	out := idx.Clone()
	if out.ChunkSize <= 0 {
		out.ChunkSize = e.chunkSize
	}
	if len(messages) == 0 {
		return out, nil
	}

	lines, err := encodeAll(messages)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(ChunkDir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}

	for len(lines) > 0 {
		if n := len(out.Shards); n == 0 || out.Shards[n-1].Count >= out.ChunkSize {
			out.Shards = append(out.Shards, core.ShardEntry{File: core.ShardFileName(n)})
		}
		last := &out.Shards[len(out.Shards)-1]

		take := min(out.ChunkSize-last.Count, len(lines))
		batch := lines[:take]
		lines = lines[take:]

		size, err := appendLines(ShardPath(path, len(out.Shards)-1), batch)
		if err != nil {
			return nil, fmt.Errorf("append shard %s: %w", last.File, err)
		}
		tail := batch[len(batch)-1]
		last.Count += len(batch)
		last.Size = size
		last.LastMes = core.LineSendDate(tail)
		last.LastMessage = core.LineMes(tail)
	}

	out.Recompute()
	if err := writeIndex(path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// appendLines appends lines to a shard file, inserting a separator when the
// file is non-empty and lacks a trailing newline. It returns the new file size.
func appendLines(shardPath string, lines [][]byte) (int64, error) {
	size, newline, err := endsWithNewline(shardPath)
	if err != nil {
		return 0, err
	}

	var buf []byte
	if size > 0 && !newline {
		buf = append(buf, '\n')
	}
	buf = append(buf, joinLines(lines)...)

	f, err := os.OpenFile(shardPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return 0, err
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return size + int64(len(buf)), nil
}

// Truncate drops every record at or after message position beforeIndex.
// Shards wholly past the cut are deleted (last first, so the remaining shard
// numbers stay contiguous), and the shard straddling the cut is rewritten
// atomically with its prefix. The new index is persisted and returned.
func (e *Engine) Truncate(path string, idx *core.ChatIndex, beforeIndex int) (*core.ChatIndex, error) {
	out := idx.Clone()
	beforeIndex = max(0, min(beforeIndex, out.MessageCount))

	keep := len(out.Shards)
	straddle := -1
	start := 0
	for i, s := range out.Shards {
		switch {
		case start >= beforeIndex && keep == len(out.Shards):
			keep = i
		case start < beforeIndex && beforeIndex < start+s.Count:
			straddle = i
		}
		start += s.Count
	}

	for i := len(out.Shards) - 1; i >= keep; i-- {
		if err := removeIfExists(ShardPath(path, i)); err != nil {
			return nil, fmt.Errorf("remove shard %s: %w", out.Shards[i].File, err)
		}
	}
	out.Shards = out.Shards[:keep]

	if straddle >= 0 {
		entry := &out.Shards[straddle]
		shardPath := ShardPath(path, straddle)
		lines, err := readRecordLines(shardPath)
		if err != nil {
			return nil, fmt.Errorf("read shard %s: %w", entry.File, err)
		}
		prefix := lines[:min(beforeIndex-out.ShardStart(straddle), len(lines))]
		data := joinLines(prefix)
		if err := WriteFileAtomic(shardPath, data); err != nil {
			return nil, fmt.Errorf("rewrite shard %s: %w", entry.File, err)
		}
		entry.Count = len(prefix)
		entry.Size = int64(len(data))
		entry.LastMes = 0
		entry.LastMessage = ""
		if n := len(prefix); n > 0 {
			entry.LastMes = core.LineSendDate(prefix[n-1])
			entry.LastMessage = core.LineMes(prefix[n-1])
		}
	}

	out.Recompute()
	if err := writeIndex(path, out); err != nil {
		return nil, err
	}
	return out, nil
}
