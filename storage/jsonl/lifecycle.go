package jsonl

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
)

// WriteLegacy writes the conversation as a single file: the header line with
// its summary, then one line per message. A conversation that is already
// chunked stays chunked and is written with WriteFull instead.
func (e *Engine) WriteLegacy(path string, header *core.Record, messages []*core.Record) error {
	chunked, err := exists(ChunkDir(path))
	if err != nil {
		return fmt.Errorf("stat chunk dir: %w", err)
	}
	if chunked {
		_, err := e.WriteFull(path, header, messages)
		return err
	}

	h, err := e.headerOrEmpty(path, header)
	if err != nil {
		return err
	}
	h = h.Clone()
	var last *core.Record
	if len(messages) > 0 {
		last = messages[len(messages)-1]
	}
	if err := core.UpdateSummary(h, len(messages), last); err != nil {
		return err
	}

	lines, err := encodeAll(append([]*core.Record{h}, messages...))
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(path, joinLines(lines)); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}
	if err := removeIfExists(MetadataPath(path)); err != nil {
		return fmt.Errorf("remove header sidecar: %w", err)
	}
	return e.InvalidateIndex(path)
}

// Delete removes the primary file, both sidecars and the shard directory.
// Missing parts are ignored. Every part is attempted; the first failure is returned.
func (e *Engine) Delete(path string) error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if err := os.RemoveAll(ChunkDir(path)); err != nil {
		record(fmt.Errorf("remove shards: %w", err))
	}
	record(removeIfExists(IndexPath(path)))
	record(removeIfExists(MetadataPath(path)))
	record(removeIfExists(path))
	return first
}

// Rename moves every part of a conversation to newPath. It fails with
// storage.ErrAlreadyExists when any part of newPath exists and with
// storage.ErrNotFound when there is nothing at oldPath.
func (e *Engine) Rename(oldPath, newPath string) error {
	parts := func(p string) []string {
		return []string{ChunkDir(p), IndexPath(p), MetadataPath(p), p}
	}

	for _, p := range parts(newPath) {
		taken, err := exists(p)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, newPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	from, to := parts(oldPath), parts(newPath)
	moved := 0
	for i := range from {
		if err := os.Rename(from[i], to[i]); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("rename %s: %w", filepath.Base(from[i]), err)
		}
		moved++
	}
	if moved == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, oldPath)
	}
	return nil
}

// Serialize renders the conversation in legacy form: header line, then one
// line per message. It is the payload handed to backup sinks.
func (e *Engine) Serialize(path string) ([]byte, error) {
	format, err := e.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format.Kind {
	case FormatMissing:
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	case FormatLegacy:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read conversation: %w", err)
		}
		return data, nil
	}

	var buf bytes.Buffer
	header, err := e.ReadHeader(path)
	if err != nil {
		return nil, err
	}
	if header != nil {
		line, err := core.EncodeRecord(header)
		if err != nil {
			return nil, err
		}
		buf.Grow(int(format.Index.TotalBytes) + len(line) + 1)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	err = e.eachMessage(path, format, func(line []byte) error {
		buf.Write(line)
		buf.WriteByte('\n')
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Summarize returns the conversation summary. The header's summary block is
// used when present; otherwise it is derived from the index or, for legacy
// files, by scanning the messages.
func (e *Engine) Summarize(path string) (core.Summary, error) {
	header, err := e.ReadHeader(path)
	if err != nil {
		return core.Summary{}, err
	}
	if s, ok := header.Summary(); ok {
		return s, nil
	}

	format, err := e.DetectFormat(path)
	if err != nil {
		return core.Summary{}, err
	}
	switch format.Kind {
	case FormatMissing:
		return core.Summary{}, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	case FormatChunked:
		return format.Index.Summary(), nil
	}

	var s core.Summary
	err = e.eachMessage(path, format, func(line []byte) error {
		s.MessageCount++
		s.LastMes = core.LineSendDate(line)
		s.LastMessage = core.LineMes(line)
		return nil
	})
	return s, err
}
