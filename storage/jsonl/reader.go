package jsonl

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/poiesic/chatshard/core"
)

// reverseChunkSize is the read size used when scanning legacy files backward.
const reverseChunkSize = 64 * 1024

// Page is one backward page of records in chronological order.
//
// For chunked conversations Cursor is a message position; for legacy
// conversations it is a byte offset. Either way it is opaque to callers and
// is passed back as the next call's before value.
type Page struct {
	Lines   [][]byte
	Cursor  int64
	HasMore bool
}

// ReadTail returns up to limit records ending just before the cursor before,
// or at the end of the conversation when before is nil. A missing
// conversation yields an empty page.
func (e *Engine) ReadTail(path string, limit int, before *int64) (*Page, error) {
	format, err := e.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format.Kind {
	case FormatChunked:
		return e.readChunkedTail(path, format.Index, limit, before)
	case FormatLegacy:
		return readLegacyTail(path, limit, before)
	default:
		return &Page{Lines: [][]byte{}}, nil
	}
}

func (e *Engine) readChunkedTail(path string, idx *core.ChatIndex, limit int, before *int64) (*Page, error) {
	end := idx.MessageCount
	if before != nil {
		end = int(max(0, min(*before, int64(idx.MessageCount))))
	}
	start := max(0, end-max(limit, 0))

	lines, err := e.readRange(path, idx, start, end)
	if err != nil {
		return nil, err
	}
	return &Page{Lines: lines, Cursor: int64(start), HasMore: start > 0}, nil
}

// readLegacyTail scans a legacy file backward from the cursor in fixed-size
// chunks, splitting on newlines.
func readLegacyTail(path string, limit int, before *int64) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Page{Lines: [][]byte{}}, nil
		}
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	headerEnd, err := legacyHeaderEnd(f)
	if err != nil {
		return nil, fmt.Errorf("read header line: %w", err)
	}
	headerEnd = min(headerEnd, info.Size())

	end := info.Size()
	if before != nil {
		end = max(headerEnd, min(*before, info.Size()))
	}

	// buf holds file[pos:lineEnd]; lineEnd is where the next unread line ends.
	lines := make([][]byte, 0, max(limit, 0))
	pos, lineEnd := end, end
	var buf []byte
	for len(lines) < limit && lineEnd > headerEnd {
		i := bytes.LastIndexByte(buf, '\n')
		if i < 0 && pos > headerEnd {
			n := min(int64(reverseChunkSize), pos-headerEnd)
			chunk := make([]byte, n)
			if _, err := f.ReadAt(chunk, pos-n); err != nil && err != io.EOF {
				return nil, fmt.Errorf("read conversation: %w", err)
			}
			pos -= n
			buf = append(chunk, buf...)
			continue
		}

		line := buf[i+1:]
		if core.IsRecordLine(line) {
			lines = append(lines, bytes.Clone(bytes.TrimRight(line, "\r")))
		}
		if i < 0 {
			buf = buf[:0]
			lineEnd = headerEnd
		} else {
			buf = buf[:i]
			lineEnd = pos + int64(i)
		}
	}

	slices.Reverse(lines)
	return &Page{Lines: lines, Cursor: lineEnd, HasMore: lineEnd > headerEnd}, nil
}

// readRange returns the record lines at message positions [from, to),
// opening only the shards that overlap the range.
func (e *Engine) readRange(path string, idx *core.ChatIndex, from, to int) ([][]byte, error) {
	out := make([][]byte, 0, max(to-from, 0))
	start := 0
	for i, s := range idx.Shards {
		shardStart, shardEnd := start, start+s.Count
		start = shardEnd
		if shardEnd <= from || shardStart >= to || s.Count == 0 {
			continue
		}
		lines, err := readRecordLines(ShardPath(path, i))
		if err != nil {
			return nil, fmt.Errorf("read shard %s: %w", s.File, err)
		}
		lo := max(from-shardStart, 0)
		hi := min(to-shardStart, len(lines))
		if lo < hi {
			out = append(out, lines[lo:hi]...)
		}
	}
	return out, nil
}

// EachMessage calls fn with every message line of the conversation in order,
// reading shards or the legacy file. The slice is only valid during the call.
// A missing conversation has no messages.
func (e *Engine) EachMessage(path string, fn func(line []byte) error) error {
	format, err := e.DetectFormat(path)
	if err != nil {
		return err
	}
	return e.eachMessage(path, format, fn)
}

func (e *Engine) eachMessage(path string, format Format, fn func(line []byte) error) error {
	switch format.Kind {
	case FormatChunked:
		for i, s := range format.Index.Shards {
			skipped, err := eachRecordLine(ShardPath(path, i), fn)
			if err != nil {
				return fmt.Errorf("read shard %s: %w", s.File, err)
			}
			if skipped > 0 {
				e.logger.Debug("skipped malformed lines", "path", path, "shard", s.File, "err", core.SkippedLines(skipped))
			}
		}
		return nil
	case FormatLegacy:
		first := true
		skipped, err := eachRecordLine(path, func(line []byte) error {
			if first {
				first = false
				if core.IsHeaderLine(line) {
					return nil
				}
			}
			return fn(line)
		})
		if err != nil {
			return fmt.Errorf("read conversation: %w", err)
		}
		if skipped > 0 {
			e.logger.Debug("skipped malformed lines", "path", path, "err", core.SkippedLines(skipped))
		}
		return nil
	default:
		return nil
	}
}

// ReadAll materializes the header and every message of a conversation.
// A missing conversation returns a nil header and no messages.
func (e *Engine) ReadAll(path string) (*core.Record, []*core.Record, error) {
	format, err := e.DetectFormat(path)
	if err != nil {
		return nil, nil, err
	}
	if format.Kind == FormatMissing {
		return nil, []*core.Record{}, nil
	}

	header, err := e.ReadHeader(path)
	if err != nil {
		return nil, nil, err
	}
	capacity := 0
	if format.Index != nil {
		capacity = format.Index.MessageCount
	}
	messages := make([]*core.Record, 0, capacity)
	err = e.eachMessage(path, format, func(line []byte) error {
		if r := core.DecodeRecord(line); r != nil {
			messages = append(messages, r)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return header, messages, nil
}
