package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/chatshard/core"
)

// ReadHeader returns the conversation header. The sidecar wins when present
// and well formed; otherwise the first line of the primary file is used if it
// looks like a header. It returns nil and no error when neither exists.
func (e *Engine) ReadHeader(path string) (*core.Record, error) {
	data, err := os.ReadFile(MetadataPath(path))
	switch {
	case err == nil:
		if h := core.DecodeRecord(data); h != nil {
			return h, nil
		}
		e.logger.Warn("ignoring malformed header sidecar", "path", path)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read header sidecar: %w", err)
	}

	line, err := readFirstLine(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header line: %w", err)
	}
	if !core.IsHeaderLine(line) {
		return nil, nil
	}
	return core.DecodeRecord(line), nil
}

// WriteHeader atomically replaces the header sidecar.
func (e *Engine) WriteHeader(path string, header *core.Record) error {
	if header == nil {
		return core.ErrNilHeader
	}
	line, err := core.EncodeRecord(header)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(MetadataPath(path), append(line, '\n')); err != nil {
		return fmt.Errorf("write header sidecar: %w", err)
	}
	return nil
}

// writePlaceholder replaces the primary file with the header line alone, so
// tools that only understand the legacy layout still find the header.
func writePlaceholder(path string, header *core.Record) error {
	line, err := core.EncodeRecord(header)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(path, append(line, '\n')); err != nil {
		return fmt.Errorf("write placeholder: %w", err)
	}
	return nil
}

// persistHeader stores the summary on a copy of header and writes both the
// sidecar and the placeholder primary file.
func (e *Engine) persistHeader(path string, header *core.Record, summary core.Summary) error {
	h := header.Clone()
	if err := h.SetSummary(summary); err != nil {
		return err
	}
	if err := e.WriteHeader(path, h); err != nil {
		return err
	}
	return writePlaceholder(path, h)
}

// headerOrEmpty returns header, the stored header, or an empty record.
func (e *Engine) headerOrEmpty(path string, header *core.Record) (*core.Record, error) {
	if header != nil {
		return header, nil
	}
	stored, err := e.ReadHeader(path)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	return core.NewRecord(), nil
}

// readFirstLine returns the first line of a file without its terminator.
func readFirstLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// legacyHeaderEnd returns the offset of the first message byte in a legacy
// file: just past the header line, or zero when the first line is not a header.
func legacyHeaderEnd(f *os.File) (int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if !core.IsHeaderLine(bytes.TrimRight(line, "\r\n")) {
		return 0, nil
	}
	return int64(len(line)), nil
}
