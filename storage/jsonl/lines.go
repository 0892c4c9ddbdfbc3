package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/poiesic/chatshard/core"
)

// maxLineSize bounds a single record line. Messages carrying inline media can be large.
const maxLineSize = 64 * 1024 * 1024

// errStopIteration ends a line walk early without reporting an error.
var errStopIteration = errors.New("stop iteration")

// eachLine calls fn with every line of r, without its line terminator.
// The slice passed to fn is only valid for the duration of the call.
func eachLine(r io.Reader, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := fn(scanner.Bytes()); err != nil {
			if errors.Is(err, errStopIteration) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// eachRecordLine walks the well-formed record lines of a file. Blank lines
// are ignored; malformed lines are counted and skipped.
func eachRecordLine(path string, fn func(line []byte) error) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	err = eachLine(f, func(line []byte) error {
		if len(bytes.TrimSpace(line)) == 0 {
			return nil
		}
		if !core.IsRecordLine(line) {
			skipped++
			return nil
		}
		return fn(line)
	})
	return skipped, err
}

// readRecordLines returns copies of the well-formed record lines of a file.
func readRecordLines(path string) ([][]byte, error) {
	lines := make([][]byte, 0)
	_, err := eachRecordLine(path, func(line []byte) error {
		lines = append(lines, bytes.Clone(line))
		return nil
	})
	return lines, err
}

// joinLines renders lines as newline-terminated file content.
func joinLines(lines [][]byte) []byte {
	size := 0
	for _, l := range lines {
		size += len(l) + 1
	}
	buf := make([]byte, 0, size)
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	return buf
}

// encodeAll encodes records into lines.
func encodeAll(records []*core.Record) ([][]byte, error) {
	lines := make([][]byte, len(records))
	for i, r := range records {
		line, err := core.EncodeRecord(r)
		if err != nil {
			return nil, err
		}
		lines[i] = line
	}
	return lines, nil
}

// endsWithNewline reports the size of a file and whether its last byte is a newline.
// A missing file has size zero.
func endsWithNewline(path string) (int64, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, false, err
	}
	if info.Size() == 0 {
		return 0, false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return 0, false, err
	}
	return info.Size(), last[0] == '\n', nil
}
