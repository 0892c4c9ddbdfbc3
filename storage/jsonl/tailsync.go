package jsonl

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/poiesic/chatshard/core"
)

// SyncPath names the strategy SaveTail used.
type SyncPath int

const (
	// SyncFull rewrote the whole conversation.
	SyncFull SyncPath = iota
	// SyncAppend kept the stored tail and appended the new records.
	SyncAppend
	// SyncRewrite truncated at the tail start and appended every record.
	SyncRewrite
)

func (p SyncPath) String() string {
	switch p {
	case SyncFull:
		return "full"
	case SyncAppend:
		return "append"
	case SyncRewrite:
		return "rewrite"
	default:
		return fmt.Sprintf("SyncPath(%d)", int(p))
	}
}

// SaveResult reports the outcome of SaveTail.
type SaveResult struct {
	Index    *core.ChatIndex
	Path     SyncPath
	Migrated bool
	Appended int
}

// SaveTail stores messages as the conversation's records from position
// before onward. before <= 0 means messages is the entire conversation.
//
// When the records already stored from before onward are an unchanged prefix
// of messages (compared by encoded bytes, then structurally), only the extra
// records are appended. Otherwise the conversation is truncated at before and
// all of messages is appended. Legacy conversations are migrated first.
//
// A structural match keeps the stored line bytes, so the two paths leave
// different files when a stored line is not in canonical encoding (legacy
// lines with extra whitespace, for example). The decoded records are the
// same either way.
//
// A non-nil header replaces the stored header. The header summary is
// refreshed and the primary file's modification time is bumped on every save.
func (e *Engine) SaveTail(path string, header *core.Record, messages []*core.Record, before int) (*SaveResult, error) {
	format, err := e.DetectFormat(path)
	if err != nil {
		return nil, err
	}

	if format.Kind == FormatMissing || before <= 0 {
		idx, err := e.WriteFull(path, header, messages)
		if err != nil {
			return nil, err
		}
		return &SaveResult{Index: idx, Path: SyncFull, Appended: len(messages)}, nil
	}

	res := &SaveResult{}
	idx := format.Index
	if format.Kind == FormatLegacy {
		idx, err = e.MigrateToChunked(path)
		if err != nil {
			return nil, fmt.Errorf("migrate before tail sync: %w", err)
		}
		res.Migrated = true
	}

	total := idx.MessageCount
	beforeIndex := max(0, min(before, total))
	existingTail := total - beforeIndex

	matched := false
	if existingTail <= e.compareLimit && existingTail <= len(messages) {
		matched, err = e.tailMatches(path, idx, beforeIndex, messages[:existingTail])
		if err != nil {
			return nil, err
		}
	}

	if matched {
		idx, err = e.AppendOnly(path, idx, messages[existingTail:])
		if err != nil {
			return nil, err
		}
		res.Path = SyncAppend
		res.Appended = len(messages) - existingTail
	} else {
		idx, err = e.Truncate(path, idx, beforeIndex)
		if err != nil {
			return nil, err
		}
		idx, err = e.AppendOnly(path, idx, messages)
		if err != nil {
			return nil, err
		}
		res.Path = SyncRewrite
		res.Appended = len(messages)
	}
	res.Index = idx

	h, err := e.headerOrEmpty(path, header)
	if err != nil {
		return nil, err
	}
	if err := e.persistHeader(path, h, idx.Summary()); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return res, nil
}

// tailMatches compares the stored records at positions [from, from+len(expected))
// with expected.
func (e *Engine) tailMatches(path string, idx *core.ChatIndex, from int, expected []*core.Record) (bool, error) {
	if len(expected) == 0 {
		return true, nil
	}
	stored, err := e.readRange(path, idx, from, from+len(expected))
	if err != nil {
		return false, err
	}
	if len(stored) != len(expected) {
		return false, nil
	}
	for i, line := range stored {
		encoded, err := core.EncodeRecord(expected[i])
		if err != nil {
			return false, err
		}
		if bytes.Equal(bytes.TrimSpace(line), encoded) {
			continue
		}
		if !core.RecordsEqual(core.DecodeRecord(line), expected[i]) {
			return false, nil
		}
	}
	return true, nil
}
