package jsonl

import (
	"fmt"

	"github.com/poiesic/chatshard/core"
)

// FormatKind identifies how a conversation is laid out on disk.
type FormatKind int

const (
	// FormatMissing means no conversation exists at the path.
	FormatMissing FormatKind = iota
	// FormatLegacy is a single file: header line, then one message per line.
	FormatLegacy
	// FormatChunked is the sharded layout with header and index sidecars.
	FormatChunked
)

func (k FormatKind) String() string {
	switch k {
	case FormatMissing:
		return "missing"
	case FormatLegacy:
		return "legacy"
	case FormatChunked:
		return "chunked"
	default:
		return fmt.Sprintf("FormatKind(%d)", int(k))
	}
}

// Format is the resolved layout of a conversation. Index is set only for
// chunked conversations.
type Format struct {
	Kind  FormatKind
	Index *core.ChatIndex
}

// DetectFormat probes the filesystem once and resolves the layout of a
// conversation. A conversation is chunked when its shard directory exists;
// its index is loaded through EnsureIndex. An index sidecar without a shard
// directory is a stale cache and does not make a conversation chunked.
func (e *Engine) DetectFormat(path string) (Format, error) {
	chunked, err := exists(ChunkDir(path))
	if err != nil {
		return Format{}, fmt.Errorf("stat chunk dir: %w", err)
	}
	if chunked {
		idx, err := e.EnsureIndex(path)
		if err != nil {
			return Format{}, err
		}
		return Format{Kind: FormatChunked, Index: idx}, nil
	}

	legacy, err := exists(path)
	if err != nil {
		return Format{}, fmt.Errorf("stat conversation: %w", err)
	}
	if legacy {
		return Format{Kind: FormatLegacy}, nil
	}
	return Format{Kind: FormatMissing}, nil
}
