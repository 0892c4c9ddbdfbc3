// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "fmt"

// Chunk size bounds applied to configured values.
const (
	DefaultChunkSize = 300
	MinChunkSize     = 200
	MaxChunkSize     = 500
)

// ClampChunkSize maps a configured chunk size into [MinChunkSize, MaxChunkSize].
// Non-positive values select DefaultChunkSize.
func ClampChunkSize(n int) int {
	switch {
	case n <= 0:
		return DefaultChunkSize
	case n < MinChunkSize:
		return MinChunkSize
	case n > MaxChunkSize:
		return MaxChunkSize
	default:
		return n
	}
}

// ValidateIndex checks a ChatIndex against its structural invariants.
//
// Validation rules:
//   - Version must be known
//   - ChunkSize must be positive
//   - MessageCount must equal the sum of shard counts
//   - TotalBytes must equal the sum of shard sizes
//   - No shard may exceed ChunkSize
//   - Shard files must be numbered contiguously from zero
//   - LastMes and LastMessage must match the last non-empty shard
//
// NOT validated (requires disk access):
//   - Presence of the shard files
//   - Shard sizes against the files on disk
//   - Full non-final shards (skipped malformed lines can leave one short)
func ValidateIndex(idx *ChatIndex) error {
	if idx == nil {
		return fmt.Errorf("%w: index is nil", ErrInvalidIndex)
	}

	if idx.Version != IndexVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedIndexVersion, idx.Version)
	}

	if idx.ChunkSize <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidIndex, ErrInvalidChunkSize)
	}

	var count int
	var size int64
	var lastMes int64
	var lastMessage string
	for i, s := range idx.Shards {
		if s.Count < 0 || s.Size < 0 {
			return fmt.Errorf("%w: shard %s has negative totals", ErrInvalidIndex, s.File)
		}
		if s.Count > idx.ChunkSize {
			return fmt.Errorf("%w: shard %s holds %d records, limit %d", ErrInvalidIndex, s.File, s.Count, idx.ChunkSize)
		}
		if s.File != ShardFileName(i) {
			return fmt.Errorf("%w: shard %d named %q", ErrInvalidIndex, i, s.File)
		}
		count += s.Count
		size += s.Size
		if s.Count > 0 {
			lastMes = s.LastMes
			lastMessage = s.LastMessage
		}
	}

	if count != idx.MessageCount {
		return fmt.Errorf("%w: message_count %d, shards hold %d", ErrInvalidIndex, idx.MessageCount, count)
	}

	if size != idx.TotalBytes {
		return fmt.Errorf("%w: total_bytes %d, shards hold %d", ErrInvalidIndex, idx.TotalBytes, size)
	}

	if lastMes != idx.LastMes || lastMessage != idx.LastMessage {
		return fmt.Errorf("%w: last message does not match last shard", ErrInvalidIndex)
	}

	return nil
}

// ShardFileName returns the file name of shard i.
func ShardFileName(i int) string {
	return fmt.Sprintf("%06d.jsonl", i)
}
