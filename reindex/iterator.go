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

package reindex

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/poiesic/chatshard/storage/jsonl"
)

const (
	// DefaultBatchSize is the default number of conversations handed out per batch
	DefaultBatchSize = 50
)

// ConversationIterator walks a conversation root and hands out primary file
// paths in batches. Every directory below the root is treated as an owner
// directory; shard directories and staging files are skipped.
type ConversationIterator struct {
	engine    *jsonl.Engine
	root      string
	batchSize int
}

// NewConversationIterator creates a new conversation iterator.
// batchSize: number of conversations per batch (defaults when <= 0)
func NewConversationIterator(engine *jsonl.Engine, root string, batchSize int) *ConversationIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ConversationIterator{
		engine:    engine,
		root:      root,
		batchSize: batchSize,
	}
}

// Collect returns every conversation path under the root in lexical order.
func (it *ConversationIterator) Collect(ctx context.Context) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(it.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != it.root && jsonl.IsAuxiliary(d.Name()) {
			return filepath.SkipDir
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, dir := range dirs {
		listed, err := it.engine.List(dir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}
	sort.Strings(paths)
	return paths, nil
}

// ForEach calls fn with successive batches of conversation paths that sort
// after the given resume point. An empty after starts from the beginning.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *ConversationIterator) ForEach(ctx context.Context, after string, fn func([]string) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	paths, err := it.Collect(ctx)
	if err != nil {
		return err
	}
	return forEachBatch(ctx, skipThrough(paths, after), it.batchSize, fn)
}

func skipThrough(paths []string, after string) []string {
	if after == "" {
		return paths
	}
	i := sort.Search(len(paths), func(i int) bool { return paths[i] > after })
	return paths[i:]
}

func forEachBatch(ctx context.Context, paths []string, batchSize int, fn func([]string) error) error {
	for i := 0; i < len(paths); i += batchSize {
		end := min(i+batchSize, len(paths))

		if err := fn(paths[i:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}
