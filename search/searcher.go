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

package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatshard/storage/jsonl"
)

// Hit is a conversation that matched a query.
type Hit struct {
	Path   string
	Name   string
	Result *ScanResult
}

// Searcher scans the conversations of a directory concurrently.
type Searcher struct {
	engine   *jsonl.Engine
	poolSize int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithPoolSize sets how many conversations are scanned at once.
// Default is half the CPU count.
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(engine *jsonl.Engine, opts ...Option) (*Searcher, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	s := &Searcher{
		engine:   engine,
		poolSize: poolSize,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SearchDir scans every conversation stored directly in dir for the query
// and returns the matches, most recent last message first.
func (s *Searcher) SearchDir(ctx context.Context, dir, query string) ([]*Hit, error) {
	return s.SearchDirWithMonitor(ctx, dir, query, nil)
}

// SearchDirWithMonitor is SearchDir with progress callbacks.
// Conversations that fail to scan are logged and left out of the results.
// Every Start is paired with a Finish; a failed or cancelled search finishes
// with no hits.
func (s *Searcher) SearchDirWithMonitor(ctx context.Context, dir, query string, monitor SearchMonitor) (hits []*Hit, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	fragments := Fragments(query)
	monitor.Start(dir, fragments)
	defer func() {
		monitor.Finish(hits)
	}()

	paths, err := s.engine.List(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		found = make([]*Hit, 0)
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			result, err := Scan(s.engine, path, fragments)
			monitor.Scanned(path, result, err)
			if err != nil {
				s.logger.Warn("search scan failed", "path", path, "err", err)
				return
			}
			if !Matched(result, fragments, path) {
				return
			}
			mu.Lock()
			found = append(found, &Hit{Path: path, Name: filepath.Base(path), Result: result})
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit scan: %w", submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(found, func(a, b *Hit) int {
		if c := cmp.Compare(b.Result.LastMesDate, a.Result.LastMesDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return found, nil
}
