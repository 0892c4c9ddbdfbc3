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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatshard/storage/jsonl"
)

// Outcome describes what happened to a single conversation.
type Outcome int

const (
	// OutcomeSkipped means the conversation vanished before it was processed.
	OutcomeSkipped Outcome = iota
	// OutcomeMigrated means a legacy file was converted to the chunked layout.
	OutcomeMigrated
	// OutcomeVerified means an existing chunked conversation had a usable index.
	OutcomeVerified
	// OutcomeRebuilt means the chat index was rebuilt from the shard files.
	OutcomeRebuilt
	// OutcomeFailed means every attempt failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMigrated:
		return "migrated"
	case OutcomeVerified:
		return "verified"
	case OutcomeRebuilt:
		return "rebuilt"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome for one conversation.
type Result struct {
	Path     string
	Outcome  Outcome
	Messages int
	Err      error
}

// BatchProcessor migrates or re-indexes a batch of conversations concurrently.
type BatchProcessor struct {
	engine         *jsonl.Engine
	pool           *ants.Pool
	rebuild        bool
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor. The pool is owned by the caller.
func NewBatchProcessor(engine *jsonl.Engine, pool *ants.Pool, rebuild bool, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		engine:         engine,
		pool:           pool,
		rebuild:        rebuild,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}
}

// Process handles every path in the batch and returns one result per path,
// in input order. Failures are reported in the results rather than aborting
// the batch; only a pool submission failure is returned as an error.
func (bp *BatchProcessor) Process(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		err := bp.pool.Submit(func() {
			defer wg.Done()
			results[i] = bp.processOne(ctx, path)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit %s: %w", path, err)
		}
	}
	wg.Wait()

	return results, nil
}

func (bp *BatchProcessor) processOne(ctx context.Context, path string) Result {
	result := Result{Path: path}
	err := RetryWithBackoff(ctx, func() error {
		format, err := bp.engine.DetectFormat(path)
		if err != nil {
			return err
		}
		switch format.Kind {
		case jsonl.FormatMissing:
			result.Outcome = OutcomeSkipped
		case jsonl.FormatLegacy:
			idx, err := bp.engine.MigrateToChunked(path)
			if err != nil {
				return err
			}
			result.Outcome = OutcomeMigrated
			result.Messages = idx.MessageCount
		case jsonl.FormatChunked:
			if !bp.rebuild {
				result.Outcome = OutcomeVerified
				result.Messages = format.Index.MessageCount
				return nil
			}
			idx, err := bp.engine.RebuildIndex(path)
			if err != nil {
				return err
			}
			result.Outcome = OutcomeRebuilt
			result.Messages = idx.MessageCount
		}
		return nil
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		bp.logger.Error("reindex failed", "path", path, "err", err)
		result.Outcome = OutcomeFailed
		result.Err = err
	}
	return result
}
