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
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
	"github.com/poiesic/chatshard/storage/jsonl"
)

// Task is the checkpoint name used by the reindexer.
const Task = "reindex"

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of conversations to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of conversations)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per conversation
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// PoolSize is the number of conversations processed concurrently
	PoolSize int

	// Rebuild forces every chunked conversation's index to be rebuilt
	// from its shards instead of reusing a consistent sidecar.
	Rebuild bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     100 * time.Millisecond,
		PoolSize:       poolSize,
	}
}

// Report summarizes a completed run.
type Report struct {
	Total    int
	Migrated int
	Verified int
	Rebuilt  int
	Skipped  int
	Failed   []Result
	Messages int
	Resumed  bool
	Elapsed  time.Duration
}

func (r *Report) add(result Result) {
	switch result.Outcome {
	case OutcomeMigrated:
		r.Migrated++
	case OutcomeVerified:
		r.Verified++
	case OutcomeRebuilt:
		r.Rebuilt++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed = append(r.Failed, result)
	}
	r.Messages += result.Messages
}

// Option configures a Reindexer.
type Option func(*Reindexer) error

// WithCheckpoints enables resumable runs. Progress is saved after every
// batch and cleared when a run completes.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(r *Reindexer) error {
		r.checkpoints = repo
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// Reindexer orchestrates migration and re-indexing of every conversation under a root.
type Reindexer struct {
	engine      *jsonl.Engine
	root        string
	config      *Config
	progress    io.Writer
	checkpoints storage.CheckpointRepository
	logger      *slog.Logger
	iterator    *ConversationIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(engine *jsonl.Engine, root string, config *Config, progress io.Writer, opts ...Option) (*Reindexer, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if root == "" {
		return nil, ErrRootRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reindexer{
		engine:   engine,
		root:     root,
		config:   config,
		progress: progress,
		logger:   slog.Default(),
		iterator: NewConversationIterator(engine, root, config.BatchSize),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run executes the reindexing operation. Per-conversation failures are
// collected in the report; the returned error is reserved for failures that
// stop the run (cancellation, unreadable root, checkpoint I/O).
func (r *Reindexer) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	checkpoint, err := r.resumePoint(ctx)
	if err != nil {
		return nil, err
	}
	report.Resumed = checkpoint.LastPath != ""

	paths, err := r.iterator.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	paths = skipThrough(paths, checkpoint.LastPath)
	report.Total = len(paths)

	if report.Total == 0 {
		fmt.Fprintf(r.progress, "No conversations to process under %s\n", r.root)
		return report, r.clearCheckpoint(ctx)
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d conversations (batch size: %d)\n",
		report.Total, r.iterator.batchSize)

	pool, err := ants.NewPool(max(r.config.PoolSize, 1))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	processor := NewBatchProcessor(r.engine, pool, r.config.Rebuild, r.config.MaxRetries, r.config.RetryDelay, r.logger)

	tracker := NewProgressTracker(r.progress, report.Total, r.config.ReportInterval)
	tracker.Start()

	err = forEachBatch(ctx, paths, r.iterator.batchSize, func(batch []string) error {
		results, err := processor.Process(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		for _, result := range results {
			report.add(result)
		}
		tracker.Record(results)

		checkpoint.LastPath = batch[len(batch)-1]
		checkpoint.Processed += len(batch)
		return r.saveCheckpoint(ctx, checkpoint)
	})
	if err != nil {
		return report, err
	}

	tracker.Finish()
	report.Elapsed = tracker.Elapsed()

	fmt.Fprintf(r.progress, "Reindex complete. %d migrated, %d verified, %d rebuilt, %d failed in %v\n",
		report.Migrated, report.Verified, report.Rebuilt, len(report.Failed), report.Elapsed.Round(time.Millisecond))

	return report, r.clearCheckpoint(ctx)
}

// resumePoint returns the saved checkpoint, or a fresh one when there is
// nothing to resume. Processed counts conversations across every run.
func (r *Reindexer) resumePoint(ctx context.Context) (*core.Checkpoint, error) {
	fresh := &core.Checkpoint{Task: Task}
	if r.checkpoints == nil {
		return fresh, nil
	}
	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, Task)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint == nil {
		return fresh, nil
	}
	r.logger.Info("resuming reindex", "after", checkpoint.LastPath, "processed", checkpoint.Processed)
	return checkpoint, nil
}

func (r *Reindexer) saveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if r.checkpoints == nil {
		return nil
	}
	if err := r.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (r *Reindexer) clearCheckpoint(ctx context.Context) error {
	if r.checkpoints == nil {
		return nil
	}
	return r.checkpoints.ClearCheckpoint(ctx, Task)
}
