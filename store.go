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

package chatshard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/chatshard/config"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/notify"
	"github.com/poiesic/chatshard/reindex"
	"github.com/poiesic/chatshard/search"
	"github.com/poiesic/chatshard/storage"
	"github.com/poiesic/chatshard/storage/badger"
	"github.com/poiesic/chatshard/storage/jsonl"
)

// Store addresses conversations by owner and name and runs the side
// effects of a save: integrity checks, activity telemetry, throttled backups
// and summary caching.
type Store struct {
	cfg         *config.Config
	engine      *jsonl.Engine
	resolver    storage.PathResolver
	cache       *badger.SummaryCache
	checkpoints *badger.CheckpointRepository
	activity    *notify.Dispatcher
	backups     storage.BackupSink
	throttle    *notify.Throttle
	logger      *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	resolver storage.PathResolver
	activity storage.ActivitySink
	backups  storage.BackupSink
	throttle *notify.Throttle
	logger   *slog.Logger
}

// WithResolver replaces the default <root>/<owner>/<name> layout.
func WithResolver(resolver storage.PathResolver) StoreOption {
	return func(o *storeOptions) {
		o.resolver = resolver
	}
}

// WithActivitySink receives an event after every save that adds messages.
func WithActivitySink(sink storage.ActivitySink) StoreOption {
	return func(o *storeOptions) {
		o.activity = sink
	}
}

// WithBackupSink replaces the default file backup sink.
func WithBackupSink(sink storage.BackupSink) StoreOption {
	return func(o *storeOptions) {
		o.backups = sink
	}
}

// WithThrottle injects the per-owner backup throttle.
func WithThrottle(throttle *notify.Throttle) StoreOption {
	return func(o *storeOptions) {
		o.throttle = throttle
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// NewStore validates cfg and opens a store over it.
func NewStore(cfg *config.Config, opts ...StoreOption) (*Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &storeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.resolver == nil {
		options.resolver = storage.NewDirResolver(cfg.Root)
	}
	if options.backups == nil {
		sink := notify.NewFileBackupSink(cfg.MaxBackups)
		sink.Logger = options.logger
		options.backups = sink
	}

	engine, err := jsonl.New(
		jsonl.WithChunkSize(cfg.ChunkSize),
		jsonl.WithCompareLimit(cfg.CompareLimit),
		jsonl.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	throttle := options.throttle
	if throttle == nil {
		throttle, err = notify.NewThrottle(cfg.BackupInterval)
		if err != nil {
			return nil, err
		}
	}

	cache, err := badger.OpenSummaryCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	var activity *notify.Dispatcher
	if options.activity != nil {
		activity, err = notify.NewDispatcher(options.activity,
			notify.WithPoolSize(cfg.PoolSize),
			notify.WithLogger(options.logger),
		)
		if err != nil {
			cache.Close()
			return nil, err
		}
	}

	return &Store{
		cfg:         cfg,
		engine:      engine,
		resolver:    options.resolver,
		cache:       cache,
		checkpoints: badger.NewCheckpointRepository(cache.Backend()),
		activity:    activity,
		backups:     options.backups,
		throttle:    throttle,
		logger:      options.logger,
	}, nil
}

// Close flushes pending backups, drains queued activity events and closes the cache.
func (s *Store) Close() error {
	s.throttle.Stop()
	if s.activity != nil {
		s.activity.Release()
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing summary cache", "err", err)
		return err
	}
	return nil
}

// Engine exposes the file engine for maintenance tools.
func (s *Store) Engine() *jsonl.Engine {
	return s.engine
}

// Config returns the validated configuration.
func (s *Store) Config() *config.Config {
	return s.cfg
}

// Path resolves the primary file of a conversation.
func (s *Store) Path(owner, name string) (string, error) {
	return s.resolver.ConversationPath(owner, name)
}

// OwnerDir resolves the directory holding an owner's conversations.
func (s *Store) OwnerDir(owner string) (string, error) {
	return s.resolver.OwnerDir(owner)
}

// Read materializes a conversation. A missing conversation yields a nil
// header and no messages.
func (s *Store) Read(owner, name string) (*core.Record, []*core.Record, error) {
	path, err := s.Path(owner, name)
	if err != nil {
		return nil, nil, err
	}
	return s.engine.ReadAll(path)
}

// ReadTail returns up to limit message lines ending before the cursor.
// A nil cursor starts at the end of the conversation.
func (s *Store) ReadTail(owner, name string, limit int, before *int64) (*jsonl.Page, error) {
	path, err := s.Path(owner, name)
	if err != nil {
		return nil, err
	}
	return s.engine.ReadTail(path, limit, before)
}

// Header returns the stored header, or nil when there is none.
func (s *Store) Header(owner, name string) (*core.Record, error) {
	path, err := s.Path(owner, name)
	if err != nil {
		return nil, err
	}
	return s.engine.ReadHeader(path)
}

// Summary returns the conversation summary, served from the cache while the
// primary file's size and mtime are unchanged.
func (s *Store) Summary(owner, name string) (core.Summary, error) {
	path, err := s.Path(owner, name)
	if err != nil {
		return core.Summary{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Summary{}, fmt.Errorf("%s/%s: %w", owner, name, storage.ErrNotFound)
		}
		return core.Summary{}, err
	}
	token := storage.TokenFromInfo(info)

	if summary, ok, err := s.cache.Get(path, token); err != nil {
		s.logger.Warn("summary cache read failed", "path", path, "err", err)
	} else if ok {
		return summary, nil
	}

	summary, err := s.engine.Summarize(path)
	if err != nil {
		return core.Summary{}, err
	}
	if err := s.cache.Put(path, token, summary); err != nil {
		s.logger.Warn("summary cache write failed", "path", path, "err", err)
	}
	return summary, nil
}

// List returns the names of an owner's conversations.
func (s *Store) List(owner string) ([]string, error) {
	dir, err := s.resolver.OwnerDir(owner)
	if err != nil {
		return nil, err
	}
	paths, err := s.engine.List(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names, nil
}

// Delete removes every part of a conversation.
func (s *Store) Delete(owner, name string) error {
	path, err := s.Path(owner, name)
	if err != nil {
		return err
	}
	if err := s.engine.Delete(path); err != nil {
		return err
	}
	if err := s.cache.Delete(path); err != nil {
		s.logger.Warn("summary cache delete failed", "path", path, "err", err)
	}
	return nil
}

// Rename moves a conversation to a new name under the same owner.
func (s *Store) Rename(owner, oldName, newName string) error {
	oldPath, err := s.Path(owner, oldName)
	if err != nil {
		return err
	}
	newPath, err := s.Path(owner, newName)
	if err != nil {
		return err
	}
	if err := s.engine.Rename(oldPath, newPath); err != nil {
		return err
	}
	if err := s.cache.Delete(oldPath); err != nil {
		s.logger.Warn("summary cache delete failed", "path", oldPath, "err", err)
	}
	return nil
}

// Export returns the conversation in legacy single-file form.
func (s *Store) Export(owner, name string) ([]byte, error) {
	path, err := s.Path(owner, name)
	if err != nil {
		return nil, err
	}
	return s.engine.Serialize(path)
}

// Migrate converts a legacy conversation to the chunked layout.
func (s *Store) Migrate(owner, name string) (*core.ChatIndex, error) {
	path, err := s.Path(owner, name)
	if err != nil {
		return nil, err
	}
	return s.engine.MigrateToChunked(path)
}

// Search finds an owner's conversations containing every query fragment.
func (s *Store) Search(ctx context.Context, owner, query string) ([]*search.Hit, error) {
	dir, err := s.OwnerDir(owner)
	if err != nil {
		return nil, err
	}
	searcher, err := s.NewSearcher()
	if err != nil {
		return nil, err
	}
	return searcher.SearchDir(ctx, dir, query)
}

// NewSearcher creates a searcher sharing the store's engine.
func (s *Store) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{search.WithPoolSize(s.cfg.PoolSize), search.WithLogger(s.logger)}
	return search.NewSearcher(s.engine, append(base, opts...)...)
}

// NewReindexer creates a resumable reindexer over the whole root. A rebuild
// also drops every cached summary.
func (s *Store) NewReindexer(cfg *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	if cfg == nil {
		cfg = reindex.DefaultConfig()
		cfg.PoolSize = s.cfg.PoolSize
	}
	if cfg.Rebuild {
		if err := s.cache.Clear(); err != nil {
			return nil, fmt.Errorf("clear summary cache: %w", err)
		}
	}
	return reindex.NewReindexer(s.engine, s.cfg.Root, cfg, progress,
		reindex.WithCheckpoints(s.checkpoints),
		reindex.WithLogger(s.logger),
	)
}
