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

package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
)

// SummaryCache implements storage.SummaryCache for BadgerDB.
// Entries are keyed by conversation path and are only returned while the
// caller's stat token matches the one they were stored with.
type SummaryCache struct {
	backend  *Backend
	ownsBack bool
}

var _ storage.SummaryCache = (*SummaryCache)(nil)

// NewSummaryCache creates a cache on a shared backend. Closing the cache
// leaves the backend open.
func NewSummaryCache(backend *Backend) *SummaryCache {
	return &SummaryCache{backend: backend}
}

// OpenSummaryCache opens a cache that owns its own backend. An empty dir
// keeps everything in memory.
func OpenSummaryCache(dir string) (*SummaryCache, error) {
	backend, err := OpenBackend(dir, dir == "")
	if err != nil {
		return nil, fmt.Errorf("open summary cache: %w", err)
	}
	return &SummaryCache{backend: backend, ownsBack: true}, nil
}

// Backend returns the underlying backend so other repositories can share it.
func (c *SummaryCache) Backend() *Backend {
	return c.backend
}

// Get returns the cached summary for path if its token still matches.
func (c *SummaryCache) Get(path string, token storage.StatToken) (core.Summary, bool, error) {
	var entry *storage.CacheEntry
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSummaryKey(path))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			entry, unmarshalErr = storage.UnmarshalCacheEntry(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return core.Summary{}, false, err
	}
	if entry == nil || entry.Path != path || entry.Token != token {
		return core.Summary{}, false, nil
	}
	return entry.Summary, true, nil
}

// Put stores summary for path under token, replacing any previous entry.
func (c *SummaryCache) Put(path string, token storage.StatToken, summary core.Summary) error {
	value, err := storage.MarshalCacheEntry(&storage.CacheEntry{
		Path:    path,
		Token:   token,
		Summary: summary,
	})
	if err != nil {
		return err
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSummaryKey(path), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete drops the entry for path.
func (c *SummaryCache) Delete(path string) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeSummaryKey(path)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Clear drops every cached summary. Checkpoints sharing the backend are kept.
func (c *SummaryCache) Clear() error {
	return c.backend.DropPrefix([]byte(summaryPrefix + ":"))
}

// Close releases the backend if the cache opened it, reclaiming value log
// space first.
func (c *SummaryCache) Close() error {
	if !c.ownsBack || c.backend.IsClosed() {
		return nil
	}
	if err := c.backend.CollectGarbage(); err != nil {
		c.backend.logger.Warn("value log gc failed", "err", err)
	}
	return c.backend.Close()
}
