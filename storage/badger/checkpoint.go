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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
)

// DefaultCheckpointTTL bounds how long an interrupted run stays resumable.
// The tree under the root can change arbitrarily in the meantime.
const DefaultCheckpointTTL = 7 * 24 * time.Hour

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
// Checkpoints expire after TTL.
type CheckpointRepository struct {
	backend *Backend
	TTL     time.Duration
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a repository on a shared backend.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{backend: backend, TTL: DefaultCheckpointTTL}
}

// SaveCheckpoint stamps and persists checkpoint, replacing the previous one
// for the same task.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if checkpoint == nil || checkpoint.Task == "" {
		return fmt.Errorf("%w: empty task", storage.ErrInvalidCheckpoint)
	}

	checkpoint.UpdatedAt = time.Now().UTC()
	value, err := storage.MarshalCheckpoint(checkpoint)
	if err != nil {
		return err
	}
	entry := badger.NewEntry(makeCheckpointKey(checkpoint.Task), value)
	if r.TTL > 0 {
		entry = entry.WithTTL(r.TTL)
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint returns the live checkpoint for task, or nil, nil when
// there is none.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, task string) (*core.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var checkpoint *core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(task))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			checkpoint, err = storage.UnmarshalCheckpoint(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return checkpoint, nil
}

// ClearCheckpoint removes the checkpoint for task. Clearing a missing
// checkpoint is not an error.
func (r *CheckpointRepository) ClearCheckpoint(ctx context.Context, task string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(task)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
