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
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
	"github.com/poiesic/chatshard/storage/jsonl"
)

// Activity kinds reported after a save.
const (
	ActivityUser      = "user"
	ActivityCharacter = "character"
)

// SaveRequest is one save of a conversation.
type SaveRequest struct {
	Owner string
	Name  string

	// Header replaces the stored header when set.
	Header *core.Record

	// Messages are the conversation's records from position Before onward.
	Messages []*core.Record

	// Before is the position of Messages[0]; zero saves the whole conversation.
	Before int

	// Force skips the integrity check.
	Force bool
}

// SaveResult reports what a save did.
type SaveResult struct {
	Path     string
	Sync     jsonl.SyncPath
	Migrated bool
	Appended int
	Summary  core.Summary

	// Integrity is the tag of the header written by this save; empty when
	// the stored header was kept.
	Integrity string
}

// Save stores a conversation. With integrity enforcement enabled, a header
// whose integrity tag differs from the stored one is rejected before
// anything is written, unless Force is set.
func (s *Store) Save(req SaveRequest) (*SaveResult, error) {
	path, err := s.Path(req.Owner, req.Name)
	if err != nil {
		return nil, err
	}

	header, err := s.prepareHeader(path, req)
	if err != nil {
		return nil, err
	}

	var result *SaveResult
	format, err := s.engine.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if s.cfg.Chunking || format.Kind == jsonl.FormatChunked {
		result, err = s.saveChunked(path, header, req)
	} else {
		result, err = s.saveLegacy(path, header, req)
	}
	if err != nil {
		return nil, err
	}
	result.Path = path
	if header != nil {
		result.Integrity = header.Integrity()
	}

	s.refreshCache(path, result.Summary)
	s.afterSave(req, result)
	return result, nil
}

// prepareHeader enforces integrity and returns the header to persist,
// or nil when the stored header stays. New conversations always get a
// header carrying a fresh integrity tag.
func (s *Store) prepareHeader(path string, req SaveRequest) (*core.Record, error) {
	stored, err := s.engine.ReadHeader(path)
	if err != nil {
		return nil, err
	}
	if req.Header == nil && stored != nil {
		return nil, nil
	}

	header := core.NewRecord()
	if req.Header != nil {
		header = req.Header.Clone()
	}
	supplied := header.Integrity()
	var current string
	if stored != nil {
		current = stored.Integrity()
	}

	if s.cfg.EnforceIntegrity && !req.Force && supplied != "" && current != "" && supplied != current {
		s.logger.Warn("integrity mismatch", "owner", req.Owner, "name", req.Name)
		return nil, fmt.Errorf("%s/%s: %w", req.Owner, req.Name, storage.ErrIntegrityMismatch)
	}

	switch {
	case supplied != "":
	case current != "":
		err = header.SetIntegrity(current)
	default:
		err = header.SetIntegrity(uuid.NewString())
	}
	if err != nil {
		return nil, err
	}
	return header, nil
}

func (s *Store) saveChunked(path string, header *core.Record, req SaveRequest) (*SaveResult, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	res, err := s.engine.SaveTail(path, header, req.Messages, req.Before)
	if err != nil {
		return nil, err
	}
	return &SaveResult{
		Sync:     res.Path,
		Migrated: res.Migrated,
		Appended: res.Appended,
		Summary:  res.Index.Summary(),
	}, nil
}

// saveLegacy rewrites the single-file form, splicing Messages in at Before.
func (s *Store) saveLegacy(path string, header *core.Record, req SaveRequest) (*SaveResult, error) {
	messages := req.Messages
	sync := jsonl.SyncFull
	if req.Before > 0 {
		_, existing, err := s.engine.ReadAll(path)
		if err != nil {
			return nil, err
		}
		keep := min(req.Before, len(existing))
		messages = append(existing[:keep:keep], req.Messages...)
		sync = jsonl.SyncRewrite
	}
	if err := s.engine.WriteLegacy(path, header, messages); err != nil {
		return nil, err
	}

	summary := core.Summary{MessageCount: len(messages)}
	if n := len(messages); n > 0 {
		summary.LastMes = messages[n-1].SendDate()
		summary.LastMessage = messages[n-1].Mes()
	}
	return &SaveResult{Sync: sync, Appended: len(req.Messages), Summary: summary}, nil
}

func (s *Store) refreshCache(path string, summary core.Summary) {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Warn("stat after save failed", "path", path, "err", err)
		return
	}
	if err := s.cache.Put(path, storage.TokenFromInfo(info), summary); err != nil {
		s.logger.Warn("summary cache write failed", "path", path, "err", err)
	}
}

// afterSave reports activity and schedules a backup. Neither can fail the save.
func (s *Store) afterSave(req SaveRequest, result *SaveResult) {
	if s.activity != nil && result.Appended > 0 && len(req.Messages) > 0 {
		last := req.Messages[len(req.Messages)-1]
		kind := ActivityCharacter
		if last.IsUser() {
			kind = ActivityUser
		}
		s.activity.RecordActivity(req.Owner, kind, storage.ActivityInfo{
			SpeakerName:      last.Name(),
			ConversationName: req.Name,
		})
	}

	owner, name, path := req.Owner, req.Name, result.Path
	s.throttle.Do(owner, func() {
		s.backup(owner, name, path)
	})
}

func (s *Store) backup(owner, name, path string) {
	dir, err := s.resolver.BackupDir(owner)
	if err != nil {
		s.logger.Error("backup dir unavailable", "owner", owner, "err", err)
		return
	}
	data, err := s.engine.Serialize(path)
	if err != nil {
		s.logger.Error("backup serialize failed", "path", path, "err", err)
		return
	}
	if err := s.backups.Backup(dir, name, data); err != nil {
		s.logger.Error("backup failed", "owner", owner, "name", name, "err", err)
	}
}
