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

package notify

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/chatshard/storage"
	"github.com/poiesic/chatshard/storage/jsonl"
)

const (
	// DefaultMaxBackups is how many copies of one conversation are kept.
	DefaultMaxBackups = 50

	backupPrefix = "chat_"
	backupExt    = ".jsonl"
	stampLayout  = "20060102-150405"
)

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// FileBackupSink writes full-conversation copies as
// chat_<name>_<YYYYMMDD-HHMMSS>.jsonl and prunes the oldest copies of the
// same conversation beyond MaxBackups.
type FileBackupSink struct {
	MaxBackups int
	Logger     *slog.Logger
	now        func() time.Time
}

var _ storage.BackupSink = (*FileBackupSink)(nil)

// NewFileBackupSink creates a sink keeping maxBackups copies per conversation.
// Zero keeps every copy.
func NewFileBackupSink(maxBackups int) *FileBackupSink {
	return &FileBackupSink{
		MaxBackups: maxBackups,
		Logger:     slog.Default(),
		now:        time.Now,
	}
}

// BackupPrefix returns the file name prefix shared by every backup of name.
func BackupPrefix(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), backupExt)
	return backupPrefix + unsafeName.ReplaceAllString(base, "_") + "_"
}

// Backup writes serialized into directory atomically.
func (s *FileBackupSink) Backup(directory, name string, serialized []byte) error {
	if strings.TrimSpace(name) == "" {
		return ErrBackupNameRequired
	}
	prefix := BackupPrefix(name)
	target := filepath.Join(directory, prefix+s.clock().Format(stampLayout)+backupExt)

	if err := jsonl.WriteFileAtomic(target, serialized); err != nil {
		return fmt.Errorf("write backup %s: %w", target, err)
	}
	s.logger().Debug("backup written", "file", target, "size", humanize.Bytes(uint64(len(serialized))))

	if s.MaxBackups > 0 {
		if err := s.prune(directory, prefix); err != nil {
			return fmt.Errorf("prune backups: %w", err)
		}
	}
	return nil
}

func (s *FileBackupSink) prune(directory, prefix string) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return err
	}
	var backups []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, backupExt) {
			rest := strings.TrimSuffix(strings.TrimPrefix(name, prefix), backupExt)
			if _, err := time.Parse(stampLayout, rest); err == nil {
				backups = append(backups, name)
			}
		}
	}
	if len(backups) <= s.MaxBackups {
		return nil
	}

	// Stamps sort chronologically.
	slices.Sort(backups)
	for _, name := range backups[:len(backups)-s.MaxBackups] {
		if err := os.Remove(filepath.Join(directory, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
		s.logger().Debug("backup pruned", "file", name)
	}
	return nil
}

func (s *FileBackupSink) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *FileBackupSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
