package storage

import (
	"context"
	"os"

	"github.com/poiesic/chatshard/core"
)

// PathResolver maps owners and conversation names onto the filesystem.
// It is owned by account management and injected into the store.
type PathResolver interface {
	// ConversationPath returns the primary file path of a conversation.
	ConversationPath(ownerID, name string) (string, error)

	// OwnerDir returns the directory holding all of an owner's conversations.
	OwnerDir(ownerID string) (string, error)

	// BackupDir returns the directory that receives an owner's backup copies.
	BackupDir(ownerID string) (string, error)
}

// ActivityInfo describes the message that triggered an activity event.
type ActivityInfo struct {
	SpeakerName      string
	ConversationName string
}

// ActivitySink receives best-effort usage telemetry after a save.
// Implementations must not block; failures are never reported to the saver.
type ActivitySink interface {
	RecordActivity(ownerID, kind string, info ActivityInfo)
}

// BackupSink stores a full serialized copy of a conversation.
type BackupSink interface {
	Backup(directory, name string, serialized []byte) error
}

// StatToken is a freshness token derived from a file's size and modification time.
type StatToken struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mod_time"`
}

// TokenFromInfo builds a StatToken from file info.
func TokenFromInfo(info os.FileInfo) StatToken {
	return StatToken{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
}

// SummaryCache caches conversation summaries keyed by primary file path.
// An entry is only returned when its token matches the caller's token.
// Implementations must be thread-safe.
type SummaryCache interface {
	// Get returns the cached summary for path when it was stored with token.
	Get(path string, token StatToken) (core.Summary, bool, error)

	// Put stores a summary for path under token, replacing any previous entry.
	Put(path string, token StatToken, summary core.Summary) error

	// Delete removes the entry for path. Missing entries are not an error.
	Delete(path string) error

	// Close releases resources held by the cache.
	Close() error
}

// CheckpointRepository persists progress of bulk maintenance tasks.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, replacing the previous one for its task.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a task.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, task string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint for a task.
	ClearCheckpoint(ctx context.Context, task string) error
}
