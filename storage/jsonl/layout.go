package jsonl

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poiesic/chatshard/core"
)

const (
	metadataSuffix = ".metadata.json"
	indexSuffix    = ".index.json"
	chunksSuffix   = ".chunks"
	tempMarker     = ".tmp-"
)

// MetadataPath returns the header sidecar path of a conversation.
func MetadataPath(path string) string {
	return path + metadataSuffix
}

// IndexPath returns the index sidecar path of a conversation.
func IndexPath(path string) string {
	return path + indexSuffix
}

// ChunkDir returns the shard directory of a conversation.
func ChunkDir(path string) string {
	return path + chunksSuffix
}

// ShardPath returns the path of shard i of a conversation.
func ShardPath(path string, i int) string {
	return filepath.Join(ChunkDir(path), core.ShardFileName(i))
}

// IsAuxiliary reports whether a directory entry belongs to another
// conversation's sidecars, shards or staging files.
func IsAuxiliary(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, metadataSuffix) ||
		strings.HasSuffix(name, indexSuffix) ||
		strings.HasSuffix(name, chunksSuffix) ||
		strings.Contains(name, tempMarker)
}

// List returns the primary file paths of the conversations stored directly in dir,
// sorted by name. A missing directory holds no conversations.
func (e *Engine) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if IsAuxiliary(name) || !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
