package badger

import (
	"fmt"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage"
)

// Key prefixes for different data types
const (
	summaryPrefix    = "chasum"
	checkpointSuffix = "chkpt"
)

// makeSummaryKey generates the cache key for a conversation path.
// Format: prefix:id, where id is the content hash of the path in big-endian order.
func makeSummaryKey(path string) []byte {
	prefix := []byte(summaryPrefix + ":")
	return append(prefix, storage.MarshalID(core.IDFromContent(path))...)
}

// makeCheckpointKey generates a key for task checkpoints.
func makeCheckpointKey(task string) []byte {
	return []byte(fmt.Sprintf("%s:%s", task, checkpointSuffix))
}
