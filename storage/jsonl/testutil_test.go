package jsonl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/chatshard/core"
	"github.com/stretchr/testify/require"
)

const baseSendDate = int64(1700000000000)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func makeMessages(n, offset int) []*core.Record {
	msgs := make([]*core.Record, n)
	for i := range msgs {
		pos := offset + i
		msgs[i] = core.NewMessage(
			fmt.Sprintf("speaker-%d", pos%2),
			pos%2 == 0,
			baseSendDate+int64(pos)*1000,
			fmt.Sprintf("message %d", pos),
		)
	}
	return msgs
}

func encodeLines(t *testing.T, records []*core.Record) [][]byte {
	t.Helper()
	lines, err := encodeAll(records)
	require.NoError(t, err)
	return lines
}

func writeLegacyFile(t *testing.T, path string, header *core.Record, msgs []*core.Record) {
	t.Helper()
	records := msgs
	if header != nil {
		records = append([]*core.Record{header}, msgs...)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, joinLines(encodeLines(t, records)), 0o644))
}

func shardCounts(idx *core.ChatIndex) []int {
	counts := make([]int, len(idx.Shards))
	for i, s := range idx.Shards {
		counts[i] = s.Count
	}
	return counts
}

// snapshotFiles returns the contents of every file under dir keyed by relative path.
func snapshotFiles(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func countLines(data []byte) int {
	return strings.Count(string(data), "\n")
}
