package reindex

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage/jsonl"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *jsonl.Engine {
	t.Helper()
	engine, err := jsonl.New(jsonl.WithChunkSize(5))
	require.NoError(t, err)
	return engine
}

func makeMessages(n int) []*core.Record {
	msgs := make([]*core.Record, n)
	for i := range msgs {
		msgs[i] = core.NewMessage("speaker", i%2 == 0, 1700000000000+int64(i)*1000, fmt.Sprintf("message %d", i))
	}
	return msgs
}

func writeLegacy(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	var data []byte
	for _, r := range append([]*core.Record{core.NewHeader("user", "char")}, makeMessages(n)...) {
		line, err := core.EncodeRecord(r)
		require.NoError(t, err)
		data = append(append(data, line...), '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeChunked(t *testing.T, engine *jsonl.Engine, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	_, err := engine.WriteFull(path, core.NewHeader("user", "char"), makeMessages(n))
	require.NoError(t, err)
}
