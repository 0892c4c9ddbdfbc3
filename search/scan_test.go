package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage/jsonl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *jsonl.Engine {
	t.Helper()
	engine, err := jsonl.New(jsonl.WithChunkSize(2))
	require.NoError(t, err)
	return engine
}

func writeLegacy(t *testing.T, path string, messages ...*core.Record) {
	t.Helper()
	var data []byte
	for _, r := range append([]*core.Record{core.NewHeader("user", "char")}, messages...) {
		line, err := core.EncodeRecord(r)
		require.NoError(t, err)
		data = append(append(data, line...), '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestScan(t *testing.T) {
	engine := newTestEngine(t)
	dir := t.TempDir()

	messages := []*core.Record{
		core.NewMessage("user", true, 1000, "The Dragon sleeps"),
		core.NewMessage("char", false, 2000, "under the castle"),
		core.NewMessage("user", true, 3000, "goodnight"),
	}

	legacy := filepath.Join(dir, "legacy.jsonl")
	writeLegacy(t, legacy, messages...)

	chunked := filepath.Join(dir, "chunked.jsonl")
	_, err := engine.WriteFull(chunked, core.NewHeader("user", "char"), messages)
	require.NoError(t, err)

	for _, path := range []string{legacy, chunked} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			result, err := Scan(engine, path, []string{"dragon", "castle", "wizard"})
			require.NoError(t, err)
			assert.Equal(t, 3, result.MessageCount)
			assert.Equal(t, "goodnight", result.LastMessage)
			assert.Equal(t, int64(3000000), result.LastMesDate)
			assert.Equal(t, map[string]bool{"dragon": true, "castle": true}, result.Matches)
		})
	}

	t.Run("missing", func(t *testing.T) {
		result, err := Scan(engine, filepath.Join(dir, "nope.jsonl"), []string{"dragon"})
		require.NoError(t, err)
		assert.Equal(t, 0, result.MessageCount)
		assert.Empty(t, result.Matches)
	})
}

func TestMatched(t *testing.T) {
	result := &ScanResult{Matches: map[string]bool{"dragon": true}}

	tests := []struct {
		name      string
		fragments []string
		fileName  string
		want      bool
	}{
		{"all in transcript", []string{"dragon"}, "chat.jsonl", true},
		{"one missing", []string{"dragon", "castle"}, "chat.jsonl", false},
		{"file name supplies fragment", []string{"dragon", "castle"}, "/x/Castle Night.jsonl", true},
		{"file name only", []string{"night"}, "Castle Night.jsonl", true},
		{"extension ignored", []string{"jsonl"}, "chat.jsonl", false},
		{"no fragments", nil, "chat.jsonl", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matched(result, tt.fragments, tt.fileName))
		})
	}
}
