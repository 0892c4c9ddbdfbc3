package jsonl

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/chatshard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveTail_AppendsToLastShard(t *testing.T) {
	e := newTestEngine(t, WithChunkSize(300))
	path := t.TempDir() + "/chat"
	msgs := makeMessages(650, 0)

	idx, err := e.WriteFull(path, core.NewHeader("A", "B"), msgs)
	require.NoError(t, err)
	require.Equal(t, []int{300, 300, 50}, shardCounts(idx))

	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		require.NoError(t, os.Chtimes(ShardPath(path, i), fixed, fixed))
	}

	res, err := e.SaveTail(path, nil, makeMessages(3, 650), 650)
	require.NoError(t, err)

	assert.Equal(t, SyncAppend, res.Path)
	assert.Equal(t, 3, res.Appended)
	assert.Equal(t, 653, res.Index.MessageCount)
	assert.Equal(t, 53, res.Index.Shards[2].Count)
	assert.Equal(t, "message 652", res.Index.LastMessage)
	require.NoError(t, core.ValidateIndex(res.Index))

	for i := 0; i < 2; i++ {
		info, err := os.Stat(ShardPath(path, i))
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(fixed), "shard %d was rewritten", i)
	}

	s, err := e.Summarize(path)
	require.NoError(t, err)
	assert.Equal(t, 653, s.MessageCount)
	assert.Equal(t, "message 652", s.LastMessage)
}

func TestSaveTail_FullWrites(t *testing.T) {
	t.Run("missing conversation", func(t *testing.T) {
		e := newTestEngine(t, WithChunkSize(5))
		path := t.TempDir() + "/chat"

		res, err := e.SaveTail(path, core.NewHeader("A", "B"), makeMessages(7, 0), 4)
		require.NoError(t, err)
		assert.Equal(t, SyncFull, res.Path)
		assert.Equal(t, []int{5, 2}, shardCounts(res.Index))
	})

	t.Run("before zero", func(t *testing.T) {
		e := newTestEngine(t, WithChunkSize(5))
		path := t.TempDir() + "/chat"
		_, err := e.WriteFull(path, core.NewHeader("A", "B"), makeMessages(12, 0))
		require.NoError(t, err)

		res, err := e.SaveTail(path, nil, makeMessages(2, 100), 0)
		require.NoError(t, err)
		assert.Equal(t, SyncFull, res.Path)
		assert.Equal(t, 2, res.Index.MessageCount)
	})
}

func TestSaveTail_RewritesChangedTail(t *testing.T) {
	e := newTestEngine(t, WithChunkSize(5))
	path := t.TempDir() + "/chat"
	msgs := makeMessages(12, 0)
	_, err := e.WriteFull(path, core.NewHeader("A", "B"), msgs)
	require.NoError(t, err)

	edited := core.NewMessage("speaker-0", true, baseSendDate, "regenerated")
	res, err := e.SaveTail(path, nil, []*core.Record{msgs[10], edited}, 10)
	require.NoError(t, err)
	assert.Equal(t, SyncRewrite, res.Path)
	assert.Equal(t, 12, res.Index.MessageCount)

	_, all, err := e.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, all, 12)
	assert.Equal(t, "message 10", all[10].Mes())
	assert.Equal(t, "regenerated", all[11].Mes())
}

func TestSaveTail_ShorterTailDropsRecords(t *testing.T) {
	e := newTestEngine(t, WithChunkSize(5))
	path := t.TempDir() + "/chat"
	msgs := makeMessages(12, 0)
	_, err := e.WriteFull(path, nil, msgs)
	require.NoError(t, err)

	res, err := e.SaveTail(path, nil, msgs[8:10], 8)
	require.NoError(t, err)
	assert.Equal(t, SyncRewrite, res.Path)
	assert.Equal(t, 10, res.Index.MessageCount)
	assert.Equal(t, []int{5, 5}, shardCounts(res.Index))
}

func TestSaveTail_StructuralMatchKeepsStoredBytes(t *testing.T) {
	e := newTestEngine(t, WithChunkSize(5))
	path := t.TempDir() + "/chat"
	msgs := makeMessages(6, 0)
	_, err := e.WriteFull(path, nil, msgs)
	require.NoError(t, err)

	// Same fields, different order.
	reordered := core.DecodeRecord([]byte(`{"mes":"message 5","send_date":1700000005000,"is_user":false,"name":"speaker-1"}`))
	require.NotNil(t, reordered)

	res, err := e.SaveTail(path, nil, append([]*core.Record{reordered}, makeMessages(1, 6)...), 5)
	require.NoError(t, err)
	assert.Equal(t, SyncAppend, res.Path)
	assert.Equal(t, 7, res.Index.MessageCount)
}

func TestSaveTail_MigratesLegacy(t *testing.T) {
	e := newTestEngine(t, WithChunkSize(5))
	path := t.TempDir() + "/chat"
	msgs := makeMessages(9, 0)
	writeLegacyFile(t, path, core.NewHeader("A", "B"), msgs)

	res, err := e.SaveTail(path, nil, makeMessages(2, 9), 9)
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.Equal(t, SyncAppend, res.Path)
	assert.Equal(t, []int{5, 5, 1}, shardCounts(res.Index))

	h, err := e.ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "A", h.UserName())
	s, _ := h.Summary()
	assert.Equal(t, 11, s.MessageCount)
}

func TestSaveTail_HeaderReplacesStored(t *testing.T) {
	e := newTestEngine(t, WithChunkSize(5))
	path := t.TempDir() + "/chat"
	_, err := e.WriteFull(path, core.NewHeader("A", "B"), makeMessages(3, 0))
	require.NoError(t, err)

	res, err := e.SaveTail(path, core.NewHeader("A", "C"), makeMessages(1, 3), 3)
	require.NoError(t, err)
	assert.Equal(t, SyncAppend, res.Path)

	h, err := e.ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "C", h.CharacterName())
	s, _ := h.Summary()
	assert.Equal(t, core.Summary{MessageCount: 4, LastMes: baseSendDate + 3000, LastMessage: "message 3"}, s)
}

// The append-only path must leave exactly the bytes the truncate-and-append
// path would have produced.
func TestSaveTail_FastPathMatchesSlowPath(t *testing.T) {
	tests := []struct {
		name   string
		stored int
		before int
		tail   []*core.Record
	}{
		{
			name:   "appending after an unchanged tail",
			stored: 12,
			before: 10,
			tail:   append(makeMessages(2, 10), makeMessages(3, 12)...),
		},
		{
			name:   "appending at the end",
			stored: 10,
			before: 10,
			tail:   makeMessages(4, 10),
		},
		{
			name:   "resending the unchanged tail",
			stored: 8,
			before: 3,
			tail:   makeMessages(5, 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func(opts ...Option) (map[string]string, SyncPath) {
				dir := t.TempDir()
				e := newTestEngine(t, append([]Option{WithChunkSize(5)}, opts...)...)
				path := dir + "/chat"
				_, err := e.WriteFull(path, core.NewHeader("A", "B"), makeMessages(tt.stored, 0))
				require.NoError(t, err)

				res, err := e.SaveTail(path, nil, tt.tail, tt.before)
				require.NoError(t, err)
				return snapshotFiles(t, dir), res.Path
			}

			fast, fastPath := run()
			slow, slowPath := run(WithCompareLimit(0))

			if tt.stored != tt.before {
				assert.Equal(t, SyncRewrite, slowPath)
			}
			assert.Equal(t, SyncAppend, fastPath)
			assert.Equal(t, slow, fast)
		})
	}
}

func TestSaveTail_StructuralMatchKeepsNonCanonicalLines(t *testing.T) {
	spaced := func(i int) string {
		return fmt.Sprintf(`{"name": "speaker-%d", "is_user": %t, "send_date": %d, "mes": "message %d"}`,
			i%2, i%2 == 0, baseSendDate+int64(i)*1000, i)
	}

	run := func(opts ...Option) (string, SyncPath) {
		dir := t.TempDir()
		path := dir + "/chat"
		header, err := core.EncodeRecord(core.NewHeader("A", "B"))
		require.NoError(t, err)
		lines := []string{string(header), spaced(0), spaced(1), spaced(2)}
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

		e := newTestEngine(t, append([]Option{WithChunkSize(5)}, opts...)...)
		tail := []*core.Record{core.DecodeRecord([]byte(spaced(1))), core.DecodeRecord([]byte(spaced(2)))}
		res, err := e.SaveTail(path, nil, append(tail, makeMessages(1, 3)...), 1)
		require.NoError(t, err)

		_, all, err := e.ReadAll(path)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "message 3", all[3].Mes())

		data, err := os.ReadFile(ShardPath(path, 0))
		require.NoError(t, err)
		return string(data), res.Path
	}

	fast, fastPath := run()
	slow, slowPath := run(WithCompareLimit(0))

	assert.Equal(t, SyncAppend, fastPath)
	assert.Equal(t, SyncRewrite, slowPath)
	assert.Contains(t, fast, `"name": "speaker-1"`)
	assert.NotContains(t, slow, `"name": "speaker-1"`)
	assert.Contains(t, slow, `"name": "speaker-0"`, "records before the tail keep their bytes")
	assert.NotEqual(t, slow, fast)
}
