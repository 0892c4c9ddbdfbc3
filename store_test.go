package chatshard

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/chatshard/config"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/notify"
	"github.com/poiesic/chatshard/reindex"
	"github.com/poiesic/chatshard/storage"
	"github.com/poiesic/chatshard/storage/jsonl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backupCall struct {
	dir  string
	name string
	data []byte
}

type fakeBackups struct {
	mu    sync.Mutex
	calls []backupCall
}

func (f *fakeBackups) Backup(directory, name string, serialized []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, backupCall{directory, name, serialized})
	return nil
}

func (f *fakeBackups) snapshot() []backupCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backupCall(nil), f.calls...)
}

type fakeActivity struct {
	mu     sync.Mutex
	kinds  []string
	infos  []storage.ActivityInfo
	owners []string
}

func (f *fakeActivity) RecordActivity(ownerID, kind string, info storage.ActivityInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners = append(f.owners, ownerID)
	f.kinds = append(f.kinds, kind)
	f.infos = append(f.infos, info)
}

func messages(n, offset int) []*core.Record {
	msgs := make([]*core.Record, n)
	for i := range msgs {
		pos := offset + i
		msgs[i] = core.NewMessage(fmt.Sprintf("speaker-%d", pos%2), pos%2 == 0, 1700000000000+int64(pos)*1000, fmt.Sprintf("message %d", pos))
	}
	return msgs
}

func newTestStore(t *testing.T, cfgOpts []config.ConfigOption, opts ...StoreOption) (*Store, *fakeBackups) {
	t.Helper()
	backups := &fakeBackups{}
	cfg := config.NewConfig(append([]config.ConfigOption{
		config.WithRoot(t.TempDir()),
		config.WithChunkSize(200),
		config.WithPoolSize(2),
	}, cfgOpts...)...)

	throttle, err := notify.NewThrottle(time.Hour)
	require.NoError(t, err)

	store, err := NewStore(cfg, append([]StoreOption{WithBackupSink(backups), WithThrottle(throttle)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, backups
}

func TestNewStore_InvalidConfig(t *testing.T) {
	_, err := NewStore(config.NewConfig(config.WithRoot("")))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestStore_SaveAndRead(t *testing.T) {
	store, _ := newTestStore(t, nil)
	header := core.NewHeader("Alice", "Seraphina")

	res, err := store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Header: header, Messages: messages(450, 0)})
	require.NoError(t, err)
	assert.Equal(t, jsonl.SyncFull, res.Sync)
	assert.Equal(t, 450, res.Summary.MessageCount)
	assert.NotEmpty(t, res.Integrity, "new conversations get an integrity tag")

	res, err = store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Messages: messages(2, 450), Before: 450})
	require.NoError(t, err)
	assert.Equal(t, jsonl.SyncAppend, res.Sync)
	assert.Equal(t, 2, res.Appended)
	assert.Empty(t, res.Integrity)

	stored, msgs, err := store.Read("alice", "chat.jsonl")
	require.NoError(t, err)
	require.Len(t, msgs, 452)
	assert.Equal(t, "message 451", msgs[451].Mes())
	assert.Equal(t, "Seraphina", stored.CharacterName())

	format, err := store.Engine().DetectFormat(res.Path)
	require.NoError(t, err)
	assert.Equal(t, []int{200, 200, 52}, []int{
		format.Index.Shards[0].Count, format.Index.Shards[1].Count, format.Index.Shards[2].Count,
	})

	summary, err := store.Summary("alice", "chat.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 452, summary.MessageCount)
	assert.Equal(t, "message 451", summary.LastMessage)

	info, err := os.Stat(res.Path)
	require.NoError(t, err)
	cached, ok, err := store.cache.Get(res.Path, storage.TokenFromInfo(info))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, summary, cached)

	page, err := store.ReadTail("alice", "chat.jsonl", 10, nil)
	require.NoError(t, err)
	assert.Len(t, page.Lines, 10)
	assert.True(t, page.HasMore)
	assert.Equal(t, int64(442), page.Cursor)
}

func TestStore_Integrity(t *testing.T) {
	store, _ := newTestStore(t, []config.ConfigOption{config.WithEnforceIntegrity(true)})

	res, err := store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Header: core.NewHeader("A", "B"), Messages: messages(3, 0)})
	require.NoError(t, err)
	tag := res.Integrity
	require.NotEmpty(t, tag)

	stale := core.NewHeader("A", "B")
	require.NoError(t, stale.SetIntegrity("someone-else"))

	_, err = store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Header: stale, Messages: messages(5, 0)})
	assert.ErrorIs(t, err, storage.ErrIntegrityMismatch)

	_, msgs, err := store.Read("alice", "chat.jsonl")
	require.NoError(t, err)
	assert.Len(t, msgs, 3, "rejected saves write nothing")

	t.Run("untagged header keeps stored tag", func(t *testing.T) {
		res, err := store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Header: core.NewHeader("A", "B"), Messages: messages(4, 0)})
		require.NoError(t, err)
		assert.Equal(t, tag, res.Integrity)
	})

	t.Run("force overrides", func(t *testing.T) {
		res, err := store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Header: stale, Messages: messages(5, 0), Force: true})
		require.NoError(t, err)
		assert.Equal(t, "someone-else", res.Integrity)

		header, err := store.Header("alice", "chat.jsonl")
		require.NoError(t, err)
		assert.Equal(t, "someone-else", header.Integrity())
	})
}

func TestStore_LegacyMode(t *testing.T) {
	store, _ := newTestStore(t, []config.ConfigOption{config.WithChunking(false)})

	res, err := store.Save(SaveRequest{Owner: "bob", Name: "old.jsonl", Header: core.NewHeader("Bob", "C"), Messages: messages(5, 0)})
	require.NoError(t, err)

	_, err = os.Stat(jsonl.ChunkDir(res.Path))
	assert.True(t, os.IsNotExist(err))

	replacement := messages(3, 3)
	replacement[0] = core.NewMessage("speaker-1", false, 1, "edited")
	res, err = store.Save(SaveRequest{Owner: "bob", Name: "old.jsonl", Messages: replacement, Before: 3})
	require.NoError(t, err)
	assert.Equal(t, jsonl.SyncRewrite, res.Sync)
	assert.Equal(t, 6, res.Summary.MessageCount)

	format, err := store.Engine().DetectFormat(res.Path)
	require.NoError(t, err)
	assert.Equal(t, jsonl.FormatLegacy, format.Kind)

	_, msgs, err := store.Read("bob", "old.jsonl")
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	assert.Equal(t, "message 2", msgs[2].Mes())
	assert.Equal(t, "edited", msgs[3].Mes())

	header, err := store.Header("bob", "old.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "Bob", header.UserName())
	assert.NotEmpty(t, header.Integrity())
}

func TestStore_SideEffects(t *testing.T) {
	activity := &fakeActivity{}
	store, backups := newTestStore(t, nil, WithActivitySink(activity))

	_, err := store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Header: core.NewHeader("A", "B"), Messages: messages(2, 0)})
	require.NoError(t, err)
	_, err = store.Save(SaveRequest{Owner: "alice", Name: "chat.jsonl", Messages: messages(1, 2), Before: 2})
	require.NoError(t, err)
	store.activity.Wait()

	activity.mu.Lock()
	assert.Equal(t, []string{"alice", "alice"}, activity.owners)
	assert.Equal(t, []string{ActivityCharacter, ActivityUser}, activity.kinds)
	assert.Equal(t, storage.ActivityInfo{SpeakerName: "speaker-0", ConversationName: "chat.jsonl"}, activity.infos[1])
	activity.mu.Unlock()

	calls := backups.snapshot()
	require.Len(t, calls, 1, "second save falls inside the throttle window")
	assert.Equal(t, "chat.jsonl", calls[0].name)
	assert.Equal(t, filepath.Join(store.Config().Root, ".backups", "alice"), calls[0].dir)

	store.throttle.Flush()
	calls = backups.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, 4, bytes.Count(calls[1].data, []byte("\n")), "trailing backup sees the latest state")
}

func TestStore_Lifecycle(t *testing.T) {
	store, _ := newTestStore(t, nil)

	for _, name := range []string{"a.jsonl", "b.jsonl"} {
		_, err := store.Save(SaveRequest{Owner: "carol", Name: name, Header: core.NewHeader("C", "D"), Messages: messages(3, 0)})
		require.NoError(t, err)
	}

	names, err := store.List("carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonl", "b.jsonl"}, names)

	require.NoError(t, store.Rename("carol", "a.jsonl", "c.jsonl"))
	assert.ErrorIs(t, store.Rename("carol", "b.jsonl", "c.jsonl"), storage.ErrAlreadyExists)

	exported, err := store.Export("carol", "c.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 4, bytes.Count(exported, []byte("\n")))

	require.NoError(t, store.Delete("carol", "b.jsonl"))
	names, err = store.List("carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.jsonl"}, names)

	_, err = store.Summary("carol", "b.jsonl")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Path("carol", "../escape.jsonl")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestStore_SearchAndReindex(t *testing.T) {
	store, _ := newTestStore(t, nil)
	_, err := store.Save(SaveRequest{Owner: "dave", Name: "dragons.jsonl", Header: core.NewHeader("D", "E"), Messages: []*core.Record{
		core.NewMessage("D", true, 1700000000000, "a red dragon"),
	}})
	require.NoError(t, err)

	legacy, err := store.Path("dave", "legacy.jsonl")
	require.NoError(t, err)
	require.NoError(t, store.Engine().WriteLegacy(legacy, core.NewHeader("D", "E"), messages(3, 0)))

	hits, err := store.Search(context.Background(), "dave", "dragon")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "dragons.jsonl", hits[0].Name)

	var progress bytes.Buffer
	r, err := store.NewReindexer(nil, &progress)
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 1, report.Verified)

	migrated, err := store.Migrate("dave", "legacy.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 3, migrated.MessageCount)

	// A rebuild starts from an empty summary cache.
	_, err = store.Summary("dave", "dragons.jsonl")
	require.NoError(t, err)
	path, err := store.Path("dave", "dragons.jsonl")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	_, cached, err := store.cache.Get(path, storage.TokenFromInfo(info))
	require.NoError(t, err)
	require.True(t, cached)

	cfg := reindex.DefaultConfig()
	cfg.Rebuild = true
	_, err = store.NewReindexer(cfg, nil)
	require.NoError(t, err)
	_, cached, err = store.cache.Get(path, storage.TokenFromInfo(info))
	require.NoError(t, err)
	assert.False(t, cached)
}
