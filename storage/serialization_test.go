package storage

import (
	"testing"
	"time"

	"github.com/poiesic/chatshard/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
		want []byte
	}{
		{"zero ID", core.ID(0), []byte{0, 0, 0, 0, 0, 0, 0, 0}},
		{"small ID", core.ID(42), []byte{0, 0, 0, 0, 0, 0, 0, 42}},
		{"large ID", core.ID(18446744073709551615), []byte{255, 255, 255, 255, 255, 255, 255, 255}}, // max uint64
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarshalID(tt.id))
		})
	}
}

func TestMarshalID_SortsNumerically(t *testing.T) {
	a := MarshalID(core.ID(1))
	b := MarshalID(core.ID(256))
	assert.Less(t, string(a), string(b))
}

func TestMarshalUnmarshalCacheEntry(t *testing.T) {
	entry := &CacheEntry{
		Path:  "/chats/A/B.jsonl",
		Token: StatToken{Size: 120, ModTime: 1700000000000000000},
		Summary: core.Summary{
			MessageCount: 653,
			LastMes:      1700000000123,
			LastMessage:  "see you",
		},
	}

	data, err := MarshalCacheEntry(entry)
	require.NoError(t, err)

	decoded, err := UnmarshalCacheEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestUnmarshalCacheEntry_Invalid(t *testing.T) {
	_, err := UnmarshalCacheEntry(nil)
	assert.ErrorIs(t, err, ErrTruncatedData)

	_, err = UnmarshalCacheEntry([]byte("{not json"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	checkpoint := &core.Checkpoint{
		Task:      "migrate",
		LastPath:  "/chats/A/B.jsonl",
		Processed: 12,
		UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := MarshalCheckpoint(checkpoint)
	require.NoError(t, err)

	decoded, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, checkpoint, decoded)

	_, err = UnmarshalCheckpoint([]byte("nope"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
