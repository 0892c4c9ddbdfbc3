package core

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Well-known record fields.
const (
	FieldName          = "name"
	FieldIsUser        = "is_user"
	FieldSendDate      = "send_date"
	FieldMes           = "mes"
	FieldUserName      = "user_name"
	FieldCharacterName = "character_name"
	FieldCreateDate    = "create_date"
	FieldChatMetadata  = "chat_metadata"
	FieldIntegrity     = "integrity"
	FieldChatSummary   = "chat_summary"
)

// Record is one line of a transcript: either a message or the conversation header.
// Fields are kept as raw JSON in their original order so that unknown fields
// survive a decode/encode cycle untouched.
type Record struct {
	fields *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, json.RawMessage]()}
}

// NewMessage creates a message record with the conventional fields set.
func NewMessage(name string, isUser bool, sendDate int64, mes string) *Record {
	r := NewRecord()
	_ = r.Set(FieldName, name)
	_ = r.Set(FieldIsUser, isUser)
	_ = r.Set(FieldSendDate, sendDate)
	_ = r.Set(FieldMes, mes)
	return r
}

// NewHeader creates a conversation header for the given participants.
func NewHeader(userName, characterName string) *Record {
	r := NewRecord()
	_ = r.Set(FieldUserName, userName)
	_ = r.Set(FieldCharacterName, characterName)
	return r
}

// Get returns the raw JSON value stored under key.
func (r *Record) Get(key string) (json.RawMessage, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set marshals v and stores it under key. Existing keys keep their position.
func (r *Record) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	r.SetRaw(key, raw)
	return nil
}

// SetRaw stores an already encoded JSON value under key.
func (r *Record) SetRaw(key string, raw json.RawMessage) {
	if r.fields == nil {
		r.fields = orderedmap.New[string, json.RawMessage]()
	}
	r.fields.Set(key, raw)
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	if r == nil || r.fields == nil {
		return
	}
	r.fields.Delete(key)
}

// Keys returns the field names in stored order.
func (r *Record) Keys() []string {
	if r == nil || r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := NewRecord()
	if r == nil || r.fields == nil {
		return out
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		raw := make(json.RawMessage, len(pair.Value))
		copy(raw, pair.Value)
		out.fields.Set(pair.Key, raw)
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.fields == nil {
		return []byte("{}"), nil
	}
	return r.fields.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields := orderedmap.New[string, json.RawMessage]()
	if err := fields.UnmarshalJSON(data); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

func (r *Record) stringField(key string) string {
	raw, ok := r.Get(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Name returns the speaker name of a message.
func (r *Record) Name() string {
	return r.stringField(FieldName)
}

// Mes returns the message text.
func (r *Record) Mes() string {
	return r.stringField(FieldMes)
}

// IsUser reports whether the message was sent by the primary speaker.
func (r *Record) IsUser() bool {
	raw, ok := r.Get(FieldIsUser)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// SendDate returns the normalized send timestamp in epoch milliseconds,
// or 0 when the field is missing or unparseable.
func (r *Record) SendDate() int64 {
	raw, ok := r.Get(FieldSendDate)
	if !ok {
		return 0
	}
	ms, ok := ParseSendDate(raw)
	if !ok {
		return 0
	}
	return ms
}

// UserName returns the header's user participant name.
func (r *Record) UserName() string {
	return r.stringField(FieldUserName)
}

// CharacterName returns the header's character participant name.
func (r *Record) CharacterName() string {
	return r.stringField(FieldCharacterName)
}

// IsHeader reports whether the record looks like a conversation header:
// it carries participant names and no per-message speaker name.
func (r *Record) IsHeader() bool {
	if r == nil {
		return false
	}
	return (r.Has(FieldUserName) || r.Has(FieldCharacterName)) && !r.Has(FieldName)
}

// Integrity returns the header's integrity tag, if any.
func (r *Record) Integrity() string {
	raw, ok := r.Get(FieldChatMetadata)
	if !ok {
		return ""
	}
	var meta struct {
		Integrity string `json:"integrity"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return meta.Integrity
}

// SetIntegrity stores tag in the header's chat_metadata object, preserving
// the other metadata fields and their order.
func (r *Record) SetIntegrity(tag string) error {
	meta := NewRecord()
	if raw, ok := r.Get(FieldChatMetadata); ok {
		if err := meta.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("decode chat metadata: %w", err)
		}
	}
	if err := meta.Set(FieldIntegrity, tag); err != nil {
		return err
	}
	raw, err := meta.MarshalJSON()
	if err != nil {
		return err
	}
	r.SetRaw(FieldChatMetadata, raw)
	return nil
}

// Summary is the conversation-level digest maintained by the store.
type Summary struct {
	MessageCount int    `json:"message_count"`
	LastMes      int64  `json:"last_mes"`
	LastMessage  string `json:"last_message"`
}

// Summary returns the header's embedded summary block.
func (r *Record) Summary() (Summary, bool) {
	raw, ok := r.Get(FieldChatSummary)
	if !ok {
		return Summary{}, false
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, false
	}
	return s, true
}

// SetSummary replaces the header's summary block.
func (r *Record) SetSummary(s Summary) error {
	return r.Set(FieldChatSummary, s)
}

// UpdateSummary sets the header's summary block from the message count and
// the last message. A nil last message clears the last_* fields.
func UpdateSummary(header *Record, messageCount int, last *Record) error {
	s := Summary{MessageCount: messageCount}
	if last != nil {
		s.LastMes = last.SendDate()
		s.LastMessage = last.Mes()
	}
	return header.SetSummary(s)
}

// IndexVersion is the current chat index format version.
const IndexVersion = 1

// ShardEntry describes one shard file in the chat index.
type ShardEntry struct {
	File        string `json:"file"`
	Count       int    `json:"count"`
	Size        int64  `json:"size"`
	LastMes     int64  `json:"last_mes"`
	LastMessage string `json:"last_message"`
}

// ChatIndex summarizes a chunked conversation without reading its shards.
// Values are treated as immutable snapshots: mutating operations return a new index.
type ChatIndex struct {
	Version      int          `json:"version"`
	ChunkSize    int          `json:"chunk_size"`
	MessageCount int          `json:"message_count"`
	LastMes      int64        `json:"last_mes"`
	LastMessage  string       `json:"last_message"`
	TotalBytes   int64        `json:"total_bytes"`
	Shards       []ShardEntry `json:"shards"`
}

// NewChatIndex returns an empty index for the given chunk size.
func NewChatIndex(chunkSize int) *ChatIndex {
	return &ChatIndex{
		Version:   IndexVersion,
		ChunkSize: chunkSize,
		Shards:    []ShardEntry{},
	}
}

// Clone returns a deep copy of the index.
func (idx *ChatIndex) Clone() *ChatIndex {
	out := *idx
	out.Shards = make([]ShardEntry, len(idx.Shards))
	copy(out.Shards, idx.Shards)
	return &out
}

// Recompute derives the totals and last-message fields from the shard list.
func (idx *ChatIndex) Recompute() {
	idx.MessageCount = 0
	idx.TotalBytes = 0
	idx.LastMes = 0
	idx.LastMessage = ""
	for _, s := range idx.Shards {
		idx.MessageCount += s.Count
		idx.TotalBytes += s.Size
		if s.Count > 0 {
			idx.LastMes = s.LastMes
			idx.LastMessage = s.LastMessage
		}
	}
	if idx.Shards == nil {
		idx.Shards = []ShardEntry{}
	}
}

// Summary returns the index totals as a Summary.
func (idx *ChatIndex) Summary() Summary {
	return Summary{
		MessageCount: idx.MessageCount,
		LastMes:      idx.LastMes,
		LastMessage:  idx.LastMessage,
	}
}

// ShardStart returns the message position of the first record in shard i.
func (idx *ChatIndex) ShardStart(i int) int {
	start := 0
	for j := 0; j < i && j < len(idx.Shards); j++ {
		start += idx.Shards[j].Count
	}
	return start
}

// Checkpoint records how far a bulk maintenance task has progressed so an
// interrupted run can resume. Conversations are visited in path order;
// everything up to and including LastPath is done.
type Checkpoint struct {
	Task      string    `json:"task"`
	LastPath  string    `json:"last_path"`
	Processed int       `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
}
