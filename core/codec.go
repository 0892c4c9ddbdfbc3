// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"
)

// EncodeRecord serializes a record to a single line of JSON without a trailing newline.
// The same record always encodes to the same bytes.
func EncodeRecord(r *Record) ([]byte, error) {
	line, err := r.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return line, nil
}

// IsRecordLine reports whether line holds a well-formed JSON object, the
// condition under which DecodeRecord succeeds.
func IsRecordLine(line []byte) bool {
	line = bytes.TrimSpace(line)
	return len(line) > 0 && line[0] == '{' && json.Valid(line)
}

// DecodeRecord parses one line of JSON. It returns nil when the line is blank,
// malformed, or not a JSON object; callers skip nil results.
func DecodeRecord(line []byte) *Record {
	if !IsRecordLine(line) {
		return nil
	}
	line = bytes.TrimSpace(line)
	r := NewRecord()
	if err := r.UnmarshalJSON(line); err != nil {
		return nil
	}
	return r
}

// SkippedLines reports n undecodable lines as an ErrMalformedRecord, or nil
// when nothing was skipped.
func SkippedLines(n int) error {
	if n <= 0 {
		return nil
	}
	return fmt.Errorf("%w: %d lines skipped", ErrMalformedRecord, n)
}

// IsHeaderLine applies the header heuristic to a raw line without decoding it fully.
func IsHeaderLine(line []byte) bool {
	results := gjson.GetManyBytes(line, FieldUserName, FieldCharacterName, FieldName)
	return (results[0].Exists() || results[1].Exists()) && !results[2].Exists()
}

// LineMes extracts the message text from a raw line without decoding it fully.
func LineMes(line []byte) string {
	return gjson.GetBytes(line, FieldMes).String()
}

// LineSendDate extracts the normalized send date from a raw line.
func LineSendDate(line []byte) int64 {
	res := gjson.GetBytes(line, FieldSendDate)
	if !res.Exists() {
		return 0
	}
	ms, ok := ParseSendDate(json.RawMessage(res.Raw))
	if !ok {
		return 0
	}
	return ms
}

// RecordsEqual reports whether two records are structurally equal, ignoring
// field order and formatting differences. Numbers compare by value, so 1 and
// 1.0 are equal.
func RecordsEqual(a, b *Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	av, err := genericValue(a)
	if err != nil {
		return false
	}
	bv, err := genericValue(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func genericValue(r *Record) (any, error) {
	data, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
