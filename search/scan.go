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

package search

import (
	"path/filepath"
	"strings"

	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage/jsonl"
)

// ScanResult is what one pass over a conversation found.
type ScanResult struct {
	MessageCount int
	LastMessage  string
	LastMesDate  int64
	Matches      map[string]bool
}

// Scan streams every message of the conversation at path and records which
// fragments occur in any message text. Fragments are expected in lowercase.
// A missing conversation yields an empty result.
func Scan(engine *jsonl.Engine, path string, fragments []string) (*ScanResult, error) {
	result := &ScanResult{Matches: make(map[string]bool, len(fragments))}

	err := engine.EachMessage(path, func(line []byte) error {
		mes := core.LineMes(line)
		result.MessageCount++
		result.LastMessage = mes
		result.LastMesDate = core.LineSendDate(line)

		if len(result.Matches) == len(fragments) {
			return nil
		}
		lower := strings.ToLower(mes)
		for _, fragment := range fragments {
			if !result.Matches[fragment] && strings.Contains(lower, fragment) {
				result.Matches[fragment] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Matched reports whether every fragment was found in the transcript or in
// fileName. An empty fragment list matches everything.
func Matched(result *ScanResult, fragments []string, fileName string) bool {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)))
	for _, fragment := range fragments {
		if result.Matches[fragment] {
			continue
		}
		if strings.Contains(name, fragment) {
			continue
		}
		return false
	}
	return true
}
