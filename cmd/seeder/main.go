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

package main

import (
	"bufio"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/storage/jsonl"
)

var sentences = []string{
	"The lighthouse keeper logged every ship that passed after midnight.",
	"Bring the brass lantern, the cellar stairs are dark.",
	"I found the map folded inside the cookbook.",
	"The tide tables say we have until four o'clock.",
	"She tuned the radio until the static turned into a waltz.",
	"Do you remember the name of the inn by the river?",
	"The train was late again, so I walked along the tracks.",
	"Someone left fresh bread on the doorstep this morning.",
	"The old clock in the hall chimed thirteen times.",
	"We should write down the route before we forget it.",
	"The fog rolled in before we reached the harbor.",
	"He carved the initials into the oak beam above the door.",
	"Rain again. The garden will be grateful.",
	"The library closes early on market days.",
	"I think the cat has been sleeping in the piano.",
	"The letter was postmarked from a town that no longer exists.",
	"Keep the window open, the kiln is still hot.",
	"The ferry schedule changed without any notice.",
	"She laughed and said the recipe was never written down.",
	"The compass needle kept drifting toward the north tower.",
	"Let's meet at the bridge when the bells ring.",
	"The snow muffled every footstep on the square.",
	"Our supplies will last until the end of the week.",
	"Nobody has opened that trunk since the storm.",
}

var (
	rootDir  = flag.String("root", "./chats", "conversation root directory")
	owners   = flag.Int("owners", 2, "number of owners to create")
	chats    = flag.Int("chats", 3, "conversations per owner")
	messages = flag.Int("messages", 650, "messages per conversation")
	srcFile  = flag.String("src", "", "file of seed lines (one message per line)")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// cycle repeats a finite source so any number of messages can be drawn from it.
func cycle(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if len(lines) == 0 {
			return
		}
		for i := 0; ; i++ {
			if !yield(lines[i%len(lines)]) {
				return
			}
		}
	}
}

// buildConversation alternates speakers, one minute apart, ending at end.
func buildConversation(user, character string, source iter.Seq[string], count int, end time.Time) (*core.Record, []*core.Record) {
	header := core.NewHeader(user, character)
	_ = header.Set(core.FieldCreateDate, core.FormatHumanized(end.Add(-time.Duration(count)*time.Minute)))
	_ = header.SetIntegrity(uuid.NewString())

	records := make([]*core.Record, 0, count)
	for text := range source {
		if len(records) == count {
			break
		}
		i := len(records)
		sent := end.Add(-time.Duration(count-i) * time.Minute)
		isUser := i%2 == 0
		name := character
		if isUser {
			name = user
		}
		records = append(records, core.NewMessage(name, isUser, sent.UnixMilli(), text))
	}
	return header, records
}

func main() {
	engine, err := jsonl.New()
	if err != nil {
		panic(err)
	}

	// Determine source of seed data
	source := linesFromSlice(sentences)
	if *srcFile != "" {
		source, err = linesFromFile(*srcFile)
		if err != nil {
			panic(err)
		}
	}
	lines := slices.Collect(source)

	now := time.Now()
	for o := 0; o < *owners; o++ {
		owner := fmt.Sprintf("user-%02d", o+1)
		dir := filepath.Join(*rootDir, owner)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			panic(err)
		}
		for c := 0; c < *chats; c++ {
			character := fmt.Sprintf("Character %d", c+1)
			header, records := buildConversation(owner, character, cycle(lines), *messages, now.Add(-time.Duration(c)*time.Hour))
			path := filepath.Join(dir, fmt.Sprintf("%s - %s.jsonl", character, now.Format("2006-01-02@15h04m05s")))
			if err := engine.WriteLegacy(path, header, records); err != nil {
				panic(err)
			}
			slog.Info("seeded conversation", "owner", owner, "path", path, "messages", len(records))
		}
	}
}
