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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/poiesic/chatshard"
	"github.com/poiesic/chatshard/config"
	"github.com/poiesic/chatshard/search"
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// logMonitor logs each scanned conversation at debug level.
type logMonitor struct {
	scanned atomic.Int64
	failed  atomic.Int64
}

func (m *logMonitor) Start(dir string, fragments []string) {
	slog.Info("searching", "dir", dir, "fragments", fragments)
}

func (m *logMonitor) Scanned(path string, result *search.ScanResult, err error) {
	m.scanned.Add(1)
	if err != nil {
		m.failed.Add(1)
		slog.Warn("scan failed", "path", path, "err", err)
		return
	}
	slog.Debug("scanned", "path", path, "messages", result.MessageCount)
}

func (m *logMonitor) Finish(hits []*search.Hit) {
	slog.Info("search finished", "scanned", m.scanned.Load(), "failed", m.failed.Load(), "hits", len(hits))
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	store, err := chatshard.NewStore(cfg)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	searcher, err := store.NewSearcher()
	if err != nil {
		panic(err)
	}

	owner := "default-user"
	query := "lantern"
	if len(os.Args) > 1 {
		owner = os.Args[1]
	}
	if len(os.Args) > 2 {
		query = strings.Join(os.Args[2:], " ")
	}

	dir, err := store.OwnerDir(owner)
	if err != nil {
		panic(err)
	}
	hits, err := searcher.SearchDirWithMonitor(context.Background(), dir, query, &logMonitor{})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", len(hits))
	for i, hit := range hits {
		fmt.Printf("%d: '%s' (%d messages)[%s]\n", i, hit.Name, hit.Result.MessageCount, hit.Result.LastMessage)
	}
}
