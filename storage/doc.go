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

// Package storage defines the collaborator interfaces and shared errors of
// the conversation store.
//
// The on-disk engine lives in storage/jsonl. It persists each conversation
// either as a legacy single file (header line followed by one message per
// line) or in chunked form:
//
//	<name>                  placeholder primary file holding the header line
//	<name>.metadata.json    header sidecar, authoritative when present
//	<name>.index.json       chat index sidecar, always rebuildable
//	<name>.chunks/
//	  000000.jsonl
//	  000001.jsonl
//
// storage/badger provides a SummaryCache backed by BadgerDB so listing
// views can read conversation summaries without touching the files.
//
// # Collaborators
//
// The store never resolves paths, records telemetry, or schedules backups
// on its own. Those concerns are injected:
//
//   - PathResolver: owner and conversation name to file path
//   - ActivitySink: best-effort usage telemetry after a save
//   - BackupSink: receives a full serialized copy of a conversation
//   - SummaryCache: summaries keyed by path and a (size, mtime) token
//
// # Thread Safety
//
// SummaryCache implementations must be thread-safe. The file engine assumes
// one writer per conversation; readers may run concurrently.
package storage
