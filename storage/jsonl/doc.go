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

// Package jsonl implements the on-disk conversation engine.
//
// A conversation is addressed by the path of its primary file. It is stored
// either in legacy form (one file: header line, then one message per line)
// or in chunked form (a placeholder primary file, a header sidecar, an index
// sidecar and a directory of fixed-size shards). Legacy conversations are
// migrated to chunked form the first time a chunk-aware write touches them;
// they never revert.
//
// # Writes
//
// Whole-file writes (primary file, sidecars, rewritten shards) are staged in
// a temporary file in the same directory and renamed into place. Appends to
// the last shard are plain appends. The index sidecar is a cache: EnsureIndex
// rebuilds it from the shards whenever it is missing or disagrees with them.
//
// # Index snapshots
//
// Every mutating operation takes a *core.ChatIndex and returns a new one.
// The argument is never modified, so callers thread the returned snapshot
// into the next call.
//
// # Concurrency
//
// The engine does not lock. Callers serialize writers per conversation;
// readers may run concurrently with each other.
//
// # Usage
//
//	engine, err := jsonl.New(jsonl.WithChunkSize(300))
//	if err != nil {
//	    return err
//	}
//	res, err := engine.SaveTail(path, header, tail, before)
package jsonl
