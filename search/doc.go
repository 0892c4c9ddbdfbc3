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

// Package search finds conversations containing query fragments without
// building a persistent index.
//
// Scan streams every message of one conversation, legacy or chunked, and
// records which fragments occur anywhere in its text. A conversation matches
// a query only when every fragment occurs somewhere in it; a fragment found in
// the conversation's file name also counts.
//
// The Searcher type scans every conversation in a directory on a worker pool
// and ranks matches by the time of their last message, newest first.
package search
