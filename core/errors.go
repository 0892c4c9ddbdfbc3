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

import "errors"

// Domain validation errors
var (
	// ErrMalformedRecord indicates a line could not be decoded as a record.
	// Readers skip such lines instead of failing.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrEncodeFailed indicates a record could not be serialized.
	ErrEncodeFailed = errors.New("record encoding failed")

	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidIndex indicates a chat index violates its invariants.
	ErrInvalidIndex = errors.New("invalid chat index")

	// ErrUnsupportedIndexVersion indicates an index sidecar written by a newer format.
	ErrUnsupportedIndexVersion = errors.New("unsupported index version")

	// ErrNilHeader indicates a header was required but not supplied.
	ErrNilHeader = errors.New("header cannot be nil")
)
