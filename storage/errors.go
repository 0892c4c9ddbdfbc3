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

package storage

import "errors"

var (
	// ErrNotFound indicates that the requested conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrAlreadyExists indicates that a rename target is already present.
	ErrAlreadyExists = errors.New("conversation already exists")

	// ErrIntegrityMismatch indicates the caller's integrity tag differs from the stored one.
	ErrIntegrityMismatch = errors.New("integrity tag mismatch")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidPath indicates an empty or unusable conversation path.
	ErrInvalidPath = errors.New("invalid conversation path")

	// ErrInvalidCheckpoint indicates a checkpoint without a task name.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)
