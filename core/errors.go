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
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyContent indicates the DocumentText field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrInvalidStoredRecord indicates a StoredRecord failed validation.
	ErrInvalidStoredRecord = errors.New("invalid stored record")

	// ErrInvalidTimestamp indicates a timestamp could not be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// ErrSystemFailure marks failures of the environment rather than of a record:
// an unreachable backend, an unwritable staging directory, a closed store.
// Components wrap it so the pipeline can stop a batch instead of counting
// the same outage against every remaining record.
var ErrSystemFailure = errors.New("system failure")
