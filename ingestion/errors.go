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

package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a document store is not provided.
	ErrStoreRequired = errors.New("document store required")

	// ErrParserRequired is returned when a parser is not provided.
	ErrParserRequired = errors.New("parser required")

	// ErrTransformerRequired is returned when a transformer is not provided.
	ErrTransformerRequired = errors.New("transformer required")

	// ErrIndexerRequired is returned when a nil indexer is configured.
	ErrIndexerRequired = errors.New("indexer required")

	// ErrInvalidBatchSize is returned when the batch size is below 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrBackendUnavailable is returned when the document store cannot be prepared.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrCancelled is returned when the context ends before the run finishes.
	ErrCancelled = errors.New("ingestion cancelled")

	// ErrAlreadyRunning is returned when Ingest is called while a run is active.
	ErrAlreadyRunning = errors.New("ingestion already running")

	// ErrNotRunning is returned by Pause and Resume when no run is active.
	ErrNotRunning = errors.New("no ingestion running")

	// ErrPipelineClosed is returned when the pipeline is used after Cleanup.
	ErrPipelineClosed = errors.New("pipeline closed")
)
