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

// Package storage provides the storage abstraction layer for takeout.
//
// This package defines the interfaces the ingestion pipeline, the index builder
// and the CLI use to reach the document store, so that the backend can be
// swapped without touching business logic.
//
// # Architecture
//
//   - DocumentStore: the table-bound boundary the pipeline inserts into
//   - DocumentRepository: reads over stored documents and table schemas
//   - ChunkRepository: the embedding index (chunk text plus vector)
//   - CheckpointRepository: resume cursors keyed by source
//   - RunRepository: the log of finished ingestion runs
//
// # Usage
//
//	repo, err := badger.NewRepository("/path/to/db", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
//	store, err := repo.Table("doc_search.all_documents", nil)
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryRepository(nil)
//
// # Serialization
//
// Values are encoded as deterministic CBOR. Fields tagged `cbor:"-"` (such as
// StoredRecord.StagedPath) are never persisted.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
