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

import (
	"context"

	"github.com/poiesic/takeout/core"
)

// Repository provides operations shared by every repository.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentStore is the table-bound insertion boundary used by the ingestion pipeline.
type DocumentStore interface {
	// Table returns the name of the table records are inserted into.
	Table() string

	// EnsureSchema creates the table, and its index description, if absent.
	// Calling it on an existing table is a no-op.
	EnsureSchema(ctx context.Context) error

	// Insert ingests the document referenced by record and stores a row for it.
	// The referenced blob is read during the call; the caller may delete it afterwards.
	// Errors caused by the backend itself wrap core.ErrSystemFailure.
	Insert(ctx context.Context, record *core.StoredRecord) (*core.Document, error)
}

// DocumentRepository provides read access to stored documents and table schemas.
type DocumentRepository interface {
	Repository

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// CountDocuments returns the number of documents stored in table.
	CountDocuments(ctx context.Context, table string) (int, error)

	// ForEachDocument calls fn with consecutive batches of up to batchSize documents
	// of table, in insertion order. Iteration stops at the first error from fn.
	ForEachDocument(ctx context.Context, table string, batchSize int, fn func([]*core.Document) error) error

	// GetSchema returns the schema of table.
	// Returns ErrNotFound if the table doesn't exist.
	GetSchema(ctx context.Context, table string) (*core.Schema, error)

	// ListSchemas returns every table schema ordered by name.
	ListSchemas(ctx context.Context) ([]*core.Schema, error)
}

// ChunkRepository provides operations on the embedding index.
type ChunkRepository interface {
	Repository

	// ReplaceChunks replaces every chunk of document id in table with chunks.
	ReplaceChunks(ctx context.Context, table string, id core.ID, chunks []*core.Chunk) error

	// CountChunks returns the number of chunks indexed for table.
	CountChunks(ctx context.Context, table string) (int, error)

	// FindSimilar finds chunks of table similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first). Results carry their document.
	FindSimilar(ctx context.Context, table string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// CheckpointRepository persists ingestion resume cursors.
type CheckpointRepository interface {
	Repository

	// SaveCheckpoint creates or replaces the checkpoint stored under checkpoint.Key.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint stored under key.
	// Returns ErrNotFound if none exists.
	LoadCheckpoint(ctx context.Context, key string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint stored under key. Missing keys are ignored.
	DeleteCheckpoint(ctx context.Context, key string) error
}

// RunRepository persists the log of finished ingestion runs.
type RunRepository interface {
	Repository

	// SaveRun appends run to the log.
	SaveRun(ctx context.Context, run *core.Run) error

	// RecentRuns returns up to limit runs, most recently started first.
	RecentRuns(ctx context.Context, limit int) ([]*core.Run, error)
}
