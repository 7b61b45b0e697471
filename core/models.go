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

import (
	"encoding/binary"
	"maps"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// IDFromBytes is IDFromContent for raw file contents.
func IDFromBytes(data []byte) ID {
	h, _ := blake2b.New(8, nil)
	h.Write(data)
	return ID(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// Metadata holds scalar (or nil) values describing where a record came from.
type Metadata map[string]any

// Clone returns a shallow copy. Values are scalars so a shallow copy is independent.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	return maps.Clone(m)
}

// String returns the value stored under key if it is a non-empty string.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Record is the canonical, format-independent form of one ingestible unit,
// usually one conversation. Parsers produce records; nothing mutates them afterwards.
type Record struct {
	DocumentText string
	Title        string
	Metadata     Metadata
}

// StoredRecord is a Record shaped for the document store.
type StoredRecord struct {
	Document   string // Reference to the staged document blob
	Metadata   string // JSON-encoded Record metadata
	IngestedAt string // RFC3339 timestamp of the transform

	// StagedPath is bookkeeping for the pipeline and is never persisted.
	StagedPath string `cbor:"-"`
}

// Document is a stored record as persisted by the backend, with the blob contents
// materialized.
type Document struct {
	Id          ID
	Table       string
	Title       string
	Content     string
	Metadata    string
	IngestedAt  string
	InsertedAt  time.Time
	ContentHash ID
}

// Chunk is one embedding-index entry derived from a document.
type Chunk struct {
	DocumentId ID
	Index      int
	Text       string
	Vector     []float32
}

// IndexSpec describes an embedding index attached to a table.
type IndexSpec struct {
	Column       string // Source text column, "text" for chunk text
	Model        string // Embedding model reference
	ChunkSize    int
	ChunkOverlap int
}

// Schema describes a document table.
type Schema struct {
	Table           string
	DocumentColumn  string
	MetadataColumn  string
	TimestampColumn string
	Index           *IndexSpec
	CreatedAt       time.Time
}

// DefaultSchema returns the unified document table layout for table.
func DefaultSchema(table string) *Schema {
	return &Schema{
		Table:           table,
		DocumentColumn:  "document",
		MetadataColumn:  "document_metadata",
		TimestampColumn: "ingested_at",
	}
}

// Checkpoint is the persisted resume cursor of an ingestion source.
type Checkpoint struct {
	Key       string // Source identity
	Digest    ID     // Content hash of the source when the checkpoint was written
	Cursor    int    // First record index that has never been attempted
	Failed    []int  // Record indexes below Cursor that failed and should be retried
	RunID     string
	UpdatedAt time.Time
}

// Run is a log entry describing one finished ingestion run.
type Run struct {
	ID           string
	Source       string
	Table        string
	Status       string
	Total        int
	Processed    int
	Failed       int
	Skipped      int
	StartedAt    time.Time
	FinishedAt   time.Time
	RecentErrors []string
}

// SearchResult represents a search result with the full document and relevance score.
type SearchResult struct {
	Document *Document
	Chunk    *Chunk
	Score    float32
}
