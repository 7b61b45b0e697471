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

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
)

// TableStore implements storage.DocumentStore for one table.
type TableStore struct {
	docs  *DocumentRepository
	table string
	index *core.IndexSpec
}

var _ storage.DocumentStore = (*TableStore)(nil)

// NewTableStore binds a document store to table. index describes the embedding
// index recorded in the schema and may be nil.
func NewTableStore(docs *DocumentRepository, table string, index *core.IndexSpec) (*TableStore, error) {
	if table == "" {
		return nil, storage.ErrTableRequired
	}
	return &TableStore{
		docs:  docs,
		table: table,
		index: index,
	}, nil
}

// Table returns the table name.
func (s *TableStore) Table() string {
	return s.table
}

// EnsureSchema creates the table schema if it does not exist yet. An existing
// schema gains the configured index description when it has none.
func (s *TableStore) EnsureSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.docs.backend.WithTx(func(tx *badger.Txn) error {
		schema, err := readSchema(tx, s.table)
		if err != nil {
			return err
		}
		switch {
		case schema == nil:
			schema = core.DefaultSchema(s.table)
			schema.Index = s.index
			schema.CreatedAt = time.Now().UTC()
		case schema.Index == nil && s.index != nil:
			schema.Index = s.index
		default:
			return nil
		}

		value, err := storage.MarshalSchema(schema)
		if err != nil {
			return err
		}
		if err := tx.Set(makeSchemaKey(s.table), value); err != nil {
			return err
		}
		s.docs.backend.logger.Info("table schema ready", "table", s.table, "indexed", schema.Index != nil)
		return tx.Commit()
	}, true)
}

// Insert reads the staged document referenced by record and stores it as a new row.
// A missing schema or a backend failure wraps core.ErrSystemFailure; an unreadable
// blob is a failure of the record alone.
func (s *TableStore) Insert(ctx context.Context, record *core.StoredRecord) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateStoredRecord(record); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(record.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrDocumentUnreadable, err)
	}

	doc := &core.Document{
		Table:       s.table,
		Title:       documentTitle(record),
		Content:     string(content),
		Metadata:    record.Metadata,
		IngestedAt:  record.IngestedAt,
		ContentHash: core.IDFromBytes(content),
	}

	err = s.docs.backend.WithTx(func(tx *badger.Txn) error {
		schema, err := readSchema(tx, s.table)
		if err != nil {
			return err
		}
		if schema == nil {
			return fmt.Errorf("%w: %s", storage.ErrSchemaMissing, s.table)
		}

		id, err := s.docs.nextID()
		if err != nil {
			return err
		}
		doc.Id = id
		doc.InsertedAt = time.Now().UTC()

		if err := s.docs.putDocument(tx, doc); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		if errors.Is(err, core.ErrSystemFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: insert into %s: %w", core.ErrSystemFailure, s.table, err)
	}
	return doc, nil
}

// documentTitle takes the title from the record metadata, falling back to the
// blob's file name.
func documentTitle(record *core.StoredRecord) string {
	var meta map[string]any
	if err := json.Unmarshal([]byte(record.Metadata), &meta); err == nil {
		if title, ok := meta["title"].(string); ok && title != "" {
			return title
		}
	}
	return filepath.Base(record.Document)
}
