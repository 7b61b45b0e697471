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
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	if r.backend.IsClosed() {
		return nil
	}
	return r.idSeq.Release()
}

// nextID allocates a document ID.
func (r *DocumentRepository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// putDocument stores doc and its table index entry.
func (r *DocumentRepository) putDocument(tx *badger.Txn, doc *core.Document) error {
	value, err := storage.MarshalDocument(doc)
	if err != nil {
		return err
	}
	if err := tx.Set(makeDocumentKey(doc.Id), value); err != nil {
		return err
	}
	return tx.Set(makeTableKey(doc.Table, doc.Id), nil)
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	}, false)
	return result, err
}

// CountDocuments returns the number of documents stored in table.
func (r *DocumentRepository) CountDocuments(ctx context.Context, table string) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		n = countPrefix(tx, makePartialTableKey(table))
		return nil
	}, false)
	return n, err
}

// ForEachDocument calls fn with consecutive batches of table's documents in ID order.
// Each batch is read in its own transaction; fn runs outside of it.
func (r *DocumentRepository) ForEachDocument(ctx context.Context, table string, batchSize int, fn func([]*core.Document) error) error {
	if batchSize < 1 {
		return fmt.Errorf("%w: batch size %d", storage.ErrInvalidQuery, batchSize)
	}

	prefix := makePartialTableKey(table)
	seek := prefix
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			batch []*core.Document
			last  []byte
		)
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Seek(seek); iter.Valid() && len(batch) < batchSize; iter.Next() {
				key := iter.Item().KeyCopy(nil)
				doc, err := readDocument(tx, tableKeyID(key))
				if err != nil {
					return err
				}
				last = key
				if doc != nil {
					batch = append(batch, doc)
				}
			}
			return nil
		}, false)
		if err != nil {
			return err
		}

		if last == nil {
			return nil
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}
		// Resume strictly after the last key read
		seek = append(last, 0)
	}
}

// GetSchema returns the schema of table.
func (r *DocumentRepository) GetSchema(ctx context.Context, table string) (*core.Schema, error) {
	var schema *core.Schema
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		schema, err = readSchema(tx, table)
		if err != nil {
			return err
		}
		if schema == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return schema, err
}

// ListSchemas returns every table schema ordered by name.
func (r *DocumentRepository) ListSchemas(ctx context.Context) ([]*core.Schema, error) {
	var schemas []*core.Schema
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(schemaPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				schema, err := storage.UnmarshalSchema(val)
				if err != nil {
					return err
				}
				schemas = append(schemas, schema)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)

	slices.SortFunc(schemas, func(a, b *core.Schema) int {
		return strings.Compare(a.Table, b.Table)
	})
	return schemas, err
}

func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

func readSchema(tx *badger.Txn, table string) (*core.Schema, error) {
	item, err := tx.Get(makeSchemaKey(table))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var schema *core.Schema
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		schema, unmarshalErr = storage.UnmarshalSchema(val)
		return unmarshalErr
	})
	return schema, err
}
