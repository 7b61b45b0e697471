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

package reembed

import (
	"context"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
)

const (
	// DefaultBatchSize is the default number of documents to fetch in each batch
	DefaultBatchSize = 100
)

// DocumentIterator walks the documents of one table in batches.
type DocumentIterator struct {
	repo      storage.DocumentRepository
	table     string
	batchSize int
}

// NewDocumentIterator creates a new document iterator.
// A batchSize below 1 uses DefaultBatchSize.
func NewDocumentIterator(repo storage.DocumentRepository, table string, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentIterator{
		repo:      repo,
		table:     table,
		batchSize: batchSize,
	}
}

// Count returns the number of documents the iterator will visit.
func (it *DocumentIterator) Count(ctx context.Context) (int, error) {
	return it.repo.CountDocuments(ctx, it.table)
}

// ForEach calls fn for each batch in insertion order.
// Iteration stops on the first error from fn or when ctx ends.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return it.repo.ForEachDocument(ctx, it.table, it.batchSize, func(docs []*core.Document) error {
		if err := fn(docs); err != nil {
			return err
		}
		return ctx.Err()
	})
}
