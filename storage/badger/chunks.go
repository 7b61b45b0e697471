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

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns all resources.
func (r *ChunkRepository) Close() error {
	return nil
}

// ReplaceChunks replaces every chunk of document id in table with chunks.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, table string, id core.ID, chunks []*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range prefixKeys(tx, makeDocumentChunkKey(table, id)) {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		for i, chunk := range chunks {
			chunk.DocumentId = id
			chunk.Index = i
			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(table, id, i), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountChunks returns the number of chunks indexed for table.
func (r *ChunkRepository) CountChunks(ctx context.Context, table string) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		n = countPrefix(tx, makePartialChunkKey(table))
		return nil
	}, false)
	return n, err
}

// FindSimilar finds chunks of table similar to the given vector.
func (r *ChunkRepository) FindSimilar(ctx context.Context, table string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit %d", storage.ErrInvalidQuery, limit)
	}

	var results []*core.SearchResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkKey(table)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			// Skip chunks without embeddings
			if len(chunk.Vector) == 0 {
				continue
			}

			// Calculate cosine similarity (dot product for normalized vectors)
			similarity := dotProduct(vector, chunk.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Chunk: chunk,
					Score: similarity,
				})
			}
		}

		// Sort by similarity descending
		slices.SortFunc(results, func(a, b *core.SearchResult) int {
			if a.Score > b.Score {
				return -1
			}
			if a.Score < b.Score {
				return 1
			}
			return 0
		})
		if len(results) > limit {
			results = results[:limit]
		}

		// Attach documents
		docs := make(map[core.ID]*core.Document)
		for _, result := range results {
			id := result.Chunk.DocumentId
			doc, ok := docs[id]
			if !ok {
				var err error
				doc, err = readDocument(tx, id)
				if err != nil {
					return err
				}
				docs[id] = doc
			}
			result.Document = doc
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return results, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := range n {
		sum += a[i] * b[i]
	}
	return sum
}
