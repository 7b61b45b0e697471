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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage/badger"
	"github.com/stretchr/testify/require"
)

const testTable = "docs"

func setupTestDB(t *testing.T, n int) *badger.Repositories {
	t.Helper()

	repos, err := badger.NewMemoryRepository(nil)
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	store, err := repos.Table(testTable, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	dir := t.TempDir()
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("doc_%d.txt", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("document number %d", i)), 0o644))
		_, err := store.Insert(ctx, &core.StoredRecord{
			Document:   path,
			Metadata:   fmt.Sprintf(`{"title":"Conversation %d"}`, i+1),
			IngestedAt: "2025-01-01T00:00:00Z",
		})
		require.NoError(t, err)
	}
	return repos
}

// countingIndexer records the documents it is asked to index.
type countingIndexer struct {
	calls int
	docs  int
	fail  func(call int, docs []*core.Document) error
}

func (c *countingIndexer) Index(ctx context.Context, docs ...*core.Document) error {
	c.calls++
	if c.fail != nil {
		if err := c.fail(c.calls, docs); err != nil {
			return err
		}
	}
	c.docs += len(docs)
	return nil
}
