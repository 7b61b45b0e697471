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
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageBlob(t *testing.T, content string) *core.StoredRecord {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &core.StoredRecord{
		Document:   path,
		Metadata:   `{"title":"Greeting","source_type":"conversation"}`,
		IngestedAt: "2025-01-01T00:00:00Z",
		StagedPath: path,
	}
}

func TestTableStore_EnsureSchema(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	store, err := repos.Table("doc_search.all_documents", nil)
	require.NoError(t, err)
	assert.Equal(t, "doc_search.all_documents", store.Table())

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "second call is a no-op")

	schema, err := repos.Documents.GetSchema(ctx, "doc_search.all_documents")
	require.NoError(t, err)
	assert.Equal(t, "document", schema.DocumentColumn)
	assert.Equal(t, "document_metadata", schema.MetadataColumn)
	assert.Equal(t, "ingested_at", schema.TimestampColumn)
	assert.Nil(t, schema.Index)
	assert.False(t, schema.CreatedAt.IsZero())

	// Attaching an index later updates the existing schema
	spec := &core.IndexSpec{Column: "text", Model: "embeddinggemma", ChunkSize: 1200, ChunkOverlap: 120}
	indexed, err := repos.Table("doc_search.all_documents", spec)
	require.NoError(t, err)
	require.NoError(t, indexed.EnsureSchema(ctx))

	schema, err = repos.Documents.GetSchema(ctx, "doc_search.all_documents")
	require.NoError(t, err)
	assert.Equal(t, spec, schema.Index)
}

func TestTableStore_RequiresTable(t *testing.T) {
	repos := newTestRepositories(t)
	_, err := repos.Table("", nil)
	assert.ErrorIs(t, err, storage.ErrTableRequired)
}

func TestTableStore_Insert(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	store, err := repos.Table("docs", nil)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	rec := stageBlob(t, "Human: Hi\n\nAssistant: Hello")
	doc, err := store.Insert(ctx, rec)
	require.NoError(t, err)

	assert.NotZero(t, doc.Id)
	assert.Equal(t, "docs", doc.Table)
	assert.Equal(t, "Greeting", doc.Title)
	assert.Equal(t, "Human: Hi\n\nAssistant: Hello", doc.Content)
	assert.Equal(t, rec.Metadata, doc.Metadata)
	assert.Equal(t, core.IDFromContent(doc.Content), doc.ContentHash)

	// The blob may go away once Insert has returned
	require.NoError(t, os.Remove(rec.Document))

	got, err := repos.Documents.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, got.Content)
	assert.True(t, doc.InsertedAt.Equal(got.InsertedAt))
}

func TestTableStore_InsertErrors(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	store, err := repos.Table("docs", nil)
	require.NoError(t, err)

	// No schema yet: the table is unusable for every record
	_, err = store.Insert(ctx, stageBlob(t, "text"))
	assert.ErrorIs(t, err, storage.ErrSchemaMissing)
	assert.ErrorIs(t, err, core.ErrSystemFailure)

	require.NoError(t, store.EnsureSchema(ctx))

	// Missing blob only fails this record
	rec := stageBlob(t, "text")
	require.NoError(t, os.Remove(rec.Document))
	_, err = store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDocumentUnreadable)
	assert.NotErrorIs(t, err, core.ErrSystemFailure)

	_, err = store.Insert(ctx, &core.StoredRecord{})
	assert.ErrorIs(t, err, core.ErrInvalidStoredRecord)
}

func TestTableStore_TitleFallback(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	store, err := repos.Table("docs", nil)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	rec := stageBlob(t, "body")
	rec.Metadata = "not json"
	doc, err := store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "blob.txt", doc.Title)
}

func TestDocumentRepository_CountAndIterate(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	a, err := repos.Table("a", nil)
	require.NoError(t, err)
	b, err := repos.Table("a:b", nil)
	require.NoError(t, err)
	require.NoError(t, a.EnsureSchema(ctx))
	require.NoError(t, b.EnsureSchema(ctx))

	var ids []core.ID
	for range 7 {
		doc, err := a.Insert(ctx, stageBlob(t, "a"))
		require.NoError(t, err)
		ids = append(ids, doc.Id)
	}
	_, err = b.Insert(ctx, stageBlob(t, "b"))
	require.NoError(t, err)

	n, err := repos.Documents.CountDocuments(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	n, err = repos.Documents.CountDocuments(ctx, "a:b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var batches []int
	var seen []core.ID
	err = repos.Documents.ForEachDocument(ctx, "a", 3, func(docs []*core.Document) error {
		batches = append(batches, len(docs))
		for _, d := range docs {
			seen = append(seen, d.Id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, batches)
	assert.Equal(t, ids, seen)

	err = repos.Documents.ForEachDocument(ctx, "a", 0, func([]*core.Document) error { return nil })
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	schemas, err := repos.Documents.ListSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "a", schemas[0].Table)
	assert.Equal(t, "a:b", schemas[1].Table)
}

func TestDocumentRepository_GetMissing(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	_, err := repos.Documents.GetDocument(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	docs, err := repos.Documents.GetDocuments(ctx, 1, 2, 3)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = repos.Documents.GetSchema(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
