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

package takeout

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/takeout/ai/mock"
	"github.com/poiesic/takeout/config"
	"github.com/poiesic/takeout/parser"
	"github.com/poiesic/takeout/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `[
  {"title": "Bread", "messages": [
    {"role": "user", "content": "How do I bake sourdough bread?"},
    {"role": "assistant", "content": "Feed your starter, mix, proof and bake."}
  ]},
  {"title": "Notes", "raw_content": "Remember to water the tomato plants."}
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Home = t.TempDir()
	cfg.StagingDir = filepath.Join(t.TempDir(), "staging")
	cfg.BatchSize = 1
	return cfg
}

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conversations.json")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))
	return path
}

func TestOpen(t *testing.T) {
	t.Run("on disk", func(t *testing.T) {
		cfg := testConfig(t)
		db, err := Open(cfg, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		assert.NotNil(t, db.Repositories())
		assert.Same(t, cfg, db.Config())
		assert.True(t, db.IndexEnabled())
		require.NoError(t, db.Close())
		assert.DirExists(t, cfg.DatabasePath())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Home, "db"), []byte("test"), 0o644))

		db, err := Open(cfg, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.BatchSize = 0
		_, err := Open(cfg, WithInMemory())
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("closes the provider", func(t *testing.T) {
		provider := mock.NewMockProvider()
		db, err := Open(testConfig(t), WithInMemory(), WithProvider(provider))
		require.NoError(t, err)
		require.NoError(t, db.Close())
		assert.True(t, provider.Closed())
	})
}

func TestDatabase_IngestSearchReindex(t *testing.T) {
	ctx := context.Background()
	db, err := Open(testConfig(t), WithInMemory(), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Setup(ctx))

	p, err := parser.ForFormat("auto")
	require.NoError(t, err)
	pipeline, err := db.NewIngestionPipeline(p)
	require.NoError(t, err)

	summary, err := pipeline.Ingest(ctx, writeExport(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProcessedRecords)
	assert.Equal(t, config.DefaultTable, summary.TableName)
	assert.Equal(t, progress.Completed, summary.Progress.Status)
	require.NoError(t, pipeline.Cleanup())

	status, err := db.Status(ctx, 5)
	require.NoError(t, err)
	require.Len(t, status.Tables, 1)
	assert.Equal(t, config.DefaultTable, status.Tables[0].Schema.Table)
	assert.Equal(t, 2, status.Tables[0].Documents)
	assert.Equal(t, 2, status.Tables[0].Chunks)
	require.NotNil(t, status.Tables[0].Schema.Index)
	assert.Equal(t, "embeddinggemma", status.Tables[0].Schema.Index.Model)
	require.Len(t, status.RecentRuns, 1)
	assert.Equal(t, summary.RunID, status.RecentRuns[0].ID)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	results, err := searcher.FindSimilar(ctx, "sourdough bread", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Bread", results[0].Document.Title, "verbatim match ranks first")

	reindexer, err := db.NewReindexer(nil, nil)
	require.NoError(t, err)
	result, err := reindexer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)
}

func TestDatabase_IndexDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Enabled = false

	db, err := Open(cfg, WithInMemory())
	require.NoError(t, err)
	defer db.Close()

	assert.False(t, db.IndexEnabled())
	require.NoError(t, db.Setup(context.Background()))

	_, err = db.NewSearcher()
	assert.ErrorIs(t, err, ErrIndexDisabled)
	_, err = db.NewReindexer(nil, nil)
	assert.ErrorIs(t, err, ErrIndexDisabled)

	p, err := parser.ForFormat("json")
	require.NoError(t, err)
	pipeline, err := db.NewIngestionPipeline(p)
	require.NoError(t, err)
	defer pipeline.Cleanup()

	summary, err := pipeline.Ingest(context.Background(), writeExport(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProcessedRecords)

	schema, err := db.Repositories().Documents.GetSchema(context.Background(), cfg.Table)
	require.NoError(t, err)
	assert.Nil(t, schema.Index)
}

func TestDatabase_SetupProbesEmbedder(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}

	db, err := Open(testConfig(t), WithInMemory(), WithProvider(mock.NewMockProviderWithEmbedder(embedder)))
	require.NoError(t, err)
	defer db.Close()

	err = db.Setup(context.Background())
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}
