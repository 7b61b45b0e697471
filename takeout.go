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

// Package takeout loads personal-data exports into a searchable document
// database.
//
// A Database opens the storage backend described by a config.Config and builds
// the ingestion pipelines, searchers and reindexers that work on it.
package takeout

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/takeout/ai"
	"github.com/poiesic/takeout/ai/openai"
	"github.com/poiesic/takeout/config"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/index"
	"github.com/poiesic/takeout/ingestion"
	"github.com/poiesic/takeout/parser"
	"github.com/poiesic/takeout/reembed"
	"github.com/poiesic/takeout/search"
	"github.com/poiesic/takeout/storage/badger"
	"github.com/poiesic/takeout/transform"
)

type Database struct {
	config   *config.Config
	repos    *badger.Repositories
	provider ai.AIProvider // nil when indexing is disabled
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithProvider uses provider for embeddings instead of the configured service.
// It enables the embedding index regardless of the config.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the database in memory. Nothing is written to Home.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// Open opens the database described by cfg. A nil cfg uses config.DefaultConfig.
func Open(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	var (
		repos *badger.Repositories
		err   error
	)
	if options.inMemory {
		repos, err = badger.NewMemoryRepository(options.logger)
	} else {
		repos, err = badger.NewRepository(cfg.DatabasePath(), options.logger)
	}
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil && cfg.Index.Enabled {
		provider, err = openai.NewProvider(cfg.AIConfig(), openai.WithLogger(options.logger))
		if err != nil {
			repos.Close()
			return nil, err
		}
	}

	return &Database{
		config:   cfg,
		repos:    repos,
		provider: provider,
		logger:   options.logger.With("component", "database"),
	}, nil
}

// Close releases the embedding provider and the storage backend.
func (db *Database) Close() error {
	var errs *multierror.Error
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
			errs = multierror.Append(errs, err)
		}
	}
	if err := db.repos.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Config returns the configuration the database was opened with.
func (db *Database) Config() *config.Config {
	return db.config
}

// Repositories exposes the storage repositories.
func (db *Database) Repositories() *badger.Repositories {
	return db.repos
}

// IndexEnabled reports whether documents are embedded for search.
func (db *Database) IndexEnabled() bool {
	return db.provider != nil
}

func (db *Database) indexSpec() *core.IndexSpec {
	if db.provider == nil {
		return nil
	}
	spec := index.Spec(db.config.Index.Model, db.config.Index.ChunkSize, db.config.Index.ChunkOverlap)
	return &spec
}

// Store returns the document store of the configured table.
func (db *Database) Store() (*badger.TableStore, error) {
	return db.repos.Table(db.config.Table, db.indexSpec())
}

// Indexer returns the embedding index builder of the configured table.
func (db *Database) Indexer() (*index.Builder, error) {
	if db.provider == nil {
		return nil, ErrIndexDisabled
	}
	return index.NewBuilder(db.repos.Chunks, db.provider.Embedder(), *db.indexSpec(), index.WithLogger(db.logger))
}

// NewIngestionPipeline creates a pipeline loading sources read by p into the
// configured table. Options are applied after the configured defaults.
func (db *Database) NewIngestionPipeline(p parser.Parser, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	store, err := db.Store()
	if err != nil {
		return nil, err
	}

	stagerOpts := []transform.Option{transform.WithLogger(db.logger)}
	if db.config.StagingDir != "" {
		stagerOpts = append(stagerOpts, transform.WithDir(db.config.StagingDir))
	}
	stager, err := transform.NewStager(stagerOpts...)
	if err != nil {
		return nil, err
	}

	base := []ingestion.Option{
		ingestion.WithBatchSize(db.config.BatchSize),
		ingestion.WithCheckpoints(db.repos.Checkpoints),
		ingestion.WithRunLog(db.repos.Runs),
		ingestion.WithLogger(db.logger),
	}
	if db.provider != nil {
		indexer, err := db.Indexer()
		if err != nil {
			return nil, err
		}
		base = append(base, ingestion.WithIndexer(indexer))
		if db.config.Index.PoolSize > 0 {
			base = append(base, ingestion.WithPoolSize(db.config.Index.PoolSize))
		}
	}

	return ingestion.NewPipeline(store, p, stager, append(base, opts...)...)
}

// NewSearcher creates a searcher over the configured table.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	if db.provider == nil {
		return nil, ErrIndexDisabled
	}
	opts = append([]search.Option{search.WithLogger(db.logger)}, opts...)
	return search.NewSearcher(db.repos.Chunks, db.provider, db.config.Table, opts...)
}

// NewReindexer creates a reindexer for the configured table.
// out receives progress output and may be nil.
func (db *Database) NewReindexer(cfg *reembed.Config, out io.Writer) (*reembed.Reindexer, error) {
	indexer, err := db.Indexer()
	if err != nil {
		return nil, err
	}
	return reembed.NewReindexer(db.repos.Documents, db.config.Table, indexer, cfg, out, reembed.WithLogger(db.logger))
}

// Setup creates the configured table and checks that the embedding service answers.
func (db *Database) Setup(ctx context.Context) error {
	store, err := db.Store()
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if db.provider == nil {
		return nil
	}
	if _, err := db.provider.Embedder().EmbedText(ctx, "takeout setup"); err != nil {
		return fmt.Errorf("%w: %w", ErrEmbedderUnavailable, err)
	}
	return nil
}

// TableStatus describes one document table.
type TableStatus struct {
	Schema    *core.Schema
	Documents int
	Chunks    int
}

// Status describes the contents of the database.
type Status struct {
	Tables     []TableStatus
	RecentRuns []*core.Run
}

// Status reports every table and up to runs recent ingestion runs.
func (db *Database) Status(ctx context.Context, runs int) (*Status, error) {
	schemas, err := db.repos.Documents.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{Tables: make([]TableStatus, 0, len(schemas))}
	for _, schema := range schemas {
		docs, err := db.repos.Documents.CountDocuments(ctx, schema.Table)
		if err != nil {
			return nil, err
		}
		chunks, err := db.repos.Chunks.CountChunks(ctx, schema.Table)
		if err != nil {
			return nil, err
		}
		status.Tables = append(status.Tables, TableStatus{Schema: schema, Documents: docs, Chunks: chunks})
	}

	if runs > 0 {
		status.RecentRuns, err = db.repos.Runs.RecentRuns(ctx, runs)
		if err != nil {
			return nil, err
		}
	}
	return status, nil
}
