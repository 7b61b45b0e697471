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

package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/takeout/ai"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the chunk length in characters, roughly 300 tokens.
	DefaultChunkSize = 1200

	// DefaultChunkOverlap is the number of characters shared by neighbouring chunks.
	DefaultChunkOverlap = 120

	// ChunkColumn names the column the embedding index is keyed by.
	ChunkColumn = "text"
)

// Indexer adds documents to the embedding index.
type Indexer interface {
	Index(ctx context.Context, docs ...*core.Document) error
}

// Builder chunks and embeds documents of one table.
type Builder struct {
	chunks   storage.ChunkRepository
	embedder ai.Embedder
	splitter textsplitter.RecursiveCharacter
	spec     core.IndexSpec
	logger   *slog.Logger
}

var _ Indexer = (*Builder)(nil)

// Option configures a Builder.
type Option func(*Builder) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a builder. Zero chunk settings in spec take the defaults.
func NewBuilder(chunks storage.ChunkRepository, embedder ai.Embedder, spec core.IndexSpec, opts ...Option) (*Builder, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	spec = Spec(spec.Model, spec.ChunkSize, spec.ChunkOverlap)
	if spec.ChunkSize < 1 || spec.ChunkOverlap < 0 || spec.ChunkOverlap >= spec.ChunkSize {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, spec.ChunkSize, spec.ChunkOverlap)
	}

	b := &Builder{
		chunks:   chunks,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(spec.ChunkSize),
			textsplitter.WithChunkOverlap(spec.ChunkOverlap),
		),
		spec:   spec,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "index-builder")
	return b, nil
}

// Spec returns the index description for model, filling in default chunking.
func Spec(model string, chunkSize, chunkOverlap int) core.IndexSpec {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
		if chunkOverlap == 0 {
			chunkOverlap = DefaultChunkOverlap
		}
	}
	return core.IndexSpec{
		Column:       ChunkColumn,
		Model:        model,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into index chunks. Blank text yields no chunks.
func (b *Builder) Chunk(text string) ([]string, error) {
	parts, err := b.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	chunks := parts[:0]
	for _, p := range parts {
		if p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// Index rebuilds the chunks of every document. All documents are attempted;
// failures are returned together.
func (b *Builder) Index(ctx context.Context, docs ...*core.Document) error {
	var errs *multierror.Error
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return multierror.Append(errs, err).ErrorOrNil()
		}
		if err := b.indexDocument(ctx, doc); err != nil {
			b.logger.Error("failed to index document", "id", doc.Id, "err", err)
			errs = multierror.Append(errs, fmt.Errorf("document %d: %w", doc.Id, err))
		}
	}
	return errs.ErrorOrNil()
}

func (b *Builder) indexDocument(ctx context.Context, doc *core.Document) error {
	texts, err := b.Chunk(doc.Content)
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = b.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(texts), len(vectors))
		}
	}

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{
			DocumentId: doc.Id,
			Index:      i,
			Text:       text,
			Vector:     NormalizeVector(vectors[i]),
		}
	}

	if err := b.chunks.ReplaceChunks(ctx, doc.Table, doc.Id, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	b.logger.Debug("indexed document", "id", doc.Id, "chunks", len(chunks))
	return nil
}
