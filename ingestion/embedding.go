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

package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/index"
)

// embeddingProcessor adds stored documents to the embedding index.
type embeddingProcessor struct {
	indexer index.Indexer
	logger  *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(indexer index.Indexer, logger *slog.Logger) (processor, error) {
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		indexer: indexer,
		logger:  logger.With("processor", "embeddings"),
	}, nil
}

// process chunks and embeds the documents.
func (ep *embeddingProcessor) process(ctx context.Context, docs ...*core.Document) error {
	ep.logger.Info("indexing documents", "documents", len(docs))
	if err := ep.indexer.Index(ctx, docs...); err != nil {
		ep.logger.Error("error indexing documents", "err", err)
		return err
	}
	return nil
}
