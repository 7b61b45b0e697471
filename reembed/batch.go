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
	"log/slog"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/index"
)

// BatchProcessor re-indexes batches of documents.
type BatchProcessor struct {
	indexer index.Indexer
	backoff Backoff
	logger  *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(indexer index.Indexer, backoff Backoff, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		indexer: indexer,
		backoff: backoff,
		logger:  logger,
	}
}

// Process rebuilds the chunks of docs, retrying the whole batch on failure.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) error {
	if len(docs) == 0 {
		return nil
	}

	err := bp.backoff.Retry(ctx, bp.logger, func(ctx context.Context) error {
		return bp.indexer.Index(ctx, docs...)
	})
	if err != nil {
		return fmt.Errorf("failed to index %d documents after %d attempts: %w", len(docs), bp.backoff.MaxAttempts, err)
	}
	return nil
}
