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

package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/takeout/ai"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/index"
	"github.com/poiesic/takeout/storage"
)

const (
	// DefaultMinSimilarity is the lowest chunk similarity considered a match.
	DefaultMinSimilarity = 0.60

	// verbatimBoost is added when a document contains every query word.
	verbatimBoost = 0.3

	// chunkFanout is how many chunk matches are fetched per requested hit,
	// since several chunks of one document may match.
	chunkFanout = 4
)

// Searcher provides semantic search over the chunks of one table.
type Searcher struct {
	chunks        storage.ChunkRepository
	embedder      ai.Embedder
	table         string
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the similarity threshold for chunk matches.
// Default is DefaultMinSimilarity.
func WithMinSimilarity(minSimilarity float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = minSimilarity
		return nil
	}
}

// NewSearcher creates a new searcher over table.
func NewSearcher(
	chunks storage.ChunkRepository,
	provider ai.AIProvider,
	table string,
	opts ...Option,
) (*Searcher, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if table == "" {
		return nil, ErrTableRequired
	}

	s := &Searcher{
		chunks:        chunks,
		embedder:      provider.Embedder(),
		table:         table,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher", "table", table)

	return s, nil
}

// FindSimilar searches for documents similar to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor searches for documents similar to the query with monitoring.
// The monitor receives callbacks at each stage of the search process.
// Each result carries the best matching chunk of its document.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits < 1 {
		return []*core.SearchResult{}, nil
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.chunks.FindSimilar(ctx, s.table, index.NormalizeVector(embedding), s.minSimilarity, maxHits*chunkFanout)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterChunkSearch(matches)

	// Matches arrive best first, so the first chunk seen for a document is its best
	best := make(map[core.ID]*core.SearchResult)
	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		if match.Document == nil {
			continue
		}
		if _, seen := best[match.Document.Id]; seen {
			continue
		}
		result := &core.SearchResult{
			Document: match.Document,
			Chunk:    match.Chunk,
			Score:    match.Score,
		}
		if containsAllQueryWords(match.Document.Content, query) {
			result.Score += verbatimBoost
			monitor.VerbatimHit(result)
		}
		best[match.Document.Id] = result
		results = append(results, result)
	}

	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	s.logger.Debug("search finished", "query", query, "chunks", len(matches), "results", len(results))
	monitor.Finish(results)

	return results, nil
}
