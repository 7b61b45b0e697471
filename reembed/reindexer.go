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
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/index"
	"github.com/poiesic/takeout/progress"
	"github.com/poiesic/takeout/storage"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// Backoff controls retries of failed batches
	Backoff Backoff
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Backoff: Backoff{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

// Result summarizes a reindexing run.
type Result struct {
	Total   int
	Indexed int
	Failed  int
	Status  progress.Status
	Elapsed time.Duration
}

// Reindexer rebuilds the embedding index of every document in a table.
type Reindexer struct {
	table     string
	config    *Config
	out       io.Writer
	iterator  *DocumentIterator
	processor *BatchProcessor
	logger    *slog.Logger
}

// Option configures a Reindexer.
type Option func(*Reindexer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReindexer creates a new reindexer for table.
// out: where to write progress output (typically os.Stderr), nil to discard
func NewReindexer(docs storage.DocumentRepository, table string, indexer index.Indexer, config *Config, out io.Writer, opts ...Option) (*Reindexer, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if out == nil {
		out = io.Discard
	}

	r := &Reindexer{
		table:  table,
		config: config,
		out:    out,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reindexer", "table", table)
	r.iterator = NewDocumentIterator(docs, table, config.BatchSize)
	r.processor = NewBatchProcessor(indexer, config.Backoff, r.logger)
	return r, nil
}

// Run rebuilds the index of every document. A batch that keeps failing is
// counted and skipped; iteration and cancellation errors end the run.
func (r *Reindexer) Run(ctx context.Context) (*Result, error) {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	tracker := progress.NewTracker()
	if err := tracker.SetTotal(total); err != nil {
		return nil, err
	}
	if err := tracker.Start(); err != nil {
		return nil, err
	}

	if total == 0 {
		fmt.Fprintf(r.out, "No documents found in table %s\n", r.table)
	} else {
		fmt.Fprintf(r.out, "Starting reindexing of %d documents (batch size: %d)\n", total, r.iterator.batchSize)
	}

	reporter := NewConsoleReporter(r.out, r.config.ReportInterval)
	if total > 0 {
		reporter.Report(tracker.Snapshot())
	}
	err = r.iterator.ForEach(ctx, func(docs []*core.Document) error {
		// Documents inserted after the count are left for the next run
		docs = docs[:min(len(docs), remaining(tracker))]
		if len(docs) == 0 {
			return nil
		}

		if err := r.processor.Process(ctx, docs); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("batch failed", "documents", len(docs), "first_id", docs[0].Id, "err", err)
			tracker.AddError(err.Error())
			if err := tracker.Update(0, len(docs), nil); err != nil {
				return err
			}
			reporter.Report(tracker.Snapshot())
			return nil
		}
		if err := tracker.Update(len(docs), 0, nil); err != nil {
			return err
		}
		reporter.Report(tracker.Snapshot())
		return nil
	})
	if err != nil {
		tracker.AddError(err.Error())
		if ferr := tracker.Fail(); ferr != nil {
			r.logger.Warn("failed to mark reindexing failed", "err", ferr)
		}
		return r.result(tracker), fmt.Errorf("reindexing %s: %w", r.table, err)
	}

	status, err := tracker.Finish()
	if err != nil {
		return r.result(tracker), err
	}

	snap := tracker.Snapshot()
	if total > 0 {
		reporter.Finish(snap)
	}
	elapsed := Elapsed(snap)
	fmt.Fprintf(r.out, "Reindexing %s. Indexed %d documents, %d failed, in %v\n",
		status, snap.ProcessedItems, snap.FailedItems, elapsed.Round(time.Millisecond))
	r.logger.Info("reindexing finished", "status", status, "indexed", snap.ProcessedItems, "failed", snap.FailedItems)

	return r.result(tracker), nil
}

func remaining(tracker *progress.Tracker) int {
	s := tracker.Snapshot()
	return s.TotalItems - s.ProcessedItems - s.FailedItems
}

func (r *Reindexer) result(tracker *progress.Tracker) *Result {
	s := tracker.Snapshot()
	return &Result{
		Total:   s.TotalItems,
		Indexed: s.ProcessedItems,
		Failed:  s.FailedItems,
		Status:  s.Status,
		Elapsed: Elapsed(s),
	}
}
