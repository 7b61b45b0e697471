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
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/index"
	"github.com/poiesic/takeout/parser"
	"github.com/poiesic/takeout/progress"
	"github.com/poiesic/takeout/storage"
	"github.com/poiesic/takeout/transform"
)

// DefaultBatchSize is the number of records stored per batch.
const DefaultBatchSize = 100

const poolReleaseTimeout = 10 * time.Second

// Pipeline orchestrates the ingestion of one source at a time into a document store.
type Pipeline struct {
	store       storage.DocumentStore
	parser      parser.Parser
	transformer transform.Transformer
	checkpoints storage.CheckpointRepository
	runs        storage.RunRepository
	indexer     index.Indexer
	observer    func(progress.Snapshot)
	batchSize   int
	poolSize    int
	logger      *slog.Logger
	now         func() time.Time

	embeddingPool *ants.Pool
	embeddingProc processor
	pending       sync.WaitGroup

	mu     sync.Mutex
	active *run
	last   *progress.Tracker
	gate   chan struct{}
	closed bool
}

// cleaner is implemented by transformers that hold resources beyond a single record.
type cleaner interface {
	Cleanup() error
}

// run is the state of one Ingest call.
type run struct {
	id          string
	source      string
	tracker     *progress.Tracker
	records     []*core.Record
	cursor      *cursor
	checkpoints bool
	finishing   bool // Every record was attempted; guarded by Pipeline.mu
	startedAt   time.Time
	logger      *slog.Logger
}

func (r *run) update(processed, failed int) {
	if err := r.tracker.Update(processed, failed, nil); err != nil {
		r.logger.Error("progress update rejected", "err", err)
	}
}

func (r *run) skipped() int {
	if r.cursor == nil {
		return 0
	}
	return r.cursor.skipped()
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBatchSize sets the number of records per batch.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithCheckpoints enables resumable runs backed by repo.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(p *Pipeline) error {
		p.checkpoints = repo
		return nil
	}
}

// WithRunLog records every finished run in repo.
func WithRunLog(repo storage.RunRepository) Option {
	return func(p *Pipeline) error {
		p.runs = repo
		return nil
	}
}

// WithIndexer submits stored documents to indexer in the background.
func WithIndexer(indexer index.Indexer) Option {
	return func(p *Pipeline) error {
		if indexer == nil {
			return ErrIndexerRequired
		}
		p.indexer = indexer
		return nil
	}
}

// WithPoolSize sets the worker pool size for background indexing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithObserver registers fn to receive a progress snapshot after every batch
// and when the run ends.
func WithObserver(fn func(progress.Snapshot)) Option {
	return func(p *Pipeline) error {
		p.observer = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store storage.DocumentStore,
	sourceParser parser.Parser,
	transformer transform.Transformer,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if sourceParser == nil {
		return nil, ErrParserRequired
	}
	if transformer == nil {
		return nil, ErrTransformerRequired
	}

	p := &Pipeline{
		store:       store,
		parser:      sourceParser,
		transformer: transformer,
		batchSize:   DefaultBatchSize,
		poolSize:    max(runtime.NumCPU()/2, 1),
		logger:      slog.Default(),
		now:         time.Now,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion", "table", store.Table())

	// Processors are created after options so they get the final config
	if p.indexer != nil {
		proc, err := newEmbeddingProcessor(p.indexer, p.logger)
		if err != nil {
			return nil, err
		}
		pool, err := ants.NewPool(p.poolSize)
		if err != nil {
			return nil, err
		}
		p.embeddingProc = proc
		p.embeddingPool = pool
	}

	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	Resume       bool // Continue from the source's checkpoint when it still matches the file
	ValidateOnly bool // Validate and parse only; nothing is stored
}

// Ingest loads source into the document store.
//
// Backend, validation, parse and cancellation failures end the run with an
// error and no summary. Record and batch failures are counted and reported in
// the summary.
func (p *Pipeline) Ingest(ctx context.Context, source string, opts *IngestOptions) (*Summary, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}

	r, err := p.begin(source)
	if err != nil {
		return nil, err
	}
	defer p.end()

	r.logger.Info("starting ingestion", "validate_only", opts.ValidateOnly, "resume", opts.Resume)
	logRun := !opts.ValidateOnly

	if !opts.ValidateOnly {
		if err := p.store.EnsureSchema(ctx); err != nil {
			return nil, p.abort(ctx, r, fmt.Errorf("%w: %w", ErrBackendUnavailable, err), false)
		}
	}

	if ok, err := p.parser.Validate(source); !ok {
		if err == nil {
			err = &parser.ValidationError{Path: source, Reason: "rejected by parser"}
		}
		return nil, p.abort(ctx, r, err, logRun)
	}

	records, err := p.parser.Parse(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		} else {
			err = fmt.Errorf("parse %s: %w", source, err)
		}
		return nil, p.abort(ctx, r, err, logRun)
	}
	r.records = records
	r.logger.Info("parsed source", "records", len(records))

	if opts.ValidateOnly {
		if err := r.tracker.SetTotal(len(records)); err != nil {
			r.logger.Error("failed to set total", "err", err)
		}
		return p.validationSummary(r), nil
	}

	r.cursor = p.plan(ctx, r, len(records), opts.Resume)
	if err := r.tracker.SetTotal(len(r.cursor.work)); err != nil {
		r.logger.Error("failed to set total", "err", err)
	}
	if err := r.tracker.Update(0, 0, map[string]any{
		"run_id":          r.id,
		"source":          source,
		"table":           p.store.Table(),
		"batch_size":      p.batchSize,
		"skipped_records": r.skipped(),
	}); err != nil {
		r.logger.Error("progress update rejected", "err", err)
	}
	if err := r.tracker.Start(); err != nil {
		return nil, p.abort(ctx, r, err, logRun)
	}
	p.notify(r)

	for number := 1; !r.cursor.done(); number++ {
		if err := p.wait(ctx, r); err != nil {
			return nil, p.cancel(ctx, r, err)
		}

		res := p.processBatch(ctx, r, number)
		p.submit(r, res.stored)
		p.saveCheckpoint(ctx, r)
		p.notify(r)

		if err := ctx.Err(); err != nil && !r.cursor.done() {
			return nil, p.cancel(ctx, r, err)
		}
		snap := r.tracker.Snapshot()
		r.logger.Info("processed batch", append(res.attrs(),
			"records", fmt.Sprintf("%d/%d", snap.ProcessedItems+snap.FailedItems, snap.TotalItems))...)
	}

	// A pause after the last batch holds the run open until resumed
	p.settle(ctx, r)

	status, err := r.tracker.Finish()
	if err != nil {
		r.logger.Error("failed to finish progress", "err", err)
	}
	p.saveRun(ctx, r)
	p.notify(r)

	summary := p.summary(r)
	r.logger.Info("ingestion finished", "status", status,
		"processed", summary.ProcessedRecords, "failed", summary.FailedRecords,
		"skipped", summary.SkippedRecords, "success_rate", summary.SuccessRate)
	return summary, nil
}

// processBatch stores the next batch of records.
func (p *Pipeline) processBatch(ctx context.Context, r *run, number int) batchResult {
	batch := r.cursor.remaining(p.batchSize)
	res := batchResult{number: number}

	for i, idx := range batch {
		if ctx.Err() != nil {
			return res
		}

		out := p.processRecord(ctx, r, idx)
		if !out.ok() && ctx.Err() != nil &&
			(errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded)) {
			// Interrupted, the record stays unattempted
			return res
		}

		r.cursor.advance(!out.ok())
		if out.ok() {
			r.update(1, 0)
			res.stored = append(res.stored, out.doc)
			continue
		}

		r.update(0, 1)
		r.tracker.AddError(out.message())
		res.failed = append(res.failed, idx)
		r.logger.Warn("record failed", "index", idx, "title", out.title, "err", out.err)

		if out.systemic() {
			rest := batch[i+1:]
			for range rest {
				r.cursor.advance(true)
			}
			res.failed = append(res.failed, rest...)
			r.update(0, len(rest))
			res.abortedBy = out.err
			r.tracker.AddError(fmt.Sprintf("batch %d aborted: %v", number, out.err))
			r.logger.Error("batch aborted", "batch", number, "failed", len(rest)+1, "err", out.err)
			return res
		}
	}
	return res
}

// processRecord transforms and stores one record. The staged document is always
// released once the store call returns. Panics become systemic failures.
func (p *Pipeline) processRecord(ctx context.Context, r *run, idx int) (res result) {
	record := r.records[idx]
	res = result{index: idx}
	if record != nil {
		res.title = record.Title
	}

	defer func() {
		if v := recover(); v != nil {
			res.doc = nil
			res.err = fmt.Errorf("%w: panic: %v", core.ErrSystemFailure, v)
		}
	}()

	stored, err := p.transformer.Transform(ctx, record)
	if err != nil {
		res.err = fmt.Errorf("transform: %w", err)
		return res
	}
	defer p.release(r, stored)

	doc, err := p.store.Insert(ctx, stored)
	if err != nil {
		res.err = fmt.Errorf("store: %w", err)
		return res
	}
	res.doc = doc
	return res
}

func (p *Pipeline) release(r *run, stored *core.StoredRecord) {
	if err := p.transformer.Release(stored); err != nil {
		r.logger.Warn("failed to release staged document", "path", stored.StagedPath, "err", err)
	}
}

// submit hands stored documents to the embedding index.
// Errors during async processing are logged but do not fail the ingestion.
func (p *Pipeline) submit(r *run, docs []*core.Document) {
	if p.embeddingProc == nil || len(docs) == 0 {
		return
	}

	p.pending.Add(1)
	err := p.embeddingPool.Submit(func() {
		defer p.pending.Done()
		if err := p.embeddingProc.process(context.Background(), docs...); err != nil {
			r.logger.Error("error processing embeddings", "err", err)
		}
	})
	if err != nil {
		p.pending.Done()
		r.logger.Error("failed to submit documents for indexing", "documents", len(docs), "err", err)
	}
}

// begin registers a new run.
func (p *Pipeline) begin(source string) (*run, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPipelineClosed
	}
	if p.active != nil {
		return nil, ErrAlreadyRunning
	}

	id := uuid.NewString()
	r := &run{
		id:          id,
		source:      source,
		tracker:     progress.NewTracker(),
		checkpoints: true,
		startedAt:   p.now(),
		logger:      p.logger.With("run", id, "source", source),
	}
	p.active = r
	p.last = r.tracker
	return r, nil
}

func (p *Pipeline) end() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = nil
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
}

// abort records err as fatal and marks the run failed.
func (p *Pipeline) abort(ctx context.Context, r *run, err error, logRun bool) error {
	r.tracker.AddError(err.Error())
	if ferr := r.tracker.Fail(); ferr != nil {
		r.logger.Warn("failed to mark run failed", "err", ferr)
	}
	r.logger.Error("ingestion failed", "err", err)
	if logRun {
		p.saveRun(ctx, r)
	}
	p.notify(r)
	return err
}

func (p *Pipeline) cancel(ctx context.Context, r *run, cause error) error {
	p.saveCheckpoint(ctx, r)
	return p.abort(ctx, r, fmt.Errorf("%w: %w", ErrCancelled, cause), true)
}

// wait blocks while the pipeline is paused.
func (p *Pipeline) wait(ctx context.Context, r *run) error {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	if gate == nil {
		return ctx.Err()
	}
	r.logger.Info("ingestion paused")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gate:
		r.logger.Info("ingestion resumed")
		return ctx.Err()
	}
}

// settle waits out a pause that arrived after the last batch, then closes the
// run to Pause so that Finish always starts from Running. Cancellation while
// paused here still completes the run since no record is left to attempt.
func (p *Pipeline) settle(ctx context.Context, r *run) {
	for {
		p.mu.Lock()
		gate := p.gate
		if gate == nil {
			r.finishing = true
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		r.logger.Info("ingestion paused")
		select {
		case <-gate:
			r.logger.Info("ingestion resumed")
		case <-ctx.Done():
			p.mu.Lock()
			r.finishing = true
			if p.gate != nil {
				close(p.gate)
				p.gate = nil
			}
			if r.tracker.Status() == progress.Paused {
				if err := r.tracker.Resume(); err != nil {
					r.logger.Warn("failed to resume progress", "err", err)
				}
			}
			p.mu.Unlock()
			r.logger.Warn("cancelled while paused after the last batch, finishing the run", "err", ctx.Err())
			return
		}
	}
}

func (p *Pipeline) notify(r *run) {
	if p.observer != nil {
		p.observer(r.tracker.Snapshot())
	}
}

// saveRun appends r to the run log. Failures are logged.
func (p *Pipeline) saveRun(ctx context.Context, r *run) {
	if p.runs == nil {
		return
	}
	snap := r.tracker.Snapshot()
	entry := &core.Run{
		ID:           r.id,
		Source:       r.source,
		Table:        p.store.Table(),
		Status:       snap.Status.String(),
		Total:        snap.TotalItems,
		Processed:    snap.ProcessedItems,
		Failed:       snap.FailedItems,
		Skipped:      r.skipped(),
		StartedAt:    r.startedAt,
		FinishedAt:   p.now(),
		RecentErrors: snap.RecentErrors,
	}
	if err := p.runs.SaveRun(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Error("failed to save run log", "err", err)
	}
}

func (p *Pipeline) summary(r *run) *Summary {
	snap := r.tracker.Snapshot()
	return &Summary{
		RunID:            r.id,
		Source:           r.source,
		TotalRecords:     len(r.records),
		ProcessedRecords: snap.ProcessedItems,
		FailedRecords:    snap.FailedItems,
		SkippedRecords:   r.skipped(),
		SuccessRate:      snap.SuccessRate,
		TableName:        p.store.Table(),
		Progress:         snap,
	}
}

func (p *Pipeline) validationSummary(r *run) *Summary {
	report := &ValidationReport{Passed: true, RecordCount: len(r.records)}
	if len(r.records) > 0 {
		report.SampleRecord = r.records[0]
	}
	return &Summary{
		RunID:        r.id,
		Source:       r.source,
		TotalRecords: len(r.records),
		TableName:    p.store.Table(),
		Progress:     r.tracker.Snapshot(),
		Validation:   report,
	}
}

// Progress returns a snapshot of the current or most recent run, or nil before
// the first run.
func (p *Pipeline) Progress() *progress.Snapshot {
	p.mu.Lock()
	tracker := p.last
	p.mu.Unlock()

	if tracker == nil {
		return nil
	}
	snap := tracker.Snapshot()
	return &snap
}

// Pause stops the active run before its next batch. The batch in flight completes.
// Once every record was attempted and the run is finishing, Pause returns ErrNotRunning.
func (p *Pipeline) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil || p.active.finishing {
		return ErrNotRunning
	}
	if err := p.active.tracker.Pause(); err != nil {
		return err
	}
	p.gate = make(chan struct{})
	return nil
}

// Resume continues a paused run.
func (p *Pipeline) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil || p.active.finishing {
		return ErrNotRunning
	}
	if err := p.active.tracker.Resume(); err != nil {
		return err
	}
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
	return nil
}

// Wait blocks until submitted index work has finished.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Cleanup waits for background indexing, releases the worker pool and removes
// staged documents. It is safe to call more than once; the pipeline cannot run
// afterwards.
func (p *Pipeline) Cleanup() error {
	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()

	var errs *multierror.Error
	if p.embeddingPool != nil {
		if err := p.embeddingPool.ReleaseTimeout(poolReleaseTimeout); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("release embedding pool: %w", err))
		}
	}
	if c, ok := p.transformer.(cleaner); ok {
		if err := c.Cleanup(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
