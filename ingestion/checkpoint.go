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
	"os"
	"path/filepath"
	"slices"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
)

// cursor tracks which records of a source have been attempted.
//
// work lists record indexes in processing order: first the retries carried over
// from a checkpoint (all below base), then base..total-1.
type cursor struct {
	key     string
	digest  core.ID
	total   int
	base    int
	retries int
	work    []int
	pos     int
	failed  []int
}

func freshCursor(total int) *cursor {
	work := make([]int, total)
	for i := range total {
		work[i] = i
	}
	return &cursor{total: total, work: work}
}

// resumeCursor continues from cp. Failed indexes are retried first.
func resumeCursor(total int, cp *core.Checkpoint) *cursor {
	base := min(max(cp.Cursor, 0), total)
	var work []int
	for _, i := range cp.Failed {
		if i >= 0 && i < base {
			work = append(work, i)
		}
	}
	slices.Sort(work)
	work = slices.Compact(work)
	retries := len(work)
	for i := base; i < total; i++ {
		work = append(work, i)
	}
	return &cursor{total: total, base: base, retries: retries, work: work}
}

// skipped is the number of records the run will not attempt.
func (c *cursor) skipped() int {
	return c.total - len(c.work)
}

// remaining returns up to n unattempted record indexes.
func (c *cursor) remaining(n int) []int {
	return c.work[c.pos:min(c.pos+n, len(c.work))]
}

func (c *cursor) done() bool {
	return c.pos >= len(c.work)
}

// advance marks the next record as attempted.
func (c *cursor) advance(failed bool) {
	if failed {
		c.failed = append(c.failed, c.work[c.pos])
	}
	c.pos++
}

// checkpoint returns the persisted form of the cursor.
func (c *cursor) checkpoint(runID string) *core.Checkpoint {
	next := c.total
	switch {
	case c.pos < c.retries:
		next = c.base
	case c.pos < len(c.work):
		next = c.work[c.pos]
	}

	failed := slices.Clone(c.failed)
	if c.pos < c.retries {
		failed = append(failed, c.work[c.pos:c.retries]...)
	}
	slices.Sort(failed)

	return &core.Checkpoint{
		Key:    c.key,
		Digest: c.digest,
		Cursor: next,
		Failed: failed,
		RunID:  runID,
	}
}

// sourceIdentity returns the checkpoint key and content digest of source.
func sourceIdentity(source string) (string, core.ID, error) {
	key, err := filepath.Abs(source)
	if err != nil {
		return "", 0, err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", 0, err
	}
	return key, core.IDFromBytes(data), nil
}

// plan builds the cursor of a run over total records.
func (p *Pipeline) plan(ctx context.Context, r *run, total int, resume bool) *cursor {
	if p.checkpoints == nil {
		if resume {
			r.logger.Warn("resume requested without a checkpoint repository, starting fresh")
		}
		return freshCursor(total)
	}

	key, digest, err := sourceIdentity(r.source)
	if err != nil {
		r.logger.Warn("cannot identify source, checkpoints disabled for this run", "err", err)
		r.checkpoints = false
		return freshCursor(total)
	}

	c := freshCursor(total)
	if resume {
		cp, err := p.checkpoints.LoadCheckpoint(ctx, key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			r.logger.Info("no checkpoint found, starting fresh")
		case err != nil:
			r.logger.Warn("failed to load checkpoint, starting fresh", "err", err)
		case cp.Digest != digest:
			r.logger.Warn("source changed since checkpoint, starting fresh", "checkpoint_run", cp.RunID)
		default:
			c = resumeCursor(total, cp)
			r.logger.Info("resuming from checkpoint",
				"checkpoint_run", cp.RunID, "cursor", cp.Cursor, "retries", c.retries, "skipped", c.skipped())
		}
	}
	c.key = key
	c.digest = digest
	return c
}

// saveCheckpoint persists the cursor of r. Failures are logged.
func (p *Pipeline) saveCheckpoint(ctx context.Context, r *run) {
	if p.checkpoints == nil || !r.checkpoints {
		return
	}
	if err := p.checkpoints.SaveCheckpoint(context.WithoutCancel(ctx), r.cursor.checkpoint(r.id)); err != nil {
		r.logger.Error("failed to save checkpoint", "err", err)
	}
}
