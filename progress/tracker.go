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

package progress

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// RecentErrorLimit is the number of error messages exposed by a Snapshot.
const RecentErrorLimit = 5

// Tracker holds the mutable progress state of one ingestion run.
type Tracker struct {
	mu         sync.Mutex
	status     Status
	total      int
	totalSet   bool
	processed  int
	failed     int
	startTime  time.Time
	lastUpdate time.Time
	errors     []string
	metadata   map[string]any
	now        func() time.Time
}

// NewTracker creates a pending tracker.
func NewTracker() *Tracker {
	return newTracker(time.Now)
}

func newTracker(now func() time.Time) *Tracker {
	t := now()
	return &Tracker{
		status:     Pending,
		startTime:  t,
		lastUpdate: t,
		metadata:   map[string]any{},
		now:        now,
	}
}

// SetTotal records the number of items the run will attempt. It may be called once.
func (t *Tracker) SetTotal(total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Terminal() {
		return ErrTerminal
	}
	if t.totalSet {
		return ErrTotalAlreadySet
	}
	if total < 0 {
		return fmt.Errorf("%w: total %d", ErrNegativeCount, total)
	}
	t.total = total
	t.totalSet = true
	t.lastUpdate = t.now()
	return nil
}

// Update adds processed and failed items and merges metadata, later keys winning.
func (t *Tracker) Update(processed, failed int, metadata map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.Terminal() {
		return ErrTerminal
	}
	if processed < 0 || failed < 0 {
		return fmt.Errorf("%w: processed %d, failed %d", ErrNegativeCount, processed, failed)
	}
	if t.processed+processed+t.failed+failed > t.total {
		return fmt.Errorf("%w: %d + %d > %d", ErrCountOverflow,
			t.processed+processed, t.failed+failed, t.total)
	}

	t.processed += processed
	t.failed += failed
	maps.Copy(t.metadata, metadata)
	t.lastUpdate = t.now()
	return nil
}

// AddError appends a timestamped message to the error log.
func (t *Tracker) AddError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.errors = append(t.errors, now.Format(time.RFC3339Nano)+": "+msg)
	t.lastUpdate = now
}

// Transition moves the tracker to status.
func (t *Tracker) Transition(to Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(to)
}

func (t *Tracker) transitionLocked(to Status) error {
	if t.status.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminal, t.status)
	}
	if !canTransition(t.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, to)
	}
	t.status = to
	t.lastUpdate = t.now()
	return nil
}

// Start moves a pending tracker to Running.
func (t *Tracker) Start() error { return t.Transition(Running) }

// Pause moves a running tracker to Paused. Counters are untouched.
func (t *Tracker) Pause() error { return t.Transition(Paused) }

// Resume moves a paused tracker back to Running.
func (t *Tracker) Resume() error { return t.Transition(Running) }

// Fail moves the tracker to Failed from any non-terminal status.
func (t *Tracker) Fail() error { return t.Transition(Failed) }

// Finish ends a running tracker: Completed when nothing failed, Failed otherwise.
func (t *Tracker) Finish() (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	to := Completed
	if t.failed > 0 {
		to = Failed
	}
	if err := t.transitionLocked(to); err != nil {
		return t.status, err
	}
	return to, nil
}

// Status returns the current status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// CompletionPercentage is processed/total*100, 0 when total is 0.
func (t *Tracker) CompletionPercentage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return completion(t.processed, t.total)
}

// SuccessRate is (processed-failed)/processed*100, 0 when processed is 0 and never negative.
func (t *Tracker) SuccessRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return SuccessRate(t.processed, t.failed)
}

func completion(processed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(processed) / float64(total) * 100
}

// SuccessRate computes the success percentage for the given counts.
func SuccessRate(processed, failed int) float64 {
	if processed == 0 {
		return 0
	}
	rate := float64(processed-failed) / float64(processed) * 100
	if rate < 0 {
		return 0
	}
	return rate
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.errors
	if len(recent) > RecentErrorLimit {
		recent = recent[len(recent)-RecentErrorLimit:]
	}

	return Snapshot{
		Status:               t.status,
		TotalItems:           t.total,
		ProcessedItems:       t.processed,
		FailedItems:          t.failed,
		CompletionPercentage: completion(t.processed, t.total),
		SuccessRate:          SuccessRate(t.processed, t.failed),
		StartTime:            t.startTime,
		LastUpdate:           t.lastUpdate,
		ErrorCount:           len(t.errors),
		RecentErrors:         append([]string(nil), recent...),
		Metadata:             maps.Clone(t.metadata),
	}
}

// Snapshot is a read-only view of a Tracker.
type Snapshot struct {
	Status               Status         `json:"status"`
	TotalItems           int            `json:"total_items"`
	ProcessedItems       int            `json:"processed_items"`
	FailedItems          int            `json:"failed_items"`
	CompletionPercentage float64        `json:"completion_percentage"`
	SuccessRate          float64        `json:"success_rate"`
	StartTime            time.Time      `json:"start_time"`
	LastUpdate           time.Time      `json:"last_update"`
	ErrorCount           int            `json:"error_count"`
	RecentErrors         []string       `json:"recent_errors"`
	Metadata             map[string]any `json:"metadata"`
}
