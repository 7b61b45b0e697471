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
	"errors"
	"fmt"

	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/progress"
)

// result is the outcome of storing one record.
type result struct {
	index int
	title string
	doc   *core.Document
	err   error
}

func (r result) ok() bool {
	return r.err == nil
}

// systemic reports whether the failure affects the whole batch rather than the record.
func (r result) systemic() bool {
	return errors.Is(r.err, core.ErrSystemFailure)
}

func (r result) message() string {
	if r.title != "" {
		return fmt.Sprintf("record %d (%s): %v", r.index, r.title, r.err)
	}
	return fmt.Sprintf("record %d: %v", r.index, r.err)
}

// batchResult aggregates the outcomes of one batch.
type batchResult struct {
	number    int
	stored    []*core.Document
	failed    []int
	abortedBy error
}

// attrs returns the log attributes of the batch.
func (b batchResult) attrs() []any {
	attrs := []any{"batch", b.number, "stored", len(b.stored), "failed", len(b.failed)}
	if b.abortedBy != nil {
		attrs = append(attrs, "aborted_by", b.abortedBy)
	}
	return attrs
}

// Summary describes a finished ingestion run.
type Summary struct {
	RunID            string            `json:"run_id,omitempty"`
	Source           string            `json:"source"`
	TotalRecords     int               `json:"total_records"`
	ProcessedRecords int               `json:"processed_records"`
	FailedRecords    int               `json:"failed_records"`
	SkippedRecords   int               `json:"skipped_records"`
	SuccessRate      float64           `json:"success_rate"`
	TableName        string            `json:"table_name,omitempty"`
	Progress         progress.Snapshot `json:"progress"`
	Validation       *ValidationReport `json:"validation,omitempty"`
}

// ValidationReport is the outcome of a validate-only run.
type ValidationReport struct {
	Passed       bool         `json:"passed"`
	RecordCount  int          `json:"record_count"`
	SampleRecord *core.Record `json:"sample_record"`
}
