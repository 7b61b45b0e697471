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

// Package ingestion provides pipeline orchestration for loading export files
// into a document store.
//
// A Pipeline runs one source through these steps:
//   - Preparing the target table
//   - Validating and parsing the source into canonical records
//   - Transforming and storing records in fixed-size batches
//   - Submitting stored documents to the embedding index asynchronously
//
// Failures are isolated at two levels. A record that cannot be transformed or
// stored is counted as failed and the batch continues. A systemic failure
// (core.ErrSystemFailure or a panic) aborts the rest of its batch, counts those
// records as failed and the run moves on to the next batch. Only backend
// preparation, validation, parsing and cancellation end a run with an error.
//
// Runs are resumable when a checkpoint repository is configured: after every
// batch the pipeline records the first unattempted record and the records that
// failed, keyed by the absolute source path and guarded by a content digest.
package ingestion
