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

// Package transform shapes canonical records for the document store.
//
// A Stager writes each record to its own staged text file with a short
// provenance header (title, source type, timestamps) followed by the body, and
// returns a StoredRecord that references the file. The caller must hand the
// StoredRecord back to Release once the store call has returned, whatever its
// outcome.
package transform
