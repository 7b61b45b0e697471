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

// Package reembed rebuilds the embedding index of stored documents, for example
// after switching embedding models or changing chunk settings.
//
// Documents are read in insertion order in fixed-size batches. Each batch is
// re-chunked and re-embedded with retries and exponential backoff; a batch that
// still fails is counted and the run moves on. Progress is rendered to a writer,
// typically the terminal.
package reembed
