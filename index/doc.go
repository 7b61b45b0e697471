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

// Package index builds the embedding index over stored documents.
//
// A Builder splits each document into overlapping chunks with langchaingo's
// recursive character splitter, embeds the chunk texts, normalizes the vectors
// to unit length and replaces the document's chunks in the chunk repository.
// Search compares unit vectors with a plain dot product.
package index
