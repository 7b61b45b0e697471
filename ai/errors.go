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

package ai

import "errors"

var (
	// ErrInvalidConfig is returned for an incomplete embedding service configuration.
	ErrInvalidConfig = errors.New("ai config")

	// ErrEmptyText is returned when asked to embed blank text.
	ErrEmptyText = errors.New("cannot embed empty text")

	// ErrEmbeddingCount is returned when a service answers with a different
	// number of vectors than texts it was sent.
	ErrEmbeddingCount = errors.New("embedding count does not match input")
)
