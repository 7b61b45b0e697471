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

package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/takeout/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	cfg := ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434"))

	provider, err := NewProvider(cfg)
	require.NoError(t, err)
	defer provider.Close()

	assert.NotNil(t, provider.Embedder())
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.ErrorIs(t, err, ai.ErrInvalidConfig)

	_, err = NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost("")))
	assert.ErrorIs(t, err, ai.ErrInvalidConfig)
}

// embeddingServer answers OpenAI embedding requests with [len(text), position, 1].
func embeddingServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)

		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(payload.Input))
		for i, text := range payload.Input {
			data[i] = item{Object: "embedding", Embedding: []float32{float32(len(text)), float32(i), 1}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  payload.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEmbedder_Batches(t *testing.T) {
	var requests atomic.Int32
	server := embeddingServer(t, &requests)

	provider, err := NewProvider(ai.NewConfig(
		ai.WithEmbeddingHost(server.URL),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithBatchSize(2),
	))
	require.NoError(t, err)
	defer provider.Close()

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := provider.Embedder().EmbedTexts(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
	}
	assert.EqualValues(t, 3, requests.Load())

	single, err := provider.Embedder().EmbedText(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), single[0])
}

func TestEmbedder_RejectsBlankText(t *testing.T) {
	var requests atomic.Int32
	server := embeddingServer(t, &requests)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(server.URL)))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(t.Context(), []string{"fine", "  "})
	assert.ErrorIs(t, err, ai.ErrEmptyText)
	assert.Zero(t, requests.Load())

	vectors, err := embedder.EmbedTexts(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedder_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(server.URL)))
	require.NoError(t, err)

	_, err = embedder.EmbedText(t.Context(), "hello")
	assert.Error(t, err)
}
