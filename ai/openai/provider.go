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
	"log/slog"

	"github.com/poiesic/takeout/ai"
)

// Provider implements ai.AIProvider using an OpenAI-compatible service.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	logger   *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*providerOptions)

type providerOptions struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *providerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use. No request is made
// until the first embedding.
func NewProvider(config *ai.Config, opts ...Option) (ai.AIProvider, error) {
	options := &providerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	embedder, err := newEmbedder(config, options.logger)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:   config,
		embedder: embedder,
		logger:   options.logger.With("component", "openai-provider", "host", config.EmbeddingHost),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases resources held by the provider.
// The HTTP client holds nothing that needs releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
