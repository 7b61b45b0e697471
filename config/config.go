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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/takeout/ai"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/index"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultTable is the unified document table every source is loaded into.
	DefaultTable = "doc_search.all_documents"

	// DefaultBatchSize is the number of records stored per batch.
	DefaultBatchSize = 100

	// HomeEnv names the environment variable overriding the data directory.
	HomeEnv = "TAKEOUT_HOME"

	// FileName is the name of the config file inside the data directory.
	FileName = "config.yaml"
)

// Config holds the settings of the tool.
type Config struct {
	Home       string      `yaml:"home"`        // Data directory holding the database
	Table      string      `yaml:"table"`       // Target document table
	BatchSize  int         `yaml:"batch_size"`  // Records per ingestion batch
	StagingDir string      `yaml:"staging_dir"` // Directory for staged documents, empty for the system temp dir
	Index      IndexConfig `yaml:"index"`
}

// IndexConfig configures the embedding index.
type IndexConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`  // OpenAI-compatible embedding service
	Model        string `yaml:"model"` // Embedding model
	Token        string `yaml:"token"`
	BatchSize    int    `yaml:"batch_size"` // Texts per embedding request
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	PoolSize     int    `yaml:"pool_size"` // Background indexing workers, 0 for the default
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Home:      DefaultHome(),
		Table:     DefaultTable,
		BatchSize: DefaultBatchSize,
		Index: IndexConfig{
			Enabled:      true,
			Host:         aiDefaults.EmbeddingHost,
			Model:        aiDefaults.EmbeddingModel,
			Token:        aiDefaults.Token,
			BatchSize:    aiDefaults.BatchSize,
			ChunkSize:    index.DefaultChunkSize,
			ChunkOverlap: index.DefaultChunkOverlap,
		},
	}
}

// DefaultHome returns $TAKEOUT_HOME, or ~/.takeout when it is unset.
func DefaultHome() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".takeout"
	}
	return filepath.Join(dir, ".takeout")
}

// Load reads path over DefaultConfig. A missing file yields the defaults.
// A path of the form "env:NAME" reads the YAML document from variable NAME.
func Load(path string) (*Config, error) {
	var contents []byte
	if name, ok := strings.CutPrefix(path, "env:"); ok {
		value := os.Getenv(name)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s is not set", name)
		}
		contents = []byte(value)
	} else {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return DefaultConfig(), nil
		case err != nil:
			return nil, fmt.Errorf("failed to read config from file %s: %w", path, err)
		}
		contents = data
	}
	return Parse(contents)
}

// Parse decodes a YAML document over DefaultConfig and validates the result.
func Parse(contents []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(contents)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("%w: home is required", ErrInvalidConfig)
	}
	if c.Table == "" {
		return fmt.Errorf("%w: table is required", ErrInvalidConfig)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be at least 1, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.Index.ChunkSize < 0 || c.Index.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk settings must not be negative", ErrInvalidConfig)
	}
	if c.Index.ChunkSize > 0 && c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be smaller than chunk_size %d",
			ErrInvalidConfig, c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	if c.Index.PoolSize < 0 {
		return fmt.Errorf("%w: pool_size must not be negative", ErrInvalidConfig)
	}
	if c.Index.Enabled {
		if err := c.AIConfig().Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// DatabasePath is the directory of the document database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Home, "db")
}

// AIConfig returns the embedding service settings.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Index.Host),
		ai.WithEmbeddingModel(c.Index.Model),
		ai.WithToken(c.Index.Token),
		ai.WithBatchSize(c.Index.BatchSize),
	)
}

// IndexSpec describes the embedding index recorded in the table schema.
// It is nil when indexing is disabled.
func (c *Config) IndexSpec() *core.IndexSpec {
	if !c.Index.Enabled {
		return nil
	}
	spec := index.Spec(c.Index.Model, c.Index.ChunkSize, c.Index.ChunkOverlap)
	return &spec
}

// Write stores c as YAML at path, creating parent directories.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
