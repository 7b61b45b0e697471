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
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/takeout/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv(HomeEnv, "/data/takeout")

	cfg := DefaultConfig()
	assert.Equal(t, "/data/takeout", cfg.Home)
	assert.Equal(t, DefaultTable, cfg.Table)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.True(t, cfg.Index.Enabled)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Index.Host)
	assert.Equal(t, index.DefaultChunkSize, cfg.Index.ChunkSize)
	assert.Equal(t, filepath.Join("/data/takeout", "db"), cfg.DatabasePath())
	require.NoError(t, cfg.Validate())
}

func TestDefaultHome_Fallback(t *testing.T) {
	t.Setenv(HomeEnv, "")
	assert.Equal(t, ".takeout", filepath.Base(DefaultHome()))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, cfg.Table)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
home: /srv/takeout
batch_size: 25
index:
  model: nomic-embed-text
  chunk_size: 800
  chunk_overlap: 80
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/takeout", cfg.Home)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, DefaultTable, cfg.Table, "unset fields keep their defaults")
	assert.True(t, cfg.Index.Enabled)
	assert.Equal(t, "nomic-embed-text", cfg.Index.Model)

	spec := cfg.IndexSpec()
	require.NotNil(t, spec)
	assert.Equal(t, 800, spec.ChunkSize)
	assert.Equal(t, 80, spec.ChunkOverlap)
	assert.Equal(t, index.ChunkColumn, spec.Column)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TAKEOUT_CONFIG_YAML", "table: notes\nindex:\n  enabled: false\n")

	cfg, err := Load("env:TAKEOUT_CONFIG_YAML")
	require.NoError(t, err)
	assert.Equal(t, "notes", cfg.Table)
	assert.Nil(t, cfg.IndexSpec())

	_, err = Load("env:TAKEOUT_UNSET_VARIABLE")
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("unknown_field: 1\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Parse([]byte("batch_size: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte("index:\n  chunk_size: 100\n  chunk_overlap: 100\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte("table: ''\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte("index:\n  model: ''\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := Parse([]byte("index:\n  enabled: false\n  model: ''\n"))
	require.NoError(t, err, "embedding settings are ignored when indexing is disabled")
	assert.False(t, cfg.Index.Enabled)

	cfg, err = Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, cfg.Table)
}

func TestAIConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Host = "http://embeddings:8080"
	cfg.Index.Token = ""
	cfg.Index.BatchSize = 8

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://embeddings:8080/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "none", aiCfg.Token)
	assert.Equal(t, 8, aiCfg.BatchSize)
}

func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := DefaultConfig()
	cfg.BatchSize = 42

	require.NoError(t, cfg.Write(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
