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

package storage

import (
	"testing"
	"time"

	"github.com/poiesic/takeout/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC()
	doc := &core.Document{
		Id:          core.ID(42),
		Table:       "doc_search.all_documents",
		Title:       "Conversation 1",
		Content:     "Title: Conversation 1\n\nHuman: Hello 世界 🌍",
		Metadata:    `{"source_type":"conversation"}`,
		IngestedAt:  now.Format(time.RFC3339),
		InsertedAt:  now,
		ContentHash: core.IDFromContent("Human: Hello"),
	}

	data, err := MarshalDocument(doc)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Id, decoded.Id)
	assert.Equal(t, doc.Content, decoded.Content)
	assert.Equal(t, doc.ContentHash, decoded.ContentHash)
	assert.True(t, doc.InsertedAt.Equal(decoded.InsertedAt), "nanosecond timestamps survive")
}

func TestMarshalStoredRecord_DropsStagedPath(t *testing.T) {
	record := &core.StoredRecord{
		Document:   "/tmp/doc.txt",
		Metadata:   "{}",
		IngestedAt: "2025-01-01T00:00:00Z",
		StagedPath: "/tmp/doc.txt",
	}

	data, err := MarshalStoredRecord(record)
	require.NoError(t, err)

	decoded, err := UnmarshalStoredRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record.Document, decoded.Document)
	assert.Empty(t, decoded.StagedPath)
}

func TestMarshal_Deterministic(t *testing.T) {
	run := &core.Run{
		ID:           "run-1",
		Status:       "completed",
		Total:        3,
		Processed:    3,
		StartedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RecentErrors: []string{"a", "b"},
	}

	a, err := MarshalRun(run)
	require.NoError(t, err)
	b, err := MarshalRun(run)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	decoded, err := UnmarshalRun(a)
	require.NoError(t, err)
	assert.Equal(t, run.RecentErrors, decoded.RecentErrors)
	assert.True(t, run.StartedAt.Equal(decoded.StartedAt))
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	cp := &core.Checkpoint{
		Key:    "/data/export.json",
		Digest: core.IDFromContent("export"),
		Cursor: 200,
		Failed: []int{3, 17},
		RunID:  "run-1",
	}

	data, err := MarshalCheckpoint(cp)
	require.NoError(t, err)
	decoded, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, cp.Cursor, decoded.Cursor)
	assert.Equal(t, cp.Failed, decoded.Failed)
	assert.Equal(t, cp.Digest, decoded.Digest)
}

func TestMarshalUnmarshalChunkAndSchema(t *testing.T) {
	chunk := &core.Chunk{DocumentId: 7, Index: 2, Text: "chunk", Vector: []float32{0.1, 0.2}}
	data, err := MarshalChunk(chunk)
	require.NoError(t, err)
	decodedChunk, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk, decodedChunk)

	schema := core.DefaultSchema("t")
	schema.Index = &core.IndexSpec{Column: "text", Model: "m", ChunkSize: 100, ChunkOverlap: 10}
	data, err = MarshalSchema(schema)
	require.NoError(t, err)
	decodedSchema, err := UnmarshalSchema(data)
	require.NoError(t, err)
	assert.Equal(t, schema.Index, decodedSchema.Index)
	assert.Equal(t, schema.MetadataColumn, decodedSchema.MetadataColumn)
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"wrong type", []byte{0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDocument(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshal_Nil(t *testing.T) {
	_, err := MarshalDocument(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
