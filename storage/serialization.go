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
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/poiesic/takeout/core"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("storage: cbor encoder: %v", err))
	}

	dm, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("storage: cbor decoder: %v", err))
	}

	encMode, decMode = em, dm
}

func marshal[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil %T", ErrSerializationFailed, v)
	}
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrSerializationFailed)
	}
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &v, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) ([]byte, error) { return marshal(doc) }

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) { return unmarshal[core.Document](data) }

// MarshalStoredRecord serializes the persisted fields of a StoredRecord.
func MarshalStoredRecord(record *core.StoredRecord) ([]byte, error) { return marshal(record) }

// UnmarshalStoredRecord deserializes a StoredRecord from bytes.
func UnmarshalStoredRecord(data []byte) (*core.StoredRecord, error) {
	return unmarshal[core.StoredRecord](data)
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) ([]byte, error) { return marshal(chunk) }

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) { return unmarshal[core.Chunk](data) }

// MarshalSchema serializes a Schema to bytes.
func MarshalSchema(schema *core.Schema) ([]byte, error) { return marshal(schema) }

// UnmarshalSchema deserializes a Schema from bytes.
func UnmarshalSchema(data []byte) (*core.Schema, error) { return unmarshal[core.Schema](data) }

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) { return marshal(checkpoint) }

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return unmarshal[core.Checkpoint](data)
}

// MarshalRun serializes a Run to bytes.
func MarshalRun(run *core.Run) ([]byte, error) { return marshal(run) }

// UnmarshalRun deserializes a Run from bytes.
func UnmarshalRun(data []byte) (*core.Run, error) { return unmarshal[core.Run](data) }
