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

package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/takeout/core"
)

// Key prefixes for different data types
const (
	documentPrefix      = "docrec"
	documentTablePrefix = "doctbl"
	documentIDSeq       = "docrecseq"
	schemaPrefix        = "schema"
	chunkPrefix         = "chunk"
	runPrefix           = "runrec"
)

// Table names may contain ':' so composite keys terminate them with a zero byte.
const tableTerminator = 0x00

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makePartialTableKey generates the prefix of a table's document index.
// Format: prefix:table\x00
func makePartialTableKey(table string) []byte {
	buf := make([]byte, 0, len(documentTablePrefix)+len(table)+2)
	buf = append(buf, documentTablePrefix+":"...)
	buf = append(buf, table...)
	return append(buf, tableTerminator)
}

// makeTableKey generates a composite key for the table index.
// Format: prefix:table\x00id
func makeTableKey(table string, id core.ID) []byte {
	// Write in BigEndian order so lexicographic sort matches insertion order
	return binary.BigEndian.AppendUint64(makePartialTableKey(table), uint64(id))
}

// tableKeyID extracts the document ID from a table index key.
func tableKeyID(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeSchemaKey generates a key for a table schema.
func makeSchemaKey(table string) []byte {
	return []byte(schemaPrefix + ":" + table)
}

// makePartialChunkKey generates the prefix of a table's chunks.
// Format: prefix:table\x00
func makePartialChunkKey(table string) []byte {
	buf := make([]byte, 0, len(chunkPrefix)+len(table)+2)
	buf = append(buf, chunkPrefix+":"...)
	buf = append(buf, table...)
	return append(buf, tableTerminator)
}

// makeDocumentChunkKey generates the prefix of one document's chunks.
// Format: prefix:table\x00docID
func makeDocumentChunkKey(table string, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(makePartialChunkKey(table), uint64(id))
}

// makeChunkKey generates a key for a single chunk.
// Format: prefix:table\x00docID index
func makeChunkKey(table string, id core.ID, index int) []byte {
	return binary.BigEndian.AppendUint32(makeDocumentChunkKey(table, id), uint32(index))
}

// makeCheckpointKey generates a key for an ingestion checkpoint.
func makeCheckpointKey(key string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", key))
}

// makeRunKey generates a time-ordered key for a run log entry.
// Format: prefix:startedAt runID
func makeRunKey(startedAt time.Time, runID string) []byte {
	buf := make([]byte, 0, len(runPrefix)+9+len(runID))
	buf = append(buf, runPrefix+":"...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(startedAt.UnixMicro()))
	return append(buf, runID...)
}
