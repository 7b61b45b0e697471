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
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/takeout/core"
)

// Repositories bundles every BadgerDB repository over one backend.
type Repositories struct {
	Backend     *Backend
	Documents   *DocumentRepository
	Chunks      *ChunkRepository
	Checkpoints *CheckpointRepository
	Runs        *RunRepository
}

// NewRepository opens the database directory at path.
func NewRepository(path string, logger *slog.Logger) (*Repositories, error) {
	return open(path, false, logger)
}

// NewMemoryRepository opens an in-memory database.
func NewMemoryRepository(logger *slog.Logger) (*Repositories, error) {
	return open("", true, logger)
}

func open(path string, inMemory bool, logger *slog.Logger) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory, logger)
	if err != nil {
		return nil, err
	}

	docs, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Backend:     backend,
		Documents:   docs,
		Chunks:      NewChunkRepository(backend),
		Checkpoints: NewCheckpointRepository(backend),
		Runs:        NewRunRepository(backend),
	}, nil
}

// Table returns the document store for table.
func (r *Repositories) Table(table string, index *core.IndexSpec) (*TableStore, error) {
	return NewTableStore(r.Documents, table, index)
}

// Close closes every repository and then the backend.
func (r *Repositories) Close() error {
	var errs *multierror.Error
	for _, closer := range []interface{ Close() error }{r.Runs, r.Checkpoints, r.Chunks, r.Documents, r.Backend} {
		if err := closer.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
