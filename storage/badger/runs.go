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
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/takeout/core"
	"github.com/poiesic/takeout/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns all resources.
func (r *RunRepository) Close() error {
	return nil
}

// SaveRun stores run under a key ordered by its start time.
func (r *RunRepository) SaveRun(ctx context.Context, run *core.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id required", storage.ErrInvalidQuery)
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		value, err := storage.MarshalRun(run)
		if err != nil {
			return err
		}
		if err := tx.Set(makeRunKey(run.StartedAt, run.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// RecentRuns returns up to limit runs, most recently started first.
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit %d", storage.ErrInvalidQuery, limit)
	}

	var runs []*core.Run
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(runPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible key with this prefix
		start := append(append([]byte{}, prefix...), 0xFF)
		for iter.Seek(start); iter.Valid() && len(runs) < limit; iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				run, err := storage.UnmarshalRun(val)
				if err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)

	return runs, err
}
