// Copyright 2025 Refspace Labs
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

	"github.com/dgraph-io/badger/v4"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/storage"
)

// ScanStateRepository implements storage.ScanStateRepository for BadgerDB.
type ScanStateRepository struct {
	backend *Backend
}

var _ storage.ScanStateRepository = (*ScanStateRepository)(nil)

// NewScanStateRepository creates a new ScanStateRepository.
func NewScanStateRepository(backend *Backend) *ScanStateRepository {
	return &ScanStateRepository{backend: backend}
}

// Close implements storage.Repository. The backend owns the database handle.
func (r *ScanStateRepository) Close() error {
	return nil
}

// PutScanState stores the snapshot for a partition, replacing any previous one.
func (r *ScanStateRepository) PutScanState(ctx context.Context, state *core.PartitionScanState) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeScanStateKey(state.Partition)
		if err := tx.Set(key, storage.MarshalScanState(state)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetScanState retrieves the snapshot for a partition.
// Returns nil, nil if no snapshot has been recorded.
func (r *ScanStateRepository) GetScanState(ctx context.Context, partition core.PartitionID) (*core.PartitionScanState, error) {
	var state *core.PartitionScanState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeScanStateKey(partition))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			state, unmarshalErr = storage.UnmarshalScanState(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DeleteScanState removes the snapshot for a partition.
func (r *ScanStateRepository) DeleteScanState(ctx context.Context, partition core.PartitionID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeScanStateKey(partition)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
