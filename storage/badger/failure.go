package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/storage"
)

// FailureRepository implements storage.FailureRepository for BadgerDB.
type FailureRepository struct {
	backend *Backend
}

var _ storage.FailureRepository = (*FailureRepository)(nil)

// NewFailureRepository creates a new FailureRepository.
func NewFailureRepository(backend *Backend) *FailureRepository {
	return &FailureRepository{backend: backend}
}

// Close implements storage.Repository. The backend owns the database handle.
func (r *FailureRepository) Close() error {
	return nil
}

// PutFailure upserts a failure record.
func (r *FailureRepository) PutFailure(ctx context.Context, record *core.FailureRecord) error {
	if err := core.ValidateFailureRecord(record); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFailureRecordKey(record.Partition, record.ID)
		if err := tx.Set(key, storage.MarshalFailureRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetFailure retrieves the failure record for an ID.
// Returns nil, nil if the record has no failure history.
func (r *FailureRepository) GetFailure(ctx context.Context, partition core.PartitionID, id core.RecordID) (*core.FailureRecord, error) {
	var record *core.FailureRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeFailureRecordKey(partition, id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalFailureRecord(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteFailures removes failure records by ID. Missing IDs are ignored.
func (r *FailureRepository) DeleteFailures(ctx context.Context, partition core.PartitionID, ids ...core.RecordID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeFailureRecordKey(partition, id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FailuresByPartition lists all failure records in the partition.
func (r *FailureRepository) FailuresByPartition(ctx context.Context, partition core.PartitionID) ([]*core.FailureRecord, error) {
	var records []*core.FailureRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartitionPrefix(failureRecordPrefix, partition)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				record, unmarshalErr := storage.UnmarshalFailureRecord(val)
				if unmarshalErr != nil {
					return unmarshalErr
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Partitions lists every partition with at least one failure record.
func (r *FailureRepository) Partitions(ctx context.Context) ([]core.PartitionID, error) {
	return listPartitions(r.backend, failureRecordPrefix)
}

// DeletePartition removes every failure record in the partition.
func (r *FailureRepository) DeletePartition(ctx context.Context, partition core.PartitionID) (int, error) {
	return deleteByPrefix(r.backend, makePartitionPrefix(failureRecordPrefix, partition))
}
