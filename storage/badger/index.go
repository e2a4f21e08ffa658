package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/storage"
)

// IndexRepository implements storage.IndexRepository for BadgerDB.
type IndexRepository struct {
	backend *Backend
}

var _ storage.IndexRepository = (*IndexRepository)(nil)

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(backend *Backend) *IndexRepository {
	return &IndexRepository{backend: backend}
}

// Close implements storage.Repository. The backend owns the database handle.
func (r *IndexRepository) Close() error {
	return nil
}

// PutIndexRecords upserts index records in one transaction.
func (r *IndexRepository) PutIndexRecords(ctx context.Context, records ...*core.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if err := core.ValidateIndexRecord(record); err != nil {
				return err
			}
			key := makeIndexRecordKey(record.Partition, record.ID)
			if err := tx.Set(key, storage.MarshalIndexRecord(record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetIndexRecord retrieves a single index record.
func (r *IndexRepository) GetIndexRecord(ctx context.Context, partition core.PartitionID, id core.RecordID) (*core.IndexRecord, error) {
	var record *core.IndexRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexRecordKey(partition, id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalIndexRecord(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetIndexRecords retrieves multiple index records; missing IDs are omitted.
func (r *IndexRepository) GetIndexRecords(ctx context.Context, partition core.PartitionID, ids []core.RecordID) ([]*core.IndexRecord, error) {
	records := make([]*core.IndexRecord, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := tx.Get(makeIndexRecordKey(partition, id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				record, unmarshalErr := storage.UnmarshalIndexRecord(val)
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

// DeleteIndexRecords removes index records by ID. Missing IDs are ignored.
func (r *IndexRepository) DeleteIndexRecords(ctx context.Context, partition core.PartitionID, ids ...core.RecordID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeIndexRecordKey(partition, id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ContentHashes returns record ID to content hash for every record in the
// partition produced by the given model configuration. Records from an
// incompatible model are omitted so the diff engine reindexes them.
func (r *IndexRepository) ContentHashes(ctx context.Context, partition core.PartitionID, modelID string, dimensions int) (map[core.RecordID]string, error) {
	hashes := make(map[core.RecordID]string)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartitionPrefix(indexRecordPrefix, partition)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				record, unmarshalErr := storage.UnmarshalIndexRecord(val)
				if unmarshalErr != nil {
					return unmarshalErr
				}
				if record.CompatibleWith(modelID, dimensions) {
					hashes[record.ID] = record.ContentHash
				}
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
	return hashes, nil
}

// RecordIDs lists all record IDs with an index record in the partition.
func (r *IndexRepository) RecordIDs(ctx context.Context, partition core.PartitionID) ([]core.RecordID, error) {
	var ids []core.RecordID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartitionPrefix(indexRecordPrefix, partition)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if id := recordIDFromKey(indexRecordPrefix, iter.Item().Key()); id != "" {
				ids = append(ids, id)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountByPartition returns the number of index records in the partition.
func (r *IndexRepository) CountByPartition(ctx context.Context, partition core.PartitionID) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartitionPrefix(indexRecordPrefix, partition)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Partitions lists every partition with at least one index record.
func (r *IndexRepository) Partitions(ctx context.Context) ([]core.PartitionID, error) {
	return listPartitions(r.backend, indexRecordPrefix)
}

// DeletePartition removes every index record in the partition.
func (r *IndexRepository) DeletePartition(ctx context.Context, partition core.PartitionID) (int, error) {
	return deleteByPrefix(r.backend, makePartitionPrefix(indexRecordPrefix, partition))
}

// listPartitions collects the distinct partitions present under a key prefix.
func listPartitions(backend *Backend, prefix string) ([]core.PartitionID, error) {
	seen := make(map[core.PartitionID]bool)
	err := backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if partition, ok := partitionFromKey(prefix, iter.Item().Key()); ok {
				seen[partition] = true
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	partitions := make([]core.PartitionID, 0, len(seen))
	for partition := range seen {
		partitions = append(partitions, partition)
	}
	slices.Sort(partitions)
	return partitions, nil
}

// deleteByPrefix removes every key under the prefix in one transaction.
func deleteByPrefix(backend *Backend, prefix []byte) (int, error) {
	// Collect first: Badger iterators must not observe writes of the same txn.
	var keys [][]byte
	err := backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	err = backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
