package storage

import (
	"context"

	"github.com/refspace/refindex/core"
)

// Repository provides common operations shared by all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the repository and releases resources.
	Close() error
}

// IndexRepository persists IndexRecords: the embedding store of the engine.
// All writes are upserts or deletes keyed by record ID, so they are
// idempotent and safe to retry.
type IndexRepository interface {
	Repository

	// PutIndexRecords upserts index records in one transaction.
	// Either every record is applied or none is; a partial batch is never
	// persisted.
	PutIndexRecords(ctx context.Context, records ...*core.IndexRecord) error

	// GetIndexRecord retrieves a single index record.
	// Returns ErrNotFound if no record exists for the ID.
	GetIndexRecord(ctx context.Context, partition core.PartitionID, id core.RecordID) (*core.IndexRecord, error)

	// GetIndexRecords retrieves multiple index records by ID.
	// Missing records are silently omitted from the result.
	GetIndexRecords(ctx context.Context, partition core.PartitionID, ids []core.RecordID) ([]*core.IndexRecord, error)

	// DeleteIndexRecords removes index records by ID.
	// Missing records are ignored; deletion is idempotent.
	DeleteIndexRecords(ctx context.Context, partition core.PartitionID, ids ...core.RecordID) error

	// ContentHashes returns the content hash of every index record in the
	// partition that was produced by the given model configuration. Records
	// from an incompatible model are omitted so they show up as "missing"
	// to the diff engine and get reindexed lazily.
	ContentHashes(ctx context.Context, partition core.PartitionID, modelID string, dimensions int) (map[core.RecordID]string, error)

	// RecordIDs lists all record IDs with an index record in the partition.
	RecordIDs(ctx context.Context, partition core.PartitionID) ([]core.RecordID, error)

	// CountByPartition returns the number of index records in the partition.
	CountByPartition(ctx context.Context, partition core.PartitionID) (int, error)

	// Partitions lists every partition with at least one index record.
	Partitions(ctx context.Context) ([]core.PartitionID, error)

	// DeletePartition removes every index record in the partition.
	// Returns the number of records removed.
	DeletePartition(ctx context.Context, partition core.PartitionID) (int, error)
}

// FailureRepository persists per-record failure/backoff state.
type FailureRepository interface {
	Repository

	// PutFailure upserts a failure record.
	PutFailure(ctx context.Context, record *core.FailureRecord) error

	// GetFailure retrieves the failure record for an ID.
	// Returns nil, nil if the record has no failure history.
	GetFailure(ctx context.Context, partition core.PartitionID, id core.RecordID) (*core.FailureRecord, error)

	// DeleteFailures removes failure records by ID. Missing records are
	// ignored; a successful index clears failure state this way.
	DeleteFailures(ctx context.Context, partition core.PartitionID, ids ...core.RecordID) error

	// FailuresByPartition lists all failure records in the partition.
	FailuresByPartition(ctx context.Context, partition core.PartitionID) ([]*core.FailureRecord, error)

	// Partitions lists every partition with at least one failure record.
	Partitions(ctx context.Context) ([]core.PartitionID, error)

	// DeletePartition removes every failure record in the partition.
	DeletePartition(ctx context.Context, partition core.PartitionID) (int, error)
}

// ScanStateRepository persists the advisory per-partition scan snapshot.
type ScanStateRepository interface {
	Repository

	// PutScanState stores the scan state for a partition, replacing any
	// previous snapshot. Written only after a full diff completes; it is
	// never partially updated.
	PutScanState(ctx context.Context, state *core.PartitionScanState) error

	// GetScanState retrieves the scan state for a partition.
	// Returns nil, nil if no snapshot has been recorded.
	GetScanState(ctx context.Context, partition core.PartitionID) (*core.PartitionScanState, error)

	// DeleteScanState removes the snapshot for a partition.
	DeleteScanState(ctx context.Context, partition core.PartitionID) error
}
