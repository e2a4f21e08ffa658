package source

import (
	"context"
	"time"

	"github.com/refspace/refindex/core"
)

// ItemStore is the read-only contract the index engine holds against the
// external record store. Implementations must declare exactly which fields
// each page carries: every returned SourceRecord must have ID, Version,
// Title, Body, and ClientModifiedAt populated.
//
// The aggregate queries (CountRecords, MaxClientModified) back the cheap
// pre-check that decides whether a full diff is needed, so they must be
// inexpensive enough to call on every scheduler tick.
type ItemStore interface {
	// ListRecords returns one page of records for the partition, in a
	// stable order, plus the cursor for the next page. An empty cursor
	// starts from the beginning; an empty returned cursor means the
	// partition is exhausted.
	ListRecords(ctx context.Context, partition core.PartitionID, cursor string, limit int) ([]*core.SourceRecord, string, error)

	// GetRecords loads the records with the given IDs. Records deleted
	// from the source since the IDs were collected are silently omitted.
	GetRecords(ctx context.Context, partition core.PartitionID, ids []core.RecordID) ([]*core.SourceRecord, error)

	// CountRecords returns the number of records in the partition.
	CountRecords(ctx context.Context, partition core.PartitionID) (int, error)

	// MaxClientModified returns the newest client-modified timestamp in
	// the partition, or the zero time for an empty partition.
	MaxClientModified(ctx context.Context, partition core.PartitionID) (time.Time, error)

	// ExistingIDs reports which of the given IDs still exist in the
	// partition. Used for orphan detection; must be cheap for batches of
	// a few hundred IDs.
	ExistingIDs(ctx context.Context, partition core.PartitionID, ids []core.RecordID) (map[core.RecordID]bool, error)
}
