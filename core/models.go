package core

import (
	"time"
)

// PartitionID identifies an independently-synchronized subset of the source
// library (for example, one library or group collection).
type PartitionID int64

// RecordID is the source-assigned identifier of a library record.
type RecordID string

// SourceRecord is a read-only view of a record in the external item store.
// The index engine never mutates source records; it only reads the fields
// needed for eligibility, hashing, and change ordering.
type SourceRecord struct {
	ID               RecordID
	Partition        PartitionID
	Version          int64 // Monotonic version assigned by the source
	Title            string
	Body             string    // Abstract or summary text
	ClientModifiedAt time.Time // Source-assigned modification time
}

// IndexRecord is the persisted embedding entry for one source record.
// An IndexRecord exists iff the source record exists, is eligible, and has
// been successfully embedded since its last content change.
type IndexRecord struct {
	ID               RecordID
	Partition        PartitionID
	SourceVersion    int64
	ClientModifiedAt time.Time
	ContentHash      string // Fingerprint of the exact text that was embedded
	Embedding        []byte // Int8-quantized vector, one byte per dimension
	Dimensions       int
	ModelID          string
	IndexedAt        time.Time
}

// CompatibleWith reports whether the record was produced by the given
// embedding model configuration. Records from another model or with other
// dimensions are due for reindexing.
func (r *IndexRecord) CompatibleWith(modelID string, dimensions int) bool {
	return r.ModelID == modelID && r.Dimensions == dimensions
}

// FailureRecord tracks the failure/backoff state of a record that could not
// be indexed. It is deleted on the next successful index of the record.
type FailureRecord struct {
	ID             RecordID
	Partition      PartitionID
	FailureCount   int
	LastError      string
	NextRetryAfter time.Time
}

// PartitionScanState is an advisory per-partition snapshot written after a
// successful full diff. Losing it only costs an extra full diff; it never
// causes incorrect results.
type PartitionScanState struct {
	Partition         PartitionID
	LastScanAt        time.Time
	MaxClientModified time.Time
	ItemCount         int
	EmbeddingCount    int
}
