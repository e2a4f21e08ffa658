package core

import (
	"errors"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the persisted types. Timestamps are
// stored as Unix microseconds; the zero time is encoded as 0 so an unset
// MaxClientModified survives a round trip as the zero time.

var (
	errTruncatedValue = errors.New("truncated value")
	errNegativeLength = errors.New("negative length")
)

func timeToMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func microToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func marshalBytes(data []byte, bs []byte) (n int) {
	n = varint.Int.Marshal(len(data), bs)
	n += copy(bs[n:], data)
	return
}

func unmarshalBytes(bs []byte) (data []byte, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 {
		err = errNegativeLength
		return
	}
	if length > len(bs)-n {
		err = errTruncatedValue
		return
	}
	data = make([]byte, length)
	n += copy(data, bs[n:n+length])
	return
}

func sizeBytes(data []byte) int {
	return varint.Int.Size(len(data)) + len(data)
}

func skipBytes(bs []byte) (n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 {
		err = errNegativeLength
		return
	}
	if length > len(bs)-n {
		err = errTruncatedValue
		return
	}
	n += length
	return
}

// IndexRecordMUS serializes IndexRecord values in MUS format.
var IndexRecordMUS = indexRecordMUS{}

type indexRecordMUS struct{}

func (indexRecordMUS) Marshal(v IndexRecord, bs []byte) (n int) {
	n = ord.String.Marshal(string(v.ID), bs)
	n += varint.Int64.Marshal(int64(v.Partition), bs[n:])
	n += varint.Int64.Marshal(v.SourceVersion, bs[n:])
	n += varint.Int64.Marshal(timeToMicro(v.ClientModifiedAt), bs[n:])
	n += ord.String.Marshal(v.ContentHash, bs[n:])
	n += marshalBytes(v.Embedding, bs[n:])
	n += varint.Int.Marshal(v.Dimensions, bs[n:])
	n += ord.String.Marshal(v.ModelID, bs[n:])
	n += varint.Int64.Marshal(timeToMicro(v.IndexedAt), bs[n:])
	return
}

func (indexRecordMUS) Unmarshal(bs []byte) (v IndexRecord, n int, err error) {
	var n1 int
	id, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ID = RecordID(id)
	partition, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Partition = PartitionID(partition)
	v.SourceVersion, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	modified, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ClientModifiedAt = microToTime(modified)
	v.ContentHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Embedding, n1, err = unmarshalBytes(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Dimensions, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ModelID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	indexed, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.IndexedAt = microToTime(indexed)
	return
}

func (indexRecordMUS) Size(v IndexRecord) (size int) {
	size = ord.String.Size(string(v.ID))
	size += varint.Int64.Size(int64(v.Partition))
	size += varint.Int64.Size(v.SourceVersion)
	size += varint.Int64.Size(timeToMicro(v.ClientModifiedAt))
	size += ord.String.Size(v.ContentHash)
	size += sizeBytes(v.Embedding)
	size += varint.Int.Size(v.Dimensions)
	size += ord.String.Size(v.ModelID)
	size += varint.Int64.Size(timeToMicro(v.IndexedAt))
	return
}

func (indexRecordMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		n1, err = varint.Int64.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = skipBytes(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int64.Skip(bs[n:])
	n += n1
	return
}

// FailureRecordMUS serializes FailureRecord values in MUS format.
var FailureRecordMUS = failureRecordMUS{}

type failureRecordMUS struct{}

func (failureRecordMUS) Marshal(v FailureRecord, bs []byte) (n int) {
	n = ord.String.Marshal(string(v.ID), bs)
	n += varint.Int64.Marshal(int64(v.Partition), bs[n:])
	n += varint.Int.Marshal(v.FailureCount, bs[n:])
	n += ord.String.Marshal(v.LastError, bs[n:])
	n += varint.Int64.Marshal(timeToMicro(v.NextRetryAfter), bs[n:])
	return
}

func (failureRecordMUS) Unmarshal(bs []byte) (v FailureRecord, n int, err error) {
	var n1 int
	id, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ID = RecordID(id)
	partition, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Partition = PartitionID(partition)
	v.FailureCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	retryAfter, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.NextRetryAfter = microToTime(retryAfter)
	return
}

func (failureRecordMUS) Size(v FailureRecord) (size int) {
	size = ord.String.Size(string(v.ID))
	size += varint.Int64.Size(int64(v.Partition))
	size += varint.Int.Size(v.FailureCount)
	size += ord.String.Size(v.LastError)
	size += varint.Int64.Size(timeToMicro(v.NextRetryAfter))
	return
}

func (failureRecordMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	n1, err = varint.Int64.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int64.Skip(bs[n:])
	n += n1
	return
}

// PartitionScanStateMUS serializes PartitionScanState values in MUS format.
var PartitionScanStateMUS = partitionScanStateMUS{}

type partitionScanStateMUS struct{}

func (partitionScanStateMUS) Marshal(v PartitionScanState, bs []byte) (n int) {
	n = varint.Int64.Marshal(int64(v.Partition), bs)
	n += varint.Int64.Marshal(timeToMicro(v.LastScanAt), bs[n:])
	n += varint.Int64.Marshal(timeToMicro(v.MaxClientModified), bs[n:])
	n += varint.Int.Marshal(v.ItemCount, bs[n:])
	n += varint.Int.Marshal(v.EmbeddingCount, bs[n:])
	return
}

func (partitionScanStateMUS) Unmarshal(bs []byte) (v PartitionScanState, n int, err error) {
	var n1 int
	partition, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Partition = PartitionID(partition)
	lastScan, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastScanAt = microToTime(lastScan)
	maxModified, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MaxClientModified = microToTime(maxModified)
	v.ItemCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.EmbeddingCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (partitionScanStateMUS) Size(v PartitionScanState) (size int) {
	size = varint.Int64.Size(int64(v.Partition))
	size += varint.Int64.Size(timeToMicro(v.LastScanAt))
	size += varint.Int64.Size(timeToMicro(v.MaxClientModified))
	size += varint.Int.Size(v.ItemCount)
	size += varint.Int.Size(v.EmbeddingCount)
	return
}

func (partitionScanStateMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = varint.Int64.Skip(bs)
	if err != nil {
		return
	}
	for i := 0; i < 2; i++ {
		n1, err = varint.Int64.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	return
}
