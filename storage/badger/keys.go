package badger

import (
	"encoding/binary"

	"github.com/refspace/refindex/core"
)

// Key prefixes for different data types
const (
	indexRecordPrefix   = "emb"
	failureRecordPrefix = "fail"
	scanStatePrefix     = "scan"
)

// Keys are laid out as prefix:partition:recordID where the partition is a
// fixed-width BigEndian uint64, so a prefix scan over prefix:partition:
// visits exactly one partition.

func makePartitionPrefix(prefix string, partition core.PartitionID) []byte {
	head := []byte(prefix + ":")
	buf := make([]byte, len(head)+9)
	offset := copy(buf, head)
	binary.BigEndian.PutUint64(buf[offset:], uint64(partition))
	buf[offset+8] = ':'
	return buf
}

// makeIndexRecordKey generates a key for an index record.
func makeIndexRecordKey(partition core.PartitionID, id core.RecordID) []byte {
	prefix := makePartitionPrefix(indexRecordPrefix, partition)
	return append(prefix, []byte(id)...)
}

// makeFailureRecordKey generates a key for a failure record.
func makeFailureRecordKey(partition core.PartitionID, id core.RecordID) []byte {
	prefix := makePartitionPrefix(failureRecordPrefix, partition)
	return append(prefix, []byte(id)...)
}

// makeScanStateKey generates a key for a partition scan state snapshot.
func makeScanStateKey(partition core.PartitionID) []byte {
	head := []byte(scanStatePrefix + ":")
	buf := make([]byte, len(head)+8)
	offset := copy(buf, head)
	binary.BigEndian.PutUint64(buf[offset:], uint64(partition))
	return buf
}

// recordIDFromKey extracts the record ID from a prefix:partition:recordID key.
// Returns "" if the key is shorter than the fixed layout allows.
func recordIDFromKey(prefix string, key []byte) core.RecordID {
	head := len(prefix) + 1 + 8 + 1
	if len(key) <= head {
		return ""
	}
	return core.RecordID(key[head:])
}

// partitionFromKey extracts the partition from a prefix:partition... key.
func partitionFromKey(prefix string, key []byte) (core.PartitionID, bool) {
	head := len(prefix) + 1
	if len(key) < head+8 {
		return 0, false
	}
	return core.PartitionID(binary.BigEndian.Uint64(key[head : head+8])), true
}
