package mock

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/source"
)

// ItemStore is a mutable in-memory test double for source.ItemStore.
// Records can be added, edited, and removed between engine passes to
// simulate an externally-mutating library. Function fields allow error
// injection per method.
type ItemStore struct {
	// ListRecordsFunc overrides ListRecords if set.
	ListRecordsFunc func(ctx context.Context, partition core.PartitionID, cursor string, limit int) ([]*core.SourceRecord, string, error)

	// CountRecordsFunc overrides CountRecords if set.
	CountRecordsFunc func(ctx context.Context, partition core.PartitionID) (int, error)

	mu         sync.RWMutex
	partitions map[core.PartitionID]map[core.RecordID]*core.SourceRecord
}

var _ source.ItemStore = (*ItemStore)(nil)

// NewItemStore creates an empty mock item store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		partitions: make(map[core.PartitionID]map[core.RecordID]*core.SourceRecord),
	}
}

// Put adds or replaces records, simulating source-side edits.
func (s *ItemStore) Put(records ...*core.SourceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		byID := s.partitions[record.Partition]
		if byID == nil {
			byID = make(map[core.RecordID]*core.SourceRecord)
			s.partitions[record.Partition] = byID
		}
		clone := *record
		byID[record.ID] = &clone
	}
}

// Remove deletes records, simulating source-side deletions.
func (s *ItemStore) Remove(partition core.PartitionID, ids ...core.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.partitions[partition], id)
	}
}

// sorted returns the partition's records ordered by ID for stable paging.
func (s *ItemStore) sorted(partition core.PartitionID) []*core.SourceRecord {
	byID := s.partitions[partition]
	records := make([]*core.SourceRecord, 0, len(byID))
	for _, record := range byID {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// ListRecords returns one page of records ordered by record ID.
func (s *ItemStore) ListRecords(ctx context.Context, partition core.PartitionID, cursor string, limit int) ([]*core.SourceRecord, string, error) {
	if s.ListRecordsFunc != nil {
		return s.ListRecordsFunc(ctx, partition, cursor, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.sorted(partition)
	offset := 0
	if cursor != "" {
		var err error
		offset, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", err
		}
	}
	if offset >= len(records) {
		return nil, "", nil
	}

	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	page := make([]*core.SourceRecord, end-offset)
	for i, record := range records[offset:end] {
		clone := *record
		page[i] = &clone
	}

	next := ""
	if end < len(records) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

// GetRecords loads records by ID; missing IDs are omitted.
func (s *ItemStore) GetRecords(ctx context.Context, partition core.PartitionID, ids []core.RecordID) ([]*core.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.partitions[partition]
	records := make([]*core.SourceRecord, 0, len(ids))
	for _, id := range ids {
		if record, ok := byID[id]; ok {
			clone := *record
			records = append(records, &clone)
		}
	}
	return records, nil
}

// CountRecords returns the number of records in the partition.
func (s *ItemStore) CountRecords(ctx context.Context, partition core.PartitionID) (int, error) {
	if s.CountRecordsFunc != nil {
		return s.CountRecordsFunc(ctx, partition)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.partitions[partition]), nil
}

// MaxClientModified returns the newest modification timestamp, or zero time.
func (s *ItemStore) MaxClientModified(ctx context.Context, partition core.PartitionID) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max time.Time
	for _, record := range s.partitions[partition] {
		if record.ClientModifiedAt.After(max) {
			max = record.ClientModifiedAt
		}
	}
	return max, nil
}

// ExistingIDs reports which IDs still exist in the partition.
func (s *ItemStore) ExistingIDs(ctx context.Context, partition core.PartitionID, ids []core.RecordID) (map[core.RecordID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.partitions[partition]
	existing := make(map[core.RecordID]bool, len(ids))
	for _, id := range ids {
		if _, ok := byID[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}
