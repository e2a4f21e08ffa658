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


// Package jsonl implements source.ItemStore over a directory of JSONL
// files, one file per partition, named <partitionID>.jsonl. Each line holds
// one record:
//
//	{"id":"ABCD1234","version":3,"title":"...","abstract":"...","modified":"2025-06-01T12:00:00Z"}
//
// It exists so the CLI and seeder have a real source to run against; a
// production deployment would implement source.ItemStore over the actual
// library database. The aggregate methods (CountRecords, MaxClientModified)
// re-read the partition file on every call, so they are only nominally the
// cheap checks the interface intends; a database-backed store answers them
// with a query.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/source"
)

// Record is the JSONL wire shape of one source record.
type Record struct {
	ID       string    `json:"id"`
	Version  int64     `json:"version"`
	Title    string    `json:"title"`
	Abstract string    `json:"abstract"`
	Modified time.Time `json:"modified"`
}

// Store reads partitions from a directory of JSONL files.
type Store struct {
	dir string
}

var _ source.ItemStore = (*Store)(nil)

// NewStore creates a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) partitionPath(partition core.PartitionID) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.jsonl", partition))
}

// Partitions lists the partitions present in the directory.
func (s *Store) Partitions() ([]core.PartitionID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var partitions []core.PartitionID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, ".jsonl"), 10, 64)
		if err != nil {
			continue
		}
		partitions = append(partitions, core.PartitionID(id))
	}
	return partitions, nil
}

// readAll loads every record of a partition. A missing file is an empty
// partition, not an error: from the engine's point of view the records were
// deleted.
func (s *Store) readAll(partition core.PartitionID) ([]*core.SourceRecord, error) {
	f, err := os.Open(s.partitionPath(partition))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []*core.SourceRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var raw Record
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.partitionPath(partition), line, err)
		}
		records = append(records, &core.SourceRecord{
			ID:               core.RecordID(raw.ID),
			Partition:        partition,
			Version:          raw.Version,
			Title:            raw.Title,
			Body:             raw.Abstract,
			ClientModifiedAt: raw.Modified,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ListRecords returns one page of records in file order.
func (s *Store) ListRecords(ctx context.Context, partition core.PartitionID, cursor string, limit int) ([]*core.SourceRecord, string, error) {
	records, err := s.readAll(partition)
	if err != nil {
		return nil, "", err
	}

	offset := 0
	if cursor != "" {
		offset, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
	}
	if offset >= len(records) {
		return nil, "", nil
	}

	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	next := ""
	if end < len(records) {
		next = strconv.Itoa(end)
	}
	return records[offset:end], next, nil
}

// GetRecords loads records by ID; missing IDs are omitted.
func (s *Store) GetRecords(ctx context.Context, partition core.PartitionID, ids []core.RecordID) ([]*core.SourceRecord, error) {
	records, err := s.readAll(partition)
	if err != nil {
		return nil, err
	}
	wanted := make(map[core.RecordID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	matched := make([]*core.SourceRecord, 0, len(ids))
	for _, record := range records {
		if wanted[record.ID] {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// CountRecords returns the number of records in the partition.
func (s *Store) CountRecords(ctx context.Context, partition core.PartitionID) (int, error) {
	records, err := s.readAll(partition)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// MaxClientModified returns the newest modification timestamp, or zero time.
func (s *Store) MaxClientModified(ctx context.Context, partition core.PartitionID) (time.Time, error) {
	records, err := s.readAll(partition)
	if err != nil {
		return time.Time{}, err
	}
	var max time.Time
	for _, record := range records {
		if record.ClientModifiedAt.After(max) {
			max = record.ClientModifiedAt
		}
	}
	return max, nil
}

// ExistingIDs reports which IDs still exist in the partition.
func (s *Store) ExistingIDs(ctx context.Context, partition core.PartitionID, ids []core.RecordID) (map[core.RecordID]bool, error) {
	records, err := s.readAll(partition)
	if err != nil {
		return nil, err
	}
	present := make(map[core.RecordID]bool, len(records))
	for _, record := range records {
		present[record.ID] = true
	}
	existing := make(map[core.RecordID]bool, len(ids))
	for _, id := range ids {
		if present[id] {
			existing[id] = true
		}
	}
	return existing, nil
}
