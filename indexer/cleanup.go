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


package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/source"
	"github.com/refspace/refindex/storage"
)

// Cleaner removes index state that no longer corresponds to source records.
type Cleaner struct {
	index    storage.IndexRepository
	failures storage.FailureRepository
	scans    storage.ScanStateRepository
	src      source.ItemStore
	cfg      *Config
	logger   *slog.Logger
}

// NewCleaner creates a cleaner over the given repositories and source.
func NewCleaner(index storage.IndexRepository, failures storage.FailureRepository, scans storage.ScanStateRepository, src source.ItemStore, cfg *Config, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		index:    index,
		failures: failures,
		scans:    scans,
		src:      src,
		cfg:      cfg,
		logger:   logger,
	}
}

// CleanupOrphanedEmbeddings deletes index records whose source record no
// longer exists. Existence checks run in batches so large partitions do not
// need one source query per record. Returns the number of records removed.
func (c *Cleaner) CleanupOrphanedEmbeddings(ctx context.Context, partition core.PartitionID) (int, error) {
	indexed, err := c.index.RecordIDs(ctx, partition)
	if err != nil {
		return 0, fmt.Errorf("failed to list index records: %w", err)
	}
	if len(indexed) == 0 {
		return 0, nil
	}

	var orphans []core.RecordID
	for start := 0; start < len(indexed); start += c.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		end := start + c.cfg.BatchSize
		if end > len(indexed) {
			end = len(indexed)
		}
		batch := indexed[start:end]

		existing, err := c.src.ExistingIDs(ctx, partition, batch)
		if err != nil {
			return 0, fmt.Errorf("failed to check source records: %w", err)
		}
		for _, id := range batch {
			if !existing[id] {
				orphans = append(orphans, id)
			}
		}
	}

	if len(orphans) == 0 {
		return 0, nil
	}

	if err := c.index.DeleteIndexRecords(ctx, partition, orphans...); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned index records: %w", err)
	}
	if err := c.failures.DeleteFailures(ctx, partition, orphans...); err != nil {
		return 0, fmt.Errorf("failed to delete orphaned failure records: %w", err)
	}

	c.logger.Info("removed orphaned embeddings", "partition", partition, "count", len(orphans))
	return len(orphans), nil
}

// CleanupUnsyncedPartitions removes all index, failure and scan state for
// partitions not present in the given set. Returns the number of partitions
// removed.
func (c *Cleaner) CleanupUnsyncedPartitions(ctx context.Context, keep []core.PartitionID) (int, error) {
	keepSet := make(map[core.PartitionID]bool, len(keep))
	for _, partition := range keep {
		keepSet[partition] = true
	}

	partitions, err := c.index.Partitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list index partitions: %w", err)
	}
	failurePartitions, err := c.failures.Partitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list failure partitions: %w", err)
	}
	seen := make(map[core.PartitionID]bool, len(partitions))
	for _, partition := range partitions {
		seen[partition] = true
	}
	for _, partition := range failurePartitions {
		if !seen[partition] {
			seen[partition] = true
			partitions = append(partitions, partition)
		}
	}

	removed := 0
	for _, partition := range partitions {
		if keepSet[partition] {
			continue
		}
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		if _, err := c.index.DeletePartition(ctx, partition); err != nil {
			return removed, fmt.Errorf("failed to delete index partition %d: %w", partition, err)
		}
		if _, err := c.failures.DeletePartition(ctx, partition); err != nil {
			return removed, fmt.Errorf("failed to delete failure partition %d: %w", partition, err)
		}
		if err := c.scans.DeleteScanState(ctx, partition); err != nil {
			return removed, fmt.Errorf("failed to delete scan state for partition %d: %w", partition, err)
		}
		removed++
		c.logger.Info("removed unsynced partition", "partition", partition)
	}
	return removed, nil
}

// CleanupStaleFailureRecords deletes failure records whose source record no
// longer exists, so permanently failed ids do not linger after deletion.
// Returns the number of records removed.
func (c *Cleaner) CleanupStaleFailureRecords(ctx context.Context, partition core.PartitionID) (int, error) {
	failures, err := c.failures.FailuresByPartition(ctx, partition)
	if err != nil {
		return 0, fmt.Errorf("failed to list failure records: %w", err)
	}
	if len(failures) == 0 {
		return 0, nil
	}

	ids := make([]core.RecordID, len(failures))
	for i, record := range failures {
		ids[i] = record.ID
	}

	var stale []core.RecordID
	for start := 0; start < len(ids); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		existing, err := c.src.ExistingIDs(ctx, partition, batch)
		if err != nil {
			return 0, fmt.Errorf("failed to check source records: %w", err)
		}
		for _, id := range batch {
			if !existing[id] {
				stale = append(stale, id)
			}
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}
	if err := c.failures.DeleteFailures(ctx, partition, stale...); err != nil {
		return 0, fmt.Errorf("failed to delete stale failure records: %w", err)
	}
	c.logger.Debug("removed stale failure records", "partition", partition, "count", len(stale))
	return len(stale), nil
}
