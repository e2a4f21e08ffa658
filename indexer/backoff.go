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
	"sort"
	"time"

	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/storage"
)

// FailureTracker manages per-record failure state with exponential backoff.
// Each failure doubles the retry delay; records that hit the failure ceiling
// are excluded from automatic retry until the source record changes.
type FailureTracker struct {
	failures storage.FailureRepository
	cfg      *Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewFailureTracker creates a failure tracker backed by the given repository.
func NewFailureTracker(failures storage.FailureRepository, cfg *Config, logger *slog.Logger) *FailureTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailureTracker{
		failures: failures,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// backoffDelay computes the retry delay after the given failure count:
// BackoffBase * 2^(count-1), capped at BackoffMax.
func (t *FailureTracker) backoffDelay(failureCount int) time.Duration {
	delay := t.cfg.BackoffBase
	for i := 1; i < failureCount; i++ {
		delay *= 2
		if delay >= t.cfg.BackoffMax {
			return t.cfg.BackoffMax
		}
	}
	if delay > t.cfg.BackoffMax {
		return t.cfg.BackoffMax
	}
	return delay
}

// RecordFailure increments the failure count for a record and schedules its
// next retry. The returned record reflects the updated state.
func (t *FailureTracker) RecordFailure(ctx context.Context, partition core.PartitionID, id core.RecordID, message string) (*core.FailureRecord, error) {
	existing, err := t.failures.GetFailure(ctx, partition, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load failure record: %w", err)
	}

	record := &core.FailureRecord{
		ID:        id,
		Partition: partition,
	}
	if existing != nil {
		record.FailureCount = existing.FailureCount
	}
	record.FailureCount++
	record.LastError = message
	record.NextRetryAfter = t.now().Add(t.backoffDelay(record.FailureCount))

	if err := t.failures.PutFailure(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store failure record: %w", err)
	}

	if record.FailureCount >= t.cfg.MaxFailureCount {
		t.logger.Warn("record permanently failed",
			"partition", partition, "id", id,
			"failureCount", record.FailureCount, "error", message)
	} else {
		t.logger.Debug("recorded indexing failure",
			"partition", partition, "id", id,
			"failureCount", record.FailureCount,
			"nextRetryAfter", record.NextRetryAfter)
	}
	return record, nil
}

// ClearFailure removes failure state for records that indexed successfully.
func (t *FailureTracker) ClearFailure(ctx context.Context, partition core.PartitionID, ids ...core.RecordID) error {
	if len(ids) == 0 {
		return nil
	}
	return t.failures.DeleteFailures(ctx, partition, ids...)
}

// ItemsReadyForRetry returns records whose backoff window has elapsed and
// that have not hit the permanent failure ceiling, sorted by ID.
func (t *FailureTracker) ItemsReadyForRetry(ctx context.Context, partition core.PartitionID) ([]core.RecordID, error) {
	records, err := t.failures.FailuresByPartition(ctx, partition)
	if err != nil {
		return nil, err
	}

	now := t.now()
	var ready []core.RecordID
	for _, record := range records {
		if record.FailureCount >= t.cfg.MaxFailureCount {
			continue
		}
		if record.NextRetryAfter.After(now) {
			continue
		}
		ready = append(ready, record.ID)
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	return ready, nil
}

// PermanentlyFailed returns records that hit the failure ceiling, sorted by ID.
func (t *FailureTracker) PermanentlyFailed(ctx context.Context, partition core.PartitionID) ([]core.RecordID, error) {
	records, err := t.failures.FailuresByPartition(ctx, partition)
	if err != nil {
		return nil, err
	}

	var failed []core.RecordID
	for _, record := range records {
		if record.FailureCount >= t.cfg.MaxFailureCount {
			failed = append(failed, record.ID)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed, nil
}

// FilterNotInBackoff removes ids that are waiting out a backoff window or
// are permanently failed. Order of the remaining ids is preserved.
func (t *FailureTracker) FilterNotInBackoff(ctx context.Context, partition core.PartitionID, ids []core.RecordID) ([]core.RecordID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := t.failures.FailuresByPartition(ctx, partition)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return ids, nil
	}

	byID := make(map[core.RecordID]*core.FailureRecord, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	now := t.now()
	filtered := make([]core.RecordID, 0, len(ids))
	for _, id := range ids {
		record, ok := byID[id]
		if !ok {
			filtered = append(filtered, id)
			continue
		}
		if record.FailureCount >= t.cfg.MaxFailureCount {
			continue
		}
		if record.NextRetryAfter.After(now) {
			continue
		}
		filtered = append(filtered, id)
	}
	return filtered, nil
}

// ClearPartitions removes all failure state for the given partitions.
func (t *FailureTracker) ClearPartitions(ctx context.Context, partitions ...core.PartitionID) error {
	for _, partition := range partitions {
		if _, err := t.failures.DeletePartition(ctx, partition); err != nil {
			return fmt.Errorf("failed to clear failures for partition %d: %w", partition, err)
		}
	}
	return nil
}
