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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/refspace/refindex/ai"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/source"
	"github.com/refspace/refindex/storage"
)

// SyncOptions controls a partition sync.
type SyncOptions struct {
	// Force skips the cheap checks and always runs a full diff.
	Force bool

	// OnProgress is forwarded to the indexing pipeline.
	OnProgress func(processed, total int)
}

// SyncResult reports what one partition sync did.
type SyncResult struct {
	Partition core.PartitionID

	// DiffRan is true when a full diff was computed; false when only the
	// retry queue was drained.
	DiffRan bool

	// Reason is the decision reason from the pre-diff checks.
	Reason string

	Indexed int
	Skipped int
	Failed  int
	Deleted int

	// TotalEligible is the number of eligible source records seen by the
	// diff. Zero when no diff ran.
	TotalEligible int
}

// Engine orchestrates partition syncs: heuristic check, full diff, batched
// embedding, orphan deletion and scan state bookkeeping.
//
// Scan state is only written after a fully successful diff pass, so an
// aborted sync leaves the previous baseline in place and the next sync
// starts over.
type Engine struct {
	diff     *DiffEngine
	pipeline *BatchIndexer
	tracker  *FailureTracker
	cleaner  *Cleaner
	index    storage.IndexRepository
	failures storage.FailureRepository
	scans    storage.ScanStateRepository
	src      source.ItemStore
	cfg      *Config
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[core.PartitionID]*sync.Mutex
}

// NewEngine wires up a sync engine. The embedder is wrapped with retry
// backoff so transient embedding service errors are absorbed before they
// count as record failures.
func NewEngine(index storage.IndexRepository, failures storage.FailureRepository, scans storage.ScanStateRepository, src source.ItemStore, embedder ai.Embedder, cfg *Config, logger *slog.Logger) (*Engine, error) {
	if index == nil {
		return nil, ErrIndexRepositoryRequired
	}
	if failures == nil {
		return nil, ErrFailureRepositoryRequired
	}
	if scans == nil {
		return nil, ErrScanStateRepositoryRequired
	}
	if src == nil {
		return nil, ErrItemStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	retrying := NewRetryingEmbedder(embedder, cfg.MaxRetries, cfg.RetryDelay)
	tracker := NewFailureTracker(failures, cfg, logger)
	return &Engine{
		diff:     NewDiffEngine(index, scans, src, cfg, logger),
		pipeline: NewBatchIndexer(index, src, retrying, tracker, cfg, logger),
		tracker:  tracker,
		cleaner:  NewCleaner(index, failures, scans, src, cfg, logger),
		index:    index,
		failures: failures,
		scans:    scans,
		src:      src,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[core.PartitionID]*sync.Mutex),
	}, nil
}

// Tracker exposes the failure tracker for status inspection.
func (e *Engine) Tracker() *FailureTracker {
	return e.tracker
}

// Cleaner exposes the cleanup operations.
func (e *Engine) Cleaner() *Cleaner {
	return e.cleaner
}

func (e *Engine) partitionLock(partition core.PartitionID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[partition]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[partition] = lock
	}
	return lock
}

// SyncPartition brings one partition's index up to date. When the cheap
// checks say nothing changed, only the retry queue is drained.
func (e *Engine) SyncPartition(ctx context.Context, partition core.PartitionID, opts *SyncOptions) (*SyncResult, error) {
	lock := e.partitionLock(partition)
	lock.Lock()
	defer lock.Unlock()

	if opts == nil {
		opts = &SyncOptions{}
	}

	decision := &DiffDecision{NeedsDiff: true, Reason: "forced full diff"}
	if !opts.Force {
		var err error
		decision, err = e.diff.ShouldRunFullDiff(ctx, partition)
		if err != nil {
			return nil, err
		}
	}

	if !decision.NeedsDiff {
		return e.drainRetries(ctx, partition, decision, opts)
	}
	return e.fullSync(ctx, partition, decision, opts)
}

// drainRetries re-attempts records whose backoff window has elapsed.
// Scan state is untouched; the baseline still holds.
func (e *Engine) drainRetries(ctx context.Context, partition core.PartitionID, decision *DiffDecision, opts *SyncOptions) (*SyncResult, error) {
	result := &SyncResult{Partition: partition, DiffRan: false, Reason: decision.Reason}

	ready, err := e.tracker.ItemsReadyForRetry(ctx, partition)
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 {
		e.logger.Debug("partition up to date", "partition", partition)
		return result, nil
	}

	e.logger.Info("retrying failed records", "partition", partition, "count", len(ready))
	summary, err := e.pipeline.IndexRecordIDs(ctx, partition, ready, &IndexOptions{OnProgress: opts.OnProgress})
	if err != nil {
		return nil, err
	}
	result.Indexed = summary.Indexed
	result.Skipped = summary.Skipped
	result.Failed = summary.Failed
	return result, nil
}

func (e *Engine) fullSync(ctx context.Context, partition core.PartitionID, decision *DiffDecision, opts *SyncOptions) (*SyncResult, error) {
	e.logger.Info("running full diff", "partition", partition, "reason", decision.Reason)

	diff, err := e.diff.ComputeFullDiff(ctx, partition)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		Partition:     partition,
		DiffRan:       true,
		Reason:        decision.Reason,
		TotalEligible: diff.TotalEligible,
	}

	// Records waiting out a backoff window are left for a later sync.
	toIndex, err := e.tracker.FilterNotInBackoff(ctx, partition, diff.ToIndex)
	if err != nil {
		return nil, err
	}
	result.Skipped += len(diff.ToIndex) - len(toIndex)

	summary, err := e.pipeline.IndexRecordIDs(ctx, partition, toIndex, &IndexOptions{OnProgress: opts.OnProgress})
	if err != nil {
		return nil, err
	}
	result.Indexed += summary.Indexed
	result.Skipped += summary.Skipped
	result.Failed += summary.Failed

	if len(diff.ToDelete) > 0 {
		if err := e.index.DeleteIndexRecords(ctx, partition, diff.ToDelete...); err != nil {
			return nil, fmt.Errorf("failed to delete orphaned index records: %w", err)
		}
		if err := e.failures.DeleteFailures(ctx, partition, diff.ToDelete...); err != nil {
			return nil, fmt.Errorf("failed to delete orphaned failure records: %w", err)
		}
		result.Deleted = len(diff.ToDelete)
	}

	if _, err := e.cleaner.CleanupStaleFailureRecords(ctx, partition); err != nil {
		return nil, err
	}

	embeddingCount, err := e.index.CountByPartition(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to count index records: %w", err)
	}
	state := &core.PartitionScanState{
		Partition:         partition,
		LastScanAt:        e.now(),
		MaxClientModified: diff.MaxClientModified,
		ItemCount:         diff.ItemCount,
		EmbeddingCount:    embeddingCount,
	}
	if err := e.scans.PutScanState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to store scan state: %w", err)
	}

	e.logger.Info("partition sync complete",
		"partition", partition,
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"deleted", result.Deleted)
	return result, nil
}

// SyncPartitions syncs multiple partitions concurrently on a bounded worker
// pool. All partitions are attempted; per-partition errors are joined into
// the returned error and results for the successful ones are still returned.
func (e *Engine) SyncPartitions(ctx context.Context, partitions []core.PartitionID, workers int, opts *SyncOptions) ([]*SyncResult, error) {
	if len(partitions) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*SyncResult
		errs    []error
	)
	for _, partition := range partitions {
		partition := partition
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			result, err := e.SyncPartition(ctx, partition, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("partition %d: %w", partition, err))
				return
			}
			results = append(results, result)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("partition %d: %w", partition, submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	return results, errors.Join(errs...)
}
