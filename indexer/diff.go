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
	"github.com/refspace/refindex/source"
	"github.com/refspace/refindex/storage"
)

// DiffDecision is the outcome of the cheap pre-diff checks.
type DiffDecision struct {
	NeedsDiff bool
	Reason    string
}

// DiffResult describes what a full diff found for one partition.
type DiffResult struct {
	// ToIndex holds ids of eligible records that are missing from the
	// index or whose content hash no longer matches, sorted by ID.
	ToIndex []core.RecordID

	// ToDelete holds ids of index records whose source record is gone or
	// no longer eligible, sorted by ID.
	ToDelete []core.RecordID

	// TotalEligible is the number of eligible source records seen.
	TotalEligible int

	// ItemCount is the total number of source records seen, eligible or not.
	ItemCount int

	// MaxClientModified is the newest client modification timestamp across
	// all source records seen. Zero when the partition is empty.
	MaxClientModified time.Time
}

// DiffEngine decides whether a partition needs a full diff and computes it.
//
// The full diff walks every source record, hashes its content and compares
// against the stored hashes. That is exact but costs a full partition scan,
// so ShouldRunFullDiff runs a set of cheap count and timestamp checks first
// and only reports a diff is needed when one of them trips.
type DiffEngine struct {
	index  storage.IndexRepository
	scans  storage.ScanStateRepository
	src    source.ItemStore
	cfg    *Config
	logger *slog.Logger
	now    func() time.Time
}

// NewDiffEngine creates a diff engine over the given repositories and source.
func NewDiffEngine(index storage.IndexRepository, scans storage.ScanStateRepository, src source.ItemStore, cfg *Config, logger *slog.Logger) *DiffEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiffEngine{
		index:  index,
		scans:  scans,
		src:    src,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ShouldRunFullDiff runs the cheap checks against the last recorded scan
// state. Any failed check means a full diff is needed; the returned reason
// names the check that tripped.
func (d *DiffEngine) ShouldRunFullDiff(ctx context.Context, partition core.PartitionID) (*DiffDecision, error) {
	state, err := d.scans.GetScanState(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan state: %w", err)
	}
	if state == nil {
		return &DiffDecision{NeedsDiff: true, Reason: "no scan state: establishing baseline"}, nil
	}

	age := d.now().Sub(state.LastScanAt)
	if age > d.cfg.FullDiffSafetyInterval {
		return &DiffDecision{
			NeedsDiff: true,
			Reason:    fmt.Sprintf("Safety net: last full scan %s ago exceeds %s", age.Round(time.Second), d.cfg.FullDiffSafetyInterval),
		}, nil
	}

	itemCount, err := d.src.CountRecords(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to count source records: %w", err)
	}
	if itemCount != state.ItemCount {
		return &DiffDecision{
			NeedsDiff: true,
			Reason:    fmt.Sprintf("item count changed: source has %d, last scan saw %d", itemCount, state.ItemCount),
		}, nil
	}

	maxModified, err := d.src.MaxClientModified(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to read max client modification: %w", err)
	}
	// Scan state timestamps are stored at microsecond resolution.
	if maxModified.Truncate(time.Microsecond).After(state.MaxClientModified) {
		return &DiffDecision{
			NeedsDiff: true,
			Reason:    fmt.Sprintf("source modified: newest client modification %s is after last scan baseline %s", maxModified.UTC().Format(time.RFC3339), state.MaxClientModified.UTC().Format(time.RFC3339)),
		}, nil
	}

	embeddingCount, err := d.index.CountByPartition(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to count index records: %w", err)
	}
	if embeddingCount != state.EmbeddingCount {
		return &DiffDecision{
			NeedsDiff: true,
			Reason:    fmt.Sprintf("embedding count mismatch: store has %d, last scan recorded %d", embeddingCount, state.EmbeddingCount),
		}, nil
	}

	return &DiffDecision{NeedsDiff: false, Reason: "up to date"}, nil
}

// ComputeFullDiff walks all source records of the partition page by page
// and compares content hashes against the index. Index records for a
// different model or dimension count are treated as missing, so a model
// change reindexes records lazily as the diff encounters them.
func (d *DiffEngine) ComputeFullDiff(ctx context.Context, partition core.PartitionID) (*DiffResult, error) {
	stored, err := d.index.ContentHashes(ctx, partition, d.cfg.ModelID, d.cfg.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored content hashes: %w", err)
	}

	allIndexed, err := d.index.RecordIDs(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to list index records: %w", err)
	}

	result := &DiffResult{}
	eligible := make(map[core.RecordID]bool)

	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		records, next, err := d.src.ListRecords(ctx, partition, cursor, d.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list source records: %w", err)
		}

		for _, record := range records {
			result.ItemCount++
			if record.ClientModifiedAt.After(result.MaxClientModified) {
				result.MaxClientModified = record.ClientModifiedAt
			}

			if !core.IsEligible(record, d.cfg.MinContentLength) {
				continue
			}
			result.TotalEligible++
			eligible[record.ID] = true

			hash := core.ContentHash(core.BuildEmbeddingText(record.Title, record.Body))
			if storedHash, ok := stored[record.ID]; !ok || storedHash != hash {
				result.ToIndex = append(result.ToIndex, record.ID)
			}
		}

		if next == "" {
			break
		}
		cursor = next
	}

	// Index records whose source is gone or no longer eligible are orphans.
	for _, id := range allIndexed {
		if !eligible[id] {
			result.ToDelete = append(result.ToDelete, id)
		}
	}

	sort.Slice(result.ToIndex, func(i, j int) bool { return result.ToIndex[i] < result.ToIndex[j] })
	sort.Slice(result.ToDelete, func(i, j int) bool { return result.ToDelete[i] < result.ToDelete[j] })

	d.logger.Debug("computed full diff",
		"partition", partition,
		"toIndex", len(result.ToIndex),
		"toDelete", len(result.ToDelete),
		"eligible", result.TotalEligible,
		"items", result.ItemCount)
	return result, nil
}
