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
	"time"

	"github.com/refspace/refindex/ai"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/source"
	"github.com/refspace/refindex/storage"
)

// IndexOptions controls a single pipeline run.
type IndexOptions struct {
	// BatchSize overrides the configured embedding batch size when > 0.
	BatchSize int

	// SkipUnchanged re-checks stored content hashes before embedding and
	// skips records that are already current. The diff has usually done
	// this already, so it is off by default.
	SkipUnchanged bool

	// OnProgress, when set, is called after every batch with the number of
	// records processed so far and the total. Processed counts never
	// decrease and reach total when the run completes.
	OnProgress func(processed, total int)
}

// IndexSummary reports the outcome of a pipeline run.
// Indexed + Skipped + Failed equals the number of requested ids.
type IndexSummary struct {
	Indexed int
	Skipped int
	Failed  int
}

// BatchIndexer embeds and stores records in batches. A failing batch or a
// per-record miss never aborts the run: affected records get a failure
// record with backoff and the pipeline moves on to the next batch.
type BatchIndexer struct {
	index    storage.IndexRepository
	src      source.ItemStore
	embedder ai.Embedder
	tracker  *FailureTracker
	cfg      *Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewBatchIndexer creates a batch indexing pipeline.
func NewBatchIndexer(index storage.IndexRepository, src source.ItemStore, embedder ai.Embedder, tracker *FailureTracker, cfg *Config, logger *slog.Logger) *BatchIndexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchIndexer{
		index:    index,
		src:      src,
		embedder: embedder,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

type pendingRecord struct {
	record *core.SourceRecord
	text   string
	hash   string
}

// IndexRecordIDs embeds and stores the given records batch by batch.
// Records missing from the source or ineligible are counted as skipped.
// Storage errors abort the run; embedding errors are isolated per batch.
func (b *BatchIndexer) IndexRecordIDs(ctx context.Context, partition core.PartitionID, ids []core.RecordID, opts *IndexOptions) (*IndexSummary, error) {
	if opts == nil {
		opts = &IndexOptions{}
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = b.cfg.BatchSize
	}

	summary := &IndexSummary{}
	total := len(ids)
	processed := 0

	for start := 0; start < total; start += batchSize {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		end := start + batchSize
		if end > total {
			end = total
		}
		batch := ids[start:end]

		if err := b.indexBatch(ctx, partition, batch, opts, summary); err != nil {
			return summary, err
		}

		processed += len(batch)
		if opts.OnProgress != nil {
			opts.OnProgress(processed, total)
		}
	}

	return summary, nil
}

func (b *BatchIndexer) indexBatch(ctx context.Context, partition core.PartitionID, batch []core.RecordID, opts *IndexOptions, summary *IndexSummary) error {
	records, err := b.src.GetRecords(ctx, partition, batch)
	if err != nil {
		return fmt.Errorf("failed to fetch source records: %w", err)
	}
	byID := make(map[core.RecordID]*core.SourceRecord, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	var stored map[core.RecordID]string
	if opts.SkipUnchanged {
		stored, err = b.index.ContentHashes(ctx, partition, b.cfg.ModelID, b.cfg.Dimensions)
		if err != nil {
			return fmt.Errorf("failed to load stored content hashes: %w", err)
		}
	}

	var pending []pendingRecord
	for _, id := range batch {
		record, ok := byID[id]
		if !ok || !core.IsEligible(record, b.cfg.MinContentLength) {
			// Gone or below the content threshold; the next diff deletes
			// any stale index record.
			summary.Skipped++
			continue
		}

		text := core.BuildEmbeddingText(record.Title, record.Body)
		hash := core.ContentHash(text)
		if opts.SkipUnchanged {
			if storedHash, ok := stored[id]; ok && storedHash == hash {
				summary.Skipped++
				continue
			}
		}
		pending = append(pending, pendingRecord{record: record, text: text, hash: hash})
	}

	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, p := range pending {
		texts[i] = p.text
	}

	vectors, err := b.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		// The whole batch failed; record each member and move on.
		b.logger.Warn("embedding batch failed",
			"partition", partition, "batchSize", len(pending), "error", err)
		for _, p := range pending {
			if _, ferr := b.tracker.RecordFailure(ctx, partition, p.record.ID, err.Error()); ferr != nil {
				return ferr
			}
		}
		summary.Failed += len(pending)
		return nil
	}

	indexed := make([]*core.IndexRecord, 0, len(pending))
	for i, p := range pending {
		var vector []float32
		if i < len(vectors) {
			vector = vectors[i]
		}
		if len(vector) == 0 {
			if _, ferr := b.tracker.RecordFailure(ctx, partition, p.record.ID, "embedding service returned no vector"); ferr != nil {
				return ferr
			}
			summary.Failed++
			continue
		}
		if len(vector) != b.cfg.Dimensions {
			message := fmt.Sprintf("embedding has %d dimensions, expected %d", len(vector), b.cfg.Dimensions)
			if _, ferr := b.tracker.RecordFailure(ctx, partition, p.record.ID, message); ferr != nil {
				return ferr
			}
			summary.Failed++
			continue
		}

		indexed = append(indexed, &core.IndexRecord{
			ID:               p.record.ID,
			Partition:        partition,
			SourceVersion:    p.record.Version,
			ClientModifiedAt: p.record.ClientModifiedAt,
			ContentHash:      p.hash,
			Embedding:        QuantizeVector(NormalizeVector(vector)),
			Dimensions:       b.cfg.Dimensions,
			ModelID:          b.cfg.ModelID,
			IndexedAt:        b.now(),
		})
	}

	if len(indexed) > 0 {
		if err := b.index.PutIndexRecords(ctx, indexed...); err != nil {
			return fmt.Errorf("failed to store index records: %w", err)
		}
		cleared := make([]core.RecordID, len(indexed))
		for i, record := range indexed {
			cleared[i] = record.ID
		}
		if err := b.tracker.ClearFailure(ctx, partition, cleared...); err != nil {
			return fmt.Errorf("failed to clear failure records: %w", err)
		}
		summary.Indexed += len(indexed)
	}
	return nil
}
