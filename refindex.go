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


// Package refindex maintains an embedding index over an externally managed
// record source. It detects changed records by content hash, embeds them in
// batches, and cleans up index state whose source records are gone.
package refindex

import (
	"context"
	"log/slog"

	"github.com/refspace/refindex/ai"
	"github.com/refspace/refindex/ai/openai"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/indexer"
	"github.com/refspace/refindex/source"
	"github.com/refspace/refindex/storage"
	"github.com/refspace/refindex/storage/badger"
)

// Index bundles the embedding store, failure tracking, and sync engine over
// one record source.
type Index struct {
	backend     *badger.Backend
	indexRepo   storage.IndexRepository
	failureRepo storage.FailureRepository
	scanRepo    storage.ScanStateRepository
	src         source.ItemStore
	engine      *indexer.Engine
	logger      *slog.Logger
}

// Option configures an Index.
type Option func(*indexOptions)

type indexOptions struct {
	aiConfig     *ai.Config
	engineConfig *indexer.Config
	embedder     ai.Embedder
	logger       *slog.Logger
	inMemory     bool
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *indexOptions) {
		o.aiConfig = cfg
	}
}

// WithEngineConfig sets the sync engine configuration.
func WithEngineConfig(cfg *indexer.Config) Option {
	return func(o *indexOptions) {
		o.engineConfig = cfg
	}
}

// WithEmbedder injects an embedder, bypassing the AI config.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *indexOptions) {
		o.embedder = embedder
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *indexOptions) {
		o.logger = logger
	}
}

// WithInMemoryStore keeps all index state in memory. For tests.
func WithInMemoryStore() Option {
	return func(o *indexOptions) {
		o.inMemory = true
	}
}

// Open creates an Index backed by a BadgerDB directory at filePath.
// The src store is the external system of record being indexed.
func Open(filePath string, src source.ItemStore, opts ...Option) (*Index, error) {
	options := &indexOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	indexRepo := badger.NewIndexRepository(backend)
	failureRepo := badger.NewFailureRepository(backend)
	scanRepo := badger.NewScanStateRepository(backend)

	embedder := options.embedder
	if embedder == nil {
		options.aiConfig.Normalize()
		if err := options.aiConfig.Validate(); err != nil {
			backend.Close()
			return nil, err
		}
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	engineConfig := options.engineConfig
	if engineConfig == nil {
		engineConfig = indexer.DefaultConfig()
		engineConfig.ModelID = options.aiConfig.Model
		engineConfig.Dimensions = options.aiConfig.Dimensions
	}

	engine, err := indexer.NewEngine(indexRepo, failureRepo, scanRepo, src, embedder, engineConfig, options.logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Index{
		backend:     backend,
		indexRepo:   indexRepo,
		failureRepo: failureRepo,
		scanRepo:    scanRepo,
		src:         src,
		engine:      engine,
		logger:      options.logger,
	}, nil
}

// Close releases the underlying storage.
func (ix *Index) Close() error {
	if err := ix.indexRepo.Close(); err != nil {
		ix.logger.Error("error closing index repository", "err", err)
		return err
	}
	if err := ix.failureRepo.Close(); err != nil {
		ix.logger.Error("error closing failure repository", "err", err)
		return err
	}
	if err := ix.scanRepo.Close(); err != nil {
		ix.logger.Error("error closing scan state repository", "err", err)
		return err
	}
	if err := ix.backend.Close(); err != nil {
		ix.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Sync brings one partition up to date.
func (ix *Index) Sync(ctx context.Context, partition core.PartitionID, opts *indexer.SyncOptions) (*indexer.SyncResult, error) {
	return ix.engine.SyncPartition(ctx, partition, opts)
}

// SyncAll syncs the given partitions concurrently.
func (ix *Index) SyncAll(ctx context.Context, partitions []core.PartitionID, workers int, opts *indexer.SyncOptions) ([]*indexer.SyncResult, error) {
	return ix.engine.SyncPartitions(ctx, partitions, workers, opts)
}

// PartitionStatus summarizes one partition's index state.
type PartitionStatus struct {
	Partition         core.PartitionID
	IndexedCount      int
	FailureCount      int
	PermanentFailures int
	ScanState         *core.PartitionScanState
}

// Status reports counts and scan state for one partition.
func (ix *Index) Status(ctx context.Context, partition core.PartitionID) (*PartitionStatus, error) {
	indexed, err := ix.indexRepo.CountByPartition(ctx, partition)
	if err != nil {
		return nil, err
	}
	failures, err := ix.failureRepo.FailuresByPartition(ctx, partition)
	if err != nil {
		return nil, err
	}
	permanent, err := ix.engine.Tracker().PermanentlyFailed(ctx, partition)
	if err != nil {
		return nil, err
	}
	state, err := ix.scanRepo.GetScanState(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &PartitionStatus{
		Partition:         partition,
		IndexedCount:      indexed,
		FailureCount:      len(failures),
		PermanentFailures: len(permanent),
		ScanState:         state,
	}, nil
}

// Partitions lists partitions known to the index store.
func (ix *Index) Partitions(ctx context.Context) ([]core.PartitionID, error) {
	return ix.indexRepo.Partitions(ctx)
}

// Failures lists failure records for a partition.
func (ix *Index) Failures(ctx context.Context, partition core.PartitionID) ([]*core.FailureRecord, error) {
	return ix.failureRepo.FailuresByPartition(ctx, partition)
}

// ClearFailures drops all failure state for the given partitions, returning
// permanently failed records to the retry pool.
func (ix *Index) ClearFailures(ctx context.Context, partitions ...core.PartitionID) error {
	return ix.engine.Tracker().ClearPartitions(ctx, partitions...)
}

// CleanupOrphans removes index records whose source record is gone.
func (ix *Index) CleanupOrphans(ctx context.Context, partition core.PartitionID) (int, error) {
	return ix.engine.Cleaner().CleanupOrphanedEmbeddings(ctx, partition)
}

// CleanupPartitions removes all index state for partitions outside keep.
func (ix *Index) CleanupPartitions(ctx context.Context, keep []core.PartitionID) (int, error) {
	return ix.engine.Cleaner().CleanupUnsyncedPartitions(ctx, keep)
}

// Engine exposes the sync engine for advanced use.
func (ix *Index) Engine() *indexer.Engine {
	return ix.engine
}
