package refindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/refspace/refindex/ai/mock"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/indexer"
	srcmock "github.com/refspace/refindex/source/mock"
)

func testEngineConfig() *indexer.Config {
	cfg := indexer.DefaultConfig()
	cfg.ModelID = "test-model"
	cfg.Dimensions = 8
	cfg.MinContentLength = 5
	return cfg
}

func openTestIndex(t *testing.T, src *srcmock.ItemStore) *Index {
	t.Helper()
	embedder := aimock.NewEmbedder()
	embedder.Dimensions = 8

	ix, err := Open("", src,
		WithInMemoryStore(),
		WithEmbedder(embedder),
		WithEngineConfig(testEngineConfig()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestOpen(t *testing.T) {
	t.Run("create new index", func(t *testing.T) {
		ix := openTestIndex(t, srcmock.NewItemStore())
		assert.NotNil(t, ix.Engine())
		assert.NotNil(t, ix.backend)
		assert.NotNil(t, ix.logger)
	})

	t.Run("rejects invalid engine config", func(t *testing.T) {
		cfg := indexer.DefaultConfig()
		cfg.BatchSize = 0
		ix, err := Open("", srcmock.NewItemStore(),
			WithInMemoryStore(),
			WithEmbedder(aimock.NewEmbedder()),
			WithEngineConfig(cfg),
		)
		assert.Error(t, err)
		assert.Nil(t, ix)
	})
}

func TestIndex_SyncAndStatus(t *testing.T) {
	src := srcmock.NewItemStore()
	src.Put(
		&core.SourceRecord{ID: "rec-a", Partition: 7, Version: 1, Title: "Title", Body: "Body of record a", ClientModifiedAt: time.Now().Add(-time.Hour)},
		&core.SourceRecord{ID: "rec-b", Partition: 7, Version: 1, Title: "Title", Body: "Body of record b", ClientModifiedAt: time.Now().Add(-time.Hour)},
	)
	ix := openTestIndex(t, src)
	ctx := context.Background()

	result, err := ix.Sync(ctx, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)

	status, err := ix.Status(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, status.IndexedCount)
	assert.Zero(t, status.FailureCount)
	require.NotNil(t, status.ScanState)
	assert.Equal(t, 2, status.ScanState.EmbeddingCount)

	partitions, err := ix.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.PartitionID{7}, partitions)
}

func TestIndex_SyncAll(t *testing.T) {
	src := srcmock.NewItemStore()
	src.Put(
		&core.SourceRecord{ID: "rec-a", Partition: 1, Version: 1, Title: "Title", Body: "Body of record a", ClientModifiedAt: time.Now().Add(-time.Hour)},
		&core.SourceRecord{ID: "rec-b", Partition: 2, Version: 1, Title: "Title", Body: "Body of record b", ClientModifiedAt: time.Now().Add(-time.Hour)},
	)
	ix := openTestIndex(t, src)

	results, err := ix.SyncAll(context.Background(), []core.PartitionID{1, 2}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestIndex_CleanupPartitions(t *testing.T) {
	src := srcmock.NewItemStore()
	src.Put(
		&core.SourceRecord{ID: "rec-a", Partition: 1, Version: 1, Title: "Title", Body: "Body of record a", ClientModifiedAt: time.Now().Add(-time.Hour)},
		&core.SourceRecord{ID: "rec-b", Partition: 2, Version: 1, Title: "Title", Body: "Body of record b", ClientModifiedAt: time.Now().Add(-time.Hour)},
	)
	ix := openTestIndex(t, src)
	ctx := context.Background()

	_, err := ix.SyncAll(ctx, []core.PartitionID{1, 2}, 1, nil)
	require.NoError(t, err)

	removed, err := ix.CleanupPartitions(ctx, []core.PartitionID{1})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	partitions, err := ix.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.PartitionID{1}, partitions)
}
