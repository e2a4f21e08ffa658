package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/refspace/refindex/ai/mock"
	"github.com/refspace/refindex/core"
	srcmock "github.com/refspace/refindex/source/mock"
	"github.com/refspace/refindex/storage"
)

func newTestPipeline(t *testing.T) (*BatchIndexer, storage.IndexRepository, storage.FailureRepository, *srcmock.ItemStore, *aimock.Embedder) {
	t.Helper()
	index, failures, _ := newTestRepos(t)
	cfg := newTestConfig()
	src := srcmock.NewItemStore()
	embedder := aimock.NewEmbedder()
	embedder.Dimensions = cfg.Dimensions
	tracker := NewFailureTracker(failures, cfg, nil)
	pipeline := NewBatchIndexer(index, src, embedder, tracker, cfg, nil)
	return pipeline, index, failures, src, embedder
}

func putRecords(src *srcmock.ItemStore, partition core.PartitionID, n int) []core.RecordID {
	ids := make([]core.RecordID, n)
	for i := 0; i < n; i++ {
		id := core.RecordID(fmt.Sprintf("rec-%02d", i))
		ids[i] = id
		src.Put(sourceRecord(partition, id, "Title", "Body of "+string(id), time.Now()))
	}
	return ids
}

func TestBatchIndexer_IndexesAndStores(t *testing.T) {
	pipeline, index, _, src, _ := newTestPipeline(t)
	ids := putRecords(src, 1, 3)
	ctx := context.Background()

	summary, err := pipeline.IndexRecordIDs(ctx, 1, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, &IndexSummary{Indexed: 3}, summary)

	record, err := index.GetIndexRecord(ctx, 1, "rec-00")
	require.NoError(t, err)
	assert.Equal(t, pipeline.cfg.ModelID, record.ModelID)
	assert.Equal(t, pipeline.cfg.Dimensions, record.Dimensions)
	assert.Len(t, record.Embedding, pipeline.cfg.Dimensions)
	assert.Equal(t, core.ContentHash(core.BuildEmbeddingText("Title", "Body of rec-00")), record.ContentHash)
	assert.False(t, record.IndexedAt.IsZero())
}

func TestBatchIndexer_BatchFailureIsolation(t *testing.T) {
	pipeline, index, failures, src, embedder := newTestPipeline(t)
	ids := putRecords(src, 1, 12) // three batches of four
	ctx := context.Background()

	calls := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("embedding service overloaded")
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = make([]float32, 8)
			vectors[i][0] = 1
		}
		return vectors, nil
	}

	summary, err := pipeline.IndexRecordIDs(ctx, 1, ids, nil)
	require.NoError(t, err, "a failing batch must not abort the run")
	assert.Equal(t, 8, summary.Indexed)
	assert.Equal(t, 4, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 3, calls, "remaining batches still run")

	// Second batch members carry failure records, the rest are indexed.
	for i := 4; i < 8; i++ {
		record, err := failures.GetFailure(ctx, 1, ids[i])
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 1, record.FailureCount)
		assert.Contains(t, record.LastError, "overloaded")
	}
	count, err := index.CountByPartition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestBatchIndexer_PerRecordMiss(t *testing.T) {
	pipeline, _, failures, src, embedder := newTestPipeline(t)
	ids := putRecords(src, 1, 3)
	ctx := context.Background()

	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range texts {
			if i == 1 {
				continue // service returned nothing for this text
			}
			vectors[i] = make([]float32, 8)
			vectors[i][0] = 1
		}
		return vectors, nil
	}

	summary, err := pipeline.IndexRecordIDs(ctx, 1, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Indexed)
	assert.Equal(t, 1, summary.Failed)

	record, err := failures.GetFailure(ctx, 1, ids[1])
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Contains(t, record.LastError, "no vector")
}

func TestBatchIndexer_DimensionMismatch(t *testing.T) {
	pipeline, _, failures, src, embedder := newTestPipeline(t)
	ids := putRecords(src, 1, 1)
	ctx := context.Background()

	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{make([]float32, 16)}, nil
	}

	summary, err := pipeline.IndexRecordIDs(ctx, 1, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	record, err := failures.GetFailure(ctx, 1, ids[0])
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Contains(t, record.LastError, "dimensions")
}

func TestBatchIndexer_SkipsMissingAndIneligible(t *testing.T) {
	pipeline, _, _, src, _ := newTestPipeline(t)
	ctx := context.Background()

	src.Put(sourceRecord(1, "rec-ok", "Title", "Body long enough", time.Now()))
	src.Put(sourceRecord(1, "rec-short", "", "x", time.Now()))

	summary, err := pipeline.IndexRecordIDs(ctx, 1,
		[]core.RecordID{"rec-ok", "rec-short", "rec-gone"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
}

func TestBatchIndexer_SkipUnchanged(t *testing.T) {
	pipeline, _, _, src, embedder := newTestPipeline(t)
	ids := putRecords(src, 1, 2)
	ctx := context.Background()

	// First pass stores everything.
	_, err := pipeline.IndexRecordIDs(ctx, 1, ids, nil)
	require.NoError(t, err)
	embedder.Reset()

	summary, err := pipeline.IndexRecordIDs(ctx, 1, ids, &IndexOptions{SkipUnchanged: true})
	require.NoError(t, err)
	assert.Equal(t, &IndexSummary{Skipped: 2}, summary)
	assert.Equal(t, 0, embedder.CallCount(), "unchanged content must not hit the embedder")
}

func TestBatchIndexer_ProgressMonotonic(t *testing.T) {
	pipeline, _, _, src, _ := newTestPipeline(t)
	ids := putRecords(src, 1, 10) // batches of 4, 4, 2
	ctx := context.Background()

	var reported []int
	opts := &IndexOptions{OnProgress: func(processed, total int) {
		assert.Equal(t, 10, total)
		reported = append(reported, processed)
	}}

	_, err := pipeline.IndexRecordIDs(ctx, 1, ids, opts)
	require.NoError(t, err)

	require.NotEmpty(t, reported)
	for i := 1; i < len(reported); i++ {
		assert.Greater(t, reported[i], reported[i-1], "progress must be monotone")
	}
	assert.Equal(t, 10, reported[len(reported)-1], "progress must reach total")
}

func TestBatchIndexer_SuccessClearsFailure(t *testing.T) {
	pipeline, _, failures, src, _ := newTestPipeline(t)
	ids := putRecords(src, 1, 1)
	ctx := context.Background()

	_, err := pipeline.tracker.RecordFailure(ctx, 1, ids[0], "earlier failure")
	require.NoError(t, err)

	summary, err := pipeline.IndexRecordIDs(ctx, 1, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed)

	record, err := failures.GetFailure(ctx, 1, ids[0])
	require.NoError(t, err)
	assert.Nil(t, record, "successful indexing clears failure state")
}
