package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/refspace/refindex/ai/mock"
	"github.com/refspace/refindex/core"
	srcmock "github.com/refspace/refindex/source/mock"
	"github.com/refspace/refindex/storage"
)

func newTestEngine(t *testing.T, cfg *Config) (*Engine, *srcmock.ItemStore, *aimock.Embedder, storage.IndexRepository, storage.ScanStateRepository) {
	t.Helper()
	index, failures, scans := newTestRepos(t)
	if cfg == nil {
		cfg = newTestConfig()
	}
	src := srcmock.NewItemStore()
	embedder := aimock.NewEmbedder()
	embedder.Dimensions = cfg.Dimensions

	engine, err := NewEngine(index, failures, scans, src, embedder, cfg, nil)
	require.NoError(t, err)
	return engine, src, embedder, index, scans
}

func TestNewEngine_RequiresDependencies(t *testing.T) {
	index, failures, scans := newTestRepos(t)
	src := srcmock.NewItemStore()
	embedder := aimock.NewEmbedder()

	_, err := NewEngine(nil, failures, scans, src, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrIndexRepositoryRequired)

	_, err = NewEngine(index, failures, scans, src, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewEngine(index, failures, scans, nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrItemStoreRequired)
}

func TestEngine_InitialSyncEstablishesBaseline(t *testing.T) {
	engine, src, _, index, scans := newTestEngine(t, nil)
	ctx := context.Background()

	newest := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	src.Put(
		sourceRecord(1, "rec-a", "Title", "Body of record a", newest.Add(-time.Hour)),
		sourceRecord(1, "rec-b", "Title", "Body of record b", newest),
		sourceRecord(1, "rec-c", "Title", "Body of record c", newest.Add(-2*time.Hour)),
	)

	result, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.True(t, result.DiffRan)
	assert.Contains(t, result.Reason, "no scan state")
	assert.Equal(t, 3, result.Indexed)
	assert.Equal(t, 3, result.TotalEligible)

	count, err := index.CountByPartition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	state, err := scans.GetScanState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 3, state.ItemCount)
	assert.Equal(t, 3, state.EmbeddingCount)
	assert.Equal(t, newest, state.MaxClientModified)
	assert.False(t, state.LastScanAt.IsZero())
}

func TestEngine_SecondSyncIsNoop(t *testing.T) {
	engine, src, embedder, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	src.Put(sourceRecord(1, "rec-a", "Title", "Body of record a", time.Now().Add(-time.Hour)))
	_, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)

	calls := embedder.CallCount()
	result, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, result.DiffRan)
	assert.Zero(t, result.Indexed)
	assert.Equal(t, calls, embedder.CallCount(), "idempotent sync must not embed")
}

func TestEngine_EditReindexesOnlyChangedRecord(t *testing.T) {
	engine, src, _, index, _ := newTestEngine(t, nil)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	src.Put(
		sourceRecord(1, "rec-a", "Title", "Body of record a", base),
		sourceRecord(1, "rec-b", "Title", "Body of record b", base),
	)
	_, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)

	before, err := index.GetIndexRecord(ctx, 1, "rec-a")
	require.NoError(t, err)

	edited := sourceRecord(1, "rec-b", "Title", "Body of record b, revised", time.Now())
	edited.Version = 2
	src.Put(edited)

	result, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.True(t, result.DiffRan)
	assert.Equal(t, 1, result.Indexed, "only the edited record reindexes")

	after, err := index.GetIndexRecord(ctx, 1, "rec-a")
	require.NoError(t, err)
	assert.Equal(t, before.ContentHash, after.ContentHash, "untouched record stays as is")

	changed, err := index.GetIndexRecord(ctx, 1, "rec-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed.SourceVersion)
}

func TestEngine_DeleteRemovesOrphan(t *testing.T) {
	engine, src, _, index, _ := newTestEngine(t, nil)
	ctx := context.Background()

	src.Put(
		sourceRecord(1, "rec-a", "Title", "Body of record a", time.Now().Add(-time.Hour)),
		sourceRecord(1, "rec-b", "Title", "Body of record b", time.Now().Add(-time.Hour)),
	)
	_, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)

	src.Remove(1, "rec-b")

	result, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.True(t, result.DiffRan, "item count change triggers a diff")
	assert.Equal(t, 1, result.Deleted)

	remaining, err := index.RecordIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.RecordID{"rec-a"}, remaining)
}

func TestEngine_ForceAlwaysRunsDiff(t *testing.T) {
	engine, src, _, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	src.Put(sourceRecord(1, "rec-a", "Title", "Body of record a", time.Now().Add(-time.Hour)))
	_, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)

	result, err := engine.SyncPartition(ctx, 1, &SyncOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, result.DiffRan)
	assert.Contains(t, result.Reason, "forced")
	assert.Zero(t, result.Indexed, "forced diff on clean state indexes nothing")
}

func TestEngine_FailedRecordsRetryAfterBackoff(t *testing.T) {
	cfg := newTestConfig()
	cfg.BackoffBase = time.Millisecond
	engine, src, embedder, index, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	src.Put(
		sourceRecord(1, "rec-a", "Title", "Body of record a", time.Now().Add(-time.Hour)),
		sourceRecord(1, "rec-b", "Title", "Body of record b", time.Now().Add(-time.Hour)),
	)

	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("service down")
	}

	result, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.True(t, result.DiffRan)
	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, result.Indexed)

	// Service recovers; the backoff window has elapsed.
	embedder.EmbedTextsFunc = nil
	time.Sleep(5 * time.Millisecond)

	result, err = engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, result.DiffRan, "retry drain runs without a diff")
	assert.Equal(t, 2, result.Indexed)

	count, err := index.CountByPartition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The drain changed the embedding count, so the next pass diffs once
	// more and refreshes the baseline.
	result, err = engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.True(t, result.DiffRan)
	assert.Contains(t, result.Reason, "embedding count mismatch")
	assert.Zero(t, result.Indexed)

	result, err = engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.False(t, result.DiffRan)
}

func TestEngine_PermanentFailuresAreExcluded(t *testing.T) {
	cfg := newTestConfig()
	cfg.MaxFailureCount = 1
	engine, src, embedder, _, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	src.Put(sourceRecord(1, "rec-a", "Title", "Body of record a", time.Now().Add(-time.Hour)))
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("service down")
	}

	result, err := engine.SyncPartition(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	// Even with a healthy service and a forced diff, the record stays out.
	embedder.EmbedTextsFunc = nil
	result, err = engine.SyncPartition(ctx, 1, &SyncOptions{Force: true})
	require.NoError(t, err)
	assert.Zero(t, result.Indexed)
	assert.Equal(t, 1, result.Skipped)

	permanent, err := engine.Tracker().PermanentlyFailed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.RecordID{"rec-a"}, permanent)
}

func TestEngine_SyncPartitions(t *testing.T) {
	engine, src, _, index, _ := newTestEngine(t, nil)
	ctx := context.Background()

	src.Put(
		sourceRecord(1, "rec-a", "Title", "Body of record a", time.Now().Add(-time.Hour)),
		sourceRecord(2, "rec-b", "Title", "Body of record b", time.Now().Add(-time.Hour)),
	)

	results, err := engine.SyncPartitions(ctx, []core.PartitionID{1, 2}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.DiffRan)
		assert.Equal(t, 1, result.Indexed)
	}

	partitions, err := index.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.PartitionID{1, 2}, partitions)
}

// failingPartitionStore errors out list calls for one partition.
type failingPartitionStore struct {
	*srcmock.ItemStore
	failPartition core.PartitionID
}

func (s *failingPartitionStore) ListRecords(ctx context.Context, partition core.PartitionID, cursor string, limit int) ([]*core.SourceRecord, string, error) {
	if partition == s.failPartition {
		return nil, "", errors.New("partition unavailable")
	}
	return s.ItemStore.ListRecords(ctx, partition, cursor, limit)
}

func TestEngine_SyncPartitionsCollectsErrors(t *testing.T) {
	index, failures, scans := newTestRepos(t)
	cfg := newTestConfig()
	inner := srcmock.NewItemStore()
	inner.Put(sourceRecord(1, "rec-a", "Title", "Body of record a", time.Now().Add(-time.Hour)))
	src := &failingPartitionStore{ItemStore: inner, failPartition: 2}
	embedder := aimock.NewEmbedder()
	embedder.Dimensions = cfg.Dimensions

	engine, err := NewEngine(index, failures, scans, src, embedder, cfg, nil)
	require.NoError(t, err)

	ctx := context.Background()
	results, err := engine.SyncPartitions(ctx, []core.PartitionID{1, 2}, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition 2")
	require.Len(t, results, 1, "healthy partition still syncs")
	assert.Equal(t, core.PartitionID(1), results[0].Partition)
}
