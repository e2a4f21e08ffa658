package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refspace/refindex/core"
)

func TestFailureTracker_BackoffDoublesPerFailure(t *testing.T) {
	_, failures, _ := newTestRepos(t)
	cfg := newTestConfig()
	tracker := NewFailureTracker(failures, cfg, nil)

	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return clock }

	ctx := context.Background()
	first, err := tracker.RecordFailure(ctx, 1, "rec-a", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 1, first.FailureCount)
	assert.Equal(t, clock.Add(cfg.BackoffBase), first.NextRetryAfter)

	second, err := tracker.RecordFailure(ctx, 1, "rec-a", "timeout again")
	require.NoError(t, err)
	assert.Equal(t, 2, second.FailureCount)
	assert.Equal(t, clock.Add(2*cfg.BackoffBase), second.NextRetryAfter)
	assert.Equal(t, "timeout again", second.LastError)
	assert.True(t, second.NextRetryAfter.After(first.NextRetryAfter),
		"retry deadline should be monotonically non-decreasing")
}

func TestFailureTracker_BackoffCapped(t *testing.T) {
	_, failures, _ := newTestRepos(t)
	cfg := newTestConfig()
	cfg.BackoffMax = 4 * time.Minute
	cfg.MaxFailureCount = 100
	tracker := NewFailureTracker(failures, cfg, nil)

	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return clock }

	ctx := context.Background()
	var record *core.FailureRecord
	var err error
	for i := 0; i < 10; i++ {
		record, err = tracker.RecordFailure(ctx, 1, "rec-a", "boom")
		require.NoError(t, err)
	}
	assert.Equal(t, 10, record.FailureCount)
	assert.Equal(t, clock.Add(cfg.BackoffMax), record.NextRetryAfter, "delay should cap at BackoffMax")
}

func TestFailureTracker_PermanentAfterCeiling(t *testing.T) {
	_, failures, _ := newTestRepos(t)
	cfg := newTestConfig() // ceiling of 3
	tracker := NewFailureTracker(failures, cfg, nil)

	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < cfg.MaxFailureCount; i++ {
		_, err := tracker.RecordFailure(ctx, 1, "rec-a", "boom")
		require.NoError(t, err)
	}

	// Even far in the future, a permanently failed record is not retried.
	clock = clock.Add(48 * time.Hour)

	ready, err := tracker.ItemsReadyForRetry(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, ready)

	permanent, err := tracker.PermanentlyFailed(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.RecordID{"rec-a"}, permanent)
}

func TestFailureTracker_ItemsReadyForRetry(t *testing.T) {
	_, failures, _ := newTestRepos(t)
	cfg := newTestConfig()
	tracker := NewFailureTracker(failures, cfg, nil)

	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return clock }

	ctx := context.Background()
	_, err := tracker.RecordFailure(ctx, 1, "rec-a", "boom")
	require.NoError(t, err)

	clock = clock.Add(30 * time.Minute)
	_, err = tracker.RecordFailure(ctx, 1, "rec-b", "boom")
	require.NoError(t, err)

	// rec-a's window (1 minute) has elapsed; rec-b's has not.
	ready, err := tracker.ItemsReadyForRetry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.RecordID{"rec-a"}, ready)
}

func TestFailureTracker_FilterNotInBackoff(t *testing.T) {
	_, failures, _ := newTestRepos(t)
	cfg := newTestConfig()
	tracker := NewFailureTracker(failures, cfg, nil)

	clock := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return clock }

	ctx := context.Background()

	// rec-b: single failure, still inside its backoff window.
	// rec-c: single failure, window elapsed.
	// rec-d: permanently failed.
	_, err := tracker.RecordFailure(ctx, 1, "rec-c", "boom")
	require.NoError(t, err)
	clock = clock.Add(10 * time.Minute)
	for i := 0; i < cfg.MaxFailureCount; i++ {
		_, err = tracker.RecordFailure(ctx, 1, "rec-d", "boom")
		require.NoError(t, err)
	}
	_, err = tracker.RecordFailure(ctx, 1, "rec-b", "boom")
	require.NoError(t, err)

	filtered, err := tracker.FilterNotInBackoff(ctx, 1,
		[]core.RecordID{"rec-a", "rec-b", "rec-c", "rec-d"})
	require.NoError(t, err)
	assert.Equal(t, []core.RecordID{"rec-a", "rec-c"}, filtered)
}

func TestFailureTracker_ClearFailure(t *testing.T) {
	_, failures, _ := newTestRepos(t)
	tracker := NewFailureTracker(failures, newTestConfig(), nil)

	ctx := context.Background()
	_, err := tracker.RecordFailure(ctx, 1, "rec-a", "boom")
	require.NoError(t, err)

	require.NoError(t, tracker.ClearFailure(ctx, 1, "rec-a"))

	record, err := failures.GetFailure(ctx, 1, "rec-a")
	require.NoError(t, err)
	assert.Nil(t, record)

	// A fresh failure starts counting from one again.
	fresh, err := tracker.RecordFailure(ctx, 1, "rec-a", "boom")
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.FailureCount)
}

func TestFailureTracker_ClearPartitions(t *testing.T) {
	_, failures, _ := newTestRepos(t)
	tracker := NewFailureTracker(failures, newTestConfig(), nil)

	ctx := context.Background()
	_, err := tracker.RecordFailure(ctx, 1, "rec-a", "boom")
	require.NoError(t, err)
	_, err = tracker.RecordFailure(ctx, 2, "rec-b", "boom")
	require.NoError(t, err)

	require.NoError(t, tracker.ClearPartitions(ctx, 1))

	remaining, err := failures.FailuresByPartition(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	kept, err := failures.FailuresByPartition(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
