package indexer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/storage"
	"github.com/refspace/refindex/storage/badger"
)

func newTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.ModelID = "test-model"
	cfg.Dimensions = 8
	cfg.MinContentLength = 5
	cfg.BatchSize = 4
	cfg.PageSize = 3
	cfg.MaxFailureCount = 3
	cfg.BackoffBase = time.Minute
	cfg.BackoffMax = time.Hour
	cfg.MaxRetries = 1
	cfg.RetryDelay = time.Millisecond
	cfg.ReportInterval = 1
	return cfg
}

func newTestRepos(t *testing.T) (storage.IndexRepository, storage.FailureRepository, storage.ScanStateRepository) {
	t.Helper()
	index, failures, scans, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return index, failures, scans
}

func sourceRecord(partition core.PartitionID, id core.RecordID, title, body string, modified time.Time) *core.SourceRecord {
	return &core.SourceRecord{
		ID:               id,
		Partition:        partition,
		Version:          1,
		Title:            title,
		Body:             body,
		ClientModifiedAt: modified,
	}
}
