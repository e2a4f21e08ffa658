package indexer

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrIndexRepositoryRequired is returned when an index repository is not provided.
	ErrIndexRepositoryRequired = errors.New("index repository required")

	// ErrFailureRepositoryRequired is returned when a failure repository is not provided.
	ErrFailureRepositoryRequired = errors.New("failure repository required")

	// ErrScanStateRepositoryRequired is returned when a scan state repository is not provided.
	ErrScanStateRepositoryRequired = errors.New("scan state repository required")

	// ErrItemStoreRequired is returned when a source item store is not provided.
	ErrItemStoreRequired = errors.New("item store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
