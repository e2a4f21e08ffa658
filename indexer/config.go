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
	"errors"
	"time"
)

// Config holds configuration for the index engine.
type Config struct {
	// ModelID identifies the embedding model. Together with Dimensions it
	// forms the compatibility key of stored index records; records from
	// another model are reindexed lazily.
	ModelID string

	// Dimensions is the vector width the configured model produces.
	Dimensions int

	// MinContentLength is the minimum trimmed title+body length a record
	// needs to be indexed.
	MinContentLength int

	// BatchSize is the number of records per embedding service call.
	BatchSize int

	// PageSize is the number of source records fetched per page during a
	// full diff.
	PageSize int

	// FullDiffSafetyInterval forces a full diff when the last one is older
	// than this, regardless of what the cheap checks say. Guards against
	// silent drift.
	FullDiffSafetyInterval time.Duration

	// MaxFailureCount is the ceiling after which a record is permanently
	// failed and excluded from automatic retry.
	MaxFailureCount int

	// BackoffBase is the base delay of the per-record retry backoff;
	// the delay doubles with every failure up to BackoffMax.
	BackoffBase time.Duration

	// BackoffMax caps the per-record retry backoff.
	BackoffMax time.Duration

	// MaxRetries is the number of attempts for one embedding service call
	// before the batch is recorded as failed.
	MaxRetries int

	// RetryDelay is the base delay of the in-call exponential backoff.
	RetryDelay time.Duration

	// ReportInterval is how often progress is written (number of records).
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ModelID:                "embeddinggemma",
		Dimensions:             768,
		MinContentLength:       40,
		BatchSize:              500,
		PageSize:               200,
		FullDiffSafetyInterval: 7 * 24 * time.Hour,
		MaxFailureCount:        8,
		BackoffBase:            30 * time.Second,
		BackoffMax:             6 * time.Hour,
		MaxRetries:             3,
		RetryDelay:             1 * time.Second,
		ReportInterval:         100,
	}
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.ModelID == "" {
		return errors.New("indexer config: ModelID is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("indexer config: Dimensions must be positive")
	}
	if c.MinContentLength <= 0 {
		return errors.New("indexer config: MinContentLength must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("indexer config: BatchSize must be positive")
	}
	if c.PageSize <= 0 {
		return errors.New("indexer config: PageSize must be positive")
	}
	if c.FullDiffSafetyInterval <= 0 {
		return errors.New("indexer config: FullDiffSafetyInterval must be positive")
	}
	if c.MaxFailureCount <= 0 {
		return errors.New("indexer config: MaxFailureCount must be positive")
	}
	if c.MaxRetries <= 0 {
		return errors.New("indexer config: MaxRetries must be positive")
	}
	return nil
}
