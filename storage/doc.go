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


// Package storage provides the storage abstraction layer for refindex.
//
// This package defines repository interfaces that decouple storage
// implementation from the index engine. It allows different backends
// (BadgerDB, in-memory, etc.) to be used interchangeably.
//
// # Architecture
//
// The storage layer follows the Repository pattern, one repository per
// persisted type:
//
//   - IndexRepository: embedding entries, one per indexed source record
//   - FailureRepository: per-record failure/backoff state
//   - ScanStateRepository: advisory per-partition scan snapshots
//
// Public constructors in implementation packages return these interfaces
// to prevent accidental coupling to backend specifics:
//
//	repo, err := badger.NewIndexRepository(backend)  // storage.IndexRepository
//
// # Write Discipline
//
// All mutations are upserts or deletes keyed by record ID, which makes them
// idempotent and safe to retry after a failed pass. Batch upserts execute in
// a single transaction: either the whole batch is applied or none of it is,
// so a stored content hash can never drift apart from its embedding.
//
// # Thread Safety
//
// All repository implementations must be thread-safe. The engine serializes
// work per partition, but different partitions may be processed from
// different goroutines concurrently.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and
// timeout support.
package storage
