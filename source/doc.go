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


// Package source defines the read-only contract against the external item
// store whose records are being indexed.
//
// The store mutates independently of the index engine: records are added,
// edited, and deleted outside the engine's control. The engine only ever
// reads through this interface and converges the embedding index to match.
//
// Two implementations ship with refindex:
//
//   - source/mock: a mutable in-memory store for tests
//   - source/jsonl: a directory of per-partition JSONL files, used by the
//     CLI and the seeder
//
// Listing is paged so a large partition never has to be materialized in
// memory at once.
package source
