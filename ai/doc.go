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


// Package ai abstracts the embedding-generation service.
//
// The index engine depends only on the Embedder interface; the wire format
// and transport used to reach the service live in the implementation
// packages:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test double, no network
//
// Public constructors return the Embedder interface to keep callers
// decoupled from the concrete client; mock constructors return concrete
// types so tests can inject behavior and assert call counts.
//
// Batch semantics matter here: EmbedTexts results are aligned with their
// inputs, and a nil entry is a per-item miss that the caller must record as
// a per-item failure rather than failing the whole batch.
package ai
