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


// Package core defines the domain model of refindex.
//
// The model is split along ownership lines:
//
//   - SourceRecord belongs to the external item store and is read-only here.
//   - IndexRecord, FailureRecord, and PartitionScanState belong to the index
//     engine and are mutated exclusively by it.
//
// The package also implements content eligibility and hashing: the decision
// whether a record carries enough text to embed, the construction of the
// exact text that is embedded, and its BLAKE2b fingerprint used for change
// detection. Serialization of the persisted types uses hand-written MUS
// serializers (see mus.go) so stored values stay compact and versionable.
package core
