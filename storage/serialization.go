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


package storage

import (
	"fmt"

	"github.com/refspace/refindex/core"
)

// MarshalIndexRecord serializes an IndexRecord to bytes.
func MarshalIndexRecord(record *core.IndexRecord) []byte {
	buf := make([]byte, core.IndexRecordMUS.Size(*record))
	core.IndexRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalIndexRecord deserializes an IndexRecord from bytes.
func UnmarshalIndexRecord(data []byte) (*core.IndexRecord, error) {
	record, _, err := core.IndexRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalFailureRecord serializes a FailureRecord to bytes.
func MarshalFailureRecord(record *core.FailureRecord) []byte {
	buf := make([]byte, core.FailureRecordMUS.Size(*record))
	core.FailureRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalFailureRecord deserializes a FailureRecord from bytes.
func UnmarshalFailureRecord(data []byte) (*core.FailureRecord, error) {
	record, _, err := core.FailureRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalScanState serializes a PartitionScanState to bytes.
func MarshalScanState(state *core.PartitionScanState) []byte {
	buf := make([]byte, core.PartitionScanStateMUS.Size(*state))
	core.PartitionScanStateMUS.Marshal(*state, buf)
	return buf
}

// UnmarshalScanState deserializes a PartitionScanState from bytes.
func UnmarshalScanState(data []byte) (*core.PartitionScanState, error) {
	state, _, err := core.PartitionScanStateMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &state, nil
}
