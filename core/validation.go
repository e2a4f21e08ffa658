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


package core

import (
	"fmt"
)

// ValidateIndexRecord validates an IndexRecord according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - ContentHash must not be empty (the hash always reflects the exact
//     text that produced the embedding)
//   - ModelID must not be empty
//   - Embedding blob length must equal Dimensions (one int8 per dimension)
func ValidateIndexRecord(record *IndexRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidIndexRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidIndexRecord, ErrEmptyRecordID)
	}

	if record.ContentHash == "" {
		return fmt.Errorf("%w: %w", ErrInvalidIndexRecord, ErrEmptyContentHash)
	}

	if record.ModelID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidIndexRecord, ErrEmptyModelID)
	}

	if len(record.Embedding) != record.Dimensions {
		return fmt.Errorf("%w: %w: have %d bytes, want %d",
			ErrInvalidIndexRecord, ErrDimensionMismatch, len(record.Embedding), record.Dimensions)
	}

	return nil
}

// ValidateFailureRecord validates a FailureRecord according to domain rules.
func ValidateFailureRecord(record *FailureRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidFailureRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFailureRecord, ErrEmptyRecordID)
	}

	if record.FailureCount < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidFailureRecord, ErrNegativeFailureCount)
	}

	return nil
}
