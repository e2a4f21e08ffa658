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

import "errors"

// Domain validation errors
var (
	// ErrInvalidIndexRecord indicates an IndexRecord failed validation.
	ErrInvalidIndexRecord = errors.New("invalid index record")

	// ErrInvalidFailureRecord indicates a FailureRecord failed validation.
	ErrInvalidFailureRecord = errors.New("invalid failure record")

	// ErrEmptyRecordID indicates the record ID field is empty.
	ErrEmptyRecordID = errors.New("record id cannot be empty")

	// ErrEmptyContentHash indicates the content hash field is empty.
	ErrEmptyContentHash = errors.New("content hash cannot be empty")

	// ErrEmptyModelID indicates the embedding model identifier is empty.
	ErrEmptyModelID = errors.New("model id cannot be empty")

	// ErrDimensionMismatch indicates the embedding blob length does not
	// match the declared dimensions.
	ErrDimensionMismatch = errors.New("embedding length does not match dimensions")

	// ErrNegativeFailureCount indicates a failure count below zero.
	ErrNegativeFailureCount = errors.New("failure count cannot be negative")
)
