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
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/go-crypt/x/blake2b"
)

// DefaultMinContentLength is the minimum trimmed title+body length a record
// must carry to be worth embedding.
const DefaultMinContentLength = 40

// IsEligible reports whether a source record carries enough text to be
// indexed. Eligibility is decided on the rune count of the combined trimmed
// title and body, so multi-byte scripts are measured the same as ASCII.
// Records below the threshold are never indexed, and any existing embedding
// for them is treated as an orphan.
func IsEligible(record *SourceRecord, minLength int) bool {
	if record == nil {
		return false
	}
	if minLength <= 0 {
		minLength = DefaultMinContentLength
	}
	combined := strings.TrimSpace(record.Title) + strings.TrimSpace(record.Body)
	return utf8.RuneCountInString(combined) >= minLength
}

// BuildEmbeddingText produces the exact string that is embedded for a record:
// trimmed title and trimmed body joined by a blank line, trimmed again so a
// missing title or body does not leave stray separators.
func BuildEmbeddingText(title, body string) string {
	text := strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(body)
	return strings.TrimSpace(text)
}

// ContentHash returns a deterministic BLAKE2b-256 fingerprint of the
// embedding text, hex encoded. Used only for change detection, not security.
func ContentHash(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
