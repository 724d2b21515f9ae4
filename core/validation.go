// Copyright 2025 Poiesic Systems
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
	"strings"
	"time"
)

// clockSkew tolerates small differences between arXiv's clock and ours.
const clockSkew = 5 * time.Minute

// ValidatePaper validates a Paper according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Title must not be empty
//   - Published must not be in the future
//
// NOT validated (populated by enrichment):
//   - Summary (nil until summarized)
//   - Embedding (may stay empty when embedding generation fails)
func ValidatePaper(paper *Paper) error {
	if paper == nil {
		return fmt.Errorf("%w: paper is nil", ErrInvalidPaper)
	}

	if strings.TrimSpace(paper.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPaper, ErrEmptyID)
	}

	if strings.TrimSpace(paper.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPaper, ErrEmptyTitle)
	}

	if !IsValidTimestamp(paper.Published) {
		return fmt.Errorf("%w: %w", ErrInvalidPaper, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now().Add(clockSkew))
}
