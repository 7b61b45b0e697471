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

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - DocumentText must not be blank
//   - Title must not be blank
//
// Metadata is not validated; parsers decide which keys to populate.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(record.DocumentText) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}

	if strings.TrimSpace(record.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTitle)
	}

	return nil
}

// ValidateStoredRecord validates a StoredRecord before it is handed to a store.
func ValidateStoredRecord(record *StoredRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidStoredRecord)
	}

	if record.Document == "" {
		return fmt.Errorf("%w: missing document reference", ErrInvalidStoredRecord)
	}

	if _, err := time.Parse(time.RFC3339, record.IngestedAt); err != nil {
		return fmt.Errorf("%w: %w: %q", ErrInvalidStoredRecord, ErrInvalidTimestamp, record.IngestedAt)
	}

	return nil
}
