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
	"errors"
	"testing"
	"time"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *Record
		wantErr error
	}{
		{
			name: "valid record",
			record: &Record{
				DocumentText: "Human: hi",
				Title:        "Conversation 1",
			},
			wantErr: nil,
		},
		{
			name: "valid record without metadata",
			record: &Record{
				DocumentText: "some notes",
				Title:        "notes",
				Metadata:     nil,
			},
			wantErr: nil,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidRecord,
		},
		{
			name: "empty text",
			record: &Record{
				DocumentText: "",
				Title:        "Conversation 1",
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "whitespace text",
			record: &Record{
				DocumentText: " \n\t",
				Title:        "Conversation 1",
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "empty title",
			record: &Record{
				DocumentText: "Human: hi",
				Title:        "",
			},
			wantErr: ErrEmptyTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRecord() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateRecord() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRecord() error = %v, want wrapped %v", err, ErrInvalidRecord)
			}
		})
	}
}

func TestValidateStoredRecord(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)

	tests := []struct {
		name    string
		record  *StoredRecord
		wantErr error
	}{
		{
			name:    "valid",
			record:  &StoredRecord{Document: "/tmp/doc.txt", Metadata: "{}", IngestedAt: now},
			wantErr: nil,
		},
		{
			name:    "nil",
			record:  nil,
			wantErr: ErrInvalidStoredRecord,
		},
		{
			name:    "missing document",
			record:  &StoredRecord{Metadata: "{}", IngestedAt: now},
			wantErr: ErrInvalidStoredRecord,
		},
		{
			name:    "bad timestamp",
			record:  &StoredRecord{Document: "/tmp/doc.txt", IngestedAt: "yesterday"},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStoredRecord(tt.record)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateStoredRecord() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateStoredRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIDFromContent(t *testing.T) {
	a := IDFromContent("hello")
	b := IDFromContent("hello")
	c := IDFromContent("world")

	if a != b {
		t.Errorf("IDFromContent not deterministic: %d != %d", a, b)
	}
	if a == c {
		t.Errorf("IDFromContent collision for distinct inputs")
	}
	if IDFromBytes([]byte("hello")) != a {
		t.Errorf("IDFromBytes disagrees with IDFromContent")
	}
}

func TestMetadataClone(t *testing.T) {
	m := Metadata{"title": "a", "conversation_index": 1}
	c := m.Clone()
	c["title"] = "b"

	if m["title"] != "a" {
		t.Errorf("Clone shares storage with original")
	}

	var nilMeta Metadata
	if nilMeta.Clone() == nil {
		t.Errorf("Clone of nil metadata should be empty, not nil")
	}

	if _, ok := m.String("missing"); ok {
		t.Errorf("String reported missing key as present")
	}
	if v, ok := m.String("title"); !ok || v != "a" {
		t.Errorf("String(title) = %q, %v", v, ok)
	}
}
