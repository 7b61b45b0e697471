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

package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/takeout/core"
)

var plainTextExtensions = []string{".txt", ".md"}

var conversationMarkers = []string{"human:", "assistant:", "claude:", "user:"}

// PlainTextParser treats a whole text file as a single conversation.
type PlainTextParser struct {
	logger *slog.Logger
	now    func() time.Time
}

var _ Parser = (*PlainTextParser)(nil)

// NewPlainTextParser creates a plain-text parser.
func NewPlainTextParser(opts ...Option) (*PlainTextParser, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &PlainTextParser{
		logger: o.logger.With("component", "text-parser"),
		now:    time.Now,
	}, nil
}

func (p *PlainTextParser) Format() Format { return FormatText }

func (p *PlainTextParser) Extensions() []string { return plainTextExtensions }

func (p *PlainTextParser) Validate(path string) (bool, error) {
	return validateSource(path, plainTextExtensions)
}

// Parse returns exactly one record holding the file content unchanged.
func (p *PlainTextParser) Parse(ctx context.Context, path string) ([]*core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return []*core.Record{p.textRecord(path, string(content))}, nil
}

func (p *PlainTextParser) textRecord(path, content string) *core.Record {
	title := "Conversation 1"
	return &core.Record{
		DocumentText: content,
		Title:        title,
		Metadata: core.Metadata{
			"source_type":              SourceType,
			"source_file":              path,
			"title":                    title,
			"conversation_index":       0,
			"created_at":               nil,
			"updated_at":               nil,
			"parsed_at":                p.now().UTC().Format(time.RFC3339),
			"format":                   string(FormatText),
			"has_conversation_markers": hasConversationMarkers(content),
		},
	}
}

func hasConversationMarkers(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range conversationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
