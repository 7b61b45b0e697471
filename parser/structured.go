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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/takeout/core"
)

var structuredExtensions = []string{".json"}

// Keys searched, in order, for the message list of a conversation.
var messageKeys = []string{"messages", "chat_messages"}

// Keys searched, in order, for raw text when a conversation has no messages.
var fallbackKeys = []string{"raw_content", "text", "content"}

// StructuredParser reads JSON conversation exports.
type StructuredParser struct {
	logger *slog.Logger
	now    func() time.Time
}

var _ Parser = (*StructuredParser)(nil)

// NewStructuredParser creates a JSON parser.
func NewStructuredParser(opts ...Option) (*StructuredParser, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &StructuredParser{
		logger: o.logger.With("component", "structured-parser"),
		now:    time.Now,
	}, nil
}

func (p *StructuredParser) Format() Format { return FormatJSON }

func (p *StructuredParser) Extensions() []string { return structuredExtensions }

func (p *StructuredParser) Validate(path string) (bool, error) {
	return validateSource(path, structuredExtensions)
}

// Parse decodes a single conversation object or an array of them. Malformed JSON
// is logged and yields no records.
func (p *StructuredParser) Parse(ctx context.Context, path string) ([]*core.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.parseContent(ctx, path, content)
}

func (p *StructuredParser) parseContent(ctx context.Context, path string, content []byte) ([]*core.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		p.logger.Error("invalid JSON, source yields no records",
			"error", &ParseError{Path: path, Err: fmt.Errorf("%w: %w", ErrMalformed, err)})
		return []*core.Record{}, nil
	}

	var items []any
	switch v := root.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		p.logger.Error("unexpected JSON root, source yields no records",
			"error", &ParseError{Path: path, Err: fmt.Errorf("%w: root is %T", ErrMalformed, root)})
		return []*core.Record{}, nil
	}

	parsedAt := p.now().UTC().Format(time.RFC3339)
	records := make([]*core.Record, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, conversationRecord(item, path, i, parsedAt))
	}

	p.logger.Debug("parsed conversations", "path", path, "records", len(records))
	return records, nil
}

func conversationRecord(item any, path string, index int, parsedAt string) *core.Record {
	title := fmt.Sprintf("Conversation %d", index+1)
	var (
		text      string
		createdAt any
		updatedAt any
	)
	meta := core.Metadata{}

	obj, isObject := item.(map[string]any)
	if isObject {
		if t := firstString(obj, "title", "name"); t != "" {
			title = t
		}
		if s := firstString(obj, "created_at"); s != "" {
			createdAt = s
		}
		if s := firstString(obj, "updated_at"); s != "" {
			updatedAt = s
		}
	}

	if messages, ok := messageList(obj); ok {
		text = formatMessages(messages)
		meta["message_count"] = len(messages)
	} else {
		text = fallbackText(item)
	}

	format := string(FormatJSON)
	if isObject {
		if f := firstString(obj, "format"); f != "" {
			format = f
		}
	}

	meta["source_type"] = SourceType
	meta["source_file"] = path
	meta["title"] = title
	meta["conversation_index"] = index
	meta["created_at"] = createdAt
	meta["updated_at"] = updatedAt
	meta["parsed_at"] = parsedAt
	meta["format"] = format

	return &core.Record{
		DocumentText: text,
		Title:        title,
		Metadata:     meta,
	}
}

func messageList(obj map[string]any) ([]any, bool) {
	for _, key := range messageKeys {
		if list, ok := obj[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// formatMessages renders messages as "Role: content" blocks separated by a blank line.
func formatMessages(messages []any) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			parts = append(parts, RoleUnknown+": "+renderValue(m))
			continue
		}
		role := NormalizeRole(firstString(msg, "role", "sender"))
		parts = append(parts, role+": "+messageContent(msg))
	}
	return strings.Join(parts, "\n\n")
}

// messageContent returns the text of a message. Content may be a string or a
// list of content blocks whose text fields are joined; text is the fallback.
func messageContent(msg map[string]any) string {
	if s := contentText(msg["content"]); s != "" {
		return s
	}
	return contentText(msg["text"])
}

func contentText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		return blockText(c)
	default:
		return renderValue(c)
	}
}

func blockText(blocks []any) string {
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch block := b.(type) {
		case string:
			texts = append(texts, block)
		case map[string]any:
			if s, ok := block["text"].(string); ok && s != "" {
				texts = append(texts, s)
			}
		}
	}
	return strings.Join(texts, "\n")
}

func fallbackText(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		if s := firstString(v, fallbackKeys...); s != "" {
			return s
		}
	}
	return renderValue(item)
}

func renderValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
