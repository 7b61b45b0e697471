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
	"slices"
	"strings"

	"github.com/poiesic/takeout/core"
)

// Format identifies a source format.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatAuto Format = "auto"
)

// SourceType is the source_type metadata value of conversation records.
const SourceType = "conversation"

// Parser validates and decodes one kind of source file.
type Parser interface {
	// Format returns the format this parser handles.
	Format() Format

	// Extensions returns the lowercase file extensions the parser accepts, dot included.
	Extensions() []string

	// Validate reports whether path looks like a source this parser can read.
	// A negative result carries a *ValidationError describing the reason.
	Validate(path string) (bool, error)

	// Parse decodes path into records in source order.
	Parse(ctx context.Context, path string) ([]*core.Record, error)
}

// Option configures a parser.
type Option func(*options) error

type options struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

func applyOptions(opts []Option) (*options, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// ForFormat returns the parser for an explicit format name. The ingestor name
// "conversations" and the empty string select the extension-sniffing dispatcher.
func ForFormat(name string, opts ...Option) (Parser, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatJSON:
		return NewStructuredParser(opts...)
	case FormatText, "txt", "md":
		return NewPlainTextParser(opts...)
	case FormatAuto, "", IngestorConversations:
		return NewConversations(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// IngestorConversations is the name of the conversation ingestor.
const IngestorConversations = "conversations"

// Descriptor describes a registered ingestor.
type Descriptor struct {
	Name        string
	Description string
	Formats     []Format
	Extensions  []string
}

// Available lists the registered ingestors.
func Available() []Descriptor {
	return []Descriptor{
		{
			Name:        IngestorConversations,
			Description: "Conversation exports (JSON message logs or plain-text transcripts)",
			Formats:     []Format{FormatAuto, FormatJSON, FormatText},
			Extensions:  slices.Concat(structuredExtensions, plainTextExtensions),
		},
	}
}
