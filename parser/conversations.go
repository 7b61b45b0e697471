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
	"slices"

	"github.com/poiesic/takeout/core"
)

// Conversations picks the structured or plain-text parser by file extension.
type Conversations struct {
	structured *StructuredParser
	text       *PlainTextParser
	extensions []string
}

var _ Parser = (*Conversations)(nil)

// NewConversations creates the extension-sniffing conversation parser.
func NewConversations(opts ...Option) (*Conversations, error) {
	structured, err := NewStructuredParser(opts...)
	if err != nil {
		return nil, err
	}
	text, err := NewPlainTextParser(opts...)
	if err != nil {
		return nil, err
	}
	return &Conversations{
		structured: structured,
		text:       text,
		extensions: slices.Concat(structuredExtensions, plainTextExtensions),
	}, nil
}

func (c *Conversations) Format() Format { return FormatAuto }

func (c *Conversations) Extensions() []string { return c.extensions }

func (c *Conversations) Validate(path string) (bool, error) {
	return validateSource(path, c.extensions)
}

func (c *Conversations) Parse(ctx context.Context, path string) ([]*core.Record, error) {
	p, err := c.parserFor(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, path)
}

func (c *Conversations) parserFor(path string) (Parser, error) {
	ext := extension(path)
	switch {
	case slices.Contains(structuredExtensions, ext):
		return c.structured, nil
	case slices.Contains(plainTextExtensions, ext):
		return c.text, nil
	}
	_, err := invalid(path, reasonUnsupported+": "+displayExt(ext))
	return nil, err
}
