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

// Package parser turns export files into canonical records.
//
// Each supported format is a Parser. StructuredParser reads JSON conversation
// exports (a single conversation object or an array of them), PlainTextParser
// treats a whole text file as one conversation, and Conversations dispatches on
// the file extension between the two.
//
// Validation is deliberately soft: it rejects missing, empty and wrongly named
// files, and otherwise accepts any readable content. A rejected source is
// reported as (false, *ValidationError) and never as a panic.
//
// Records carry a metadata map with the keys
//
//	source_type, source_file, title, conversation_index,
//	created_at, updated_at, parsed_at, format
//
// plus message_count for structured conversations and has_conversation_markers
// for plain text.
package parser
