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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newConversations(t *testing.T) *Conversations {
	t.Helper()
	p, err := NewConversations()
	require.NoError(t, err)
	return p
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		path       string
		wantOK     bool
		wantReason string
	}{
		{"missing", filepath.Join(dir, "nope.json"), false, reasonMissing},
		{"missing wrong extension", filepath.Join(dir, "nope.pdf"), false, reasonMissing},
		{"directory", dir, false, reasonDirectory},
		{"wrong extension", writeFile(t, "notes.pdf", "hello"), false, reasonUnsupported},
		{"no extension", writeFile(t, "notes", "hello"), false, reasonUnsupported},
		{"zero bytes", writeFile(t, "empty.json", ""), false, reasonEmpty},
		{"zero bytes wrong extension", writeFile(t, "empty.pdf", ""), false, reasonEmpty},
		{"whitespace", writeFile(t, "blank.txt", "  \n\t "), false, reasonEmpty},
		{"json object", writeFile(t, "one.json", `{"title":"x"}`), true, ""},
		{"json array", writeFile(t, "many.json", `[{"title":"x"}]`), true, ""},
		{"json scalar accepted", writeFile(t, "scalar.json", `42`), true, ""},
		{"malformed json accepted", writeFile(t, "broken.json", `{"title":`), true, ""},
		{"markdown", writeFile(t, "notes.MD", "# notes"), true, ""},
		{"text", writeFile(t, "chat.txt", "Human: Hi"), true, ""},
	}

	p := newConversations(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := p.Validate(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.Reason, tt.wantReason)
			assert.NotEmpty(t, err.Error())
		})
	}
}

func TestValidate_ParserExtensions(t *testing.T) {
	jsonParser, err := NewStructuredParser()
	require.NoError(t, err)
	textParser, err := NewPlainTextParser()
	require.NoError(t, err)

	txt := writeFile(t, "chat.txt", "Human: Hi")
	js := writeFile(t, "chat.json", `[]`)

	ok, _ := jsonParser.Validate(txt)
	assert.False(t, ok)
	ok, _ = jsonParser.Validate(js)
	assert.True(t, ok)

	ok, _ = textParser.Validate(js)
	assert.False(t, ok)
	ok, _ = textParser.Validate(txt)
	assert.True(t, ok)
}

func TestNormalizeRole(t *testing.T) {
	tests := map[string]string{
		"human":         RoleHuman,
		"User":          RoleHuman,
		"HUMAN":         RoleHuman,
		" user ":        RoleHuman,
		"assistant":     RoleAssistant,
		"Claude":        RoleAssistant,
		"ASSISTANT":     RoleAssistant,
		"system":        "System",
		"TOOL":          "Tool",
		"tool_result":   "Tool_Result",
		"function call": "Function Call",
		"":              RoleUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRole(in), "role %q", in)
	}
}

func TestStructuredParser_Array(t *testing.T) {
	path := writeFile(t, "export.json", `[
		{"title": "Greeting", "created_at": "2024-01-01T00:00:00Z",
		 "messages": [
			{"role": "user", "content": "Hi"},
			{"role": "assistant", "content": "Hello"}
		]},
		{"raw_content": "just some notes"},
		{"chat_messages": [
			{"sender": "human", "text": "ping"},
			{"sender": "assistant", "content": [{"type": "text", "text": "pong"}]}
		]}
	]`)

	p, err := NewStructuredParser()
	require.NoError(t, err)

	records, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "Human: Hi\n\nAssistant: Hello", first.DocumentText)
	assert.Equal(t, "Greeting", first.Title)
	assert.Equal(t, 0, first.Metadata["conversation_index"])
	assert.Equal(t, "2024-01-01T00:00:00Z", first.Metadata["created_at"])
	assert.Nil(t, first.Metadata["updated_at"])
	assert.Equal(t, 2, first.Metadata["message_count"])
	assert.Equal(t, SourceType, first.Metadata["source_type"])
	assert.Equal(t, path, first.Metadata["source_file"])
	assert.Equal(t, "json", first.Metadata["format"])
	assert.NotEmpty(t, first.Metadata["parsed_at"])

	second := records[1]
	assert.Equal(t, "just some notes", second.DocumentText)
	assert.Equal(t, "Conversation 2", second.Title)
	assert.Equal(t, 1, second.Metadata["conversation_index"])
	assert.NotContains(t, second.Metadata, "message_count")

	third := records[2]
	assert.Equal(t, "Human: ping\n\nAssistant: pong", third.DocumentText)
	assert.Equal(t, "Conversation 3", third.Title)
	assert.Equal(t, 2, third.Metadata["conversation_index"])
}

func TestStructuredParser_PreservesOrder(t *testing.T) {
	path := writeFile(t, "ordered.json", `[
		{"title": "a", "messages": []},
		{"title": "b", "messages": []},
		{"title": "c", "messages": []},
		{"title": "d", "messages": []}
	]`)

	p, err := NewStructuredParser()
	require.NoError(t, err)
	records, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 4)

	for i, want := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, want, records[i].Title)
		assert.Equal(t, i, records[i].Metadata["conversation_index"])
	}
}

func TestStructuredParser_SingleObject(t *testing.T) {
	path := writeFile(t, "single.json", `{"name": "Trip planning", "messages": [{"role": "Claude", "content": "Sure"}]}`)

	p, err := NewStructuredParser()
	require.NoError(t, err)
	records, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Trip planning", records[0].Title)
	assert.Equal(t, "Assistant: Sure", records[0].DocumentText)
}

func TestStructuredParser_Fallbacks(t *testing.T) {
	path := writeFile(t, "mixed.json", `[
		{"text": "from text"},
		{"content": "from content"},
		{"other": 1},
		"bare string",
		7
	]`)

	p, err := NewStructuredParser()
	require.NoError(t, err)
	records, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, "from text", records[0].DocumentText)
	assert.Equal(t, "from content", records[1].DocumentText)
	assert.JSONEq(t, `{"other": 1}`, records[2].DocumentText)
	assert.Equal(t, "bare string", records[3].DocumentText)
	assert.Equal(t, "7", records[4].DocumentText)
}

func TestStructuredParser_MalformedYieldsNothing(t *testing.T) {
	path := writeFile(t, "broken.json", `[{"title": "x"`)

	p, err := NewStructuredParser()
	require.NoError(t, err)
	records, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStructuredParser_Cancelled(t *testing.T) {
	path := writeFile(t, "export.json", `[{"text": "a"}, {"text": "b"}]`)

	p, err := NewStructuredParser()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Parse(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlainTextParser(t *testing.T) {
	path := writeFile(t, "chat.txt", "Human: Hi\n\nAssistant: Hello")

	p, err := NewPlainTextParser()
	require.NoError(t, err)
	records, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Contains(t, rec.DocumentText, "Human:")
	assert.Contains(t, rec.DocumentText, "Assistant:")
	assert.Equal(t, "Conversation 1", rec.Title)
	assert.Equal(t, "text", rec.Metadata["format"])
	assert.Equal(t, true, rec.Metadata["has_conversation_markers"])
	assert.Equal(t, 0, rec.Metadata["conversation_index"])
}

func TestPlainTextParser_NoMarkers(t *testing.T) {
	path := writeFile(t, "notes.md", "# Shopping\n\n- eggs")

	p, err := NewPlainTextParser()
	require.NoError(t, err)
	records, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, false, records[0].Metadata["has_conversation_markers"])
	assert.Equal(t, "# Shopping\n\n- eggs", records[0].DocumentText)
}

func TestConversations_Dispatch(t *testing.T) {
	p := newConversations(t)

	js := writeFile(t, "a.json", `[{"text": "one"}, {"text": "two"}]`)
	records, err := p.Parse(context.Background(), js)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	txt := writeFile(t, "a.txt", `[{"text": "one"}, {"text": "two"}]`)
	records, err = p.Parse(context.Background(), txt)
	require.NoError(t, err)
	assert.Len(t, records, 1, "text files are never segmented")

	_, err = p.Parse(context.Background(), writeFile(t, "a.pdf", "x"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"txt", FormatText},
		{"auto", FormatAuto},
		{"", FormatAuto},
		{"conversations", FormatAuto},
	}
	for _, tt := range tests {
		p, err := ForFormat(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, p.Format(), tt.name)
	}

	_, err := ForFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestAvailable(t *testing.T) {
	ingestors := Available()
	require.NotEmpty(t, ingestors)
	assert.Equal(t, IngestorConversations, ingestors[0].Name)
	assert.ElementsMatch(t, []string{".json", ".txt", ".md"}, ingestors[0].Extensions)
}
