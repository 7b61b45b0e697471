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
	"strings"
	"unicode"
)

const (
	RoleHuman     = "Human"
	RoleAssistant = "Assistant"
	RoleUnknown   = "Unknown"
)

// NormalizeRole maps speaker roles onto the labels used in document text.
// human and user become Human, assistant and claude become Assistant, without
// regard to case. Anything else is title-cased.
func NormalizeRole(role string) string {
	role = strings.TrimSpace(role)
	switch strings.ToLower(role) {
	case "":
		return RoleUnknown
	case "human", "user":
		return RoleHuman
	case "assistant", "claude":
		return RoleAssistant
	}
	return titleCase(role)
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
