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

package progress

import "fmt"

// Status is the lifecycle state of an ingestion run.
type Status int

const (
	Pending Status = iota
	Running
	Paused
	Completed
	Failed
)

var statusNames = map[Status]string{
	Pending:   "pending",
	Running:   "running",
	Paused:    "paused",
	Completed: "completed",
	Failed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the status by name so snapshots read well as JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

var transitions = map[Status][]Status{
	Pending: {Running, Failed},
	Running: {Paused, Completed, Failed},
	Paused:  {Running, Failed},
}

func canTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
