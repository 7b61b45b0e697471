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

// Package progress tracks the counters and status of a single ingestion run.
//
// A Tracker moves through a small state machine:
//
//	Pending -> Running -> Completed
//	                   -> Failed
//	Running <-> Paused
//	Pending, Paused -> Failed
//
// Completed and Failed are terminal; every mutation afterwards returns ErrTerminal.
// The tracker keeps every error message it is given but a Snapshot only exposes
// the most recent RecentErrorLimit of them.
//
// All methods are safe for concurrent use so Pause and Resume may be called from
// a different goroutine than the one driving the run.
package progress
