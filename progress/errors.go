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

import "errors"

var (
	// ErrTerminal is returned when a change is attempted after the run completed or failed.
	ErrTerminal = errors.New("progress is in a terminal state")

	// ErrInvalidTransition is returned for a status change the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTotalAlreadySet is returned when SetTotal is called more than once.
	ErrTotalAlreadySet = errors.New("total already set")

	// ErrNegativeCount is returned for negative totals or deltas.
	ErrNegativeCount = errors.New("count cannot be negative")

	// ErrCountOverflow is returned when processed plus failed would exceed the total.
	ErrCountOverflow = errors.New("processed and failed counts exceed total")
)
