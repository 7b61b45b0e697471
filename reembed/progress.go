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

package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/takeout/progress"
)

// ConsoleReporter renders progress snapshots as a single updating line.
type ConsoleReporter struct {
	writer       io.Writer
	interval     int
	lastReported int
	reported     bool
	mu           sync.Mutex
}

// NewConsoleReporter creates a reporter that writes to writer every interval items.
func NewConsoleReporter(writer io.Writer, interval int) *ConsoleReporter {
	if interval < 1 {
		interval = 1
	}
	return &ConsoleReporter{
		writer:   writer,
		interval: interval,
	}
}

// Report prints s when at least interval items were handled since the last
// report. A first snapshot with nothing handled yet is printed as the starting line.
func (c *ConsoleReporter) Report(s progress.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	done := s.ProcessedItems + s.FailedItems
	starting := !c.reported && done == 0
	if !starting && done-c.lastReported < c.interval {
		return
	}
	c.render(s)
	c.reported = true
	c.lastReported = done
}

// Finish prints the final state followed by a newline.
func (c *ConsoleReporter) Finish(s progress.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.render(s)
	fmt.Fprintln(c.writer)
}

// render must be called with the lock held.
func (c *ConsoleReporter) render(s progress.Snapshot) {
	done := s.ProcessedItems + s.FailedItems
	rate := 0.0
	if elapsed := s.LastUpdate.Sub(s.StartTime); elapsed > 0 {
		rate = float64(done) / elapsed.Seconds()
	}
	percentage := 0.0
	if s.TotalItems > 0 {
		percentage = float64(done) / float64(s.TotalItems) * 100.0
	}

	fmt.Fprintf(c.writer, "\rProgress: %d/%d (%.1f%%) - %d failed - %.1f docs/s",
		done, s.TotalItems, percentage, s.FailedItems, rate)
}

// Elapsed returns the run time covered by s.
func Elapsed(s progress.Snapshot) time.Duration {
	return s.LastUpdate.Sub(s.StartTime)
}
