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

package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/takeout/core"
)

// DefaultDirName is the staging directory created under the OS temp dir.
const DefaultDirName = "takeout_ingestor_docs"

const (
	maxTitleLen = 50
	rule        = "=================================================="
)

var unsafeChars = regexp.MustCompile(`[^\w\-_.]`)

// Transformer converts canonical records into stored records.
type Transformer interface {
	// Transform stages record and returns the payload to insert.
	Transform(ctx context.Context, record *core.Record) (*core.StoredRecord, error)

	// Release frees whatever Transform acquired for stored.
	Release(stored *core.StoredRecord) error
}

// Stager stages records as text files in a directory.
type Stager struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

var _ Transformer = (*Stager)(nil)

// Option configures a Stager.
type Option func(*Stager) error

// WithDir sets the staging directory.
// Default is $TMPDIR/takeout_ingestor_docs.
func WithDir(dir string) Option {
	return func(s *Stager) error {
		if dir == "" {
			return ErrStagingDirRequired
		}
		s.dir = dir
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stager) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStager creates a stager. The directory is created lazily on first use.
func NewStager(opts ...Option) (*Stager, error) {
	s := &Stager{
		dir:    filepath.Join(os.TempDir(), DefaultDirName),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "stager")
	return s, nil
}

// Dir returns the staging directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Transform writes record to a new staged file. Every call creates a distinct
// file. Failures to create or write the file wrap core.ErrSystemFailure.
func (s *Stager) Transform(ctx context.Context, record *core.Record) (*core.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateRecord(record); err != nil {
		return nil, err
	}

	meta, err := json.Marshal(record.Metadata.Clone())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataEncoding, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: staging directory %s: %w", core.ErrSystemFailure, s.dir, err)
	}

	now := s.now()
	path, err := s.writeBlob(record, now)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("staged record", "title", record.Title, "path", path)
	return &core.StoredRecord{
		Document:   path,
		Metadata:   string(meta),
		IngestedAt: now.UTC().Format(time.RFC3339),
		StagedPath: path,
	}, nil
}

func (s *Stager) writeBlob(record *core.Record, now time.Time) (string, error) {
	pattern := fmt.Sprintf("conv_%s_%s_*.txt", now.Format("20060102_150405"), SafeTitle(record.Title))
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return "", fmt.Errorf("%w: create staged file: %w", core.ErrSystemFailure, err)
	}

	_, werr := f.WriteString(renderBlob(record, now))
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: write staged file: %w", core.ErrSystemFailure, err)
	}
	return f.Name(), nil
}

// renderBlob prefixes the record body with its provenance header.
func renderBlob(record *core.Record, now time.Time) string {
	source, ok := record.Metadata.String("source_type")
	if !ok {
		source = "unknown"
	}
	parsed, ok := record.Metadata.String("parsed_at")
	if !ok {
		parsed = now.UTC().Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", record.Title)
	fmt.Fprintf(&b, "Source: %s\n", source)
	if created, ok := record.Metadata.String("created_at"); ok {
		fmt.Fprintf(&b, "Created: %s\n", created)
	}
	fmt.Fprintf(&b, "Parsed: %s\n", parsed)
	b.WriteString("\n" + rule + "\n\n")
	b.WriteString(record.DocumentText)
	return b.String()
}

// SafeTitle reduces title to at most 50 filename-safe characters.
func SafeTitle(title string) string {
	safe := unsafeChars.ReplaceAllString(title, "_")
	if len(safe) > maxTitleLen {
		safe = safe[:maxTitleLen]
	}
	return safe
}

// Release removes the staged file of stored. A file that is already gone is not an error.
func (s *Stager) Release(stored *core.StoredRecord) error {
	if stored == nil || stored.StagedPath == "" {
		return nil
	}
	if err := os.Remove(stored.StagedPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release %s: %w", stored.StagedPath, err)
	}
	return nil
}

// Cleanup removes the staging directory and anything left in it.
func (s *Stager) Cleanup() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove staging directory %s: %w", s.dir, err)
	}
	s.logger.Info("cleaned up staged documents", "dir", s.dir)
	return nil
}
