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
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	reasonMissing     = "source path does not exist"
	reasonDirectory   = "source path is a directory"
	reasonEmpty       = "file is empty"
	reasonUnsupported = "unsupported file format"
	reasonUnreadable  = "error reading file"
)

// validateSource applies the shared soft validation rules. An empty file is
// rejected as empty before its extension is looked at.
func validateSource(path string, extensions []string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return invalid(path, reasonMissing)
	}
	if err != nil {
		return invalid(path, reasonUnreadable+": "+err.Error())
	}
	if info.IsDir() {
		return invalid(path, reasonDirectory)
	}
	if info.Size() == 0 {
		return invalid(path, reasonEmpty)
	}

	ext := extension(path)
	if !slices.Contains(extensions, ext) {
		return invalid(path, reasonUnsupported+": "+displayExt(ext))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return invalid(path, reasonUnreadable+": "+err.Error())
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return invalid(path, reasonEmpty)
	}

	// Content is not decoded here; a .json source that is not valid JSON still
	// passes and yields no records at parse time.
	return true, nil
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func displayExt(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return ext
}
