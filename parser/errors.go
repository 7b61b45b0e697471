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
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("source validation failed")

	// ErrUnknownFormat is returned by ForFormat for an unrecognised format name.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrMalformed indicates structured content that could not be decoded.
	ErrMalformed = errors.New("malformed content")
)

// ValidationError explains why a source was rejected.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(path, reason string) (bool, error) {
	return false, &ValidationError{Path: path, Reason: reason}
}

// ParseError describes a source unit that yielded no records because its content
// could not be decoded. Parsers log it rather than returning it.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
