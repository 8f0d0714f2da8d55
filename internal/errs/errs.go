// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package errs defines the segment core's error taxonomy.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a segment error. See spec §7.
type Kind int

const (
	// InvalidArgument - adding a label/posting to doc 0; negation with multiple children.
	InvalidArgument Kind = iota + 1
	// Corruption - postings list ordering invariant violated; termhash sentinel collision.
	// Fatal to the segment instance: once raised, the segment refuses further operations.
	Corruption
	// OutOfSpace - mutation attempted without a preceding successful EnsureFit.
	OutOfSpace
	// NotFound - silent no-op case (remove_label on missing pair, add_label on existing pair).
	// The label operations report these cases as success (a nil error), so no
	// error of this Kind is returned by them.
	NotFound
	// IOError - underlying region backing store failed (grow, flush, lock).
	IOError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case Corruption:
		return "corruption"
	case OutOfSpace:
		return "out of space"
	case NotFound:
		return "not found"
	case IOError:
		return "io error"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged, stack-carrying error.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// New builds a Kind-tagged error, with a stack trace attached at the call site.
func New(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap attaches kind to an existing error, preserving its stack/cause chain.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, cause: errors.Wrapf(err, format, args...)}
}

var (
	// ErrCorrupt is returned by entrypoints on a segment already marked corrupt.
	ErrCorrupt = New(Corruption, "segment instance is corrupt and refuses further operations")
)
