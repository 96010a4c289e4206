/*
Package core implements the counting engine of fastread: the recyclable buffer,
the line tokenizer, the bounded buffer pool, the streamer that feeds whole-line
units to the scheduler, and the merge/rank step that turns per-worker tables
into ranked results.
*/
package core

/*
fastread — fast tool in Go for counting domains and URIs in large access logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"errors"
	"fmt"
)

// customError is the type behind the package's sentinel errors.
// fatal marks conditions that abort a run; none of them are retried because the
// same input and configuration would reproduce them deterministically.
type customError struct {
	message string // The error message.
	fatal   bool   // True if the condition aborts the whole run.
}

// NewError creates a new customError with the given message and fatal flag.
func NewError(msg string, fatal bool) error {
	return &customError{
		message: msg,
		fatal:   fatal,
	}
}

// Error implements the standard Go `error` interface.
func (e *customError) Error() string {
	return e.message
}

// IsFatal returns true if the error aborts the run.
func (e *customError) IsFatal() bool {
	return e.fatal
}

// IsFatal reports whether err, or any error it wraps, is a fatal customError.
// Errors of other types (I/O, context) are left to the caller to classify.
func IsFatal(err error) bool {
	var ce *customError
	if errors.As(err, &ce) {
		return ce.IsFatal()
	}
	var me *MalformedLineError
	return errors.As(err, &me)
}

var (
	// ErrBufferTooSmall means a single line (up to and including its newline) does
	// not fit into one buffer. Increase the buffer size.
	ErrBufferTooSmall = NewError("buffer too small to hold a complete line", true)
	// ErrMalformedLine means a line does not follow the tab/space grammar.
	ErrMalformedLine = NewError("malformed line", true)
	// ErrOutOfCapacity is returned by Buffer.Append on a full buffer.
	ErrOutOfCapacity = NewError("buffer out of capacity", true)
	// ErrPoolOverflow means more buffers were released than the pool ever handed out.
	ErrPoolOverflow = NewError("buffer pool overflow", true)
	// ErrSchedulerClosed means work was submitted after the scheduler stopped accepting it.
	ErrSchedulerClosed = NewError("scheduler closed", false)
)

// MalformedLineError describes the first line that broke the grammar.
type MalformedLineError struct {
	Offset int64  // Input offset of the first byte of the line.
	Reason string // What the scanner was looking for when the line ended.
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed line at offset %d: %s", e.Offset, e.Reason)
}

// Unwrap lets errors.Is(err, ErrMalformedLine) match.
func (e *MalformedLineError) Unwrap() error { return ErrMalformedLine }
