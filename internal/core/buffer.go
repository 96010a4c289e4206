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
	"bytes"

	"github.com/zeebo/xxh3"
)

// Buffer is a fixed-capacity byte container that serves two roles.
//
// As a pool buffer it receives raw reads from the input: end is the index of
// the last valid byte (-1 when empty) and everything past it is stale.
//
// As a lookup key it exposes an inclusive sub-range [viewStart, viewEnd] of its
// own bytes for Hash, Equal and Snapshot without copying. The view is repointed
// before every probe, so Hash and Equal always reflect the current view.
//
// A Buffer is owned by exactly one goroutine at a time. Comparing or hashing a
// Buffer whose view is being changed by another goroutine is never safe.
type Buffer struct {
	data      []byte
	end       int   // Index of the last valid byte, -1 when empty.
	viewStart int   // First byte of the current view.
	viewEnd   int   // Last byte of the current view (inclusive).
	origin    int64 // Input offset of data[0], used for error reporting.
}

// NewBuffer allocates an empty Buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		data:      make([]byte, capacity),
		end:       -1,
		viewStart: 0,
		viewEnd:   -1,
	}
}

// Cap returns the fixed capacity of the buffer.
func (b *Buffer) Cap() int { return len(b.data) }

// End returns the index of the last valid byte, or -1 when the buffer is empty.
func (b *Buffer) End() int { return b.end }

// Len returns the number of valid bytes.
func (b *Buffer) Len() int { return b.end + 1 }

// Origin returns the input offset of the first byte in the buffer.
func (b *Buffer) Origin() int64 { return b.origin }

// SetOrigin records the input offset of the first byte in the buffer.
func (b *Buffer) SetOrigin(off int64) { b.origin = off }

// Bytes returns the valid bytes [0, end]. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data[:b.end+1] }

// free returns the writable tail after end.
func (b *Buffer) free() []byte { return b.data[b.end+1:] }

// Append writes c at end+1.
// It fails with ErrOutOfCapacity when the buffer is already full.
func (b *Buffer) Append(c byte) error {
	if b.end >= len(b.data)-1 {
		return ErrOutOfCapacity
	}
	b.end++
	b.data[b.end] = c
	return nil
}

// Reset returns the buffer to its empty pool state. Stored bytes are left as is.
func (b *Buffer) Reset() {
	b.end = -1
	b.viewStart = 0
	b.viewEnd = -1
	b.origin = 0
}

// SetEnd repositions the write cursor after a raw read into the buffer.
func (b *Buffer) SetEnd(end int) {
	if end < -1 || end >= len(b.data) {
		panic("core: buffer end out of range")
	}
	b.end = end
}

// SetView points the transient view at [start, end] (inclusive). No bytes are copied.
// An empty view is expressed as end == start-1.
func (b *Buffer) SetView(start, end int) {
	b.viewStart = start
	b.viewEnd = end
}

// SetViewStart moves the first byte of the view.
func (b *Buffer) SetViewStart(start int) { b.viewStart = start }

// SetViewEnd moves the last byte of the view.
func (b *Buffer) SetViewEnd(end int) { b.viewEnd = end }

// View returns the bytes of the current view. The slice aliases the buffer and is
// only valid until the view or the buffer content changes.
func (b *Buffer) View() []byte { return b.data[b.viewStart : b.viewEnd+1] }

// Snapshot returns an exact-length copy of the current view.
// Used when a key has to outlive the pool buffer it was found in.
func (b *Buffer) Snapshot() []byte {
	v := b.View()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Hash returns the xxh3 hash of the current view.
func (b *Buffer) Hash() uint64 { return xxh3.Hash(b.View()) }

// Equal reports whether the current views of b and o hold the same bytes.
func (b *Buffer) Equal(o *Buffer) bool { return bytes.Equal(b.View(), o.View()) }

// String renders the valid bytes [0, end] independent of the view.
func (b *Buffer) String() string { return string(b.data[:b.end+1]) }
