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
	"testing"
)

// fill appends s to b and fails the test if it does not fit.
func fill(t testing.TB, b *Buffer, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		if err := b.Append(s[i]); err != nil {
			t.Fatalf("append %q at %d: %v", s, i, err)
		}
	}
}

func TestBufferAppendUntilFull(t *testing.T) {
	t.Parallel()

	b := NewBuffer(3)
	if b.End() != -1 || b.Len() != 0 {
		t.Fatalf("expected empty buffer, got end=%d len=%d", b.End(), b.Len())
	}
	fill(t, b, "abc")
	if b.End() != 2 {
		t.Fatalf("expected end 2, got %d", b.End())
	}
	if err := b.Append('d'); !errors.Is(err, ErrOutOfCapacity) {
		t.Fatalf("expected ErrOutOfCapacity, got %v", err)
	}
	if b.String() != "abc" {
		t.Fatalf("unexpected content: %q", b.String())
	}
}

func TestBufferResetKeepsCapacity(t *testing.T) {
	t.Parallel()

	b := NewBuffer(4)
	fill(t, b, "ab")
	b.SetOrigin(99)
	b.SetView(0, 1)
	b.Reset()

	if b.End() != -1 || b.Origin() != 0 || b.Cap() != 4 {
		t.Fatalf("unexpected state after reset: end=%d origin=%d cap=%d", b.End(), b.Origin(), b.Cap())
	}
	if len(b.View()) != 0 {
		t.Fatalf("expected empty view after reset, got %q", b.View())
	}
	fill(t, b, "wxyz")
}

func TestBufferViewAndSnapshot(t *testing.T) {
	t.Parallel()

	b := NewBuffer(16)
	fill(t, b, "hello world")
	b.SetView(6, 10)
	if string(b.View()) != "world" {
		t.Fatalf("expected view %q, got %q", "world", b.View())
	}

	snap := b.Snapshot()
	if len(snap) != 5 || cap(snap) != 5 {
		t.Fatalf("expected exact-length snapshot, got len=%d cap=%d", len(snap), cap(snap))
	}

	// Reusing the buffer must not change the snapshot.
	b.Reset()
	fill(t, b, "HELLO WORLD")
	if string(snap) != "world" {
		t.Fatalf("snapshot aliased the buffer: %q", snap)
	}

	b.SetViewStart(0)
	b.SetViewEnd(4)
	if string(b.View()) != "HELLO" {
		t.Fatalf("expected view %q, got %q", "HELLO", b.View())
	}
	if b.String() != "HELLO WORLD" {
		t.Fatalf("String must ignore the view, got %q", b.String())
	}
}

func TestBufferHashAndEqualFollowView(t *testing.T) {
	t.Parallel()

	a := NewBuffer(32)
	fill(t, a, "x example.com y")
	a.SetView(2, 12)

	b := NewBuffer(8)
	fill(t, b, "example.com"[:8])
	b.SetView(0, 7)
	if a.Equal(b) {
		t.Fatalf("different views compared equal")
	}

	c := NewBuffer(16)
	fill(t, c, "example.com")
	c.SetView(0, 10)
	if !a.Equal(c) || !c.Equal(a) {
		t.Fatalf("equal views compared unequal: %q vs %q", a.View(), c.View())
	}
	if a.Hash() != c.Hash() {
		t.Fatalf("equal views hashed differently")
	}

	// Repointing the probe changes its identity.
	c.SetView(0, 6)
	if a.Equal(c) || a.Hash() == c.Hash() {
		t.Fatalf("repointed view still matches")
	}
}

func TestBufferEmptyView(t *testing.T) {
	t.Parallel()

	b := NewBuffer(4)
	fill(t, b, "ab")
	b.SetView(1, 0)
	if len(b.View()) != 0 {
		t.Fatalf("expected empty view, got %q", b.View())
	}
	if len(b.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}

func TestBufferSetEndOutOfRangePanics(t *testing.T) {
	t.Parallel()

	b := NewBuffer(4)
	b.SetEnd(3)
	b.SetEnd(-1)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for end beyond capacity")
		}
	}()
	b.SetEnd(4)
}
