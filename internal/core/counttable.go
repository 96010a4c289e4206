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

const (
	// minTableSlots is the smallest slot array a CountTable starts with.
	minTableSlots = 64
	// Tables grow once len(entries) exceeds 3/4 of the slot count.
	loadFactorNum = 3
	loadFactorDen = 4
)

// Entry is one distinct key and its running count.
type Entry struct {
	Key   []byte
	Count int64
}

// CountTable maps byte keys to counts.
//
// Lookups are made with a borrowed view (a Buffer's current view or any byte
// slice) and never allocate. A key is copied exactly once, when it is first
// inserted, so the table never aliases a pool buffer.
//
// Layout: open addressing with linear probing over slots that index into a
// dense entries slice. Hashes are stored next to the entries so growth and
// merges never rehash key bytes.
//
// A CountTable is not safe for concurrent use; each worker owns its own.
type CountTable struct {
	slots   []int32 // index+1 into entries, 0 marks an empty slot
	mask    uint64
	entries []Entry
	hashes  []uint64
	total   int64
}

// NewCountTable creates a table sized for roughly sizeHint distinct keys.
func NewCountTable(sizeHint int) *CountTable {
	n := minTableSlots
	for n*loadFactorNum/loadFactorDen < sizeHint {
		n <<= 1
	}
	return &CountTable{
		slots:   make([]int32, n),
		mask:    uint64(n - 1),
		entries: make([]Entry, 0, sizeHint),
		hashes:  make([]uint64, 0, sizeHint),
	}
}

// Len returns the number of distinct keys.
func (t *CountTable) Len() int { return len(t.entries) }

// Total returns the sum of all counts.
func (t *CountTable) Total() int64 { return t.total }

// Entries returns the table's entries in insertion order. The slice and the keys
// alias the table; callers must not modify them.
func (t *CountTable) Entries() []Entry { return t.entries }

// Increment counts one occurrence of the key's current view.
// Hit path: in-place increment, no allocation. Miss path: one Snapshot.
func (t *CountTable) Increment(key *Buffer) {
	h := key.Hash()
	view := key.View()
	if idx := t.lookup(view, h); idx >= 0 {
		t.entries[idx].Count++
		t.total++
		return
	}
	t.insert(key.Snapshot(), h, 1)
}

// Add adds n to the count of key, copying key if it is new.
func (t *CountTable) Add(key []byte, n int64) {
	h := xxh3.Hash(key)
	if idx := t.lookup(key, h); idx >= 0 {
		t.entries[idx].Count += n
		t.total += n
		return
	}
	owned := make([]byte, len(key))
	copy(owned, key)
	t.insert(owned, h, n)
}

// Get returns the count stored for key.
func (t *CountTable) Get(key []byte) (int64, bool) {
	idx := t.lookup(key, xxh3.Hash(key))
	if idx < 0 {
		return 0, false
	}
	return t.entries[idx].Count, true
}

// MergeFrom sums every entry of src into t. Keys of src are taken over without
// copying, so src must not be used afterwards.
func (t *CountTable) MergeFrom(src *CountTable) {
	for i := range src.entries {
		e := src.entries[i]
		h := src.hashes[i]
		if idx := t.lookup(e.Key, h); idx >= 0 {
			t.entries[idx].Count += e.Count
			t.total += e.Count
			continue
		}
		t.insert(e.Key, h, e.Count)
	}
}

// lookup returns the entry index holding key, or -1.
func (t *CountTable) lookup(key []byte, h uint64) int {
	i := h & t.mask
	for {
		s := t.slots[i]
		if s == 0 {
			return -1
		}
		idx := int(s - 1)
		if t.hashes[idx] == h && bytes.Equal(t.entries[idx].Key, key) {
			return idx
		}
		i = (i + 1) & t.mask
	}
}

// insert stores a key known to be absent. key must be owned by the table.
func (t *CountTable) insert(key []byte, h uint64, n int64) {
	if (len(t.entries)+1)*loadFactorDen > len(t.slots)*loadFactorNum {
		t.grow()
	}
	t.entries = append(t.entries, Entry{Key: key, Count: n})
	t.hashes = append(t.hashes, h)
	t.total += n
	t.place(h, int32(len(t.entries)))
}

// place writes ref into the first free slot of h's probe sequence.
func (t *CountTable) place(h uint64, ref int32) {
	i := h & t.mask
	for t.slots[i] != 0 {
		i = (i + 1) & t.mask
	}
	t.slots[i] = ref
}

func (t *CountTable) grow() {
	n := len(t.slots) << 1
	t.slots = make([]int32, n)
	t.mask = uint64(n - 1)
	for i, h := range t.hashes {
		t.place(h, int32(i+1))
	}
}
