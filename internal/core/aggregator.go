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
	"slices"
)

// Merge folds tables into a single table, summing counts of keys with equal
// bytes. The source tables give up their keys and must not be used afterwards.
func Merge(tables ...*CountTable) *CountTable {
	hint := 0
	for _, t := range tables {
		if t != nil {
			hint += t.Len()
		}
	}
	out := NewCountTable(hint)
	for _, t := range tables {
		if t != nil {
			out.MergeFrom(t)
		}
	}
	return out
}

// Rank returns the entries of t ordered by count, highest first. Equal counts
// are ordered by ascending key bytes.
func Rank(t *CountTable) []Entry {
	out := slices.Clone(t.Entries())
	slices.SortFunc(out, compareEntries)
	return out
}

// TopN returns the first n ranked entries. A negative n keeps all of them.
func TopN(ranked []Entry, n int) []Entry {
	if n < 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

func compareEntries(a, b Entry) int {
	switch {
	case a.Count > b.Count:
		return -1
	case a.Count < b.Count:
		return 1
	}
	return bytes.Compare(a.Key, b.Key)
}
