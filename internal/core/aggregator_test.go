package core

import (
	"testing"
)

func tableOf(pairs map[string]int64) *CountTable {
	t := NewCountTable(len(pairs))
	for k, v := range pairs {
		t.Add([]byte(k), v)
	}
	return t
}

func TestMergeIsCommutative(t *testing.T) {
	t.Parallel()

	parts := []map[string]int64{
		{"a": 1, "b": 2},
		{"b": 3, "c": 4},
		{"a": 5, "c": 1, "d": 9},
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var first []Entry
	for _, perm := range perms {
		tables := make([]*CountTable, 0, len(perm))
		for _, i := range perm {
			tables = append(tables, tableOf(parts[i]))
		}
		ranked := Rank(Merge(tables...))
		if first == nil {
			first = ranked
			continue
		}
		if len(ranked) != len(first) {
			t.Fatalf("perm %v: expected %d entries, got %d", perm, len(first), len(ranked))
		}
		for i := range ranked {
			if string(ranked[i].Key) != string(first[i].Key) || ranked[i].Count != first[i].Count {
				t.Fatalf("perm %v: entry %d is %s=%d, expected %s=%d", perm, i,
					ranked[i].Key, ranked[i].Count, first[i].Key, first[i].Count)
			}
		}
	}
}

func TestMergeSkipsNilTables(t *testing.T) {
	t.Parallel()

	m := Merge(nil, tableOf(map[string]int64{"x": 2}), nil)
	if got, _ := m.Get([]byte("x")); got != 2 || m.Len() != 1 {
		t.Fatalf("unexpected merge result: len=%d x=%d", m.Len(), got)
	}
}

func TestRankOrdersByCountThenKey(t *testing.T) {
	t.Parallel()

	ranked := Rank(tableOf(map[string]int64{"b": 3, "a": 3, "c": 7, "d": 1}))
	want := []string{"c", "a", "b", "d"}
	for i, k := range want {
		if string(ranked[i].Key) != k {
			t.Fatalf("position %d: expected %s, got %s", i, k, ranked[i].Key)
		}
	}
}

func TestTopN(t *testing.T) {
	t.Parallel()

	ranked := Rank(tableOf(map[string]int64{"a": 3, "b": 2, "c": 1}))
	testCases := []struct {
		n    int
		want int
	}{
		{-1, 3},
		{0, 0},
		{2, 2},
		{3, 3},
		{10, 3},
	}
	for _, tc := range testCases {
		if got := len(TopN(ranked, tc.n)); got != tc.want {
			t.Fatalf("TopN(%d): expected %d entries, got %d", tc.n, tc.want, got)
		}
	}
}
