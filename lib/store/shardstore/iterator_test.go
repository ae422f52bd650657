package shardstore

import (
	"sort"
	"testing"

	"shardkv/lib/engine"
)

// memCursor iterates a fixed sorted key list, mimicking an engine cursor.
// pos == -1 is before-first, pos == len(keys) is past-last.
type memCursor struct {
	keys []string
	pos  int
}

func newMemCursor(keys ...string) *memCursor {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &memCursor{keys: sorted, pos: -1}
}

func (c *memCursor) First() bool {
	c.pos = 0
	return c.Valid()
}

func (c *memCursor) Last() bool {
	c.pos = len(c.keys) - 1
	return c.Valid()
}

func (c *memCursor) SeekGE(key []byte) bool {
	c.pos = sort.SearchStrings(c.keys, string(key))
	return c.Valid()
}

func (c *memCursor) SeekLT(key []byte) bool {
	c.pos = sort.SearchStrings(c.keys, string(key)) - 1
	return c.Valid()
}

func (c *memCursor) Next() bool {
	if c.pos < len(c.keys) {
		c.pos++
	}
	return c.Valid()
}

func (c *memCursor) Prev() bool {
	if c.pos >= 0 {
		c.pos--
	}
	return c.Valid()
}

func (c *memCursor) Valid() bool {
	return c.pos >= 0 && c.pos < len(c.keys)
}

func (c *memCursor) Key() []byte {
	return []byte(c.keys[c.pos])
}

func (c *memCursor) Value() []byte {
	return []byte("v-" + c.keys[c.pos])
}

func (c *memCursor) Close() error { return nil }

func newTestMergeIterator(shards ...[]string) *mergeIterator {
	cursors := make([]engine.Cursor, 0, len(shards))
	for _, keys := range shards {
		cursors = append(cursors, newMemCursor(keys...))
	}
	return newMergeIterator(cursors)
}

func collectForward(it *mergeIterator) []string {
	var got []string
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, it.Key())
	}
	return got
}

func expectKeys(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMergeIteratorForward(t *testing.T) {
	it := newTestMergeIterator(
		[]string{"b", "e", "h"},
		[]string{"a", "f"},
		[]string{"c", "d", "g"},
	)
	defer it.Close()

	expectKeys(t, collectForward(it),
		[]string{"a", "b", "c", "d", "e", "f", "g", "h"})
	if it.Valid() {
		t.Error("exhausted iterator must be invalid")
	}
}

func TestMergeIteratorBackward(t *testing.T) {
	it := newTestMergeIterator(
		[]string{"b", "e", "h"},
		[]string{"a", "f"},
		[]string{"c", "d", "g"},
	)
	defer it.Close()

	var got []string
	for ok := it.Last(); ok; ok = it.Prev() {
		got = append(got, it.Key())
	}
	expectKeys(t, got, []string{"h", "g", "f", "e", "d", "c", "b", "a"})
}

func TestMergeIteratorBounds(t *testing.T) {
	it := newTestMergeIterator(
		[]string{"b", "e"},
		[]string{"c", "f"},
	)
	defer it.Close()

	if !it.LowerBound("c") || it.Key() != "c" {
		t.Errorf("LowerBound(c): got %q valid=%v", it.Key(), it.Valid())
	}
	if !it.UpperBound("c") || it.Key() != "e" {
		t.Errorf("UpperBound(c): got %q valid=%v", it.Key(), it.Valid())
	}
	if !it.LowerBound("d") || it.Key() != "e" {
		t.Errorf("LowerBound(d): got %q valid=%v", it.Key(), it.Valid())
	}
	if it.LowerBound("z") {
		t.Error("LowerBound(z) must be invalid")
	}
}

func TestMergeIteratorDirectionChanges(t *testing.T) {
	it := newTestMergeIterator(
		[]string{"b", "e", "h"},
		[]string{"a", "f"},
		[]string{"c", "d", "g"},
	)
	defer it.Close()

	it.LowerBound("d")
	if it.Key() != "d" {
		t.Fatalf("expected d, got %q", it.Key())
	}
	if !it.Prev() || it.Key() != "c" {
		t.Fatalf("Prev: expected c, got %q valid=%v", it.Key(), it.Valid())
	}
	if !it.Prev() || it.Key() != "b" {
		t.Fatalf("Prev: expected b, got %q valid=%v", it.Key(), it.Valid())
	}
	if !it.Next() || it.Key() != "c" {
		t.Fatalf("Next: expected c, got %q valid=%v", it.Key(), it.Valid())
	}
	if !it.Prev() || it.Key() != "b" {
		t.Fatalf("Prev: expected b, got %q valid=%v", it.Key(), it.Valid())
	}
	if !it.Prev() || it.Key() != "a" {
		t.Fatalf("Prev: expected a, got %q valid=%v", it.Key(), it.Valid())
	}
	// Stepping before the first entry invalidates the iterator.
	if it.Prev() {
		t.Fatal("Prev past the first entry must be invalid")
	}
	if it.Valid() {
		t.Fatal("iterator must stay invalid before the first entry")
	}
}

func TestMergeIteratorEmptyShards(t *testing.T) {
	it := newTestMergeIterator(
		[]string{},
		[]string{"a", "b"},
		[]string{},
	)
	defer it.Close()

	expectKeys(t, collectForward(it), []string{"a", "b"})
	if !it.Last() || it.Key() != "b" {
		t.Errorf("Last: got %q valid=%v", it.Key(), it.Valid())
	}
}

func TestMergeIteratorAllEmpty(t *testing.T) {
	it := newTestMergeIterator([]string{}, []string{})
	defer it.Close()

	if it.First() || it.Last() || it.LowerBound("a") {
		t.Error("iterator over empty shards must be invalid")
	}
}

// Shards of one column partition the keys, so duplicates cannot happen in a
// healthy store. The iterator still has to get through them without stalling.
func TestMergeIteratorToleratesDuplicates(t *testing.T) {
	it := newTestMergeIterator(
		[]string{"a", "dup"},
		[]string{"dup", "z"},
	)
	defer it.Close()

	expectKeys(t, collectForward(it), []string{"a", "dup", "dup", "z"})
}

// --------------------------------------------------------------------------
// Prefix Iterator
// --------------------------------------------------------------------------

func combined(prefix string, keys ...string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(combineKey(prefix, k)))
	}
	return out
}

func TestPrefixIterator(t *testing.T) {
	keys := append(combined("p", "a", "b", "c"), combined("q", "a", "x")...)
	it := newPrefixIterator(newMemCursor(keys...), "p")
	defer it.Close()

	var got []string
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, it.Key())
	}
	expectKeys(t, got, []string{"a", "b", "c"})

	if !it.Last() || it.Key() != "c" {
		t.Errorf("Last: got %q valid=%v", it.Key(), it.Valid())
	}
	if !it.LowerBound("b") || it.Key() != "b" {
		t.Errorf("LowerBound(b): got %q", it.Key())
	}
	if !it.UpperBound("b") || it.Key() != "c" {
		t.Errorf("UpperBound(b): got %q", it.Key())
	}
	if it.UpperBound("c") {
		t.Error("UpperBound(c) must leave the prefix and turn invalid")
	}
}

func TestPrefixIteratorEmptySlice(t *testing.T) {
	it := newPrefixIterator(newMemCursor(combined("q", "a")...), "p")
	defer it.Close()

	if it.First() || it.Last() || it.Valid() {
		t.Error("iterator over a prefix with no entries must be invalid")
	}
}
