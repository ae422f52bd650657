package shardstore

import (
	"bytes"
	"sort"

	"shardkv/lib/engine"
)

// --------------------------------------------------------------------------
// Single-Shard Iterator
// --------------------------------------------------------------------------

// shardIterator walks one physical shard. Shard-backed columns store logical
// keys verbatim, so no translation is needed.
type shardIterator struct {
	c engine.Cursor
}

func (it *shardIterator) First() bool { return it.c.First() }
func (it *shardIterator) Last() bool  { return it.c.Last() }

func (it *shardIterator) LowerBound(key string) bool {
	return it.c.SeekGE([]byte(key))
}

func (it *shardIterator) UpperBound(key string) bool {
	if it.c.SeekGE([]byte(key)) && string(it.c.Key()) == key {
		return it.c.Next()
	}
	return it.c.Valid()
}

func (it *shardIterator) Next() bool {
	if !it.c.Valid() {
		return false
	}
	return it.c.Next()
}

func (it *shardIterator) Prev() bool {
	if !it.c.Valid() {
		return false
	}
	return it.c.Prev()
}

func (it *shardIterator) Valid() bool   { return it.c.Valid() }
func (it *shardIterator) Key() string   { return string(it.c.Key()) }
func (it *shardIterator) Value() []byte { return copyOf(it.c.Value()) }
func (it *shardIterator) Close() error  { return it.c.Close() }

// --------------------------------------------------------------------------
// Default-Family Prefix Iterator
// --------------------------------------------------------------------------

// prefixIterator exposes the slice of the default column family belonging to
// one logical prefix. Physical keys are "prefix \x00 key"; the iterator is
// invalid whenever the underlying cursor leaves that slice.
type prefixIterator struct {
	c     engine.Cursor
	pfx   []byte // prefix plus separator
	upper []byte // first physical key past the prefix
}

func newPrefixIterator(c engine.Cursor, prefix string) *prefixIterator {
	return &prefixIterator{
		c:     c,
		pfx:   combinedPrefix(prefix),
		upper: combinedUpper(prefix),
	}
}

func (it *prefixIterator) inside() bool {
	return it.c.Valid() && bytes.HasPrefix(it.c.Key(), it.pfx)
}

func (it *prefixIterator) First() bool {
	it.c.SeekGE(it.pfx)
	return it.inside()
}

func (it *prefixIterator) Last() bool {
	it.c.SeekLT(it.upper)
	return it.inside()
}

func (it *prefixIterator) LowerBound(key string) bool {
	it.c.SeekGE(append(copyOf(it.pfx), key...))
	return it.inside()
}

func (it *prefixIterator) UpperBound(key string) bool {
	if it.LowerBound(key) && it.Key() == key {
		return it.Next()
	}
	return it.inside()
}

func (it *prefixIterator) Next() bool {
	if !it.inside() {
		return false
	}
	it.c.Next()
	return it.inside()
}

func (it *prefixIterator) Prev() bool {
	if !it.inside() {
		return false
	}
	it.c.Prev()
	return it.inside()
}

func (it *prefixIterator) Valid() bool   { return it.inside() }
func (it *prefixIterator) Key() string   { return string(it.c.Key()[len(it.pfx):]) }
func (it *prefixIterator) Value() []byte { return copyOf(it.c.Value()) }
func (it *prefixIterator) Close() error  { return it.c.Close() }


// --------------------------------------------------------------------------
// Multi-Shard Merge Iterator
// --------------------------------------------------------------------------

// mergeIterator walks the union of several shard cursors in key order. The
// cursor slice is kept sorted with the smallest valid cursor at position 0
// and invalid cursors last, so the current entry is always cursors[0].
//
// The shards of one column partition the key space, so the same key never
// appears in two cursors. The ordering tolerates it anyway; which copy wins
// is unspecified.
type mergeIterator struct {
	cursors []engine.Cursor
}

func newMergeIterator(cursors []engine.Cursor) *mergeIterator {
	return &mergeIterator{cursors: cursors}
}

// less orders valid cursors by key and sorts invalid cursors last.
func cursorLess(a, b engine.Cursor) bool {
	if !a.Valid() {
		return false
	}
	if !b.Valid() {
		return true
	}
	return bytes.Compare(a.Key(), b.Key()) < 0
}

func (it *mergeIterator) sortCursors() {
	sort.SliceStable(it.cursors, func(i, j int) bool {
		return cursorLess(it.cursors[i], it.cursors[j])
	})
}

func (it *mergeIterator) First() bool {
	for _, c := range it.cursors {
		c.First()
	}
	it.sortCursors()
	return it.Valid()
}

func (it *mergeIterator) LowerBound(key string) bool {
	k := []byte(key)
	for _, c := range it.cursors {
		c.SeekGE(k)
	}
	it.sortCursors()
	return it.Valid()
}

func (it *mergeIterator) UpperBound(key string) bool {
	k := []byte(key)
	for _, c := range it.cursors {
		if c.SeekGE(k) && bytes.Equal(c.Key(), k) {
			c.Next()
		}
	}
	it.sortCursors()
	return it.Valid()
}

// Last seeks every cursor to its local last entry, keeps the globally largest
// and advances the rest one past their end. At most one cursor remains valid,
// so no sort is needed afterwards.
func (it *mergeIterator) Last() bool {
	for _, c := range it.cursors {
		c.Last()
	}
	for i := 1; i < len(it.cursors); i++ {
		if cursorLess(it.cursors[0], it.cursors[i]) {
			it.cursors[0], it.cursors[i] = it.cursors[i], it.cursors[0]
		}
		if it.cursors[i].Valid() {
			it.cursors[i].Next()
		}
	}
	return it.Valid()
}

// Next advances the current cursor and restores order with a single bubble
// pass; only the first cursor can be out of place.
func (it *mergeIterator) Next() bool {
	if !it.Valid() {
		return false
	}
	it.cursors[0].Next()
	for i := 0; i < len(it.cursors)-1; i++ {
		if cursorLess(it.cursors[i], it.cursors[i+1]) {
			break
		}
		it.cursors[i], it.cursors[i+1] = it.cursors[i+1], it.cursors[i]
	}
	return it.Valid()
}

// Prev steps to the predecessor of the current entry. The cursors are
// sorted, so the predecessor is the largest of the per-cursor predecessors:
// every cursor that can is stepped back, the largest candidate wins, the
// losers are re-advanced and the winner is rotated to the front.
func (it *mergeIterator) Prev() bool {
	var candidates []engine.Cursor
	for _, c := range it.cursors {
		if c.Valid() {
			if c.Prev() {
				candidates = append(candidates, c)
			} else {
				c.First()
			}
		} else {
			if c.Last() {
				candidates = append(candidates, c)
			}
		}
	}
	if len(candidates) == 0 {
		// No predecessor anywhere; land before the first entry.
		if it.cursors[0].Valid() {
			it.cursors[0].Prev()
		}
		return false
	}

	highest := candidates[0]
	for _, c := range candidates[1:] {
		if cursorLess(highest, c) {
			highest.Next()
			highest = c
		} else {
			c.Next()
		}
	}

	// Rotate the winner to the front; the rest keeps its relative order.
	hold := highest
	for i := range it.cursors {
		hold, it.cursors[i] = it.cursors[i], hold
		if hold == highest {
			break
		}
	}
	return it.Valid()
}

func (it *mergeIterator) Valid() bool {
	return it.cursors[0].Valid()
}

func (it *mergeIterator) Key() string {
	return string(it.cursors[0].Key())
}

func (it *mergeIterator) Value() []byte {
	return copyOf(it.cursors[0].Value())
}

func (it *mergeIterator) Close() error {
	var first error
	for _, c := range it.cursors {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
