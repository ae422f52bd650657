package pebbleng

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"shardkv/lib/engine"
)

// --------------------------------------------------------------------------
// Shard Handle
// --------------------------------------------------------------------------

// shardHandle is a leased view of one family's keyspace slice.
type shardHandle struct {
	eng      *engineImpl
	id       uint32
	name     string
	released atomic.Bool
}

func (s *shardHandle) Name() string {
	return s.name
}

// bounds returns the pebble key range [id, id+1) covering this family.
func (s *shardHandle) bounds() (lower, upper []byte) {
	return familyPrefix(s.id), familyPrefix(s.id + 1)
}

// fullKey prepends the family prefix to a shard-local key.
func (s *shardHandle) fullKey(key []byte) []byte {
	k := make([]byte, 0, 4+len(key))
	k = append(k, familyPrefix(s.id)...)
	return append(k, key...)
}

func (s *shardHandle) Get(key []byte) ([]byte, error) {
	val, closer, err := s.eng.db.Get(s.fullKey(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, engine.ErrNotFound
		}
		return nil, errors.Wrapf(err, "pebbleng: get in shard %s", s.name)
	}
	out := make([]byte, len(val))
	copy(out, val)
	if err := closer.Close(); err != nil {
		return nil, errors.Wrapf(err, "pebbleng: get in shard %s", s.name)
	}
	return out, nil
}

func (s *shardHandle) NewCursor() (engine.Cursor, error) {
	lower, upper := s.bounds()
	it, err := s.eng.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "pebbleng: cursor on shard %s", s.name)
	}
	return &cursorImpl{shard: s, it: it}, nil
}

func (s *shardHandle) Compact(start, end []byte) error {
	lower, upper := s.bounds()
	if start != nil {
		lower = s.fullKey(start)
	}
	if end != nil {
		upper = s.fullKey(end)
	}
	return errors.Wrapf(s.eng.db.Compact(lower, upper, true),
		"pebbleng: compact shard %s", s.name)
}

func (s *shardHandle) EstimateSize(start, end []byte) (uint64, error) {
	lower, upper := s.bounds()
	if start != nil {
		lower = s.fullKey(start)
	}
	if end != nil {
		upper = s.fullKey(end)
	}
	size, err := s.eng.db.EstimateDiskUsage(lower, upper)
	return size, errors.Wrapf(err, "pebbleng: size of shard %s", s.name)
}

func (s *shardHandle) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return engine.ErrReleased
	}
	return nil
}

// --------------------------------------------------------------------------
// Cursor
// --------------------------------------------------------------------------

// cursorImpl wraps a bounded pebble iterator and hides the family prefix.
type cursorImpl struct {
	shard *shardHandle
	it    *pebble.Iterator
}

func (c *cursorImpl) First() bool {
	return c.it.First()
}

func (c *cursorImpl) Last() bool {
	return c.it.Last()
}

func (c *cursorImpl) SeekGE(key []byte) bool {
	return c.it.SeekGE(c.shard.fullKey(key))
}

func (c *cursorImpl) SeekLT(key []byte) bool {
	return c.it.SeekLT(c.shard.fullKey(key))
}

func (c *cursorImpl) Next() bool {
	return c.it.Next()
}

func (c *cursorImpl) Prev() bool {
	return c.it.Prev()
}

func (c *cursorImpl) Valid() bool {
	return c.it.Valid()
}

func (c *cursorImpl) Key() []byte {
	return c.it.Key()[4:]
}

func (c *cursorImpl) Value() []byte {
	return c.it.Value()
}

func (c *cursorImpl) Close() error {
	return errors.Wrapf(c.it.Close(), "pebbleng: cursor on shard %s", c.shard.name)
}
