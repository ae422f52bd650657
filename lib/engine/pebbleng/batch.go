package pebbleng

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"shardkv/lib/engine"
)

// batchImpl collects prefixed mutations in a single pebble batch, so a
// commit is atomic across every shard touched.
type batchImpl struct {
	eng *engineImpl
	b   *pebble.Batch
}

// asHandle rejects shard handles from foreign engine implementations.
func (b *batchImpl) asHandle(shard engine.Shard) (*shardHandle, error) {
	s, ok := shard.(*shardHandle)
	if !ok || s.eng != b.eng {
		return nil, errors.Newf("pebbleng: foreign shard handle %q", shard.Name())
	}
	if s.released.Load() {
		return nil, engine.ErrReleased
	}
	return s, nil
}

func (b *batchImpl) Set(shard engine.Shard, key, value []byte) error {
	s, err := b.asHandle(shard)
	if err != nil {
		return err
	}
	return errors.Wrap(b.b.Set(s.fullKey(key), value, nil), "pebbleng: batch set")
}

func (b *batchImpl) Delete(shard engine.Shard, key []byte) error {
	s, err := b.asHandle(shard)
	if err != nil {
		return err
	}
	return errors.Wrap(b.b.Delete(s.fullKey(key), nil), "pebbleng: batch delete")
}

func (b *batchImpl) Merge(shard engine.Shard, key, operand []byte) error {
	s, err := b.asHandle(shard)
	if err != nil {
		return err
	}
	return errors.Wrap(b.b.Merge(s.fullKey(key), operand, nil), "pebbleng: batch merge")
}

func (b *batchImpl) DeleteRange(shard engine.Shard, start, end []byte) error {
	s, err := b.asHandle(shard)
	if err != nil {
		return err
	}
	lower, upper := s.bounds()
	if start != nil {
		lower = s.fullKey(start)
	}
	if end != nil {
		upper = s.fullKey(end)
	}
	return errors.Wrap(b.b.DeleteRange(lower, upper, nil), "pebbleng: batch delete range")
}

func (b *batchImpl) Count() int {
	return int(b.b.Count())
}

func (b *batchImpl) Commit(sync bool) error {
	opts := pebble.NoSync
	if sync {
		opts = pebble.Sync
	}
	return errors.Wrap(b.b.Commit(opts), "pebbleng: batch commit")
}

func (b *batchImpl) Close() error {
	return errors.Wrap(b.b.Close(), "pebbleng: batch close")
}
