package shardstore

import (
	"bytes"

	"github.com/cockroachdb/errors"

	"shardkv/lib/engine"
)

// --------------------------------------------------------------------------
// Write Batch
// --------------------------------------------------------------------------

// storeBatch routes logical writes to the physical shard responsible for
// each key and collects them in one engine batch, so a commit stays atomic
// no matter how many shards it touches.
type storeBatch struct {
	s *Store
	b engine.Batch
}

func (sb *storeBatch) Set(prefix, key string, value []byte) error {
	shard, raw := sb.s.locate(prefix, key)
	return sb.b.Set(shard, raw, value)
}

func (sb *storeBatch) Delete(prefix, key string) error {
	shard, raw := sb.s.locate(prefix, key)
	return sb.b.Delete(shard, raw)
}

func (sb *storeBatch) Merge(prefix, key string, operand []byte) error {
	shard, raw := sb.s.locate(prefix, key)
	return sb.b.Merge(shard, raw, operand)
}

func (sb *storeBatch) DeleteRange(prefix, start, end string) error {
	if g, ok := sb.s.reg.resolve(prefix); ok {
		// Any shard of the group may hold keys of the range.
		for _, shard := range g.shards {
			if err := sb.deleteRange(shard, []byte(start), []byte(end)); err != nil {
				return err
			}
		}
		return nil
	}
	return sb.deleteRange(sb.s.eng.DefaultShard(),
		combineKey(prefix, start), combineKey(prefix, end))
}

func (sb *storeBatch) DeletePrefix(prefix string) error {
	if g, ok := sb.s.reg.resolve(prefix); ok {
		for _, shard := range g.shards {
			if err := sb.deleteRange(shard, nil, nil); err != nil {
				return err
			}
		}
		return nil
	}
	return sb.deleteRange(sb.s.eng.DefaultShard(),
		combinedPrefix(prefix), combinedUpper(prefix))
}

// deleteRange removes [start, end) of one shard; nil bounds extend to the
// shard's edges. Small ranges are turned into point deletes so they stay
// cheap to read over; ranges at or above the threshold become one physical
// range tombstone.
func (sb *storeBatch) deleteRange(shard engine.Shard, start, end []byte) error {
	n, err := sb.countRange(shard, start, end, sb.s.threshold)
	if err != nil {
		return err
	}
	if n >= sb.s.threshold {
		return sb.b.DeleteRange(shard, start, end)
	}
	c, err := shard.NewCursor()
	if err != nil {
		return errors.Wrap(err, "shardstore: range delete")
	}
	defer c.Close()
	for ok := seekStart(c, start); ok && beforeEnd(c, end); ok = c.Next() {
		if err := sb.b.Delete(shard, copyOf(c.Key())); err != nil {
			return err
		}
	}
	return nil
}

// countRange counts entries in [start, end), stopping at limit.
func (sb *storeBatch) countRange(shard engine.Shard, start, end []byte, limit int) (int, error) {
	c, err := shard.NewCursor()
	if err != nil {
		return 0, errors.Wrap(err, "shardstore: range delete")
	}
	defer c.Close()
	n := 0
	for ok := seekStart(c, start); ok && beforeEnd(c, end) && n < limit; ok = c.Next() {
		n++
	}
	return n, nil
}

func seekStart(c engine.Cursor, start []byte) bool {
	if start == nil {
		return c.First()
	}
	return c.SeekGE(start)
}

func beforeEnd(c engine.Cursor, end []byte) bool {
	return end == nil || bytes.Compare(c.Key(), end) < 0
}

func (sb *storeBatch) Count() int {
	return sb.b.Count()
}

func (sb *storeBatch) Commit(sync bool) error {
	sb.s.met.commits.Inc()
	if sync {
		sb.s.met.syncCommits.Inc()
	}
	return errors.Wrap(sb.b.Commit(sync), "shardstore: commit")
}

func (sb *storeBatch) Close() error {
	return sb.b.Close()
}
