package shardstore

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"shardkv/lib/engine"
)

// --------------------------------------------------------------------------
// Shard Registry
// --------------------------------------------------------------------------

// shardGroup holds the leased shard handles of one logical column together
// with the key byte range that selects among them. The handle slice is
// populated during open and read-only afterwards.
type shardGroup struct {
	name     string
	hashLow  uint32
	hashHigh uint32
	shards   []engine.Shard
}

// registry maps logical prefixes to their shard groups. Registration happens
// single-threaded during open and the registry is frozen afterwards, so
// lookups need no coordination with writers.
type registry struct {
	groups *xsync.MapOf[string, *shardGroup]

	// hashCount tracks how often a shard pick actually computed a hash.
	// Single-shard groups are resolved without hashing.
	hashCount atomic.Uint64
}

func newRegistry() *registry {
	return &registry{groups: xsync.NewMapOf[string, *shardGroup]()}
}

// register adds one shard handle at index idx of the named group, creating
// the group on first sight. Re-registering a name with a different hash range
// is a wiring bug and fails.
func (r *registry) register(name string, low, high uint32, idx int, shard engine.Shard) error {
	g, _ := r.groups.LoadOrStore(name, &shardGroup{
		name:     name,
		hashLow:  low,
		hashHigh: high,
	})
	if g.hashLow != low || g.hashHigh != high {
		return errors.Newf("shardstore: column %q registered with conflicting hash ranges (%d-%d vs %d-%d)",
			name, g.hashLow, g.hashHigh, low, high)
	}
	for len(g.shards) <= idx {
		g.shards = append(g.shards, nil)
	}
	if g.shards[idx] != nil {
		return errors.Newf("shardstore: shard %d of column %q registered twice", idx, name)
	}
	g.shards[idx] = shard
	return nil
}

// resolve returns the shard group of a prefix, ok=false for prefixes that
// live on the default column family.
func (r *registry) resolve(prefix string) (*shardGroup, bool) {
	return r.groups.Load(prefix)
}

// pickShard selects the shard of a group responsible for key. Groups with a
// single shard short-circuit; otherwise the configured byte range of the key
// is hashed and reduced modulo the shard count. The selection is a pure
// function of (group shape, key), so it is stable across restarts.
func (r *registry) pickShard(g *shardGroup, key string) engine.Shard {
	if len(g.shards) == 1 {
		return g.shards[0]
	}
	lo := int(g.hashLow)
	if lo > len(key) {
		lo = len(key)
	}
	hi := len(key)
	if g.hashHigh < uint32(hi) {
		hi = int(g.hashHigh)
	}
	if hi < lo {
		hi = lo
	}
	r.hashCount.Add(1)
	h := xxhash.Sum64String(key[lo:hi])
	return g.shards[h%uint64(len(g.shards))]
}

// forEach visits every registered group.
func (r *registry) forEach(fn func(*shardGroup)) {
	r.groups.Range(func(_ string, g *shardGroup) bool {
		fn(g)
		return true
	})
}
