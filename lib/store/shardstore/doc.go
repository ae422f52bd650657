// Package shardstore implements the store.KVStore interface on top of the
// pebble-backed engine, distributing the keys of each logical prefix over a
// configurable number of physical shards.
//
// How data is placed is controlled by a sharding definition, a short text
// like
//
//	logical O(6) m(7,10-) prefix(4,0-10)=option
//
// parsed by the lib/sharding package. Every column named there gets its own
// set of physical shards; keys of a column with more than one shard are
// distributed by hashing a configurable byte range of the key. Prefixes not
// named by any column share the default column family, where entries are
// stored under "prefix \x00 key".
//
// The definition is persisted next to the data when a store is created and
// verified on every subsequent open: opening with an incompatible definition
// fails with store.SchemaMismatchError rather than silently misplacing keys.
//
// The package also provides:
//   - merge operators, routed per prefix either directly to a column's
//     shards or through a key dispatcher on the default column family
//   - an asynchronous compaction queue with range coalescing
//   - ordered iteration over sharded prefixes via a multi-cursor merge
//   - best-effort recovery (Repair) that re-authorizes shard recreation
//
// Thread-safety: the store itself is safe for concurrent use. Iterators and
// batches are single-caller.
package shardstore
