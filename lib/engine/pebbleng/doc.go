// Package pebbleng implements the engine contract on top of cockroachdb/pebble.
//
// Pebble has a single keyspace, so physical shards are realized as fixed
// 4-byte big-endian family-id prefixes on every stored key. This buys, for
// free, the properties the sharded layer needs:
//
//   - one write batch spans any set of shards and commits atomically
//   - every shard shares the same total key order (plain byte comparison of
//     the shard-local key, since the prefix is constant per shard)
//   - a shard cursor is a pebble iterator bounded to [id, id+1) with the
//     prefix stripped
//   - a shard range compaction is a pebble Compact over the same bounds
//
// Family id 0 is reserved for the catalog, a tiny persistent map from family
// name to id. Id 1 is the default family, which always exists and never
// appears in the catalog. User families are assigned ids from 2 upward and
// keep them for the lifetime of the store; ids are never reused.
//
// Merge operators are installed per family name at open time. Pebble allows
// exactly one Merger per database and persists its name into table
// properties, so the composite name supplied by the caller is validated
// across restarts the same way the per-family operator identity would be in
// an engine with native column families. The Merger dispatches on the
// family-id prefix to the operator registered for that family; operands for
// families without an operator resolve to the newest operand.
//
// Auxiliary records are plain text files under the store directory, so they
// survive engine-level recovery that rewrites the data files themselves.
package pebbleng
