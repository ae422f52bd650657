// Package store defines the public surface of the sharded key-value storage
// layer. Callers address data by (prefix, key) pairs; the implementation maps
// each prefix onto one or more physical shards of an embedded ordered engine.
//
// The package focuses on:
//   - A unified interface (KVStore) for reads, iteration, atomic batches and
//     compaction control, independent of the engine underneath
//   - A structured error taxonomy separating schema problems (the store was
//     opened with a sharding definition that does not match the one on disk)
//     from data problems (a described shard is physically missing)
//
// Key Components:
//
//   - KVStore Interface: the core abstraction for interacting with a sharded
//     store. Reads report absence via a boolean rather than an error, so an
//     error return always means the operation itself failed.
//
//   - Iterator Interface: ordered traversal of one prefix. Depending on how
//     the prefix is sharded this is backed by a single engine cursor, a view
//     over the default column family, or a merge over several shard cursors.
//
//   - Batch Interface: collects writes across any number of prefixes and
//     applies them atomically on Commit.
//
// The production implementation lives in the
// "shardkv/lib/store/shardstore" package.
package store
