// Package engine defines the contract between the sharded storage layer and
// the embedded ordered key-value engine underneath it.
//
// The storage layer treats the engine as a black box that provides:
//
//   - named physical shards (column families) sharing one total key order
//   - atomic batched writes spanning any number of shards
//   - snapshot-consistent point lookups
//   - forward/backward cursors per shard
//   - range compaction and approximate-size primitives
//   - small auxiliary text records stored next to the data, used for the
//     sharding schema and the recreate-authorization marker
//
// Shard handles are leased: the registry that obtains them owns them and
// must release each exactly once before the engine is closed. Using a handle
// after release is a caller bug.
//
// Merge operators are fixed at open time. The engine persists the composite
// operator identity and refuses to open when a later process presents a
// different one, which is what makes the store's deterministic
// operator-naming scheme load-bearing rather than cosmetic.
//
// The only production implementation is engine/pebbleng. The enginetest
// package holds a reusable conformance suite for implementations.
package engine
