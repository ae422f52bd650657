package store

import "fmt"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// KVStore is the generic interface for interacting with a sharded key-value
// store. Data is addressed by (prefix, key) pairs; each prefix maps to one or
// more physical shards chosen by the store's sharding definition.
//
// Read operations report an absent key via the found flag, so a non-nil error
// always means the operation itself failed.
type KVStore interface {
	// Get returns the value stored under (prefix, key). The returned slice
	// is a copy owned by the caller.
	Get(prefix, key string) (value []byte, found bool, err error)

	// GetMany returns the values for all keys that exist under prefix.
	// Absent keys are simply missing from the result map.
	GetMany(prefix string, keys []string) (map[string][]byte, error)

	// NewIterator returns an ordered iterator over all keys under prefix.
	NewIterator(prefix string) (Iterator, error)

	// NewBatch returns an empty write batch bound to this store.
	NewBatch() Batch

	// Compact synchronously compacts every physical shard.
	Compact() error

	// CompactAsync enqueues a whole-store compaction and returns immediately.
	CompactAsync()

	// CompactRangeAsync enqueues compaction of the key range [start, end]
	// under prefix and returns immediately.
	CompactRangeAsync(prefix, start, end string)

	// EstimatePrefixSize returns the approximate on-disk size of all keys
	// under prefix that begin with keyPrefix. keyPrefix may be empty.
	EstimatePrefixSize(prefix, keyPrefix string) (uint64, error)

	// Property exposes engine introspection strings, ok=false when the
	// property name is unknown to the engine.
	Property(name string) (value string, ok bool)

	// Close flushes pending background work and releases all resources.
	// Close is idempotent.
	Close() error
}

// Iterator traverses one prefix in ascending key order. The boolean return of
// every positioning call reports validity, matching Valid().
//
// Thread-safety: an iterator is single-caller; users serialize access.
type Iterator interface {
	First() bool
	Last() bool
	// LowerBound positions at the first key >= the given key.
	LowerBound(key string) bool
	// UpperBound positions at the first key > the given key.
	UpperBound(key string) bool
	Next() bool
	Prev() bool
	Valid() bool
	// Key and Value are only valid while Valid() is true. Value returns a
	// copy owned by the caller.
	Key() string
	Value() []byte
	Close() error
}

// Batch collects mutations and applies them atomically on Commit. Operations
// record into the batch immediately; nothing is visible to readers until
// Commit returns.
//
// Thread-safety: a batch is single-caller; users serialize access.
type Batch interface {
	// Set inserts or updates (prefix, key).
	Set(prefix, key string, value []byte) error

	// Delete removes (prefix, key). Deleting an absent key is a no-op.
	Delete(prefix, key string) error

	// DeleteRange removes all keys in [start, end) under prefix.
	DeleteRange(prefix, start, end string) error

	// DeletePrefix removes every key under prefix.
	DeletePrefix(prefix string) error

	// Merge records a merge operand for (prefix, key). The prefix's merge
	// operator combines it with the existing value on read or compaction.
	Merge(prefix, key string, operand []byte) error

	// Count returns the number of physical operations recorded so far.
	Count() int

	// Commit applies the batch atomically. sync forces the write to stable
	// storage before returning.
	Commit(sync bool) error
	Close() error
}

// --------------------------------------------------------------------------
// Error Types
// --------------------------------------------------------------------------

// SchemaMismatchError reports that the sharding definition the store was
// opened with is incompatible with the one persisted next to the data. The
// store refuses to open; neither definition is modified.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("sharding schema mismatch: %s", e.Reason)
}

// MissingShardError reports that a physical shard described by the stored
// schema does not exist in the engine and recreation was not authorized.
type MissingShardError struct {
	Name string
}

func (e *MissingShardError) Error() string {
	return fmt.Sprintf("shard %q is missing and recreation is not authorized", e.Name)
}
