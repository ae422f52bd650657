package engine

import "errors"

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrNotFound reports an absent key or auxiliary record. It is a normal
	// empty result, not a failure.
	ErrNotFound = errors.New("engine: not found")

	// ErrShardExists is returned by CreateShard for a name already in use.
	ErrShardExists = errors.New("engine: shard already exists")

	// ErrReleased is returned when a shard handle is released twice.
	ErrReleased = errors.New("engine: shard handle already released")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine: closed")
)

// --------------------------------------------------------------------------
// Merge Operators
// --------------------------------------------------------------------------

// MergeOperator combines an existing value with an incoming operand. The two
// callback paths are distinct because "no existing value" and "existing empty
// value" mean different things to most operators.
//
// Merge handlers never fail: they must produce some new value.
type MergeOperator interface {
	// Name identifies the operator. The engine validates operator identity
	// across restarts, so the name must be stable for a given semantics.
	Name() string

	// Merge combines an existing value with an operand into a new value.
	Merge(key, existing, operand []byte) []byte

	// MergeNonexistent combines an operand with an absent existing value.
	MergeNonexistent(key, operand []byte) []byte
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Shard is a leased handle to one physical column family. All keys passed to
// a shard are shard-local; the engine hides any internal namespacing.
type Shard interface {
	// Name returns the physical shard name ("default" for the default shard).
	Name() string

	// Get returns the value stored under key. The returned slice is a copy.
	// Absent keys yield ErrNotFound.
	Get(key []byte) ([]byte, error)

	// NewCursor returns a cursor over this shard's keyspace, positioned
	// before the first entry.
	NewCursor() (Cursor, error)

	// Compact compacts the given key range; nil bounds extend to the shard's
	// edge of keyspace, so Compact(nil, nil) compacts the whole shard.
	Compact(start, end []byte) error

	// EstimateSize returns the approximate on-disk size of the key range.
	EstimateSize(start, end []byte) (uint64, error)

	// Release returns the handle lease to the engine. Exactly one call is
	// allowed; a second call returns ErrReleased.
	Release() error
}

// Cursor iterates one shard in the engine's total key order. The boolean
// return of every positioning call reports validity, matching Valid().
//
// Thread-safety: a cursor is single-caller; users serialize access.
type Cursor interface {
	First() bool
	Last() bool
	// SeekGE positions at the first entry with key >= the given key.
	SeekGE(key []byte) bool
	// SeekLT positions at the last entry with key < the given key.
	SeekLT(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	// Key and Value are only valid while Valid() is true; the returned
	// slices are owned by the cursor until the next positioning call.
	Key() []byte
	Value() []byte
	Close() error
}

// Batch collects mutations across any number of shards and applies them
// atomically on Commit.
//
// Thread-safety: a batch is single-caller; users serialize access.
type Batch interface {
	Set(shard Shard, key, value []byte) error
	Delete(shard Shard, key []byte) error
	Merge(shard Shard, key, operand []byte) error
	// DeleteRange removes all keys in [start, end) of the shard; nil bounds
	// extend to the shard's edge of keyspace.
	DeleteRange(shard Shard, start, end []byte) error

	// Count returns the number of operations recorded so far.
	Count() int

	// Commit applies the batch atomically. sync forces the write to stable
	// storage before returning.
	Commit(sync bool) error
	Close() error
}

// Engine is the embedded ordered store underneath the sharded layer.
type Engine interface {
	// DefaultShard returns the always-present default column family. The
	// handle is owned by the engine and must not be released by callers.
	DefaultShard() Shard

	// ListShards returns the names of all live non-default shards.
	ListShards() ([]string, error)

	// CreateShard creates a new physical shard. options is an opaque,
	// engine-specific tuning string (may be empty).
	CreateShard(name, options string) (Shard, error)

	// OpenShard leases a handle to an existing shard; ErrNotFound if absent.
	OpenShard(name string) (Shard, error)

	// NewBatch returns an empty write batch.
	NewBatch() Batch

	// Property returns an engine introspection string, ok=false when the
	// property name is unknown.
	Property(name string) (value string, ok bool)

	// ReadAux, WriteAux and RemoveAux access small auxiliary text records
	// stored next to the data under a fixed logical path. Reading an absent
	// record yields ErrNotFound; removing one is a no-op.
	ReadAux(path string) (string, error)
	WriteAux(path, contents string) error
	RemoveAux(path string) error

	// Close releases engine resources. Leased shard handles must have been
	// released before Close.
	Close() error
}
