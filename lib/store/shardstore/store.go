package shardstore

import (
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/errors"

	"shardkv/lib/engine"
	"shardkv/lib/engine/pebbleng"
	"shardkv/lib/logger"
	"shardkv/lib/sharding"
	"shardkv/lib/store"
)

// --------------------------------------------------------------------------
// Auxiliary Record Paths
// --------------------------------------------------------------------------

const (
	// auxShardingDef holds the sharding definition the store was created
	// with. It is the source of truth for schema verification.
	auxShardingDef = "sharding/def"

	// auxRecreateMarker, when set to "1", authorizes the next open to
	// recreate physical shards the schema describes but the engine lost.
	auxRecreateMarker = "sharding/recreate_columns"
)

// DefaultRangeDeleteThreshold is the number of keys at which a logical range
// removal switches from point deletes to a physical range tombstone.
const DefaultRangeDeleteThreshold = 1048576

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a store at open time.
type Options struct {
	// ShardingDefinition describes how logical prefixes map to physical
	// shards, in the syntax of lib/sharding. For a fresh store it is
	// applied and persisted; for an existing store it must be shape-equal
	// to the persisted definition.
	ShardingDefinition string

	// MergeOperators binds merge operators to logical prefixes. The set is
	// frozen at open; changing it between opens changes the engine's
	// merger identity and is rejected.
	MergeOperators map[string]engine.MergeOperator

	// RangeDeleteThreshold overrides DefaultRangeDeleteThreshold.
	RangeDeleteThreshold int

	// DisableWAL turns off the engine's write-ahead log.
	DisableWAL bool

	// Logger receives store-level logging. Defaults to the "store" logger.
	Logger *logger.Logger
}

// DefaultOptions returns the default store options.
func DefaultOptions() *Options {
	return &Options{
		RangeDeleteThreshold: DefaultRangeDeleteThreshold,
		Logger:               logger.GetLogger("store"),
	}
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store implements store.KVStore over the pebble-backed engine.
type Store struct {
	path      string
	log       *logger.Logger
	eng       engine.Engine
	defs      []sharding.ColumnDescriptor
	reg       *registry
	queue     *compactionQueue
	met       *storeMetrics
	threshold int

	// leased holds every shard handle owned by the store, released once
	// on Close. The default shard is engine-owned and not listed.
	leased []engine.Shard

	mu     sync.Mutex
	closed bool
}

var _ store.KVStore = (*Store)(nil)

// Open opens the store at path, creating it if it does not exist yet.
//
// A fresh store materializes every column of opts.ShardingDefinition as
// physical shards and persists the definition. An existing store is verified
// instead: the requested definition must match the persisted one
// (store.SchemaMismatchError otherwise), and every physical shard the schema
// describes must exist in the engine (store.MissingShardError otherwise,
// unless a prior Repair authorized recreation).
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger("store")
	}
	threshold := opts.RangeDeleteThreshold
	if threshold <= 0 {
		threshold = DefaultRangeDeleteThreshold
	}

	defs, err := sharding.Parse(opts.ShardingDefinition)
	if err != nil {
		return nil, err
	}

	families, mergerName := buildMergeConfig(defs, opts.MergeOperators)
	fresh := !pebbleng.StoreExists(path)

	eng, err := pebbleng.Open(path, &pebbleng.Options{
		CreateIfMissing: fresh,
		DisableWAL:      opts.DisableWAL,
		MergerName:      mergerName,
		MergeOperators:  families,
		Logger:          logger.GetLogger("engine"),
	})
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:      path,
		log:       log,
		eng:       eng,
		defs:      defs,
		reg:       newRegistry(),
		threshold: threshold,
	}
	s.queue = newCompactionQueue(log, s.runCompaction, func() { s.met.queueMerges.Inc() })
	s.met = newStoreMetrics(s.queue.length, s.reg.hashCount.Load)

	if fresh {
		err = s.initFresh(opts.ShardingDefinition)
	} else {
		err = s.verify()
	}
	if err != nil {
		s.release()
		_ = eng.Close()
		return nil, err
	}

	log.Infof("opened store at %s with %d sharded columns", path, len(defs))
	return s, nil
}

// initFresh materializes the sharding definition on an empty engine and
// persists it.
func (s *Store) initFresh(defText string) error {
	for _, d := range s.defs {
		for idx, name := range d.ShardNames() {
			shard, err := s.eng.CreateShard(name, d.Options)
			if err != nil {
				return errors.Wrapf(err, "shardstore: create shard %s", name)
			}
			s.leased = append(s.leased, shard)
			if err := s.reg.register(d.Name, d.HashLow, d.HashHigh, idx, shard); err != nil {
				return err
			}
		}
	}
	if defText != "" {
		if err := s.eng.WriteAux(auxShardingDef, defText); err != nil {
			return err
		}
	}
	return nil
}

// verify checks the requested definition against the persisted one, ensures
// every described shard physically exists and leases the handles.
func (s *Store) verify() error {
	var stored []sharding.ColumnDescriptor
	storedText, err := s.eng.ReadAux(auxShardingDef)
	switch {
	case err == nil:
		stored, err = sharding.Parse(storedText)
		if err != nil {
			return errors.Wrap(err, "shardstore: persisted sharding definition")
		}
	case errors.Is(err, engine.ErrNotFound):
		// No record means the store was created without sharding.
	default:
		return err
	}

	if err := compareDefs(s.defs, stored); err != nil {
		return err
	}

	live, err := s.eng.ListShards()
	if err != nil {
		return err
	}
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	expected := sharding.PhysicalNames(s.defs)
	expectedSet := make(map[string]bool, len(expected))
	var missing []string
	for _, name := range expected {
		expectedSet[name] = true
		if !liveSet[name] {
			missing = append(missing, name)
		}
	}
	for _, name := range live {
		if !expectedSet[name] {
			return &store.SchemaMismatchError{
				Reason: fmt.Sprintf("shard %q exists but no column describes it", name),
			}
		}
	}

	if len(missing) > 0 {
		marker, err := s.eng.ReadAux(auxRecreateMarker)
		if err != nil && !errors.Is(err, engine.ErrNotFound) {
			return err
		}
		if marker != "1" {
			return &store.MissingShardError{Name: missing[0]}
		}
	}

	// Lease handles column by column, creating authorized missing shards.
	byColumn := make(map[string]sharding.ColumnDescriptor, len(s.defs))
	for _, d := range s.defs {
		byColumn[d.Name] = d
	}
	for _, d := range s.defs {
		for idx, name := range d.ShardNames() {
			var shard engine.Shard
			if liveSet[name] {
				shard, err = s.eng.OpenShard(name)
			} else {
				s.log.Warningf("recreating missing shard %s", name)
				shard, err = s.eng.CreateShard(name, d.Options)
			}
			if err != nil {
				return errors.Wrapf(err, "shardstore: open shard %s", name)
			}
			s.leased = append(s.leased, shard)
			if err := s.reg.register(d.Name, d.HashLow, d.HashHigh, idx, shard); err != nil {
				return err
			}
		}
	}

	// The authorization is single-use.
	if err := s.eng.RemoveAux(auxRecreateMarker); err != nil {
		return err
	}
	return nil
}

// compareDefs checks that two definitions place data identically. Order and
// options are irrelevant; names, shard counts and hash ranges are not.
func compareDefs(requested, stored []sharding.ColumnDescriptor) error {
	if len(requested) != len(stored) {
		return &store.SchemaMismatchError{
			Reason: fmt.Sprintf("requested %d sharded columns, store has %d",
				len(requested), len(stored)),
		}
	}
	byName := make(map[string]sharding.ColumnDescriptor, len(stored))
	for _, d := range stored {
		byName[d.Name] = d
	}
	for _, d := range requested {
		o, ok := byName[d.Name]
		if !ok {
			return &store.SchemaMismatchError{
				Reason: fmt.Sprintf("column %q not present in the store", d.Name),
			}
		}
		if !d.SameShape(o) {
			return &store.SchemaMismatchError{
				Reason: fmt.Sprintf("column %q requested as %s, stored as %s",
					d.Name, d.String(), o.String()),
			}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// locate resolves (prefix, key) to the physical shard and raw key holding it.
func (s *Store) locate(prefix, key string) (engine.Shard, []byte) {
	if g, ok := s.reg.resolve(prefix); ok {
		return s.reg.pickShard(g, key), []byte(key)
	}
	return s.eng.DefaultShard(), combineKey(prefix, key)
}

func (s *Store) Get(prefix, key string) ([]byte, bool, error) {
	s.met.gets.Inc()
	shard, raw := s.locate(prefix, key)
	val, err := shard.Get(raw)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "shardstore: get")
	}
	return val, true, nil
}

func (s *Store) GetMany(prefix string, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		val, found, err := s.Get(prefix, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = val
		}
	}
	return out, nil
}

func (s *Store) NewIterator(prefix string) (store.Iterator, error) {
	if g, ok := s.reg.resolve(prefix); ok {
		if len(g.shards) == 1 {
			c, err := g.shards[0].NewCursor()
			if err != nil {
				return nil, errors.Wrap(err, "shardstore: iterator")
			}
			return &shardIterator{c: c}, nil
		}
		cursors := make([]engine.Cursor, 0, len(g.shards))
		for _, shard := range g.shards {
			c, err := shard.NewCursor()
			if err != nil {
				for _, open := range cursors {
					_ = open.Close()
				}
				return nil, errors.Wrap(err, "shardstore: iterator")
			}
			cursors = append(cursors, c)
		}
		return newMergeIterator(cursors), nil
	}
	c, err := s.eng.DefaultShard().NewCursor()
	if err != nil {
		return nil, errors.Wrap(err, "shardstore: iterator")
	}
	return newPrefixIterator(c, prefix), nil
}

func (s *Store) NewBatch() store.Batch {
	return &storeBatch{s: s, b: s.eng.NewBatch()}
}

func (s *Store) EstimatePrefixSize(prefix, keyPrefix string) (uint64, error) {
	if g, ok := s.reg.resolve(prefix); ok {
		var low, up []byte
		if keyPrefix != "" {
			low = []byte(keyPrefix)
			up = keyUpper(low)
		}
		var total uint64
		for _, shard := range g.shards {
			n, err := shard.EstimateSize(low, up)
			if err != nil {
				return 0, errors.Wrap(err, "shardstore: estimate size")
			}
			total += n
		}
		return total, nil
	}
	low := append(combinedPrefix(prefix), keyPrefix...)
	up := combinedUpper(prefix)
	if keyPrefix != "" {
		up = keyUpper(low)
	}
	n, err := s.eng.DefaultShard().EstimateSize(low, up)
	return n, errors.Wrap(err, "shardstore: estimate size")
}

func (s *Store) Property(name string) (string, bool) {
	return s.eng.Property(name)
}

// WritePrometheus writes the store's metrics in Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) {
	s.met.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

// Compact synchronously compacts the default family and every shard.
func (s *Store) Compact() error {
	s.met.compactions.Inc()
	return s.compactAll()
}

func (s *Store) compactAll() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(s.eng.DefaultShard().Compact(nil, nil))
	s.reg.forEach(func(g *shardGroup) {
		for _, shard := range g.shards {
			record(shard.Compact(nil, nil))
		}
	})
	return errors.Wrap(first, "shardstore: compact")
}

func (s *Store) CompactAsync() {
	s.queue.add(compactEntry{})
}

func (s *Store) CompactRangeAsync(prefix, start, end string) {
	s.queue.add(compactEntry{prefix: prefix, start: start, end: end})
}

// runCompaction executes one queued entry on the worker goroutine.
func (s *Store) runCompaction(e compactEntry) error {
	if e.wholeStore() {
		s.met.compactions.Inc()
		return s.compactAll()
	}
	s.met.rangeCompactions.Inc()

	var low, up []byte
	if g, ok := s.reg.resolve(e.prefix); ok {
		if e.start != "" {
			low = []byte(e.start)
		}
		if e.end != "" {
			up = []byte(e.end)
		}
		for _, shard := range g.shards {
			if err := shard.Compact(low, up); err != nil {
				return err
			}
		}
		return nil
	}
	low = combineKey(e.prefix, e.start)
	up = combinedUpper(e.prefix)
	if e.end != "" {
		up = combineKey(e.prefix, e.end)
	}
	return s.eng.DefaultShard().Compact(low, up)
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

// release returns every leased shard handle to the engine.
func (s *Store) release() {
	for _, shard := range s.leased {
		if err := shard.Release(); err != nil {
			s.log.Errorf("releasing shard %s: %v", shard.Name(), err)
		}
	}
	s.leased = nil
}

// Close stops background compaction, releases all shard handles and closes
// the engine. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.queue.shutdown()
	s.release()
	return s.eng.Close()
}

// --------------------------------------------------------------------------
// Repair
// --------------------------------------------------------------------------

// Schema returns the sharding definition persisted next to the store at
// path, without opening the store itself. It returns engine.ErrNotFound
// when no definition has been written yet.
func Schema(path string) (string, error) {
	return pebbleng.ReadAuxRecord(path, auxShardingDef)
}

// Repair attempts to bring the store at path back into an openable state.
// The persisted sharding definition survives even when recovery fails, and
// shard recreation is always re-authorized, so a subsequent Open rebuilds
// whatever physical shards the recovery lost.
func Repair(path string, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger("store")
	}

	defs, err := sharding.Parse(opts.ShardingDefinition)
	if err != nil {
		return err
	}
	families, mergerName := buildMergeConfig(defs, opts.MergeOperators)

	schema, schemaErr := pebbleng.ReadAuxRecord(path, auxShardingDef)

	var openErr error
	eng, err := pebbleng.Open(path, &pebbleng.Options{
		CreateIfMissing: false,
		MergerName:      mergerName,
		MergeOperators:  families,
		Logger:          logger.GetLogger("engine"),
	})
	if err != nil {
		openErr = errors.Wrapf(err, "shardstore: repair %s", path)
		log.Errorf("repair: engine recovery failed: %v", err)
	} else {
		_ = eng.Close()
	}

	// Keep the schema record in place no matter how recovery went.
	if schemaErr == nil {
		if err := pebbleng.WriteAuxRecord(path, auxShardingDef, schema); err != nil {
			return err
		}
	}
	if err := pebbleng.WriteAuxRecord(path, auxRecreateMarker, "1"); err != nil {
		return err
	}
	log.Infof("repair of %s finished, shard recreation authorized", path)
	return openErr
}
