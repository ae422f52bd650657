package pebbleng

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"shardkv/lib/engine"
	"shardkv/lib/logger"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// metaFamilyID holds the catalog; defaultFamilyID is the default shard.
	metaFamilyID    uint32 = 0
	defaultFamilyID uint32 = 1
	firstFamilyID   uint32 = 2

	defaultName = "default"

	// catalogTag prefixes catalog records inside the meta family.
	catalogTag = 'f'

	// defaultMergerName is used when the caller does not supply one.
	defaultMergerName = "shardkv.merge"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the engine at open time.
type Options struct {
	// CreateIfMissing creates the database when the path is empty. When
	// false, opening a missing database fails.
	CreateIfMissing bool

	// DisableWAL turns off the write-ahead log. Only safe for stores whose
	// content can be rebuilt.
	DisableWAL bool

	// MergerName is the merge-operator identity persisted by pebble and
	// validated on every subsequent open. Must be a deterministic function
	// of the installed operator set.
	MergerName string

	// MergeOperators maps family name ("default" included) to the operator
	// handling merge operands written to that family. Fixed for the engine's
	// lifetime; families without an entry resolve merges to the newest
	// operand.
	MergeOperators map[string]engine.MergeOperator

	// Logger receives engine-internal logging. Defaults to the "engine"
	// logger.
	Logger *logger.Logger
}

// DefaultOptions returns the default engine options.
func DefaultOptions() *Options {
	return &Options{
		CreateIfMissing: true,
		Logger:          logger.GetLogger("engine"),
	}
}

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

type engineImpl struct {
	path string
	db   *pebble.DB
	log  *logger.Logger

	// mu guards the catalog maps and closed.
	mu       sync.Mutex
	families map[string]uint32
	nextID   uint32
	closed   bool

	// mergeMu guards mergeByID, which pebble's merge callbacks read
	// concurrently with shard creation.
	mergeMu   sync.RWMutex
	mergeByID map[uint32]engine.MergeOperator
	mergeOps  map[string]engine.MergeOperator

	defaultShard *shardHandle
}

// Open opens (or creates) a pebble-backed engine at path.
func Open(path string, opts *Options) (engine.Engine, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger("engine")
	}
	mergerName := opts.MergerName
	if mergerName == "" {
		mergerName = defaultMergerName
	}

	e := &engineImpl{
		path:      path,
		log:       log,
		families:  make(map[string]uint32),
		nextID:    firstFamilyID,
		mergeByID: make(map[uint32]engine.MergeOperator),
		mergeOps:  opts.MergeOperators,
	}

	popts := &pebble.Options{
		DisableWAL: opts.DisableWAL,
		Logger:     log,
		Merger: &pebble.Merger{
			Name:  mergerName,
			Merge: e.newValueMerger,
		},
	}
	if !opts.CreateIfMissing {
		popts.ErrorIfNotExists = true
	}

	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, errors.Wrapf(err, "pebbleng: open %s", path)
	}
	e.db = db

	if err := e.loadCatalog(); err != nil {
		_ = db.Close()
		return nil, err
	}
	e.defaultShard = &shardHandle{eng: e, id: defaultFamilyID, name: defaultName}
	e.installMergeOp(defaultFamilyID, defaultName)

	log.Debugf("opened %s with %d families", path, len(e.families))
	return e, nil
}

// --------------------------------------------------------------------------
// Catalog
// --------------------------------------------------------------------------

func familyPrefix(id uint32) []byte {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], id)
	return p[:]
}

func catalogKey(name string) []byte {
	k := make([]byte, 0, 5+len(name))
	k = append(k, familyPrefix(metaFamilyID)...)
	k = append(k, catalogTag)
	k = append(k, name...)
	return k
}

// loadCatalog reads the full family catalog from the meta keyspace.
func (e *engineImpl) loadCatalog() error {
	it, err := e.db.NewIter(&pebble.IterOptions{
		LowerBound: familyPrefix(metaFamilyID),
		UpperBound: familyPrefix(defaultFamilyID),
	})
	if err != nil {
		return errors.Wrap(err, "pebbleng: catalog iterator")
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		key := it.Key()
		if len(key) < 5 || key[4] != catalogTag {
			return errors.Newf("pebbleng: malformed catalog key %q", key)
		}
		name := string(key[5:])
		val := it.Value()
		if len(val) != 4 {
			return errors.Newf("pebbleng: malformed catalog record for %q", name)
		}
		id := binary.BigEndian.Uint32(val)
		e.families[name] = id
		if id >= e.nextID {
			e.nextID = id + 1
		}
		e.installMergeOp(id, name)
	}
	return errors.Wrap(it.Error(), "pebbleng: catalog scan")
}

// installMergeOp binds the operator configured for a family name to its id.
func (e *engineImpl) installMergeOp(id uint32, name string) {
	op, ok := e.mergeOps[name]
	if !ok {
		return
	}
	e.mergeMu.Lock()
	e.mergeByID[id] = op
	e.mergeMu.Unlock()
}

// --------------------------------------------------------------------------
// Engine Interface Methods
// --------------------------------------------------------------------------

func (e *engineImpl) DefaultShard() engine.Shard {
	return e.defaultShard
}

func (e *engineImpl) ListShards() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, engine.ErrClosed
	}
	names := make([]string, 0, len(e.families))
	for name := range e.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (e *engineImpl) CreateShard(name, options string) (engine.Shard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, engine.ErrClosed
	}
	if name == defaultName {
		return nil, engine.ErrShardExists
	}
	if _, ok := e.families[name]; ok {
		return nil, engine.ErrShardExists
	}
	if options != "" {
		// Family tuning strings are accepted for schema compatibility but
		// have no pebble equivalent; all families share the DB options.
		e.log.Debugf("ignoring options %q for shard %s", options, name)
	}

	id := e.nextID
	var val [4]byte
	binary.BigEndian.PutUint32(val[:], id)
	if err := e.db.Set(catalogKey(name), val[:], pebble.Sync); err != nil {
		return nil, errors.Wrapf(err, "pebbleng: create shard %s", name)
	}
	e.nextID++
	e.families[name] = id
	e.installMergeOp(id, name)
	return &shardHandle{eng: e, id: id, name: name}, nil
}

func (e *engineImpl) OpenShard(name string) (engine.Shard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, engine.ErrClosed
	}
	if name == defaultName {
		return e.defaultShard, nil
	}
	id, ok := e.families[name]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return &shardHandle{eng: e, id: id, name: name}, nil
}

func (e *engineImpl) NewBatch() engine.Batch {
	return &batchImpl{eng: e, b: e.db.NewBatch()}
}

func (e *engineImpl) Property(name string) (string, bool) {
	switch name {
	case "engine.stats":
		return e.db.Metrics().String(), true
	default:
		return "", false
	}
}

func (e *engineImpl) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return errors.Wrap(e.db.Close(), "pebbleng: close")
}

// --------------------------------------------------------------------------
// Auxiliary Records
// --------------------------------------------------------------------------

func (e *engineImpl) ReadAux(path string) (string, error) {
	return ReadAuxRecord(e.path, path)
}

func (e *engineImpl) WriteAux(path, contents string) error {
	return WriteAuxRecord(e.path, path, contents)
}

func (e *engineImpl) RemoveAux(path string) error {
	return RemoveAuxRecord(e.path, path)
}
