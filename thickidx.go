package thickidx

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/codec"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/store"
	"github.com/hupe1980/thickidx/thickindex"
	"github.com/hupe1980/thickidx/uniqueindex"
)

// DB is a persistent object database with named non-unique indexes.
//
// All methods are safe for concurrent use. Commit waits for running
// operations and blocks new ones while it writes.
type DB struct {
	mu sync.RWMutex // held shared by operations, exclusively by Commit and Close

	store        *store.Store
	cache        *blobstore.CachingStore // nil unless the backend is remote
	closeBackend func() error
	metrics      MetricsCollector
	logger       *Logger
	readOnly     bool
	closed       bool

	catMu   sync.Mutex
	catalog *uniqueindex.Index // index name -> thick index OID
	open    map[string]*Index
}

// Open opens the database kept in backend, creating an empty one if the
// backend holds none.
func Open(ctx context.Context, backend Backend, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)
	db, err := open(ctx, backend, o)
	if err != nil {
		o.logger.LogOpen(ctx, backend.String(), 0, 0, err)
		return nil, translateError(err)
	}
	o.logger.LogOpen(ctx, backend.String(), db.store.Stats().Version, db.catalog.Len(), nil)
	return db, nil
}

func open(ctx context.Context, backend Backend, o options) (*DB, error) {
	compressor, ok := codec.ByName(o.compression)
	if !ok {
		return nil, fmt.Errorf("%w: compression %q", ErrInvalidArgument, o.compression)
	}

	rc := o.resourceController()
	bs, closeBackend, err := backend.open(&o, rc)
	if err != nil {
		return nil, err
	}

	storeOpts := []store.Option{
		store.WithLogger(o.logger.Logger),
		store.WithCompressor(compressor),
		store.WithResourceController(rc),
	}
	if o.readOnly {
		storeOpts = append(storeOpts, store.WithReadOnly())
	}

	s, err := store.Open(ctx, bs, storeOpts...)
	if err != nil {
		_ = closeBackend()
		return nil, err
	}

	catalog, err := openCatalog(ctx, s, o.readOnly)
	if err != nil {
		_ = s.Close()
		_ = closeBackend()
		return nil, err
	}

	cache, _ := bs.(*blobstore.CachingStore)

	return &DB{
		store:        s,
		cache:        cache,
		closeBackend: closeBackend,
		metrics:      o.metricsCollector,
		logger:       o.logger,
		readOnly:     o.readOnly,
		catalog:      catalog,
		open:         make(map[string]*Index),
	}, nil
}

// openCatalog loads the catalog kept as the store root, creating it in a
// fresh writable store.
func openCatalog(ctx context.Context, s *store.Store, readOnly bool) (*uniqueindex.Index, error) {
	if root := s.Root(); root.IsValid() {
		catalog, err := store.Get[*uniqueindex.Index](ctx, s, root)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return catalog, nil
	}

	catalog := uniqueindex.New()
	if readOnly {
		return catalog, nil
	}
	oid, err := s.Allocate(catalog)
	if err != nil {
		return nil, fmt.Errorf("allocate catalog: %w", err)
	}
	if err := s.SetRoot(oid); err != nil {
		return nil, err
	}
	return catalog, nil
}

// begin takes the shared lock for an operation. write reports whether the
// operation mutates.
func (db *DB) begin(write bool) error {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return ErrClosed
	}
	if write && db.readOnly {
		db.mu.RUnlock()
		return ErrReadOnly
	}
	return nil
}

func (db *DB) end() { db.mu.RUnlock() }

// --------------------------------------------------------------------------
// Catalog
// --------------------------------------------------------------------------

// CreateIndex creates a named index for keys of the given kind.
func (db *DB) CreateIndex(ctx context.Context, name string, keyKind model.Kind, optFns ...thickindex.Option) (*Index, error) {
	if err := db.begin(true); err != nil {
		return nil, err
	}
	defer db.end()

	db.catMu.Lock()
	defer db.catMu.Unlock()

	key := model.String(name)
	if _, ok := db.catalog.Get(key); ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexExists, name)
	}

	ti, err := thickindex.New(ctx, db.store, keyKind, optFns...)
	if err != nil {
		db.logger.LogIndex(ctx, "create", name, err)
		return nil, translateError(err)
	}
	db.catalog.Insert(key, uint64(ti.OID()))
	db.catalog.Modify()

	idx := db.handle(name, ti)
	db.logger.LogIndex(ctx, "create", name, nil)
	return idx, nil
}

// Index returns the named index.
func (db *DB) Index(ctx context.Context, name string) (*Index, error) {
	if err := db.begin(false); err != nil {
		return nil, err
	}
	defer db.end()

	db.catMu.Lock()
	defer db.catMu.Unlock()

	if idx, ok := db.open[name]; ok {
		return idx, nil
	}
	ref, ok := db.catalog.Get(model.String(name))
	if !ok {
		return nil, fmt.Errorf("%w: index %s", ErrNotFound, name)
	}
	ti, err := thickindex.Open(ctx, db.store, core.OID(ref))
	if err != nil {
		return nil, translateError(err)
	}
	return db.handle(name, ti), nil
}

func (db *DB) handle(name string, ti *thickindex.ThickIndex) *Index {
	idx := &Index{db: db, name: name, ti: ti}
	db.open[name] = idx
	return idx
}

// DropIndex removes the named index and all its slots. Records referenced by
// the index are not touched.
func (db *DB) DropIndex(ctx context.Context, name string) error {
	if err := db.begin(true); err != nil {
		return err
	}
	defer db.end()

	db.catMu.Lock()
	defer db.catMu.Unlock()

	key := model.String(name)
	ref, ok := db.catalog.Get(key)
	if !ok {
		return fmt.Errorf("%w: index %s", ErrNotFound, name)
	}

	ti, err := thickindex.Open(ctx, db.store, core.OID(ref))
	if err != nil {
		return translateError(err)
	}

	db.catalog.Delete(key)
	db.catalog.Modify()
	if idx, ok := db.open[name]; ok {
		idx.dropped.Store(true)
		delete(db.open, name)
	}

	err = ti.Deallocate(ctx)
	db.logger.LogIndex(ctx, "drop", name, err)
	return translateError(err)
}

// Indexes returns the index names in ascending order.
func (db *DB) Indexes() iter.Seq[string] {
	db.catMu.Lock()
	names := db.catalog.Snapshot()
	db.catMu.Unlock()

	return func(yield func(string) bool) {
		for key := range names.All() {
			name, _ := key.AsString()
			if !yield(name) {
				return
			}
		}
	}
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Insert stores data as a new record and returns its OID.
func (db *DB) Insert(ctx context.Context, data []byte) (core.OID, error) {
	if err := db.begin(true); err != nil {
		return core.InvalidOID, err
	}
	defer db.end()

	oid, err := db.store.Allocate(store.NewRecord(data))
	err = translateError(err)
	db.logger.WithID(oid).LogRecord(ctx, "insert", err)
	return oid, err
}

// Load returns the payload of a record.
func (db *DB) Load(ctx context.Context, oid core.OID) ([]byte, error) {
	if err := db.begin(false); err != nil {
		return nil, err
	}
	defer db.end()

	start := time.Now()
	rec, err := store.Get[*store.Record](ctx, db.store, oid)
	db.metrics.RecordGet(time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	return rec.Bytes(), nil
}

// Update replaces the payload of a record.
func (db *DB) Update(ctx context.Context, oid core.OID, data []byte) error {
	if err := db.begin(true); err != nil {
		return err
	}
	defer db.end()

	rec, err := store.Get[*store.Record](ctx, db.store, oid)
	if err == nil {
		rec.SetBytes(data)
	}
	err = translateError(err)
	db.logger.WithID(oid).LogRecord(ctx, "update", err)
	return err
}

// Delete removes a record. Indexes that still reference it keep the OID;
// Load on it then fails with ErrNotFound.
func (db *DB) Delete(ctx context.Context, oid core.OID) error {
	if err := db.begin(true); err != nil {
		return err
	}
	defer db.end()

	_, err := store.Get[*store.Record](ctx, db.store, oid)
	if err == nil {
		err = db.store.Deallocate(oid)
	}
	err = translateError(err)
	db.logger.WithID(oid).LogRecord(ctx, "delete", err)
	return err
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Commit makes all changes since the previous commit durable.
func (db *DB) Commit(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if db.readOnly {
		return ErrReadOnly
	}

	pending := db.store.Stats().Dirty
	start := time.Now()
	err := db.store.Commit(ctx)
	db.metrics.RecordCommit(pending, time.Since(start), err)
	db.logger.LogCommit(ctx, db.store.Stats().Version, pending, err)
	return translateError(err)
}

// Stats returns a summary of the underlying store.
func (db *DB) Stats() store.Stats {
	return db.store.Stats()
}

// CacheStats returns the blob cache counters of a Remote backend. Other
// backends do not cache and report zero.
func (db *DB) CacheStats() blobstore.CacheStats {
	if db.cache == nil {
		return blobstore.CacheStats{}
	}
	return db.cache.Stats()
}

// Close releases the database. Uncommitted changes are lost.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var firstErr error
	if err := db.store.Close(); err != nil {
		firstErr = err
	}
	if err := db.closeBackend(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
