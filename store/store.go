package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/codec"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/internal/manifest"
	"github.com/hupe1980/thickidx/resource"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Store is a persistent object store over a blob backend.
type Store struct {
	bs        blobstore.BlobStore
	manifests *manifest.Store
	codec     codec.Compressor
	rc        *resource.Controller
	logger    *slog.Logger
	readOnly  bool

	commitMu sync.Mutex // serializes Commit

	mu        sync.Mutex
	closed    bool
	version   uint64
	nextOID   core.OID
	root      core.OID
	metaDirty bool
	resident  map[core.OID]Object
	committed map[core.OID]manifest.ObjectInfo
	dirty     map[core.OID]struct{}
	freed     map[core.OID]manifest.ObjectInfo

	loads singleflight.Group
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	Version  uint64
	Live     int
	Resident int
	Dirty    int
	NextOID  core.OID
}

// Open opens the store kept in bs. An empty backend yields an empty store.
func Open(ctx context.Context, bs blobstore.BlobStore, opts ...Option) (*Store, error) {
	s := &Store{
		bs:        bs,
		manifests: manifest.NewStore(bs),
		codec:     codec.Default,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		nextOID:   1,
		resident:  make(map[core.OID]Object),
		committed: make(map[core.OID]manifest.ObjectInfo),
		dirty:     make(map[core.OID]struct{}),
		freed:     make(map[core.OID]manifest.ObjectInfo),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := s.manifests.Load(ctx)
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		s.logger.Debug("store: no manifest, starting empty")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	s.version = m.ID
	s.nextOID = m.NextOID
	s.root = m.Root
	for _, info := range m.Objects {
		s.committed[info.OID] = info
	}

	s.logger.Debug("store: opened", "version", s.version, "objects", len(s.committed), "read_only", s.readOnly)
	return s, nil
}

// ReadOnly reports whether the store rejects mutations.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Allocate assigns an OID to obj and makes it part of the store.
// The object is written by the next Commit. Allocating an object that is
// already part of this store returns its existing OID.
func (s *Store) Allocate(obj Object) (core.OID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return core.InvalidOID, err
	}

	p := obj.persistent()
	if p.store == s {
		return p.oid, nil
	}
	if p.store != nil {
		return core.InvalidOID, ErrForeignObject
	}
	if s.nextOID == core.MaxOID {
		return core.InvalidOID, ErrOIDExhausted
	}

	oid := s.nextOID
	s.nextOID++
	s.metaDirty = true

	p.oid = oid
	p.store = s
	s.resident[oid] = obj
	s.dirty[oid] = struct{}{}
	return oid, nil
}

// Load returns the object named by oid, reading it from the backend on first
// access. Concurrent loads of the same object share one read.
func (s *Store) Load(ctx context.Context, oid core.OID) (Object, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if obj, ok := s.resident[oid]; ok {
		s.mu.Unlock()
		return obj, nil
	}
	info, ok := s.committed[oid]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, oid)
	}

	v, err, _ := s.loads.Do(strconv.FormatUint(uint64(oid), 10), func() (any, error) {
		return s.loadCommitted(ctx, info)
	})
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}

func (s *Store) loadCommitted(ctx context.Context, info manifest.ObjectInfo) (Object, error) {
	path := info.Path()
	page, err := s.bs.Get(ctx, path)
	if err != nil {
		return nil, &PageError{OID: info.OID, Path: path, Err: err}
	}

	kind, raw, err := decodePage(page)
	if err != nil {
		return nil, &PageError{OID: info.OID, Path: path, Err: err}
	}
	if uint16(kind) != info.Kind {
		return nil, &PageError{OID: info.OID, Path: path, Err: fmt.Errorf("%w: page kind %s, manifest kind %s", ErrCorrupt, kind, Kind(info.Kind))}
	}

	obj, err := newObject(kind)
	if err != nil {
		return nil, &PageError{OID: info.OID, Path: path, Err: err}
	}
	if err := obj.UnmarshalBinary(raw); err != nil {
		return nil, &PageError{OID: info.OID, Path: path, Err: fmt.Errorf("%w: %w", ErrCorrupt, err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if existing, ok := s.resident[info.OID]; ok {
		return existing, nil
	}
	if _, ok := s.committed[info.OID]; !ok {
		// Deallocated while the page was being read.
		return nil, fmt.Errorf("%w: %s", ErrNotFound, info.OID)
	}

	p := obj.persistent()
	p.oid = info.OID
	p.store = s
	s.resident[info.OID] = obj
	return obj, nil
}

// Get loads the object named by oid and asserts its type.
func Get[T Object](ctx context.Context, s *Store, oid core.OID) (T, error) {
	var zero T
	obj, err := s.Load(ctx, oid)
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is a %s", ErrTypeMismatch, oid, obj.Kind())
	}
	return t, nil
}

// Contains reports whether oid names a live object.
func (s *Store) Contains(oid core.OID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resident[oid]; ok {
		return true
	}
	_, ok := s.committed[oid]
	return ok
}

// Deallocate removes the object named by oid. Its page is deleted after the
// next successful Commit. Objects referenced by the deallocated object are
// not affected.
func (s *Store) Deallocate(oid core.OID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return err
	}

	obj, resident := s.resident[oid]
	info, committed := s.committed[oid]
	if !resident && !committed {
		return fmt.Errorf("%w: %s", ErrNotFound, oid)
	}

	if resident {
		obj.persistent().store = nil
		delete(s.resident, oid)
	}
	delete(s.dirty, oid)
	if committed {
		delete(s.committed, oid)
		s.freed[oid] = info
	}
	if s.root == oid {
		s.root = core.InvalidOID
	}
	s.metaDirty = true
	return nil
}

func (s *Store) markDirty(oid core.OID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resident[oid]; ok {
		s.dirty[oid] = struct{}{}
	}
}

// Root returns the root object OID, or core.InvalidOID if none is set.
func (s *Store) Root() core.OID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// SetRoot sets the root object. The root survives reopening.
func (s *Store) SetRoot(oid core.OID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return err
	}
	if oid.IsValid() {
		_, resident := s.resident[oid]
		_, committed := s.committed[oid]
		if !resident && !committed {
			return fmt.Errorf("%w: %s", ErrNotFound, oid)
		}
	}
	s.root = oid
	s.metaDirty = true
	return nil
}

// Stats returns a summary of the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := len(s.committed)
	for oid := range s.resident {
		if _, ok := s.committed[oid]; !ok {
			live++
		}
	}
	return Stats{
		Version:  s.version,
		Live:     live,
		Resident: len(s.resident),
		Dirty:    len(s.dirty),
		NextOID:  s.nextOID,
	}
}

type pageWrite struct {
	oid  core.OID
	obj  Object
	info manifest.ObjectInfo
}

// Commit persists all changes since the previous commit.
// It is a no-op when nothing changed.
func (s *Store) Commit(ctx context.Context) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if err := s.checkWritable(); err != nil {
		s.mu.Unlock()
		return err
	}
	if len(s.dirty) == 0 && len(s.freed) == 0 && !s.metaDirty {
		s.mu.Unlock()
		return nil
	}

	gen := s.version + 1
	writes := make([]*pageWrite, 0, len(s.dirty))
	for oid := range s.dirty {
		writes = append(writes, &pageWrite{oid: oid, obj: s.resident[oid]})
	}
	slices.SortFunc(writes, func(a, b *pageWrite) int { return cmp.Compare(a.oid, b.oid) })
	freed := s.freed
	s.dirty = make(map[core.OID]struct{})
	s.freed = make(map[core.OID]manifest.ObjectInfo)
	s.mu.Unlock()

	written, err := s.writePages(ctx, writes, gen)
	if err != nil {
		s.restore(writes, freed)
		s.deleteBlobs(ctx, written)
		return err
	}

	s.mu.Lock()
	var garbage []string
	replaced := make(map[core.OID]manifest.ObjectInfo)
	installed := make([]core.OID, 0, len(writes))
	for _, w := range writes {
		if cur, ok := s.resident[w.oid]; !ok || cur != w.obj {
			// Deallocated during the commit.
			garbage = append(garbage, w.info.Path())
			continue
		}
		if old, ok := s.committed[w.oid]; ok {
			replaced[w.oid] = old
			garbage = append(garbage, old.Path())
		}
		s.committed[w.oid] = w.info
		installed = append(installed, w.oid)
	}
	for _, info := range freed {
		garbage = append(garbage, info.Path())
	}

	m := manifest.New()
	m.ID = s.version
	m.NextOID = s.nextOID
	m.Root = s.root
	m.Objects = make([]manifest.ObjectInfo, 0, len(s.committed))
	for _, info := range s.committed {
		m.Objects = append(m.Objects, info)
	}
	slices.SortFunc(m.Objects, func(a, b manifest.ObjectInfo) int { return cmp.Compare(a.OID, b.OID) })

	if err := s.manifests.Save(ctx, m); err != nil {
		for _, oid := range installed {
			if old, ok := replaced[oid]; ok {
				s.committed[oid] = old
			} else {
				delete(s.committed, oid)
			}
		}
		s.mu.Unlock()
		s.restore(writes, freed)
		s.deleteBlobs(ctx, written)
		return fmt.Errorf("save manifest: %w", err)
	}

	prev := s.version
	s.version = m.ID
	s.metaDirty = false
	s.mu.Unlock()

	if prev > 0 {
		garbage = append(garbage, manifest.FileName(prev))
	}
	s.deleteBlobs(ctx, garbage)

	s.logger.Debug("store: committed", "version", m.ID, "written", len(writes), "freed", len(freed), "live", len(m.Objects))
	return nil
}

func (s *Store) writePages(ctx context.Context, writes []*pageWrite, gen uint64) ([]string, error) {
	var (
		mu      sync.Mutex
		written []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(max(s.rc.Config().MaxBackgroundWorkers, 1)))

	for _, w := range writes {
		g.Go(func() error {
			if err := s.rc.AcquireBackground(gctx); err != nil {
				return err
			}
			defer s.rc.ReleaseBackground()

			raw, err := w.obj.MarshalBinary()
			if err != nil {
				return fmt.Errorf("marshal %s: %w", w.oid, err)
			}
			page, err := encodePage(w.obj.Kind(), raw, s.codec)
			if err != nil {
				return fmt.Errorf("encode %s: %w", w.oid, err)
			}

			w.info = manifest.ObjectInfo{
				OID:  w.oid,
				Kind: uint16(w.obj.Kind()),
				Gen:  gen,
				Size: uint32(len(page)),
			}

			if err := s.rc.AcquireIO(gctx, len(page)); err != nil {
				return err
			}
			path := w.info.Path()
			if err := s.bs.Put(gctx, path, page); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return written, err
}

// restore puts the change sets of a failed commit back.
func (s *Store) restore(writes []*pageWrite, freed map[core.OID]manifest.ObjectInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		if _, ok := s.resident[w.oid]; ok {
			s.dirty[w.oid] = struct{}{}
		}
	}
	for oid, info := range freed {
		s.freed[oid] = info
	}
	s.metaDirty = true
}

func (s *Store) deleteBlobs(ctx context.Context, names []string) {
	for _, name := range names {
		if err := s.bs.Delete(ctx, name); err != nil {
			s.logger.Warn("store: failed to delete blob", "name", name, "error", err)
		}
	}
}

// Close releases the in-memory state. Uncommitted changes are lost.
func (s *Store) Close() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	for _, obj := range s.resident {
		obj.persistent().store = nil
	}
	s.resident = nil
	s.dirty = nil
	return nil
}

func (s *Store) checkWritable() error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}
