package container

import (
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/store"
)

func init() {
	store.Register(store.KindLargeSet, func() store.Object { return newEmptyLargeSet() })
}

// LargeSet is a set of object references backed by a roaring bitmap.
//
// Iteration order is ascending OID, but callers must not rely on it.
// The bitmap runs in copy-on-write mode so that cursors are cheap. Cloning
// flags the shared containers on the source bitmap, so Clone, Cursor and
// MarshalBinary serialize on cloneMu and may run under a shared lock.
type LargeSet struct {
	store.Persistent

	cloneMu sync.Mutex
	rb      *roaring.Bitmap
}

func newEmptyLargeSet() *LargeSet {
	rb := roaring.New()
	rb.SetCopyOnWrite(true)
	return &LargeSet{rb: rb}
}

// NewLargeSet creates a transient set holding items.
func NewLargeSet(items ...core.OID) *LargeSet {
	s := newEmptyLargeSet()
	for _, oid := range items {
		s.rb.Add(uint32(oid))
	}
	return s
}

// Kind returns store.KindLargeSet.
func (s *LargeSet) Kind() store.Kind { return store.KindLargeSet }

// Len returns the number of members.
func (s *LargeSet) Len() int { return int(s.rb.GetCardinality()) }

// Add inserts oid and reports whether it was absent.
func (s *LargeSet) Add(oid core.OID) bool {
	if !s.rb.CheckedAdd(uint32(oid)) {
		return false
	}
	s.Modify()
	return true
}

// Remove deletes oid and reports whether it was present.
func (s *LargeSet) Remove(oid core.OID) bool {
	if !s.rb.CheckedRemove(uint32(oid)) {
		return false
	}
	s.Modify()
	return true
}

// Contains reports whether oid is a member.
func (s *LargeSet) Contains(oid core.OID) bool {
	return s.rb.Contains(uint32(oid))
}

// All returns an iterator over the members.
func (s *LargeSet) All() iter.Seq[core.OID] {
	return func(yield func(core.OID) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(core.OID(it.Next())) {
				return
			}
		}
	}
}

// Clone returns a transient copy of the set. Containers are shared
// copy-on-write, so cloning is cheap.
func (s *LargeSet) Clone() *LargeSet {
	return &LargeSet{rb: s.snapshot()}
}

// Cursor returns a cursor over a copy-on-write snapshot of the members.
func (s *LargeSet) Cursor() Cursor {
	return &bitmapCursor{it: s.snapshot().Iterator()}
}

func (s *LargeSet) snapshot() *roaring.Bitmap {
	s.cloneMu.Lock()
	defer s.cloneMu.Unlock()
	return s.rb.Clone()
}

// MarshalBinary encodes the set in the portable roaring format.
func (s *LargeSet) MarshalBinary() ([]byte, error) {
	s.cloneMu.Lock()
	defer s.cloneMu.Unlock()
	return s.rb.ToBytes()
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (s *LargeSet) UnmarshalBinary(data []byte) error {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(data); err != nil {
		return err
	}
	rb.SetCopyOnWrite(true)
	s.rb = rb
	return nil
}

type bitmapCursor struct {
	it roaring.IntPeekable
}

func (c *bitmapCursor) HasNext() bool { return c.it.HasNext() }

func (c *bitmapCursor) Next() core.OID { return core.OID(c.it.Next()) }
