package thickindex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/store"
	"github.com/hupe1980/thickidx/uniqueindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, bs blobstore.BlobStore) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), bs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newIndex(t *testing.T, s Storage, kind model.Kind, opts ...Option) *ThickIndex {
	t.Helper()
	idx, err := New(context.Background(), s, kind, opts...)
	require.NoError(t, err)
	return idx
}

func slotKindOf(t *testing.T, idx *ThickIndex, key model.Key) slotKind {
	t.Helper()
	idx.RLock()
	defer idx.RUnlock()
	ref, ok := idx.index.Get(key)
	require.True(t, ok, "key %s not present", key)
	return slotRef(ref).kind()
}

func collect(t *testing.T, seq func(func(core.OID, error) bool)) []core.OID {
	t.Helper()
	var out []core.OID
	for oid, err := range seq {
		require.NoError(t, err)
		out = append(out, oid)
	}
	return out
}

func TestNewValidatesArguments(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()

	_, err := New(ctx, s, model.KindInvalid)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(ctx, s, model.KindString, WithThreshold(0))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	idx := newIndex(t, s, model.KindString)
	assert.Equal(t, DefaultThreshold, idx.Threshold())
	assert.Equal(t, model.KindString, idx.KeyKind())
	assert.Equal(t, 0, idx.Len())
	assert.True(t, idx.IsPersistent())
}

func TestGetAfterPut(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)
	k := model.String("k")

	got, err := idx.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, core.InvalidOID, got)

	require.NoError(t, idx.Put(ctx, k, 10))
	got, err = idx.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, core.OID(10), got)

	require.NoError(t, idx.Put(ctx, k, 11))
	_, err = idx.Get(ctx, k)
	assert.ErrorIs(t, err, ErrKeyNotUnique)
	assert.Equal(t, 2, idx.Len())
}

func TestPutAllowsDuplicatesInSmallList(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindInt)
	k := model.Int(1)

	require.NoError(t, idx.Put(ctx, k, 5))
	require.NoError(t, idx.Put(ctx, k, 5))

	assert.Equal(t, 2, idx.Len())
	n, err := idx.Count(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := idx.GetAll(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{5, 5}, all)
}

func TestPutRejectsWrongKeyKind(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)

	err := idx.Put(ctx, model.Int(1), 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = idx.Get(ctx, model.Int(1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 0, idx.Len())
}

func TestSet(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)
	k := model.String("k")

	prev, err := idx.Set(ctx, k, 1)
	require.NoError(t, err)
	assert.Equal(t, core.InvalidOID, prev)

	prev, err = idx.Set(ctx, k, 2)
	require.NoError(t, err)
	assert.Equal(t, core.OID(1), prev)

	all, err := idx.GetAll(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{2}, all)
	assert.Equal(t, 1, idx.Len())

	require.NoError(t, idx.Put(ctx, k, 3))
	_, err = idx.Set(ctx, k, 4)
	assert.ErrorIs(t, err, ErrKeyNotUnique)

	all, err = idx.GetAll(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{2, 3}, all, "failed Set must not mutate")
	assert.Equal(t, 2, idx.Len())
}

func TestRemove(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)
	k := model.String("k")

	err := idx.Remove(ctx, k, 1)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, idx.Put(ctx, k, 1))
	require.NoError(t, idx.Put(ctx, k, 2))

	err = idx.Remove(ctx, k, 99)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 2, idx.Len())
	all, err := idx.GetAll(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{1, 2}, all)

	require.NoError(t, idx.Remove(ctx, k, 1))
	assert.Equal(t, 1, idx.Len())

	idx.RLock()
	ref, _ := idx.index.Get(k)
	idx.RUnlock()
	slotOID := slotRef(ref).oid()

	require.NoError(t, idx.Remove(ctx, k, 2))
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.KeyCount())
	assert.False(t, s.Contains(slotOID), "empty slot must be deallocated")

	got, err := idx.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, core.InvalidOID, got)
}

func TestRemoveOneOccurrence(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)
	k := model.String("k")

	for _, oid := range []core.OID{1, 2, 1, 3} {
		require.NoError(t, idx.Put(ctx, k, oid))
	}
	require.NoError(t, idx.Remove(ctx, k, 1))

	all, err := idx.GetAll(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{2, 1, 3}, all)
	assert.Equal(t, 3, idx.Len())
}

func TestRemoveKeyIsAlwaysNotUnique(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)
	k := model.String("k")
	require.NoError(t, idx.Put(ctx, k, 1))

	_, err := idx.RemoveKey(ctx, k)
	assert.ErrorIs(t, err, ErrKeyNotUnique)
	assert.Equal(t, 1, idx.Len())
}

func TestPromotionAtThreshold(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)
	k := model.String("K")

	for v := core.OID(1); v <= DefaultThreshold; v++ {
		require.NoError(t, idx.Put(ctx, k, v))
	}
	assert.Equal(t, slotSmallList, slotKindOf(t, idx, k))
	assert.Equal(t, DefaultThreshold, idx.Len())

	idx.RLock()
	ref, _ := idx.index.Get(k)
	idx.RUnlock()
	listOID := slotRef(ref).oid()

	require.NoError(t, idx.Put(ctx, k, DefaultThreshold+1))
	assert.Equal(t, slotLargeSet, slotKindOf(t, idx, k))
	assert.Equal(t, DefaultThreshold+1, idx.Len())
	assert.False(t, s.Contains(listOID), "promoted list must be deallocated")

	var want []core.OID
	for v := core.OID(1); v <= DefaultThreshold+1; v++ {
		want = append(want, v)
	}
	got := collect(t, idx.Range(ctx, nil, nil, uniqueindex.Ascending))
	assert.ElementsMatch(t, want, got)

	for v := core.OID(1); v <= DefaultThreshold; v++ {
		require.NoError(t, idx.Remove(ctx, k, v))
	}
	assert.Equal(t, slotLargeSet, slotKindOf(t, idx, k), "no demotion")
	assert.Equal(t, 1, idx.Len())

	// Decided by representation, not by the current size.
	_, err := idx.Get(ctx, k)
	assert.ErrorIs(t, err, ErrKeyNotUnique)
	_, err = idx.Set(ctx, k, 7)
	assert.ErrorIs(t, err, ErrKeyNotUnique)

	all, err := idx.GetAll(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{DefaultThreshold + 1}, all)

	require.NoError(t, idx.Remove(ctx, k, DefaultThreshold+1))
	assert.Equal(t, 0, idx.KeyCount())
}

func TestPromotionCollapsesDuplicates(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindInt, WithThreshold(3))
	k := model.Int(0)

	for _, v := range []core.OID{1, 1, 2} {
		require.NoError(t, idx.Put(ctx, k, v))
	}
	assert.Equal(t, 3, idx.Len())

	require.NoError(t, idx.Put(ctx, k, 3))
	assert.Equal(t, slotLargeSet, slotKindOf(t, idx, k))
	assert.Equal(t, 3, idx.Len())

	require.NoError(t, idx.Put(ctx, k, 3))
	assert.Equal(t, 3, idx.Len(), "duplicate add to a set is a no-op")
}

type failingStorage struct {
	Storage
	failAllocate bool
	failRelease  bool
	failOID      core.OID // fail releasing only this object
}

var errInjected = errors.New("injected")

func (f *failingStorage) Allocate(obj store.Object) (core.OID, error) {
	if f.failAllocate {
		return core.InvalidOID, errInjected
	}
	return f.Storage.Allocate(obj)
}

func (f *failingStorage) Deallocate(oid core.OID) error {
	if f.failRelease || (f.failOID.IsValid() && oid == f.failOID) {
		return errInjected
	}
	return f.Storage.Deallocate(oid)
}

func TestFailedAllocationLeavesIndexUnchanged(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	fs := &failingStorage{Storage: s}
	idx := newIndex(t, fs, model.KindString, WithThreshold(2))
	k := model.String("k")

	require.NoError(t, idx.Put(ctx, k, 1))
	require.NoError(t, idx.Put(ctx, k, 2))

	fs.failAllocate = true

	err := idx.Put(ctx, k, 3)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, slotSmallList, slotKindOf(t, idx, k))
	assert.Equal(t, 2, idx.Len())

	err = idx.Put(ctx, model.String("other"), 4)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 1, idx.KeyCount())

	_, err = idx.Set(ctx, model.String("other"), 4)
	assert.ErrorIs(t, err, errInjected)

	fs.failAllocate = false
	require.NoError(t, idx.Put(ctx, k, 3))
	assert.Equal(t, slotLargeSet, slotKindOf(t, idx, k))
	assert.Equal(t, 3, idx.Len())
}

func TestClearKeepsReferencedObjects(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString, WithThreshold(4))

	var records []core.OID
	for i := 0; i < 10; i++ {
		oid, err := s.Allocate(store.NewRecord([]byte(fmt.Sprintf("r%d", i))))
		require.NoError(t, err)
		records = append(records, oid)
	}
	for i, oid := range records {
		require.NoError(t, idx.Put(ctx, model.String("even"), oid))
		require.NoError(t, idx.Put(ctx, model.String(fmt.Sprintf("k%d", i)), oid))
	}
	assert.Equal(t, slotLargeSet, slotKindOf(t, idx, model.String("even")))

	require.NoError(t, idx.Clear(ctx))
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, collect(t, idx.All(ctx)))

	all, err := idx.ToSlice(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	for i, oid := range records {
		rec, err := store.Get[*store.Record](ctx, s, oid)
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("r%d", i)), rec.Bytes())
	}

	// The live set is the index, its unique index and the records.
	assert.Equal(t, 2+len(records), s.Stats().Live)

	require.NoError(t, idx.Put(ctx, model.String("again"), records[0]))
	assert.Equal(t, 1, idx.Len())
}

func TestClearJoinsReleaseErrors(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	fs := &failingStorage{Storage: s}
	idx := newIndex(t, fs, model.KindString)

	require.NoError(t, idx.Put(ctx, model.String("a"), 1))
	require.NoError(t, idx.Put(ctx, model.String("b"), 2))

	fs.failRelease = true
	err := idx.Clear(ctx)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.KeyCount())
}

func TestDeallocate(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()

	rec, err := s.Allocate(store.NewRecord([]byte("payload")))
	require.NoError(t, err)

	idx := newIndex(t, s, model.KindString)
	require.NoError(t, idx.Put(ctx, model.String("a"), rec))
	require.NoError(t, idx.Put(ctx, model.String("b"), rec))

	require.NoError(t, idx.Deallocate(ctx))
	assert.False(t, idx.IsPersistent())
	assert.Equal(t, 1, s.Stats().Live)
	assert.True(t, s.Contains(rec))
}

func TestDeallocateReleasesEverythingOnSlotFailure(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	fs := &failingStorage{Storage: s}

	rec, err := s.Allocate(store.NewRecord([]byte("payload")))
	require.NoError(t, err)

	idx := newIndex(t, fs, model.KindString)
	require.NoError(t, idx.Put(ctx, model.String("a"), rec))
	require.NoError(t, idx.Put(ctx, model.String("b"), rec))

	ref, ok := idx.index.Get(model.String("a"))
	require.True(t, ok)
	stuck := slotRef(ref).oid()
	indexOID := idx.indexOID
	fs.failOID = stuck

	err = idx.Deallocate(ctx)
	assert.ErrorIs(t, err, errInjected)

	assert.False(t, idx.IsPersistent())
	assert.False(t, s.Contains(indexOID))
	assert.True(t, s.Contains(stuck), "only the failed slot leaks")
	assert.True(t, s.Contains(rec))
	assert.Equal(t, 2, s.Stats().Live)
}

func TestGetRangeFlattensInKeyOrder(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindInt)

	require.NoError(t, idx.Put(ctx, model.Int(3), 30))
	require.NoError(t, idx.Put(ctx, model.Int(1), 12))
	require.NoError(t, idx.Put(ctx, model.Int(1), 11))
	require.NoError(t, idx.Put(ctx, model.Int(2), 20))
	require.NoError(t, idx.Put(ctx, model.Int(5), 50))

	got, err := idx.GetRange(ctx, model.Int(1), model.Int(3))
	require.NoError(t, err)
	assert.Equal(t, []core.OID{12, 11, 20, 30}, got)

	got, err = idx.GetRange(ctx, model.Int(6), model.Int(9))
	require.NoError(t, err)
	assert.Empty(t, got)

	all, err := idx.ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{12, 11, 20, 30, 50}, all)
}

func TestPrefixQueries(t *testing.T) {
	s := openStore(t, blobstore.NewMemoryStore())
	ctx := context.Background()
	idx := newIndex(t, s, model.KindString)

	for i, k := range []string{"a", "ap", "app", "apple", "apply", "b"} {
		require.NoError(t, idx.Put(ctx, model.String(k), core.OID(i+1)))
	}
	require.NoError(t, idx.Put(ctx, model.String("app"), 30))

	got, err := idx.GetPrefix(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []core.OID{3, 30, 4, 5}, got)

	got, err = idx.PrefixSearch(ctx, "apples")
	require.NoError(t, err)
	assert.Equal(t, []core.OID{1, 2, 3, 30, 4}, got)

	ints := newIndex(t, s, model.KindInt)
	_, err = ints.GetPrefix(ctx, "x")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ints.PrefixSearch(ctx, "x")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPersistAndReopen(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	s := openStore(t, bs)
	idx := newIndex(t, s, model.KindString, WithThreshold(4))
	for v := core.OID(1); v <= 6; v++ {
		require.NoError(t, idx.Put(ctx, model.String("big"), v))
	}
	require.NoError(t, idx.Put(ctx, model.String("small"), 9))
	require.NoError(t, idx.Put(ctx, model.String("small"), 8))
	require.NoError(t, s.SetRoot(idx.OID()))
	require.NoError(t, s.Commit(ctx))

	s2 := openStore(t, bs)
	reopened, err := Open(ctx, s2, s2.Root())
	require.NoError(t, err)

	assert.Equal(t, 8, reopened.Len())
	assert.Equal(t, 4, reopened.Threshold())
	assert.Equal(t, model.KindString, reopened.KeyKind())
	assert.Equal(t, slotLargeSet, slotKindOf(t, reopened, model.String("big")))

	all, err := reopened.ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{1, 2, 3, 4, 5, 6, 9, 8}, all)

	// Mutations after reopen persist too.
	require.NoError(t, reopened.Remove(ctx, model.String("small"), 9))
	require.NoError(t, s2.Commit(ctx))

	s3 := openStore(t, bs)
	again, err := Open(ctx, s3, s3.Root())
	require.NoError(t, err)
	got, err := again.Get(ctx, model.String("small"))
	require.NoError(t, err)
	assert.Equal(t, core.OID(8), got)
	assert.Equal(t, 7, again.Len())
}

func TestOpenTypeMismatch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())
	oid, err := s.Allocate(store.NewRecord(nil))
	require.NoError(t, err)

	_, err = Open(ctx, s, oid)
	assert.ErrorIs(t, err, store.ErrTypeMismatch)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var idx ThickIndex
	assert.Error(t, idx.UnmarshalBinary(nil))
	assert.Error(t, idx.UnmarshalBinary([]byte{encodingVersion, byte(model.KindString), 0}))
	assert.Error(t, idx.UnmarshalBinary([]byte{encodingVersion, byte(model.KindString), 4, 0, 1}))
}

func TestUnmarshalRejectsUnknownKeyKind(t *testing.T) {
	src := &ThickIndex{keyKind: model.KindInt, threshold: DefaultThreshold, count: 3, indexOID: 7}
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	var idx ThickIndex
	require.NoError(t, idx.UnmarshalBinary(data))
	assert.Equal(t, model.KindInt, idx.KeyKind())
	assert.Equal(t, DefaultThreshold, idx.Threshold())

	for _, kind := range []byte{byte(model.KindInvalid), byte(model.KindTuple) + 1, 0xff} {
		bad := append([]byte(nil), data...)
		bad[1] = kind
		var idx ThickIndex
		assert.Error(t, idx.UnmarshalBinary(bad), "kind %d", kind)
	}
}
