package uniqueindex

import (
	"context"
	"testing"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intIndex(keys ...int64) *Index {
	x := New()
	for _, k := range keys {
		x.Insert(model.Int(k), uint64(k*10))
	}
	return x
}

func collect(seq func(func(model.Key, uint64) bool)) []uint64 {
	var out []uint64
	for _, v := range seq {
		out = append(out, v)
	}
	return out
}

func TestInsertReplaceDelete(t *testing.T) {
	x := New()
	assert.True(t, x.Insert(model.String("a"), 1))
	assert.False(t, x.Insert(model.String("a"), 2), "insert never overwrites")

	v, ok := x.Get(model.String("a"))
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)

	old, ok := x.Replace(model.String("a"), 3)
	require.True(t, ok)
	assert.Equal(t, uint64(1), old)

	_, ok = x.Replace(model.String("b"), 4)
	assert.False(t, ok, "replace never inserts")
	assert.Equal(t, 1, x.Len())

	old, ok = x.Delete(model.String("a"))
	require.True(t, ok)
	assert.Equal(t, uint64(3), old)
	_, ok = x.Delete(model.String("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, x.Len())
}

func TestGetRange(t *testing.T) {
	x := intIndex(1, 3, 5, 7, 9)

	assert.Equal(t, []uint64{30, 50, 70}, x.GetRange(model.Int(2), model.Int(7)))
	assert.Equal(t, []uint64{10}, x.GetRange(model.Int(1), model.Int(1)))
	assert.Empty(t, x.GetRange(model.Int(10), model.Int(20)))
	assert.Empty(t, x.GetRange(model.Int(7), model.Int(3)))
}

func TestRange(t *testing.T) {
	x := intIndex(1, 3, 5, 7, 9)

	tests := []struct {
		name       string
		from, till *Bound
		order      Order
		want       []uint64
	}{
		{"all asc", nil, nil, Ascending, []uint64{10, 30, 50, 70, 90}},
		{"all desc", nil, nil, Descending, []uint64{90, 70, 50, 30, 10}},
		{"inclusive asc", Inclusive(model.Int(3)), Inclusive(model.Int(7)), Ascending, []uint64{30, 50, 70}},
		{"exclusive asc", Exclusive(model.Int(3)), Exclusive(model.Int(7)), Ascending, []uint64{50}},
		{"inclusive desc", Inclusive(model.Int(3)), Inclusive(model.Int(7)), Descending, []uint64{70, 50, 30}},
		{"exclusive desc", Exclusive(model.Int(3)), Exclusive(model.Int(7)), Descending, []uint64{50}},
		{"open till", Inclusive(model.Int(6)), nil, Ascending, []uint64{70, 90}},
		{"open from desc", nil, Exclusive(model.Int(5)), Descending, []uint64{30, 10}},
		{"between keys", Inclusive(model.Int(4)), Inclusive(model.Int(4)), Ascending, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(x.Range(tt.from, tt.till, tt.order)))
		})
	}
}

func TestRangeEarlyStop(t *testing.T) {
	x := intIndex(1, 2, 3, 4)
	var seen []int64
	for k := range x.All() {
		v, _ := k.AsInt()
		seen = append(seen, v)
		if v == 2 {
			break
		}
	}
	assert.Equal(t, []int64{1, 2}, seen)
}

func TestRangeSeesSnapshot(t *testing.T) {
	x := intIndex(1, 2, 3)
	seq := x.All()

	x.Insert(model.Int(4), 40)
	x.Delete(model.Int(1))

	assert.Equal(t, []uint64{10, 20, 30}, collect(seq))
	assert.Equal(t, []uint64{20, 30, 40}, collect(x.All()))
}

func TestMutateWhileIterating(t *testing.T) {
	x := intIndex(1, 2, 3, 4, 5)
	for k := range x.All() {
		x.Delete(k)
	}
	assert.Equal(t, 0, x.Len())
}

func TestSnapshot(t *testing.T) {
	x := intIndex(1, 2)
	snap := x.Snapshot()
	x.Insert(model.Int(3), 30)
	snap.Delete(model.Int(1))

	assert.Equal(t, 3, x.Len())
	assert.Equal(t, 1, snap.Len())
	assert.False(t, snap.IsPersistent())
}

func TestPrefix(t *testing.T) {
	x := New()
	for i, k := range []string{"app", "apple", "apply", "banana", "ap", "b"} {
		x.Insert(model.String(k), uint64(i))
	}

	// Key order: ap, app, apple, apply, b, banana.
	assert.Equal(t, []uint64{4, 0, 1, 2}, x.GetPrefix(model.String("ap")))
	assert.Equal(t, []uint64{1, 2}, x.GetPrefix(model.String("appl")))
	assert.Empty(t, x.GetPrefix(model.String("c")))
	assert.Equal(t, []uint64{4, 0, 1, 2, 5, 3}, x.GetPrefix(model.String("")))
	assert.Equal(t, x.GetPrefix(model.String("ap")), collect(x.Prefix(model.String("ap"))))

	// Keys that are prefixes of the word, shortest first.
	assert.Equal(t, []uint64{4, 0, 1}, x.PrefixSearch(model.String("apples")))
	assert.Equal(t, []uint64{5, 3}, x.PrefixSearch(model.String("banana")))
	assert.Empty(t, x.PrefixSearch(model.String("cherry")))
	assert.Empty(t, x.PrefixSearch(model.Int(1)))
}

func TestPrefixBytes(t *testing.T) {
	x := New()
	x.Insert(model.Bytes([]byte{1}), 1)
	x.Insert(model.Bytes([]byte{1, 2}), 2)
	x.Insert(model.String("\x01"), 3)

	assert.Equal(t, []uint64{1, 2}, x.GetPrefix(model.Bytes([]byte{1})))
	assert.Equal(t, []uint64{1, 2}, x.PrefixSearch(model.Bytes([]byte{1, 2, 3})))
}

func TestClear(t *testing.T) {
	x := intIndex(1, 2, 3)
	x.Clear()
	assert.Equal(t, 0, x.Len())
	assert.Empty(t, collect(x.All()))
}

func TestBinaryRoundTrip(t *testing.T) {
	x := New()
	x.Insert(model.String("b"), 2)
	x.Insert(model.String("a"), 1)
	x.Insert(model.Tuple(model.Int(1), model.String("z")), 1<<40)

	data, err := x.MarshalBinary()
	require.NoError(t, err)

	got := New()
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, collect(x.All()), collect(got.All()))

	assert.Error(t, got.UnmarshalBinary(data[:len(data)-1]))
	assert.Error(t, got.UnmarshalBinary(append(data, 0)))
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	st, err := store.Open(ctx, bs)
	require.NoError(t, err)

	x := intIndex(5, 6)
	oid, err := st.Allocate(x)
	require.NoError(t, err)
	require.NoError(t, st.Commit(ctx))

	x.Insert(model.Int(7), 70)
	assert.Equal(t, 1, st.Stats().Dirty)
	require.NoError(t, st.Commit(ctx))

	st2, err := store.Open(ctx, bs)
	require.NoError(t, err)
	got, err := store.Get[*Index](ctx, st2, oid)
	require.NoError(t, err)
	assert.Equal(t, []uint64{50, 60, 70}, collect(got.All()))
}
