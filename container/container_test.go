package container

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c Cursor) []core.OID {
	var out []core.OID
	for c.HasNext() {
		out = append(out, c.Next())
	}
	return out
}

func TestSmallList(t *testing.T) {
	l := NewSmallList(3, 1)
	l.Append(2)
	l.Append(1)

	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []core.OID{3, 1, 2, 1}, slices.Collect(l.All()))
	assert.Equal(t, 1, l.IndexOf(1), "first occurrence")
	assert.Equal(t, -1, l.IndexOf(9))

	l.SetAt(0, 7)
	assert.Equal(t, core.OID(7), l.At(0))

	l.RemoveAt(1)
	assert.Equal(t, []core.OID{7, 2, 1}, l.Items())
}

func TestSmallListCursorIsSnapshot(t *testing.T) {
	l := NewSmallList(1, 2, 3)
	c := l.Cursor()

	l.RemoveAt(0)
	l.Append(4)

	assert.Equal(t, []core.OID{1, 2, 3}, drain(c))
}

func TestSmallListBinary(t *testing.T) {
	l := NewSmallList(5, core.MaxOID, 5)
	data, err := l.MarshalBinary()
	require.NoError(t, err)

	var got SmallList
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, l.Items(), got.Items())

	assert.Error(t, got.UnmarshalBinary(data[:len(data)-1]))
	assert.Error(t, got.UnmarshalBinary(nil))
}

func TestLargeSet(t *testing.T) {
	s := NewLargeSet(10, 2, 7)
	assert.Equal(t, 3, s.Len())

	assert.True(t, s.Add(5))
	assert.False(t, s.Add(5), "sets never hold duplicates")
	assert.Equal(t, 4, s.Len())

	assert.True(t, s.Contains(7))
	assert.True(t, s.Remove(7))
	assert.False(t, s.Remove(7))
	assert.False(t, s.Contains(7))

	assert.ElementsMatch(t, []core.OID{2, 5, 10}, slices.Collect(s.All()))
}

func TestLargeSetCursorIsSnapshot(t *testing.T) {
	s := NewLargeSet()
	for i := core.OID(1); i <= 1000; i++ {
		s.Add(i)
	}
	c := s.Cursor()
	clone := s.Clone()

	for i := core.OID(1); i <= 500; i++ {
		s.Remove(i)
	}
	s.Add(5000)

	assert.Len(t, drain(c), 1000)
	assert.Equal(t, 1000, clone.Len())
	assert.Equal(t, 501, s.Len())
}

func TestLargeSetConcurrentSnapshots(t *testing.T) {
	s := NewLargeSet()
	for i := core.OID(1); i <= 70000; i += 7 {
		s.Add(i)
	}
	want := s.Len()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				switch i % 3 {
				case 0:
					assert.Len(t, drain(s.Cursor()), want)
				case 1:
					assert.Equal(t, want, s.Clone().Len())
				default:
					_, err := s.MarshalBinary()
					assert.NoError(t, err)
				}
			}
		}()
	}
	wg.Wait()
}

func TestLargeSetBinary(t *testing.T) {
	s := NewLargeSet(1, 100, 70000, core.MaxOID)
	data, err := s.MarshalBinary()
	require.NoError(t, err)

	got := newEmptyLargeSet()
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, slices.Collect(s.All()), slices.Collect(got.All()))

	assert.Error(t, got.UnmarshalBinary([]byte{1, 2, 3}))
}

func TestContainersPersist(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	st, err := store.Open(ctx, bs)
	require.NoError(t, err)

	l := NewSmallList(1, 2)
	s := NewLargeSet(3, 4)
	lo, err := st.Allocate(l)
	require.NoError(t, err)
	so, err := st.Allocate(s)
	require.NoError(t, err)
	require.NoError(t, st.Commit(ctx))

	// Mutations mark the containers dirty.
	l.Append(9)
	s.Add(9)
	assert.Equal(t, 2, st.Stats().Dirty)
	require.NoError(t, st.Commit(ctx))

	st2, err := store.Open(ctx, bs)
	require.NoError(t, err)

	gotL, err := store.Get[*SmallList](ctx, st2, lo)
	require.NoError(t, err)
	assert.Equal(t, []core.OID{1, 2, 9}, gotL.Items())

	gotS, err := store.Get[*LargeSet](ctx, st2, so)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.OID{3, 4, 9}, slices.Collect(gotS.All()))
	assert.True(t, gotS.Add(10))
}
