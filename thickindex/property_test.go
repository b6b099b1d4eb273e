package thickindex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCountMatchesReferenceModel drives random put/remove sequences against
// the index and a plain multimap and compares them after every step.
func TestCountMatchesReferenceModel(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 4711} {
		seed := seed
		t.Run("", func(t *testing.T) {
			const (
				threshold = 8
				keys      = 12
				steps     = 2000
			)
			ctx := context.Background()
			rng := testutil.NewRNG(seed)
			s := openStore(t, blobstore.NewMemoryStore())
			idx := newIndex(t, s, model.KindInt, WithThreshold(threshold))
			ref := testutil.NewMultimap[int64](threshold)

			for i := 0; i < steps; i++ {
				k := int64(rng.Zipf(keys, 1.1))
				oid := rng.OID(20)

				if rng.Intn(3) == 0 {
					err := idx.Remove(ctx, model.Int(k), oid)
					if ref.Remove(k, oid) {
						require.NoError(t, err)
					} else {
						require.ErrorIs(t, err, ErrKeyNotFound)
					}
				} else {
					require.NoError(t, idx.Put(ctx, model.Int(k), oid))
					ref.Put(k, oid)
				}

				require.Equal(t, ref.Len(), idx.Len(), "seed %d step %d", seed, i)
			}

			require.Equal(t, len(ref.Keys()), idx.KeyCount())
			for _, k := range ref.Keys() {
				key := model.Int(k)
				want := ref.Values(k)

				got, err := idx.GetAll(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, want, got, "key %d", k)

				if ref.Promoted(k) {
					assert.Equal(t, slotLargeSet, slotKindOf(t, idx, key))
					_, err := idx.Get(ctx, key)
					assert.ErrorIs(t, err, ErrKeyNotUnique)
				} else {
					assert.Equal(t, slotSmallList, slotKindOf(t, idx, key))
				}
			}

			all, err := idx.ToSlice(ctx)
			require.NoError(t, err)
			assert.Equal(t, ref.All(), all)
		})
	}
}

// TestPromotionIsMonotonic checks that a promoted slot stays promoted while
// it is drained down to one member.
func TestPromotionIsMonotonic(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(99)
	s := openStore(t, blobstore.NewMemoryStore())
	idx := newIndex(t, s, model.KindString, WithThreshold(16))
	k := model.String("hot")

	var values []core.OID
	for v := core.OID(1); v <= 40; v++ {
		require.NoError(t, idx.Put(ctx, k, v))
		values = append(values, v)
	}
	testutil.Shuffle(rng, values)

	for _, v := range values[:len(values)-1] {
		require.NoError(t, idx.Remove(ctx, k, v))
		assert.Equal(t, slotLargeSet, slotKindOf(t, idx, k))
	}
	assert.Equal(t, 1, idx.Len())

	n, err := idx.Count(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestConcurrentPutsKeepCount exercises the index lock from many goroutines.
func TestConcurrentPutsKeepCount(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())
	idx := newIndex(t, s, model.KindInt, WithThreshold(4))

	const (
		workers = 8
		perKey  = 50
	)
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			var err error
			for i := 0; i < perKey && err == nil; i++ {
				err = idx.Put(ctx, model.Int(int64(i%5)), core.OID(w*perKey+i+1))
				if err == nil && i%7 == 0 {
					for range idx.All(ctx) {
					}
				}
			}
			errs <- err
		}(w)
	}

	var joined error
	for w := 0; w < workers; w++ {
		joined = errors.Join(joined, <-errs)
	}
	require.NoError(t, joined)
	assert.Equal(t, workers*perKey, idx.Len())

	all, err := idx.ToSlice(ctx)
	require.NoError(t, err)
	assert.Len(t, all, workers*perKey)
}

// TestConcurrentScansOverPromotedSlot snapshots the same large set from many
// readers while the store marshals it.
func TestConcurrentScansOverPromotedSlot(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, blobstore.NewMemoryStore())
	idx := newIndex(t, s, model.KindInt, WithThreshold(2))

	const members = 50
	for i := 1; i <= members; i++ {
		require.NoError(t, idx.Put(ctx, model.Int(1), core.OID(i)))
	}
	require.Equal(t, slotLargeSet, slotKindOf(t, idx, model.Int(1)))

	const workers = 8
	errs := make(chan error, workers+1)
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < 200; i++ {
				n := 0
				for _, err := range idx.All(ctx) {
					if err != nil {
						errs <- err
						return
					}
					n++
				}
				if n != members {
					errs <- fmt.Errorf("scan saw %d members", n)
					return
				}
			}
			errs <- nil
		}()
	}
	go func() {
		var err error
		for i := 0; i < 20 && err == nil; i++ {
			err = s.Commit(ctx)
		}
		errs <- err
	}()

	var joined error
	for w := 0; w < workers+1; w++ {
		joined = errors.Join(joined, <-errs)
	}
	require.NoError(t, joined)
	assert.Equal(t, members, idx.Len())
}
