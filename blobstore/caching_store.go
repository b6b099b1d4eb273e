package blobstore

import (
	"context"

	"github.com/hupe1980/thickidx/internal/cache"
	"github.com/hupe1980/thickidx/resource"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the cache capacity used when none is given.
const DefaultCacheSize = 64 << 20

// CachingStore wraps a BlobStore and caches whole blobs in an LRU.
// It is meant for remote backends where a read costs a network round trip.
// Writes go through to the inner store and refresh the cached copy.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU
	loads singleflight.Group
}

// NewCachingStore creates a new CachingStore.
// capacity defaults to DefaultCacheSize if <= 0. rc may be nil.
func NewCachingStore(inner BlobStore, capacity int64, rc *resource.Controller) *CachingStore {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &CachingStore{
		inner: inner,
		cache: cache.NewLRU(capacity, rc),
	}
}

// Get returns a blob, serving it from the cache when possible.
// Concurrent misses for the same name share one backend read.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if b, ok := s.cache.Get(name); ok {
		return clone(b), nil
	}

	v, err, _ := s.loads.Do(name, func() (any, error) {
		b, err := s.inner.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		s.cache.Set(name, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]byte)), nil
}

// Put writes through to the inner store.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Invalidate(name)
	if err := s.inner.Put(ctx, name, data); err != nil {
		return err
	}
	s.cache.Set(name, clone(data))
	return nil
}

// Delete removes the blob from the cache and the inner store.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List is passed through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// CacheStats describes the contents and effectiveness of a CachingStore.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
	Bytes   int64
}

// Stats returns a snapshot of the cache counters.
func (s *CachingStore) Stats() CacheStats {
	hits, misses := s.cache.Stats()
	return CacheStats{
		Hits:    hits,
		Misses:  misses,
		Entries: s.cache.Len(),
		Bytes:   s.cache.Size(),
	}
}

// Purge drops every cached blob and returns its memory to the resource
// controller.
func (s *CachingStore) Purge() {
	s.cache.Purge()
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
