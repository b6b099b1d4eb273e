package thickidx

import (
	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/resource"
)

// Backend selects where a database keeps its data.
type Backend interface {
	// String names the backend in logs.
	String() string

	open(o *options, rc *resource.Controller) (blobstore.BlobStore, func() error, error)
}

// Local keeps the database in a directory on the local file system.
// The directory is locked for the lifetime of the database.
func Local(dir string) Backend { return localBackend{dir: dir} }

// Memory keeps the database in memory. Nothing survives Close.
func Memory() Backend { return memoryBackend{} }

// Remote keeps the database in a blob store such as blobstore/s3 or
// blobstore/minio. Reads go through an in-memory cache sized by
// WithCacheSize and bounded by WithMemoryLimit.
func Remote(bs blobstore.BlobStore) Backend { return remoteBackend{bs: bs} }

type localBackend struct{ dir string }

func (b localBackend) String() string { return "local:" + b.dir }

func (b localBackend) open(o *options, _ *resource.Controller) (blobstore.BlobStore, func() error, error) {
	var (
		ls  *blobstore.LocalStore
		err error
	)
	if o.readOnly {
		ls, err = blobstore.OpenLocalStoreReadOnly(b.dir)
	} else {
		ls, err = blobstore.OpenLocalStore(b.dir)
	}
	if err != nil {
		return nil, nil, err
	}
	return ls, ls.Close, nil
}

type memoryBackend struct{}

func (memoryBackend) String() string { return "memory" }

func (memoryBackend) open(*options, *resource.Controller) (blobstore.BlobStore, func() error, error) {
	return blobstore.NewMemoryStore(), func() error { return nil }, nil
}

type remoteBackend struct{ bs blobstore.BlobStore }

func (remoteBackend) String() string { return "remote" }

func (b remoteBackend) open(o *options, rc *resource.Controller) (blobstore.BlobStore, func() error, error) {
	cs := blobstore.NewCachingStore(b.bs, o.cacheSize, rc)
	return cs, func() error { cs.Purge(); return nil }, nil
}
