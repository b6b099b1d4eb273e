package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/thickidx/internal/fs"
)

// ErrLocked is returned when a directory is already held by another writer.
var ErrLocked = errors.New("blobstore: directory is locked by another process")

const (
	lockFileName = "LOCK"
	tmpSuffix    = ".tmp"
)

// LocalStore implements BlobStore using the local file system.
//
// Blob names map to paths below the root; "/" separated names create
// sub-directories. Writes go to a temporary file which is synced and renamed
// into place, so readers never observe a partially written blob.
//
// The root directory is guarded by an advisory file lock: one read-write
// LocalStore, or any number of read-only ones, per directory.
type LocalStore struct {
	root     string
	fs       fs.FileSystem
	lock     *os.File
	readOnly bool
	tmpSeq   atomic.Uint64
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem routes blob reads and writes through fsys.
// The directory lock always uses the os package.
func WithFileSystem(fsys fs.FileSystem) LocalOption {
	return func(s *LocalStore) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// OpenLocalStore opens (creating if needed) a read-write store rooted at dir.
func OpenLocalStore(dir string, opts ...LocalOption) (*LocalStore, error) {
	return openLocalStore(dir, false, opts)
}

// OpenLocalStoreReadOnly opens an existing directory for reading only.
func OpenLocalStoreReadOnly(dir string, opts ...LocalOption) (*LocalStore, error) {
	return openLocalStore(dir, true, opts)
}

func openLocalStore(dir string, readOnly bool, opts []LocalOption) (*LocalStore, error) {
	if !readOnly {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("blobstore: create root: %w", err)
		}
	}

	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(filepath.Join(dir, lockFileName), flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open lock file: %w", err)
	}
	if err := lockFile(f, !readOnly); err != nil {
		_ = f.Close()
		return nil, err
	}

	s := &LocalStore{root: dir, fs: fs.Default, lock: f, readOnly: readOnly}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the root directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Get reads a whole blob.
func (s *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	f, err := s.fs.OpenFile(s.path(name), os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Put writes a blob atomically (write temp file, fsync, rename).
func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	if s.readOnly {
		return fmt.Errorf("blobstore: put %q: read-only store", name)
	}

	path := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpName := path + "-" + strconv.FormatUint(s.tmpSeq.Add(1), 10) + tmpSuffix
	tmp, err := s.fs.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if err := writeSynced(tmp, data); err != nil {
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return err
	}
	return nil
}

func writeSynced(f fs.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if s.readOnly {
		return fmt.Errorf("blobstore: delete %q: read-only store", name)
	}
	err := s.fs.Remove(s.path(name))
	if err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns all blob names with the given prefix.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == lockFileName || strings.HasSuffix(name, tmpSuffix) {
			return nil
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the directory lock.
func (s *LocalStore) Close() error {
	if s.lock == nil {
		return nil
	}
	err := unlockFile(s.lock)
	if cerr := s.lock.Close(); err == nil {
		err = cerr
	}
	s.lock = nil
	return err
}
