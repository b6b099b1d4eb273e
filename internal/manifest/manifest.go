package manifest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/core"
)

const (
	CurrentFileName = "CURRENT"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// Manifest describes the committed state of the store at one point in time.
type Manifest struct {
	Version   int
	ID        uint64
	CreatedAt time.Time
	NextOID   core.OID
	Root      core.OID
	Objects   []ObjectInfo
}

// New creates a new empty manifest.
func New() *Manifest {
	return &Manifest{
		Version:   CurrentVersion,
		CreatedAt: time.Now(),
		NextOID:   1, // 0 is core.InvalidOID
	}
}

// ObjectInfo locates the page of one live object.
type ObjectInfo struct {
	OID  core.OID
	Kind uint16
	Gen  uint64
	Size uint32
}

// Path returns the blob name of the object page.
func (o ObjectInfo) Path() string {
	return ObjectPath(o.OID, o.Gen)
}

// ObjectPath returns the blob name of an object page written at generation gen.
func ObjectPath(oid core.OID, gen uint64) string {
	return fmt.Sprintf("objects/%08x-%06d", uint32(oid), gen)
}

// FileName returns the blob name of the manifest with the given ID.
func FileName(id uint64) string {
	return fmt.Sprintf("manifests/MANIFEST-%06d.bin", id)
}

// Store manages the manifest blobs and atomic updates.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Load loads the current manifest.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := s.store.Get(ctx, CurrentFileName)
	if err != nil {
		// blobstore.ErrNotFound is os.ErrNotExist.
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	name := string(content)

	data, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}

	m, err := ReadBinary(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	return m, nil
}

// Save atomically saves m as the next manifest version.
// On success m.ID holds the new version.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++
	m.CreatedAt = time.Now()

	data, err := m.WriteBinary()
	if err != nil {
		m.ID--
		return err
	}

	filename := FileName(m.ID)
	if err := s.store.Put(ctx, filename, data); err != nil {
		m.ID--
		return err
	}

	// S3: strong consistency on overwrites. Local: atomic rename in Put.
	if err := s.store.Put(ctx, CurrentFileName, []byte(filename)); err != nil {
		m.ID--
		return err
	}
	return nil
}

// DeleteVersion deletes the manifest blob for the given version.
func (s *Store) DeleteVersion(ctx context.Context, versionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Delete(ctx, FileName(versionID))
}
