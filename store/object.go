package store

import (
	"fmt"
	"sync"

	"github.com/hupe1980/thickidx/core"
)

// Kind identifies the concrete type of a persisted object.
// Kinds are part of the page format and must never be renumbered.
type Kind uint16

const (
	KindInvalid     Kind = 0
	KindRecord      Kind = 1
	KindSmallList   Kind = 2
	KindLargeSet    Kind = 3
	KindUniqueIndex Kind = 4
	KindThickIndex  Kind = 5
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindSmallList:
		return "small-list"
	case KindLargeSet:
		return "large-set"
	case KindUniqueIndex:
		return "unique-index"
	case KindThickIndex:
		return "thick-index"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

// Object is anything the store can persist.
//
// Implementations embed Persistent or Resource, which provides identity and
// dirty tracking.
type Object interface {
	Kind() Kind
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error

	persistent() *Persistent
}

// Persistent carries the identity of an object inside a store.
// The zero value is a transient object that no store knows about yet.
type Persistent struct {
	oid   core.OID
	store *Store
}

// OID returns the identifier of the object, or core.InvalidOID if the object
// has not been allocated.
func (p *Persistent) OID() core.OID { return p.oid }

// IsPersistent reports whether the object is allocated in a store.
func (p *Persistent) IsPersistent() bool { return p.store != nil }

// Modify marks the object as changed so that the next Commit writes it.
// It is a no-op for transient or deallocated objects.
func (p *Persistent) Modify() {
	if p.store != nil {
		p.store.markDirty(p.oid)
	}
}

// Deallocate releases the object from its store.
func (p *Persistent) Deallocate() error {
	if p.store == nil {
		return ErrNotFound
	}
	return p.store.Deallocate(p.oid)
}

func (p *Persistent) persistent() *Persistent { return p }

// Resource is a Persistent object guarded by a reader/writer lock.
type Resource struct {
	Persistent
	sync.RWMutex
}

// Factory creates an empty object of one kind, ready for UnmarshalBinary.
type Factory func() Object

var (
	factoryMu sync.RWMutex
	factories = map[Kind]Factory{}
)

// Register registers the factory for a kind.
//
// Object implementations should call this from an init() function.
func Register(kind Kind, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = f
}

func newObject(kind Kind) (Object, error) {
	factoryMu.RLock()
	f, ok := factories[kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return f(), nil
}
