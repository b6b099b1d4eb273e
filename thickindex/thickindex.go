package thickindex

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/store"
	"github.com/hupe1980/thickidx/uniqueindex"
)

func init() {
	store.Register(store.KindThickIndex, func() store.Object { return new(ThickIndex) })
}

// Storage is the part of the object store a ThickIndex needs.
// *store.Store implements it.
type Storage interface {
	Allocate(obj store.Object) (core.OID, error)
	Load(ctx context.Context, oid core.OID) (store.Object, error)
	Deallocate(oid core.OID) error
}

// Entry is one (key, value) pair produced by entry iterators.
type Entry struct {
	Key   model.Key
	Value core.OID
}

// ThickIndex is a non-unique index from keys of one kind to object references.
//
// A ThickIndex is safe for concurrent use: mutations take the exclusive lock
// for their whole read-modify-write sequence and reads take the shared lock.
type ThickIndex struct {
	store.Resource

	storage   Storage
	keyKind   model.Kind
	threshold int
	count     int64
	indexOID  core.OID
	index     *uniqueindex.Index
}

// New creates an empty index for keys of the given kind and allocates it,
// together with its unique index, in storage.
func New(_ context.Context, storage Storage, keyKind model.Kind, optFns ...Option) (*ThickIndex, error) {
	o := options{threshold: DefaultThreshold}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.threshold < 1 {
		return nil, fmt.Errorf("%w: threshold %d", ErrInvalidArgument, o.threshold)
	}
	if !validKeyKind(keyKind) {
		return nil, fmt.Errorf("%w: key kind %s", ErrInvalidArgument, keyKind)
	}

	index := uniqueindex.New()
	indexOID, err := storage.Allocate(index)
	if err != nil {
		return nil, fmt.Errorf("allocate unique index: %w", err)
	}

	t := &ThickIndex{
		storage:   storage,
		keyKind:   keyKind,
		threshold: o.threshold,
		indexOID:  indexOID,
		index:     index,
	}
	if _, err := storage.Allocate(t); err != nil {
		_ = storage.Deallocate(indexOID)
		return nil, fmt.Errorf("allocate thick index: %w", err)
	}
	return t, nil
}

// Open loads the index named by oid from storage.
func Open(ctx context.Context, storage Storage, oid core.OID) (*ThickIndex, error) {
	obj, err := storage.Load(ctx, oid)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*ThickIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", store.ErrTypeMismatch, oid, obj.Kind())
	}

	t.Lock()
	defer t.Unlock()

	t.storage = storage
	if t.index == nil {
		obj, err := storage.Load(ctx, t.indexOID)
		if err != nil {
			return nil, fmt.Errorf("load unique index: %w", err)
		}
		index, ok := obj.(*uniqueindex.Index)
		if !ok {
			return nil, fmt.Errorf("%w: unique index %s is a %s", store.ErrTypeMismatch, t.indexOID, obj.Kind())
		}
		t.index = index
	}
	return t, nil
}

// Kind returns store.KindThickIndex.
func (t *ThickIndex) Kind() store.Kind { return store.KindThickIndex }

// KeyKind returns the kind of keys the index accepts.
func (t *ThickIndex) KeyKind() model.Kind { return t.keyKind }

// Threshold returns the promotion threshold of the index.
func (t *ThickIndex) Threshold() int { return t.threshold }

func validKeyKind(k model.Kind) bool {
	return k > model.KindInvalid && k <= model.KindTuple
}

func (t *ThickIndex) checkKey(key model.Key) error {
	if key.Kind() != t.keyKind {
		return fmt.Errorf("%w: %s key for %s index", ErrInvalidArgument, key.Kind(), t.keyKind)
	}
	return nil
}

func (t *ThickIndex) checkPrefix() error {
	if t.keyKind != model.KindString {
		return fmt.Errorf("%w: prefix query on %s index", ErrInvalidArgument, t.keyKind)
	}
	return nil
}

const encodingVersion = 1

// MarshalBinary encodes the index header. Slots and the unique index are
// separate objects.
func (t *ThickIndex) MarshalBinary() ([]byte, error) {
	t.RLock()
	defer t.RUnlock()

	buf := make([]byte, 0, 2+2*binary.MaxVarintLen64+4)
	buf = append(buf, encodingVersion, byte(t.keyKind))
	buf = binary.AppendUvarint(buf, uint64(t.threshold))
	buf = binary.AppendUvarint(buf, uint64(t.count))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.indexOID))
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (t *ThickIndex) UnmarshalBinary(data []byte) error {
	if len(data) < 2 || data[0] != encodingVersion {
		return fmt.Errorf("thick index: bad header")
	}
	kind := model.Kind(data[1])
	if !validKeyKind(kind) {
		return fmt.Errorf("thick index: bad key kind %d", data[1])
	}
	data = data[2:]

	threshold, w := binary.Uvarint(data)
	if w <= 0 || threshold == 0 {
		return fmt.Errorf("thick index: bad threshold")
	}
	data = data[w:]

	count, w := binary.Uvarint(data)
	if w <= 0 {
		return fmt.Errorf("thick index: bad count")
	}
	data = data[w:]

	if len(data) != 4 {
		return fmt.Errorf("thick index: bad index reference")
	}

	t.Lock()
	defer t.Unlock()
	t.keyKind = kind
	t.threshold = int(threshold)
	t.count = int64(count)
	t.indexOID = core.OID(binary.LittleEndian.Uint32(data))
	t.index = nil
	return nil
}
