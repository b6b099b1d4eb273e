package thickindex

import (
	"context"
	"fmt"

	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
)

// Len returns the total number of values in the index.
func (t *ThickIndex) Len() int {
	t.RLock()
	defer t.RUnlock()
	return int(t.count)
}

// KeyCount returns the number of distinct keys.
func (t *ThickIndex) KeyCount() int {
	t.RLock()
	defer t.RUnlock()
	return t.index.Len()
}

// Get returns the single value of key, or core.InvalidOID if key is absent.
// It fails with ErrKeyNotUnique if key holds more than one value or its slot
// has been promoted, whatever the current size of the promoted slot.
func (t *ThickIndex) Get(ctx context.Context, key model.Key) (core.OID, error) {
	if err := t.checkKey(key); err != nil {
		return core.InvalidOID, err
	}

	t.RLock()
	defer t.RUnlock()

	ref, ok := t.index.Get(key)
	if !ok {
		return core.InvalidOID, nil
	}

	s, err := t.loadSlot(ctx, slotRef(ref))
	if err != nil {
		return core.InvalidOID, err
	}

	switch s.kind {
	case slotSmallList:
		if s.list.Len() != 1 {
			return core.InvalidOID, fmt.Errorf("%w: %s holds %d values", ErrKeyNotUnique, key, s.list.Len())
		}
		return s.list.At(0), nil
	case slotLargeSet:
		return core.InvalidOID, fmt.Errorf("%w: %s", ErrKeyNotUnique, key)
	default:
		panic("thickindex: invalid slot kind " + s.kind.String())
	}
}

// GetAll returns every value of key in slot order, or nil if key is absent.
func (t *ThickIndex) GetAll(ctx context.Context, key model.Key) ([]core.OID, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}

	t.RLock()
	defer t.RUnlock()

	ref, ok := t.index.Get(key)
	if !ok {
		return nil, nil
	}
	return t.flatten(ctx, nil, []uint64{ref})
}

// Count returns the number of values held by key.
func (t *ThickIndex) Count(ctx context.Context, key model.Key) (int, error) {
	if err := t.checkKey(key); err != nil {
		return 0, err
	}

	t.RLock()
	defer t.RUnlock()

	ref, ok := t.index.Get(key)
	if !ok {
		return 0, nil
	}
	s, err := t.loadSlot(ctx, slotRef(ref))
	if err != nil {
		return 0, err
	}
	return s.len(), nil
}

// GetRange returns the values of all keys in [from, till]: keys in ascending
// order, the values of one key in slot order.
func (t *ThickIndex) GetRange(ctx context.Context, from, till model.Key) ([]core.OID, error) {
	if err := t.checkKey(from); err != nil {
		return nil, err
	}
	if err := t.checkKey(till); err != nil {
		return nil, err
	}

	t.RLock()
	defer t.RUnlock()
	return t.flatten(ctx, nil, t.index.GetRange(from, till))
}

// GetPrefix returns the values of all keys starting with prefix, flattened
// like GetRange. The index must be string keyed.
func (t *ThickIndex) GetPrefix(ctx context.Context, prefix string) ([]core.OID, error) {
	if err := t.checkPrefix(); err != nil {
		return nil, err
	}

	t.RLock()
	defer t.RUnlock()
	return t.flatten(ctx, nil, t.index.GetPrefix(model.String(prefix)))
}

// PrefixSearch returns the values of all keys that are prefixes of word,
// shortest key first. The index must be string keyed.
func (t *ThickIndex) PrefixSearch(ctx context.Context, word string) ([]core.OID, error) {
	if err := t.checkPrefix(); err != nil {
		return nil, err
	}

	t.RLock()
	defer t.RUnlock()
	return t.flatten(ctx, nil, t.index.PrefixSearch(model.String(word)))
}

// ToSlice returns every value of the index in key order.
func (t *ThickIndex) ToSlice(ctx context.Context) ([]core.OID, error) {
	t.RLock()
	defer t.RUnlock()

	out := make([]core.OID, 0, t.count)
	for _, ref := range t.index.All() {
		s, err := t.loadSlot(ctx, slotRef(ref))
		if err != nil {
			return nil, err
		}
		out = s.appendTo(out)
	}
	return out, nil
}

// flatten appends the members of the given slots to dst. Callers hold the lock.
func (t *ThickIndex) flatten(ctx context.Context, dst []core.OID, refs []uint64) ([]core.OID, error) {
	for _, ref := range refs {
		s, err := t.loadSlot(ctx, slotRef(ref))
		if err != nil {
			return nil, err
		}
		dst = s.appendTo(dst)
	}
	return dst, nil
}
