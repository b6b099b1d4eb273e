package thickindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/thickidx/container"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
)

// Put adds obj under key. It never fails for index reasons: a key may hold
// any number of values, and the same value may be added under many keys.
//
// Adding a value that a promoted slot already holds leaves the slot and the
// count unchanged.
func (t *ThickIndex) Put(ctx context.Context, key model.Key, obj core.OID) error {
	if err := t.checkKey(key); err != nil {
		return err
	}

	t.Lock()
	defer t.Unlock()

	ref, ok := t.index.Get(key)
	if !ok {
		return t.createSlot(key, obj)
	}

	s, err := t.loadSlot(ctx, slotRef(ref))
	if err != nil {
		return err
	}

	switch s.kind {
	case slotSmallList:
		if s.list.Len() < t.threshold {
			s.list.Append(obj)
			t.count++
			t.Modify()
			return nil
		}
		return t.promote(key, s.list, obj)
	case slotLargeSet:
		if s.set.Add(obj) {
			t.count++
			t.Modify()
		}
		return nil
	default:
		panic("thickindex: invalid slot kind " + s.kind.String())
	}
}

func (t *ThickIndex) createSlot(key model.Key, obj core.OID) error {
	list := container.NewSmallList(obj)
	oid, err := t.storage.Allocate(list)
	if err != nil {
		return fmt.Errorf("allocate slot for %s: %w", key, err)
	}
	t.index.Insert(key, uint64(makeSlotRef(slotSmallList, oid)))
	t.count++
	t.Modify()
	return nil
}

// promote replaces a full SmallList by a LargeSet holding its values and obj.
// The set is installed before the list is released, so a failed allocation
// leaves the index unchanged.
func (t *ThickIndex) promote(key model.Key, list *container.SmallList, obj core.OID) error {
	set := container.NewLargeSet(list.Items()...)
	set.Add(obj)

	oid, err := t.storage.Allocate(set)
	if err != nil {
		return fmt.Errorf("promote %s: %w", key, err)
	}
	t.index.Replace(key, uint64(makeSlotRef(slotLargeSet, oid)))

	// Duplicates held by the list collapse in the set.
	t.count += int64(set.Len() - list.Len())
	t.Modify()

	if err := t.storage.Deallocate(list.OID()); err != nil {
		return fmt.Errorf("promote %s: release list: %w", key, err)
	}
	return nil
}

// Set stores obj as the only value of key and returns the previous value,
// or core.InvalidOID if key was absent. It fails with ErrKeyNotUnique, and
// changes nothing, if key holds more than one value or has been promoted.
func (t *ThickIndex) Set(ctx context.Context, key model.Key, obj core.OID) (core.OID, error) {
	if err := t.checkKey(key); err != nil {
		return core.InvalidOID, err
	}

	t.Lock()
	defer t.Unlock()

	ref, ok := t.index.Get(key)
	if !ok {
		return core.InvalidOID, t.createSlot(key, obj)
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
		prev := s.list.At(0)
		s.list.SetAt(0, obj)
		return prev, nil
	case slotLargeSet:
		return core.InvalidOID, fmt.Errorf("%w: %s", ErrKeyNotUnique, key)
	default:
		panic("thickindex: invalid slot kind " + s.kind.String())
	}
}

// Remove removes one occurrence of obj from key. It fails with
// ErrKeyNotFound if key is absent or does not hold obj. A slot that becomes
// empty is deallocated together with its key; obj itself is never touched.
func (t *ThickIndex) Remove(ctx context.Context, key model.Key, obj core.OID) error {
	if err := t.checkKey(key); err != nil {
		return err
	}

	t.Lock()
	defer t.Unlock()

	ref, ok := t.index.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	s, err := t.loadSlot(ctx, slotRef(ref))
	if err != nil {
		return err
	}

	switch s.kind {
	case slotSmallList:
		i := s.list.IndexOf(obj)
		if i < 0 {
			return fmt.Errorf("%w: %s does not hold %s", ErrKeyNotFound, key, obj)
		}
		s.list.RemoveAt(i)
	case slotLargeSet:
		if !s.set.Remove(obj) {
			return fmt.Errorf("%w: %s does not hold %s", ErrKeyNotFound, key, obj)
		}
	default:
		panic("thickindex: invalid slot kind " + s.kind.String())
	}

	t.count--
	t.Modify()

	if s.len() == 0 {
		t.index.Delete(key)
		if err := t.storage.Deallocate(slotRef(ref).oid()); err != nil {
			return fmt.Errorf("release slot of %s: %w", key, err)
		}
	}
	return nil
}

// RemoveKey is the unqualified single-value removal. A key of a non-unique
// index may hold many values, so it always fails with ErrKeyNotUnique; use
// Remove with the value to delete.
func (t *ThickIndex) RemoveKey(_ context.Context, key model.Key) (core.OID, error) {
	return core.InvalidOID, fmt.Errorf("%w: remove %s needs a value", ErrKeyNotUnique, key)
}

// Clear removes every key and deallocates every slot. Referenced objects
// are not deallocated.
func (t *ThickIndex) Clear(_ context.Context) error {
	t.Lock()
	defer t.Unlock()
	return t.clear()
}

func (t *ThickIndex) clear() error {
	var slots []core.OID
	for _, ref := range t.index.All() {
		slots = append(slots, slotRef(ref).oid())
	}

	// The index is emptied first: a failed release leaks a slot but never
	// leaves a key pointing at a released one.
	t.index.Clear()
	t.count = 0
	t.Modify()

	var errs []error
	for _, oid := range slots {
		if err := t.storage.Deallocate(oid); err != nil {
			errs = append(errs, fmt.Errorf("release slot %s: %w", oid, err))
		}
	}
	return errors.Join(errs...)
}

// Deallocate clears the index, then releases the unique index and the index
// itself. Every release is attempted; failures are joined. Referenced
// objects are not deallocated.
func (t *ThickIndex) Deallocate(_ context.Context) error {
	t.Lock()
	defer t.Unlock()

	errs := []error{t.clear()}
	if err := t.storage.Deallocate(t.indexOID); err != nil {
		errs = append(errs, fmt.Errorf("release unique index: %w", err))
	}
	if err := t.storage.Deallocate(t.OID()); err != nil {
		errs = append(errs, fmt.Errorf("release thick index: %w", err))
	}
	return errors.Join(errs...)
}
