package thickindex

import (
	"context"
	"fmt"

	"github.com/hupe1980/thickidx/container"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/store"
)

// slotKind tags the representation of a slot.
type slotKind uint32

const (
	slotSmallList slotKind = 1
	slotLargeSet  slotKind = 2
)

func (k slotKind) String() string {
	switch k {
	case slotSmallList:
		return "small-list"
	case slotLargeSet:
		return "large-set"
	default:
		return fmt.Sprintf("slot(%d)", uint32(k))
	}
}

// slotRef is the value stored in the unique index for a key: the slot kind
// in the high 32 bits and the slot OID in the low 32 bits.
type slotRef uint64

func makeSlotRef(kind slotKind, oid core.OID) slotRef {
	return slotRef(uint64(kind)<<32 | uint64(oid))
}

func (r slotRef) kind() slotKind { return slotKind(r >> 32) }

func (r slotRef) oid() core.OID { return core.OID(uint32(r)) }

// slot is a loaded slot. Exactly one of list and set is non-nil, as given by kind.
type slot struct {
	kind slotKind
	list *container.SmallList
	set  *container.LargeSet
}

func (s slot) len() int {
	switch s.kind {
	case slotSmallList:
		return s.list.Len()
	case slotLargeSet:
		return s.set.Len()
	default:
		panic("thickindex: invalid slot kind " + s.kind.String())
	}
}

func (s slot) cursor() container.Cursor {
	switch s.kind {
	case slotSmallList:
		return s.list.Cursor()
	case slotLargeSet:
		return s.set.Cursor()
	default:
		panic("thickindex: invalid slot kind " + s.kind.String())
	}
}

func (s slot) appendTo(dst []core.OID) []core.OID {
	switch s.kind {
	case slotSmallList:
		for oid := range s.list.All() {
			dst = append(dst, oid)
		}
	case slotLargeSet:
		for oid := range s.set.All() {
			dst = append(dst, oid)
		}
	}
	return dst
}

func (t *ThickIndex) loadSlot(ctx context.Context, ref slotRef) (slot, error) {
	obj, err := t.storage.Load(ctx, ref.oid())
	if err != nil {
		return slot{}, err
	}

	switch ref.kind() {
	case slotSmallList:
		l, ok := obj.(*container.SmallList)
		if !ok {
			return slot{}, fmt.Errorf("%w: slot %s is a %s, want %s", store.ErrTypeMismatch, ref.oid(), obj.Kind(), store.KindSmallList)
		}
		return slot{kind: slotSmallList, list: l}, nil
	case slotLargeSet:
		s, ok := obj.(*container.LargeSet)
		if !ok {
			return slot{}, fmt.Errorf("%w: slot %s is a %s, want %s", store.ErrTypeMismatch, ref.oid(), obj.Kind(), store.KindLargeSet)
		}
		return slot{kind: slotLargeSet, set: s}, nil
	default:
		return slot{}, fmt.Errorf("%w: unknown slot tag %d", store.ErrCorrupt, uint32(ref.kind()))
	}
}
