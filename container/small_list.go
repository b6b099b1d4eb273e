package container

import (
	"encoding/binary"
	"fmt"
	"iter"
	"slices"

	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/store"
)

func init() {
	store.Register(store.KindSmallList, func() store.Object { return new(SmallList) })
}

// SmallList is an insertion ordered list of object references.
// Duplicates are allowed.
type SmallList struct {
	store.Persistent
	items []core.OID
}

// NewSmallList creates a transient list holding items.
func NewSmallList(items ...core.OID) *SmallList {
	return &SmallList{items: slices.Clone(items)}
}

// Kind returns store.KindSmallList.
func (l *SmallList) Kind() store.Kind { return store.KindSmallList }

// Len returns the number of elements.
func (l *SmallList) Len() int { return len(l.items) }

// At returns the element at position i.
func (l *SmallList) At(i int) core.OID { return l.items[i] }

// SetAt overwrites the element at position i.
func (l *SmallList) SetAt(i int, oid core.OID) {
	l.items[i] = oid
	l.Modify()
}

// Append adds oid at the end.
func (l *SmallList) Append(oid core.OID) {
	l.items = append(l.items, oid)
	l.Modify()
}

// IndexOf returns the position of the first occurrence of oid, or -1.
func (l *SmallList) IndexOf(oid core.OID) int {
	return slices.Index(l.items, oid)
}

// RemoveAt removes the element at position i, keeping the order of the rest.
func (l *SmallList) RemoveAt(i int) {
	l.items = slices.Delete(l.items, i, i+1)
	l.Modify()
}

// All returns an iterator over the elements in insertion order.
func (l *SmallList) All() iter.Seq[core.OID] {
	return slices.Values(l.items)
}

// Items returns a copy of the elements.
func (l *SmallList) Items() []core.OID {
	return slices.Clone(l.items)
}

// Cursor returns a cursor over a copy of the current elements.
func (l *SmallList) Cursor() Cursor {
	return &sliceCursor{items: slices.Clone(l.items)}
}

// MarshalBinary encodes the list as a uvarint count followed by 4-byte OIDs.
func (l *SmallList) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, binary.MaxVarintLen32+4*len(l.items))
	buf = binary.AppendUvarint(buf, uint64(len(l.items)))
	for _, oid := range l.items {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(oid))
	}
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (l *SmallList) UnmarshalBinary(data []byte) error {
	n, w := binary.Uvarint(data)
	if w <= 0 {
		return fmt.Errorf("small list: bad length prefix")
	}
	data = data[w:]
	if uint64(len(data)) != 4*n {
		return fmt.Errorf("small list: %d elements need %d bytes, have %d", n, 4*n, len(data))
	}
	items := make([]core.OID, n)
	for i := range items {
		items[i] = core.OID(binary.LittleEndian.Uint32(data[4*i:]))
	}
	l.items = items
	return nil
}

type sliceCursor struct {
	items []core.OID
	pos   int
}

func (c *sliceCursor) HasNext() bool { return c.pos < len(c.items) }

func (c *sliceCursor) Next() core.OID {
	oid := c.items[c.pos]
	c.pos++
	return oid
}
