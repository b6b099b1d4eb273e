package uniqueindex

import (
	"encoding/binary"
	"fmt"
	"iter"
	"sync"

	"github.com/google/btree"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/store"
)

func init() {
	store.Register(store.KindUniqueIndex, func() store.Object { return New() })
}

const degree = 32

// Order is the direction of an ordered scan.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Bound limits one side of a range scan. A nil *Bound is unbounded.
type Bound struct {
	Key       model.Key
	Exclusive bool
}

// Inclusive returns a bound that includes k.
func Inclusive(k model.Key) *Bound { return &Bound{Key: k} }

// Exclusive returns a bound that excludes k.
func Exclusive(k model.Key) *Bound { return &Bound{Key: k, Exclusive: true} }

type entry struct {
	key   model.Key
	value uint64
}

func lessEntry(a, b entry) bool { return model.Less(a.key, b.key) }

// Index is an ordered unique map from keys to 64-bit values.
type Index struct {
	store.Persistent

	cloneMu sync.Mutex // Clone updates the tree's copy-on-write context
	tree    *btree.BTreeG[entry]
}

// New creates an empty transient index.
func New() *Index {
	return &Index{tree: btree.NewG(degree, lessEntry)}
}

// Kind returns store.KindUniqueIndex.
func (x *Index) Kind() store.Kind { return store.KindUniqueIndex }

// Len returns the number of keys.
func (x *Index) Len() int { return x.tree.Len() }

// Get returns the value stored under key.
func (x *Index) Get(key model.Key) (uint64, bool) {
	e, ok := x.tree.Get(entry{key: key})
	return e.value, ok
}

// Insert adds key with value. It returns false and leaves the index unchanged
// if key is already present.
func (x *Index) Insert(key model.Key, value uint64) bool {
	if x.tree.Has(entry{key: key}) {
		return false
	}
	x.tree.ReplaceOrInsert(entry{key: key, value: value})
	x.Modify()
	return true
}

// Replace overwrites the value of an existing key and returns the old value.
// It returns false and leaves the index unchanged if key is absent.
func (x *Index) Replace(key model.Key, value uint64) (uint64, bool) {
	if !x.tree.Has(entry{key: key}) {
		return 0, false
	}
	old, _ := x.tree.ReplaceOrInsert(entry{key: key, value: value})
	x.Modify()
	return old.value, true
}

// Delete removes key and returns its value.
func (x *Index) Delete(key model.Key) (uint64, bool) {
	old, ok := x.tree.Delete(entry{key: key})
	if !ok {
		return 0, false
	}
	x.Modify()
	return old.value, true
}

// Clear removes every key.
func (x *Index) Clear() {
	if x.tree.Len() == 0 {
		return
	}
	x.tree.Clear(false)
	x.Modify()
}

// GetRange returns the values of all keys in [from, till], in key order.
func (x *Index) GetRange(from, till model.Key) []uint64 {
	var out []uint64
	x.tree.AscendGreaterOrEqual(entry{key: from}, func(e entry) bool {
		if model.Less(till, e.key) {
			return false
		}
		out = append(out, e.value)
		return true
	})
	return out
}

// GetPrefix returns the values of all keys starting with prefix, in key order.
// prefix must be a string or bytes key.
func (x *Index) GetPrefix(prefix model.Key) []uint64 {
	var out []uint64
	x.tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
		if !e.key.HasPrefix(prefix) {
			return false
		}
		out = append(out, e.value)
		return true
	})
	return out
}

// PrefixSearch returns the values of all keys that are prefixes of word,
// shortest key first. word must be a string or bytes key.
func (x *Index) PrefixSearch(word model.Key) []uint64 {
	s, ok := word.AsString()
	if !ok {
		return nil
	}
	mk := model.String
	if word.Kind() == model.KindBytes {
		mk = func(v string) model.Key { return model.Bytes([]byte(v)) }
	}

	var out []uint64
	for n := 0; n <= len(s); n++ {
		if v, ok := x.Get(mk(s[:n])); ok {
			out = append(out, v)
		}
	}
	return out
}

// Snapshot returns a transient copy of the index. Later changes to either
// copy are not visible in the other.
func (x *Index) Snapshot() *Index {
	return &Index{tree: x.clone()}
}

func (x *Index) clone() *btree.BTreeG[entry] {
	x.cloneMu.Lock()
	defer x.cloneMu.Unlock()
	return x.tree.Clone()
}

// All iterates over all keys in ascending order.
func (x *Index) All() iter.Seq2[model.Key, uint64] {
	return x.Range(nil, nil, Ascending)
}

// Range iterates over the keys between from and till in the given order.
// The scan sees the index as it was when Range was called.
func (x *Index) Range(from, till *Bound, order Order) iter.Seq2[model.Key, uint64] {
	tree := x.clone()

	if order == Descending {
		return func(yield func(model.Key, uint64) bool) {
			visit := func(e entry) bool {
				if till != nil && till.Exclusive && model.Equal(e.key, till.Key) {
					return true
				}
				if from != nil {
					c := model.Compare(e.key, from.Key)
					if c < 0 || (c == 0 && from.Exclusive) {
						return false
					}
				}
				return yield(e.key, e.value)
			}
			if till == nil {
				tree.Descend(visit)
			} else {
				tree.DescendLessOrEqual(entry{key: till.Key}, visit)
			}
		}
	}

	return func(yield func(model.Key, uint64) bool) {
		visit := func(e entry) bool {
			if from != nil && from.Exclusive && model.Equal(e.key, from.Key) {
				return true
			}
			if till != nil {
				c := model.Compare(e.key, till.Key)
				if c > 0 || (c == 0 && till.Exclusive) {
					return false
				}
			}
			return yield(e.key, e.value)
		}
		if from == nil {
			tree.Ascend(visit)
		} else {
			tree.AscendGreaterOrEqual(entry{key: from.Key}, visit)
		}
	}
}

// Prefix iterates in ascending order over the keys starting with prefix.
// The scan sees the index as it was when Prefix was called.
func (x *Index) Prefix(prefix model.Key) iter.Seq2[model.Key, uint64] {
	tree := x.clone()
	return func(yield func(model.Key, uint64) bool) {
		tree.AscendGreaterOrEqual(entry{key: prefix}, func(e entry) bool {
			if !e.key.HasPrefix(prefix) {
				return false
			}
			return yield(e.key, e.value)
		})
	}
}

// MarshalBinary encodes the index as a uvarint count followed by
// (key, 8-byte value) pairs in key order.
func (x *Index) MarshalBinary() ([]byte, error) {
	buf := binary.AppendUvarint(nil, uint64(x.tree.Len()))
	x.tree.Ascend(func(e entry) bool {
		buf = e.key.AppendBinary(buf)
		buf = binary.LittleEndian.AppendUint64(buf, e.value)
		return true
	})
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (x *Index) UnmarshalBinary(data []byte) error {
	n, w := binary.Uvarint(data)
	if w <= 0 {
		return fmt.Errorf("unique index: bad length prefix")
	}
	data = data[w:]

	tree := btree.NewG(degree, lessEntry)
	var prev model.Key
	for i := uint64(0); i < n; i++ {
		k, used, err := model.DecodeKey(data)
		if err != nil {
			return fmt.Errorf("unique index: entry %d: %w", i, err)
		}
		data = data[used:]
		if len(data) < 8 {
			return fmt.Errorf("unique index: entry %d: truncated value", i)
		}
		if i > 0 && !model.Less(prev, k) {
			return fmt.Errorf("unique index: entry %d: keys out of order", i)
		}
		tree.ReplaceOrInsert(entry{key: k, value: binary.LittleEndian.Uint64(data)})
		data = data[8:]
		prev = k
	}
	if len(data) != 0 {
		return fmt.Errorf("unique index: %d trailing bytes", len(data))
	}
	x.tree = tree
	return nil
}
