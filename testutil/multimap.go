package testutil

import (
	"cmp"
	"slices"

	"github.com/hupe1980/thickidx/core"
)

// Multimap is a plain in-memory model of a non-unique index: every key maps
// to a bag of OIDs. Once a key has been promoted its bag behaves like a set,
// mirroring an index that switches representation at a threshold.
//
// Multimap is not safe for concurrent use.
type Multimap[K cmp.Ordered] struct {
	threshold int
	bags      map[K][]core.OID
	promoted  map[K]bool
	n         int
}

// NewMultimap returns an empty model with the given promotion threshold.
// A threshold of 0 disables promotion.
func NewMultimap[K cmp.Ordered](threshold int) *Multimap[K] {
	return &Multimap[K]{
		threshold: threshold,
		bags:      make(map[K][]core.OID),
		promoted:  make(map[K]bool),
	}
}

// Put adds oid under key.
func (m *Multimap[K]) Put(key K, oid core.OID) {
	bag := m.bags[key]
	switch {
	case m.promoted[key]:
		if slices.Contains(bag, oid) {
			return
		}
	case m.threshold > 0 && len(bag) == m.threshold:
		bag = dedup(append(bag, oid))
		m.n += len(bag) - len(m.bags[key])
		m.bags[key] = bag
		m.promoted[key] = true
		return
	}
	m.bags[key] = append(bag, oid)
	m.n++
}

// Remove removes one occurrence of oid from key and reports whether it was
// present.
func (m *Multimap[K]) Remove(key K, oid core.OID) bool {
	bag := m.bags[key]
	i := slices.Index(bag, oid)
	if i < 0 {
		return false
	}
	bag = slices.Delete(bag, i, i+1)
	m.n--
	if len(bag) == 0 {
		delete(m.bags, key)
		delete(m.promoted, key)
		return true
	}
	m.bags[key] = bag
	return true
}

// Len returns the total number of values.
func (m *Multimap[K]) Len() int { return m.n }

// Count returns the number of values held by key.
func (m *Multimap[K]) Count(key K) int { return len(m.bags[key]) }

// Has reports whether key holds oid.
func (m *Multimap[K]) Has(key K, oid core.OID) bool {
	return slices.Contains(m.bags[key], oid)
}

// Promoted reports whether key has been promoted.
func (m *Multimap[K]) Promoted(key K) bool { return m.promoted[key] }

// Keys returns the keys in ascending order.
func (m *Multimap[K]) Keys() []K {
	keys := make([]K, 0, len(m.bags))
	for k := range m.bags {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Values returns a copy of the values of key. Promoted bags are sorted, the
// others keep insertion order.
func (m *Multimap[K]) Values(key K) []core.OID {
	vals := slices.Clone(m.bags[key])
	if m.promoted[key] {
		slices.Sort(vals)
	}
	return vals
}

// All returns every value in ascending key order.
func (m *Multimap[K]) All() []core.OID {
	out := make([]core.OID, 0, m.n)
	for _, k := range m.Keys() {
		out = append(out, m.Values(k)...)
	}
	return out
}

func dedup(s []core.OID) []core.OID {
	s = slices.Clone(s)
	slices.Sort(s)
	return slices.Compact(s)
}
