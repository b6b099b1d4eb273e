// Package container provides the two slot representations used by thick
// indexes: SmallList, an insertion ordered list of object references, and
// LargeSet, a roaring bitmap of object references.
//
// Both are persistent objects. Members are core.OID handles; neither
// container ever touches the lifetime of the objects it references.
// Mutators call Modify, so a change is written by the next store commit.
//
// Containers are not safe for concurrent mutation; the owning index guards
// them. Cursor returns an iterator over a frozen copy that stays valid while
// the container changes.
package container

import "github.com/hupe1980/thickidx/core"

// Cursor iterates over a frozen set of members.
type Cursor interface {
	HasNext() bool
	Next() core.OID
}
