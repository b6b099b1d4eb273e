package core

import "strconv"

// OID is the store-wide identifier of a persistent object.
// It is strictly 32-bit so that sets of OIDs fit into roaring bitmaps.
//
// An OID is a handle, not an owning reference: holding or dropping an OID
// never changes the lifetime of the object it names.
type OID uint32

// InvalidOID is the zero OID. It never names an object and is used as "null".
const InvalidOID OID = 0

// MaxOID is the maximum possible value for an OID.
const MaxOID = ^OID(0)

// IsValid reports whether id can name an object.
func (id OID) IsValid() bool { return id != InvalidOID }

// String returns a string representation of the OID.
func (id OID) String() string {
	return "oid:" + strconv.FormatUint(uint64(id), 10)
}
