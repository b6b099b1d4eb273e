package model

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedKey is returned when a binary key cannot be decoded.
var ErrMalformedKey = errors.New("malformed key")

// Kind identifies the type of value a Key carries.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindTuple
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTuple:
		return "tuple"
	default:
		return "invalid"
	}
}

// SupportsPrefix reports whether keys of this kind support prefix matching.
func (k Kind) SupportsPrefix() bool {
	return k == KindString || k == KindBytes
}

// Key is an immutable, totally ordered lookup token.
//
// Keys of different kinds order by kind first. Tuples compare element-wise,
// a shorter tuple ordering before a longer one with the same leading elements.
// The zero Key has KindInvalid and orders before every other key.
type Key struct {
	kind  Kind
	num   uint64 // bool, int, uint and float payloads
	str   string // string and bytes payloads
	elems []Key  // tuple elements, never mutated after construction
}

// Bool returns a boolean key.
func Bool(v bool) Key {
	k := Key{kind: KindBool}
	if v {
		k.num = 1
	}
	return k
}

// Int returns a signed integer key.
func Int(v int64) Key { return Key{kind: KindInt, num: uint64(v)} }

// Uint returns an unsigned integer key.
func Uint(v uint64) Key { return Key{kind: KindUint, num: v} }

// Float returns a floating point key. NaN orders before every other float.
func Float(v float64) Key { return Key{kind: KindFloat, num: math.Float64bits(v)} }

// String returns a string key.
func String(v string) Key { return Key{kind: KindString, str: v} }

// Bytes returns a byte-string key. The input is copied.
func Bytes(v []byte) Key { return Key{kind: KindBytes, str: string(v)} }

// Tuple returns a composite key. The element slice is copied.
func Tuple(elems ...Key) Key {
	cp := make([]Key, len(elems))
	copy(cp, elems)
	return Key{kind: KindTuple, elems: cp}
}

// Kind returns the kind of the key.
func (k Key) Kind() Kind { return k.kind }

// IsValid reports whether the key was built by one of the constructors.
func (k Key) IsValid() bool { return k.kind != KindInvalid }

// AsBool returns the boolean payload.
func (k Key) AsBool() (bool, bool) { return k.num == 1, k.kind == KindBool }

// AsInt returns the signed integer payload.
func (k Key) AsInt() (int64, bool) { return int64(k.num), k.kind == KindInt }

// AsUint returns the unsigned integer payload.
func (k Key) AsUint() (uint64, bool) { return k.num, k.kind == KindUint }

// AsFloat returns the floating point payload.
func (k Key) AsFloat() (float64, bool) { return math.Float64frombits(k.num), k.kind == KindFloat }

// AsString returns the string payload. Bytes keys are returned as strings too.
func (k Key) AsString() (string, bool) { return k.str, k.kind == KindString || k.kind == KindBytes }

// AsBytes returns a copy of the bytes payload.
func (k Key) AsBytes() ([]byte, bool) {
	if k.kind != KindBytes {
		return nil, false
	}
	return []byte(k.str), true
}

// Len returns the number of tuple elements, or 0 for scalar keys.
func (k Key) Len() int { return len(k.elems) }

// At returns the i-th tuple element.
func (k Key) At(i int) Key { return k.elems[i] }

// Compare returns -1, 0 or +1 depending on whether a orders before, equal to
// or after b.
func Compare(a, b Key) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindBool, KindUint:
		return cmp.Compare(a.num, b.num)
	case KindInt:
		return cmp.Compare(int64(a.num), int64(b.num))
	case KindFloat:
		return cmp.Compare(math.Float64frombits(a.num), math.Float64frombits(b.num))
	case KindString, KindBytes:
		return strings.Compare(a.str, b.str)
	case KindTuple:
		n := min(len(a.elems), len(b.elems))
		for i := 0; i < n; i++ {
			if c := Compare(a.elems[i], b.elems[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.elems), len(b.elems))
	default:
		return 0
	}
}

// Equal reports whether a and b are the same key.
func Equal(a, b Key) bool { return Compare(a, b) == 0 }

// Less reports whether a orders before b.
func Less(a, b Key) bool { return Compare(a, b) < 0 }

// HasPrefix reports whether k starts with prefix. Only string and bytes keys
// of the same kind can match.
func (k Key) HasPrefix(prefix Key) bool {
	if !k.kind.SupportsPrefix() || k.kind != prefix.kind {
		return false
	}
	return strings.HasPrefix(k.str, prefix.str)
}

// String returns a human readable representation of the key.
func (k Key) String() string {
	switch k.kind {
	case KindBool:
		return strconv.FormatBool(k.num == 1)
	case KindInt:
		return strconv.FormatInt(int64(k.num), 10)
	case KindUint:
		return strconv.FormatUint(k.num, 10)
	case KindFloat:
		return strconv.FormatFloat(math.Float64frombits(k.num), 'g', -1, 64)
	case KindString:
		return strconv.Quote(k.str)
	case KindBytes:
		return fmt.Sprintf("0x%x", k.str)
	case KindTuple:
		parts := make([]string, len(k.elems))
		for i, e := range k.elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return "<invalid>"
	}
}

// --------------------------------------------------------------------------
// Binary encoding
// --------------------------------------------------------------------------

// AppendBinary appends the binary encoding of k to dst.
//
// Format: [Kind: 1 byte] [Payload...]
//   - bool, int, uint, float: 8 bytes little endian
//   - string, bytes: uvarint length + data
//   - tuple: uvarint count + encoded elements
func (k Key) AppendBinary(dst []byte) []byte {
	dst = append(dst, byte(k.kind))
	switch k.kind {
	case KindBool, KindInt, KindUint, KindFloat:
		dst = binary.LittleEndian.AppendUint64(dst, k.num)
	case KindString, KindBytes:
		dst = binary.AppendUvarint(dst, uint64(len(k.str)))
		dst = append(dst, k.str...)
	case KindTuple:
		dst = binary.AppendUvarint(dst, uint64(len(k.elems)))
		for _, e := range k.elems {
			dst = e.AppendBinary(dst)
		}
	}
	return dst
}

// DecodeKey decodes one key from src and returns it with the number of bytes
// consumed.
func DecodeKey(src []byte) (Key, int, error) {
	if len(src) == 0 {
		return Key{}, 0, ErrMalformedKey
	}
	k := Key{kind: Kind(src[0])}
	off := 1
	switch k.kind {
	case KindBool, KindInt, KindUint, KindFloat:
		if len(src) < off+8 {
			return Key{}, 0, ErrMalformedKey
		}
		k.num = binary.LittleEndian.Uint64(src[off:])
		off += 8
	case KindString, KindBytes:
		n, w := binary.Uvarint(src[off:])
		if w <= 0 || uint64(len(src)-off-w) < n {
			return Key{}, 0, ErrMalformedKey
		}
		off += w
		k.str = string(src[off : off+int(n)])
		off += int(n)
	case KindTuple:
		n, w := binary.Uvarint(src[off:])
		if w <= 0 || n > uint64(len(src)) {
			return Key{}, 0, ErrMalformedKey
		}
		off += w
		k.elems = make([]Key, 0, n)
		for i := uint64(0); i < n; i++ {
			e, used, err := DecodeKey(src[off:])
			if err != nil {
				return Key{}, 0, err
			}
			k.elems = append(k.elems, e)
			off += used
		}
	default:
		return Key{}, 0, fmt.Errorf("%w: unknown kind %d", ErrMalformedKey, src[0])
	}
	return k, off, nil
}
