// Package model defines the key type used by every index in thickidx.
//
// A Key is an immutable tagged value: bool, int, uint, float, string, bytes
// or a tuple of keys. Keys are totally ordered by Compare and can be encoded
// into a compact, self-delimiting binary form for persistence.
//
// String and bytes keys additionally support prefix matching, which the
// indexes use for prefix scans.
package model
