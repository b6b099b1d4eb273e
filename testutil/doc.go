// Package testutil provides testing utilities for thickidx.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe random source for generating
// workloads and a reference multimap that index implementations can be
// checked against.
//
// # Random Workloads
//
//	rng := testutil.NewRNG(seed)
//	key := rng.Zipf(100, 1.2)  // skewed key choice, a few keys get most values
//	oid := rng.OID(1000)
//
// # Reference Model
//
//	m := testutil.NewMultimap[int64]()
//	m.Put(key, oid)
//	m.Remove(key, oid)
//	m.Len()
package testutil
