// Package thickindex implements a non-unique secondary index: many object
// references per key, on top of a unique-key ordered index.
//
// Every key maps to a slot. A slot starts as a container.SmallList and is
// promoted once to a container.LargeSet when an insertion would push it past
// the threshold (DefaultThreshold unless set with WithThreshold at creation).
// Slots are never demoted and are deallocated when they become empty.
//
// The index keeps an exact element count, updated by one on every successful
// insertion or removal, so Len is O(1).
//
// Members are core.OID handles. Deallocating a slot, clearing the index or
// deallocating the index itself never deallocates a referenced object.
//
// # Iteration
//
// All, Entries, Range, EntryRange and PrefixIter flatten the two levels (keys
// in order, then the members of each slot) into one sequence. The key level is
// fixed when the iterator is created; each slot is copied when iteration
// reaches it. No lock is held while a value is yielded, so the loop body may
// mutate the index. Slots removed after the iterator was created are skipped.
package thickindex
