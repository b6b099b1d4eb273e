package thickidx

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/thickindex"
	"github.com/hupe1980/thickidx/uniqueindex"
)

// Re-exported so that callers of the façade do not need to import
// uniqueindex for range scans.
type (
	Order = uniqueindex.Order
	Bound = uniqueindex.Bound
	Entry = thickindex.Entry
)

const (
	Ascending  = uniqueindex.Ascending
	Descending = uniqueindex.Descending
)

// Inclusive returns a range bound that includes k.
func Inclusive(k model.Key) *Bound { return uniqueindex.Inclusive(k) }

// Exclusive returns a range bound that excludes k.
func Exclusive(k model.Key) *Bound { return uniqueindex.Exclusive(k) }

// Index is a named non-unique index of a DB. Every key holds any number of
// record OIDs.
type Index struct {
	db      *DB
	name    string
	ti      *thickindex.ThickIndex
	dropped atomic.Bool
}

func (x *Index) begin(write bool) error {
	if err := x.db.begin(write); err != nil {
		return err
	}
	if x.dropped.Load() {
		x.db.end()
		return fmt.Errorf("%w: index %s", ErrNotFound, x.name)
	}
	return nil
}

// Name returns the index name.
func (x *Index) Name() string { return x.name }

// KeyKind returns the kind of keys the index accepts.
func (x *Index) KeyKind() model.Kind { return x.ti.KeyKind() }

// KeyCount returns the number of distinct keys.
func (x *Index) KeyCount() int { return x.ti.KeyCount() }

// Threshold returns the slot promotion threshold of the index.
func (x *Index) Threshold() int { return x.ti.Threshold() }

// Len returns the total number of values in the index.
func (x *Index) Len() int { return x.ti.Len() }

// Put adds oid under key.
func (x *Index) Put(ctx context.Context, key model.Key, oid core.OID) error {
	if err := x.begin(true); err != nil {
		return err
	}
	defer x.db.end()

	start := time.Now()
	err := x.ti.Put(ctx, key, oid)
	x.db.metrics.RecordPut(time.Since(start), err)
	x.db.logger.LogPut(ctx, x.name, key, oid, err)
	return translateError(err)
}

// Set makes oid the only value of key and returns the previous one.
func (x *Index) Set(ctx context.Context, key model.Key, oid core.OID) (core.OID, error) {
	if err := x.begin(true); err != nil {
		return core.InvalidOID, err
	}
	defer x.db.end()

	start := time.Now()
	prev, err := x.ti.Set(ctx, key, oid)
	x.db.metrics.RecordPut(time.Since(start), err)
	x.db.logger.LogPut(ctx, x.name, key, oid, err)
	return prev, translateError(err)
}

// Remove removes one occurrence of oid from key.
func (x *Index) Remove(ctx context.Context, key model.Key, oid core.OID) error {
	if err := x.begin(true); err != nil {
		return err
	}
	defer x.db.end()

	start := time.Now()
	err := x.ti.Remove(ctx, key, oid)
	x.db.metrics.RecordRemove(time.Since(start), err)
	x.db.logger.LogRemove(ctx, x.name, key, oid, err)
	return translateError(err)
}

// Clear removes every key. Referenced records are kept.
func (x *Index) Clear(ctx context.Context) error {
	if err := x.begin(true); err != nil {
		return err
	}
	defer x.db.end()

	return translateError(x.ti.Clear(ctx))
}

// Get returns the single value of key, core.InvalidOID if key is absent, or
// ErrKeyNotUnique.
func (x *Index) Get(ctx context.Context, key model.Key) (core.OID, error) {
	if err := x.begin(false); err != nil {
		return core.InvalidOID, err
	}
	defer x.db.end()

	start := time.Now()
	oid, err := x.ti.Get(ctx, key)
	x.db.metrics.RecordGet(time.Since(start), err)
	return oid, translateError(err)
}

// GetAll returns every value of key.
func (x *Index) GetAll(ctx context.Context, key model.Key) ([]core.OID, error) {
	return x.scan(func() ([]core.OID, error) { return x.ti.GetAll(ctx, key) })
}

// Count returns the number of values of key.
func (x *Index) Count(ctx context.Context, key model.Key) (int, error) {
	if err := x.begin(false); err != nil {
		return 0, err
	}
	defer x.db.end()

	n, err := x.ti.Count(ctx, key)
	return n, translateError(err)
}

// GetRange returns the values of all keys in [from, till].
func (x *Index) GetRange(ctx context.Context, from, till model.Key) ([]core.OID, error) {
	return x.scan(func() ([]core.OID, error) { return x.ti.GetRange(ctx, from, till) })
}

// GetPrefix returns the values of all keys starting with prefix.
func (x *Index) GetPrefix(ctx context.Context, prefix string) ([]core.OID, error) {
	return x.scan(func() ([]core.OID, error) { return x.ti.GetPrefix(ctx, prefix) })
}

// PrefixSearch returns the values of all keys that are prefixes of word.
func (x *Index) PrefixSearch(ctx context.Context, word string) ([]core.OID, error) {
	return x.scan(func() ([]core.OID, error) { return x.ti.PrefixSearch(ctx, word) })
}

// ToSlice returns every value in key order.
func (x *Index) ToSlice(ctx context.Context) ([]core.OID, error) {
	return x.scan(func() ([]core.OID, error) { return x.ti.ToSlice(ctx) })
}

func (x *Index) scan(fn func() ([]core.OID, error)) ([]core.OID, error) {
	if err := x.begin(false); err != nil {
		return nil, err
	}
	defer x.db.end()

	start := time.Now()
	out, err := fn()
	x.db.metrics.RecordScan(len(out), time.Since(start), err)
	return out, translateError(err)
}

// All iterates over every value in ascending key order.
func (x *Index) All(ctx context.Context) iter.Seq2[core.OID, error] {
	return values(x.Entries(ctx))
}

// Entries iterates over every (key, value) pair in ascending key order.
func (x *Index) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return x.EntryRange(ctx, nil, nil, Ascending)
}

// Range iterates over the values of the keys between from and till.
func (x *Index) Range(ctx context.Context, from, till *Bound, order Order) iter.Seq2[core.OID, error] {
	return values(x.EntryRange(ctx, from, till, order))
}

// EntryRange iterates over the pairs with keys between from and till.
// A nil bound is unbounded.
func (x *Index) EntryRange(ctx context.Context, from, till *Bound, order Order) iter.Seq2[Entry, error] {
	return x.iterate(func() iter.Seq2[Entry, error] { return x.ti.EntryRange(ctx, from, till, order) })
}

// PrefixIter iterates over the values of the keys starting with prefix.
func (x *Index) PrefixIter(ctx context.Context, prefix string) iter.Seq2[core.OID, error] {
	return values(x.iterate(func() iter.Seq2[Entry, error] { return x.ti.PrefixEntries(ctx, prefix) }))
}

// iterate creates the inner sequence under the shared lock and records one
// scan when the caller stops.
func (x *Index) iterate(create func() iter.Seq2[Entry, error]) iter.Seq2[Entry, error] {
	if err := x.begin(false); err != nil {
		return failed[Entry](err)
	}
	seq := create()
	x.db.end()

	return func(yield func(Entry, error) bool) {
		var (
			n       int
			scanErr error
		)
		start := time.Now()
		defer func() { x.db.metrics.RecordScan(n, time.Since(start), scanErr) }()

		for e, err := range seq {
			if err != nil {
				scanErr = translateError(err)
				yield(Entry{}, scanErr)
				return
			}
			n++
			if !yield(e, nil) {
				return
			}
		}
	}
}

func values(entries iter.Seq2[Entry, error]) iter.Seq2[core.OID, error] {
	return func(yield func(core.OID, error) bool) {
		for e, err := range entries {
			if !yield(e.Value, err) {
				return
			}
		}
	}
}

func failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
