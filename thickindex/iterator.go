package thickindex

import (
	"context"
	"errors"
	"iter"

	"github.com/hupe1980/thickidx/container"
	"github.com/hupe1980/thickidx/core"
	"github.com/hupe1980/thickidx/model"
	"github.com/hupe1980/thickidx/store"
	"github.com/hupe1980/thickidx/uniqueindex"
)

// flattener walks the slots of an outer key sequence and yields their
// members one at a time.
//
// After construction and after every call to next, either inner is nil (the
// walk is over) or inner has at least one more member.
type flattener struct {
	ctx   context.Context
	t     *ThickIndex
	outer func() (model.Key, uint64, bool)
	stop  func()
	key   model.Key
	inner container.Cursor
	err   error
}

func newFlattener(ctx context.Context, t *ThickIndex, keys iter.Seq2[model.Key, uint64]) *flattener {
	next, stop := iter.Pull2(keys)
	f := &flattener{ctx: ctx, t: t, outer: next, stop: stop}
	f.advance()
	return f
}

// advance binds the next key whose slot still has members.
func (f *flattener) advance() {
	f.inner = nil
	for {
		key, ref, ok := f.outer()
		if !ok {
			f.stop()
			return
		}
		cur, err := f.t.snapshotSlot(f.ctx, slotRef(ref))
		if errors.Is(err, store.ErrNotFound) {
			continue // removed after the iterator was created
		}
		if err != nil {
			f.err = err
			f.stop()
			return
		}
		if cur.HasNext() {
			f.key = key
			f.inner = cur
			return
		}
	}
}

func (f *flattener) hasNext() bool { return f.inner != nil }

func (f *flattener) next() Entry {
	e := Entry{Key: f.key, Value: f.inner.Next()}
	if !f.inner.HasNext() {
		f.advance()
	}
	return e
}

func (f *flattener) close() { f.stop() }

// snapshotSlot returns a cursor over a copy of the slot members.
func (t *ThickIndex) snapshotSlot(ctx context.Context, ref slotRef) (container.Cursor, error) {
	t.RLock()
	defer t.RUnlock()

	s, err := t.loadSlot(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.cursor(), nil
}

func (t *ThickIndex) entries(ctx context.Context, keys iter.Seq2[model.Key, uint64]) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		f := newFlattener(ctx, t, keys)
		defer f.close()

		for f.hasNext() {
			if !yield(f.next(), nil) {
				return
			}
		}
		if f.err != nil {
			yield(Entry{}, f.err)
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

func fail[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// EntryRange iterates over the (key, value) pairs with keys between from and
// till (nil means unbounded). Keys come in the given order; the values of one
// key come in slot order. A slot load failure is yielded once as the error
// and ends the sequence.
func (t *ThickIndex) EntryRange(ctx context.Context, from, till *uniqueindex.Bound, order uniqueindex.Order) iter.Seq2[Entry, error] {
	for _, b := range []*uniqueindex.Bound{from, till} {
		if b != nil {
			if err := t.checkKey(b.Key); err != nil {
				return fail[Entry](err)
			}
		}
	}

	t.RLock()
	keys := t.index.Range(from, till, order)
	t.RUnlock()

	return t.entries(ctx, keys)
}

// Range is EntryRange without the keys.
func (t *ThickIndex) Range(ctx context.Context, from, till *uniqueindex.Bound, order uniqueindex.Order) iter.Seq2[core.OID, error] {
	return values(t.EntryRange(ctx, from, till, order))
}

// Entries iterates over all (key, value) pairs in ascending key order.
func (t *ThickIndex) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return t.EntryRange(ctx, nil, nil, uniqueindex.Ascending)
}

// All iterates over all values in ascending key order.
func (t *ThickIndex) All(ctx context.Context) iter.Seq2[core.OID, error] {
	return values(t.Entries(ctx))
}

// PrefixEntries iterates over the pairs whose string key starts with prefix.
func (t *ThickIndex) PrefixEntries(ctx context.Context, prefix string) iter.Seq2[Entry, error] {
	if err := t.checkPrefix(); err != nil {
		return fail[Entry](err)
	}

	t.RLock()
	keys := t.index.Prefix(model.String(prefix))
	t.RUnlock()

	return t.entries(ctx, keys)
}

// PrefixIter iterates over the values of all keys starting with prefix.
func (t *ThickIndex) PrefixIter(ctx context.Context, prefix string) iter.Seq2[core.OID, error] {
	return values(t.PrefixEntries(ctx, prefix))
}
