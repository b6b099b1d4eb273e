package thickidx

import (
	"errors"
	"fmt"

	"github.com/hupe1980/thickidx/blobstore"
	"github.com/hupe1980/thickidx/store"
	"github.com/hupe1980/thickidx/thickindex"
)

var (
	// ErrNotFound is returned when a record or a named index does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIndexExists is returned by CreateIndex when the name is taken.
	ErrIndexExists = errors.New("index already exists")

	// ErrKeyNotUnique is returned by single-value operations on a key that
	// holds several values.
	ErrKeyNotUnique = thickindex.ErrKeyNotUnique

	// ErrKeyNotFound is returned by Remove when the key or value is absent.
	ErrKeyNotFound = thickindex.ErrKeyNotFound

	// ErrInvalidArgument is returned for keys of the wrong kind and
	// unsupported queries.
	ErrInvalidArgument = thickindex.ErrInvalidArgument

	// ErrReadOnly is returned for mutations on a database opened ReadOnly.
	ErrReadOnly = store.ErrReadOnly

	// ErrClosed is returned after Close.
	ErrClosed = store.ErrClosed
)

// ErrCorrupt indicates that persisted data failed validation.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrCorrupt struct {
	Path  string
	cause error
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("corrupt data in %s", e.Path)
}

func (e *ErrCorrupt) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pe *store.PageError
	if errors.As(err, &pe) && errors.Is(err, store.ErrCorrupt) {
		return &ErrCorrupt{Path: pe.Path, cause: err}
	}

	// Not found unification.
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, store.ErrTypeMismatch) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
