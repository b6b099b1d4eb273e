package store

import (
	"errors"
	"fmt"

	"github.com/hupe1980/thickidx/core"
)

var (
	// ErrNotFound is returned when an OID does not name a live object.
	ErrNotFound = errors.New("object not found")

	// ErrCorrupt is returned when a page fails validation.
	ErrCorrupt = errors.New("corrupt page")

	// ErrTypeMismatch is returned when an object does not have the requested type.
	ErrTypeMismatch = errors.New("object type mismatch")

	// ErrClosed is returned when the store is closed.
	ErrClosed = errors.New("store closed")

	// ErrReadOnly is returned for mutations on a read-only store.
	ErrReadOnly = errors.New("store is read-only")

	// ErrUnknownKind is returned when a page has a kind without registered factory.
	ErrUnknownKind = errors.New("unknown object kind")

	// ErrOIDExhausted is returned when the 32-bit OID space is used up.
	ErrOIDExhausted = errors.New("oid space exhausted")

	// ErrForeignObject is returned when an object is allocated in a second store.
	ErrForeignObject = errors.New("object belongs to another store")
)

// PageError describes a failure to read or decode the page of an object.
//
// The underlying error can be accessed via errors.Unwrap.
type PageError struct {
	OID  core.OID
	Path string
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("load %s from %s: %v", e.OID, e.Path, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
