package thickindex

import "errors"

var (
	// ErrKeyNotUnique is returned by single-value operations on a key that
	// holds more than one value or whose slot has been promoted.
	ErrKeyNotUnique = errors.New("key is not unique")

	// ErrKeyNotFound is returned by Remove when the key or the value is absent.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidArgument is returned for keys of the wrong kind, prefix
	// queries on indexes that are not string keyed and invalid options.
	ErrInvalidArgument = errors.New("invalid argument")
)
