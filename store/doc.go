// Package store implements the persistent object store that indexes live in.
//
// Every persistent object embeds Persistent (or Resource, which adds a
// reader/writer lock) and is identified by a core.OID. Objects are allocated
// in memory, loaded lazily from the blob backend on first access and written
// back by Commit.
//
// # Commit
//
// Commit writes every modified object as a new page blob, then a manifest
// that lists the page of every live object, then switches the CURRENT pointer.
// Pages superseded by the commit and pages of deallocated objects are deleted
// afterwards. A crash at any point leaves either the old or the new version
// readable.
//
// # Concurrency
//
// Store methods are safe for concurrent use. The contents of an object are
// protected by the object's owner; Commit must not run concurrently with
// mutations of the objects it writes.
package store
