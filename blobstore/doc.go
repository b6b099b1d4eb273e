// Package blobstore abstracts the storage backend that persisted objects and
// manifests are written to.
//
// A BlobStore is a flat namespace of named, whole-value blobs. The store
// writes one blob per persistent object plus a manifest per commit, and a
// small CURRENT blob naming the latest manifest.
//
// Implementations:
//   - MemoryStore: in-process, for tests and ephemeral databases
//   - LocalStore: a directory on the local file system, locked against a
//     second writer process
//   - CachingStore: an LRU read cache in front of any other store
//   - minio.Store: MinIO and S3-compatible object storage
//   - s3.Store / s3.DDBCommitStore: Amazon S3, optionally with DynamoDB for
//     atomic CURRENT updates
package blobstore
