// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts the filesystem operations a blob directory needs
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDONLY, 0)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("objects/", fs.Fault{FailOnSync: true})
//	store, _ := blobstore.OpenLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Filesystem operations take no context.Context: local syscalls are not
// interruptible. Slow backends go through blobstore, which does.
package fs
