//go:build !unix

package blobstore

import "os"

// Advisory locking is only implemented on unix platforms.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
