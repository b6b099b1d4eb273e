// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	db, err := thickidx.Open(ctx, thickidx.Remote(store))
//
// S3 has no compare-and-swap, so two writers committing to the same prefix can
// overwrite each other's CURRENT pointer. DDBCommitStore moves the pointer into
// a DynamoDB table and turns a lost race into ErrConcurrentModification.
package s3
