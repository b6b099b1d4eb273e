// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. The package works with
// MinIO and other S3-compatible systems like Ceph, SeaweedFS and Garage,
// without pulling in the AWS SDK.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	bs := minioblob.NewStore(client, "my-bucket", "indexes/")
//	db, err := thickidx.Open(ctx, thickidx.Remote(bs))
//
// Every object page is one S3 object, so a remote backend is usually wrapped
// in a blobstore.CachingStore (thickidx.Remote does that by default).
package minio
