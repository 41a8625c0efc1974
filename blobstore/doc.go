// Package blobstore abstracts the storage that holds published range index
// partitions.
//
// A partition index is built once, saved as an immutable envelope file (see
// the persistence package) and then distributed to query nodes. BlobStore is
// the transport for those artifacts. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, zero-copy reads via mmap
//   - MemoryStore: in-memory, for tests
//   - CachingStore: block-level read cache over any other store
//   - s3.Store: Amazon S3 with ranged reads and streaming multipart uploads
//   - minio.Store: MinIO and other S3-compatible object stores
//
// # Publishing and Fetching
//
// Publish and Fetch move sealed indexes through a store:
//
//	err := blobstore.Publish(ctx, store, "events/ts/p0042.rbx", rb)
//	rb, err := blobstore.Fetch(ctx, store, "events/ts/p0042.rbx")
//
// For cloud backends, Blob.ReadRange allows partial fetches without
// downloading the whole artifact.
package blobstore
