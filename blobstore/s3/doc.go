// Package s3 provides Amazon S3 implementations of blobstore.BlobStore for
// distributing published range index artifacts.
//
// # Usage
//
//	store, err := s3.NewFromDefaultConfig(ctx, "my-bucket", "indexes/")
//	if err != nil { ... }
//
//	err = blobstore.Publish(ctx, store, "events/ts/p0042.rbx", rb)
//
// # Features
//
//   - Ranged GETs so query nodes can fetch envelope headers and hot blocks
//     without downloading whole artifacts
//   - Streaming multipart uploads with CRC32C integrity validation
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - ExpressStore for S3 Express One Zone directory buckets
//   - Catalog, a DynamoDB-backed version log for coordinating publishers
package s3
