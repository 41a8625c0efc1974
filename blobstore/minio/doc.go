// Package minio implements blobstore.BlobStore on MinIO and other
// S3-compatible object stores via the minio-go client. It covers
// self-hosted deployments where the AWS SDK's credential chain and
// endpoint assumptions do not apply.
package minio
