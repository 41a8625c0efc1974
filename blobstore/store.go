package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error satisfying
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// BlobStore provides access to immutable index artifacts by name. Names use
// forward slashes as separators regardless of backend.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts a streaming write. The blob becomes visible to readers
	// only once the returned WritableBlob is closed successfully.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob in one shot, atomically where the backend allows.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an immutable artifact.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off, like io.ReaderAt but with
	// a context for remote backends.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange streams length bytes starting at off. Ranges past the end
	// of the blob are truncated.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the blob size in bytes.
	Size() int64

	Close() error
}

// WritableBlob is a streaming write handle returned by Create.
type WritableBlob interface {
	io.Writer

	// Sync makes written data durable where the backend supports it.
	// Object stores commit only on Close; for them Sync is a no-op.
	Sync() error

	// Close finalizes the blob. The write is not visible until Close
	// returns nil.
	Close() error
}

// Mappable is an optional Blob interface for zero-copy access. The returned
// slice is valid until the Blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}
