package blobstore

import (
	"context"
	"fmt"
	"io"

	rangebitmap "github.com/hupe1980/rangebitmap"
	"github.com/hupe1980/rangebitmap/persistence"
)

// Publish streams rb into the store under name as a persistence envelope.
// The artifact becomes visible only after the underlying Create handle closes
// cleanly.
func Publish(ctx context.Context, store BlobStore, name string, rb *rangebitmap.RangeBitmap, optFns ...persistence.Option) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	if err := persistence.Save(ctx, w, rb, optFns...); err != nil {
		_ = w.Close()
		return fmt.Errorf("save %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", name, err)
	}

	return nil
}

// FetchMapped retrieves a published index zero-copy when the store supports
// it: for blobs implementing Mappable with an uncompressed envelope, the
// store queries the blob's mapping directly and the returned closer unmaps
// it. Everything else falls back to an in-memory load with a no-op closer.
func FetchMapped(ctx context.Context, store BlobStore, name string, optFns ...persistence.Option) (*rangebitmap.RangeBitmap, io.Closer, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}

	if m, ok := b.(Mappable); ok {
		buf, err := m.Bytes()
		if err == nil {
			rb, err := persistence.FromBuffer(buf, optFns...)
			if err != nil {
				_ = b.Close()
				return nil, nil, fmt.Errorf("map %s: %w", name, err)
			}

			// The store reads out of the blob's mapping; the blob handle
			// keeps it alive.
			return rb, b, nil
		}
	}

	defer b.Close()

	r, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer r.Close()

	rb, err := persistence.Load(ctx, r, optFns...)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", name, err)
	}

	return rb, noopCloser{}, nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// Fetch retrieves a published index into memory, verifying the envelope
// checksum. The returned store owns its buffer and outlives the blob handle.
// Callers that want zero-copy access to local files should use
// persistence.Open directly instead.
func Fetch(ctx context.Context, store BlobStore, name string, optFns ...persistence.Option) (*rangebitmap.RangeBitmap, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer b.Close()

	r, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer r.Close()

	rb, err := persistence.Load(ctx, r, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	return rb, nil
}
