// Package rangebitmap provides a bit-sliced range-encoded bitmap index for Go.
//
// A RangeBitmap answers range predicates (<, <=, >, >=, between) over an
// immutable column of unsigned 64-bit ordinals. Results are roaring bitmaps of
// matching row positions, so they compose directly with other bitmap-based
// filters.
//
// # Quick Start
//
// Build an index by appending one ordinal per row, then query it:
//
//	app := rangebitmap.New(1000)
//	for _, v := range []uint64{10, 3, 15, 0} {
//	    _ = app.Add(v)
//	}
//	rb, _ := app.Build()
//
//	rows := rb.Lt(10)       // rows with value < 10
//	rows = rb.Between(3, 9) // rows with 3 <= value <= 9
//
// # Typed Values
//
// Only u64 ordinals are indexed. The ordinal subpackage maps signed integers,
// floats and timestamps to order-preserving ordinals:
//
//	app.Add(ordinal.FromFloat64(price))
//	...
//	rows := rb.Lte(ordinal.FromFloat64(99.99))
//
// # Zero-Copy Mapping
//
// A built index serializes to a single buffer and maps back without copying:
//
//	buf := rb.Bytes()
//	rb2, _ := rangebitmap.Map(buf) // views into buf, no decode step
//
// The persistence package wraps the raw bytes in a checksummed, optionally
// compressed file envelope with atomic writes and mmap-backed opens. The
// blobstore packages publish and fetch built indexes through memory, local
// disk, S3 or MinIO backends.
//
// # Concurrency
//
// An Appender is single-writer. A built or mapped RangeBitmap is immutable and
// safe for unlimited concurrent readers; block evaluation parallelizes across
// a bounded worker pool when configured.
//
// # Key Features
//
//   - Range-encoded bit slices: k slices answer any threshold in one pass
//   - Roaring containers per 65536-row block (array/bitmap/run adaptive)
//   - Query fast-forwards: absent/full container skips, deferred block state
//   - Context variants evaluate only blocks the context touches
//   - Zero-copy Map over mmap'd files and fetched blobs
package rangebitmap
