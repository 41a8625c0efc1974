// Package cache provides a byte-oriented block cache for immutable blob
// data. The caching blob store uses it to keep hot regions of remote index
// artifacts in memory.
package cache

// Key identifies one fixed-size block of one blob. Blobs are immutable, so
// a key never needs a version component.
type Key struct {
	// Name is the blob name within its store.
	Name string

	// Block is the block index (byte offset / block size).
	Block uint64
}

// BlockCache is a cache for immutable blocks. Returned slices must be
// treated as read-only.
type BlockCache interface {
	// Get returns a cached block, or ok=false if missing.
	Get(key Key) (b []byte, ok bool)

	// Set caches a block. Implementations may retain b; the caller must not
	// modify it afterwards.
	Set(key Key, b []byte)

	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)

	// Stats returns hit and miss counters.
	Stats() (hits, misses int64)
}
