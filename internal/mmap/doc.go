// Package mmap provides read-only memory-mapped file access for zero-copy
// loads of serialized indexes.
//
// # Usage
//
//	m, err := mmap.Open("index.rbm")
//	if err != nil { ... }
//	defer m.Close()
//
//	// Zero-copy access to file contents
//	data := m.Bytes()
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessRandom)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), access hints via madvise(2)
//   - Windows: CreateFileMapping/MapViewOfFile, hints are no-ops
//
// # Thread Safety
//
// Mapping is safe for concurrent read access. Close is idempotent and
// protected by atomic operations, but callers must ensure no goroutine
// touches Bytes() after Close returns.
package mmap
