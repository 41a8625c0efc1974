package persistence

import (
	"fmt"

	rangebitmap "github.com/hupe1980/rangebitmap"
	"github.com/hupe1980/rangebitmap/internal/mmap"
)

// MappedIndex is a queryable index backed by a memory-mapped file. The store
// reads container data straight from the page cache; Close unmaps the file
// and invalidates the store.
type MappedIndex struct {
	rb *rangebitmap.RangeBitmap
	m  *mmap.Mapping
}

// RangeBitmap returns the mapped store. It must not be used after Close.
func (mi *MappedIndex) RangeBitmap() *rangebitmap.RangeBitmap {
	return mi.rb
}

// Mapped reports whether queries run against the mapping rather than a heap
// copy. Compressed envelopes are decompressed on open and are not mapped.
func (mi *MappedIndex) Mapped() bool {
	return mi.m != nil
}

// Close releases the mapping, if any.
func (mi *MappedIndex) Close() error {
	mi.rb = nil

	if mi.m == nil {
		return nil
	}

	m := mi.m
	mi.m = nil

	return m.Close()
}

// Open memory-maps the envelope file at path and builds a store over the
// mapped payload. Uncompressed envelopes are queried zero-copy; compressed
// ones fall back to decompressing into memory, after which the mapping is
// released.
func Open(path string, optFns ...Option) (*MappedIndex, error) {
	cfg := applyConfig(optFns)

	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	data := m.Bytes()

	hdr, err := decodeEnvelopeHeader(data)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	if uint64(len(data)-envelopeHeaderSize) < hdr.storedLen {
		_ = m.Close()
		return nil, fmt.Errorf("%w: %d payload bytes mapped, header declares %d",
			ErrTruncated, len(data)-envelopeHeaderSize, hdr.storedLen)
	}

	stored := data[envelopeHeaderSize : envelopeHeaderSize+int(hdr.storedLen)]

	rb, err := mapPayload(stored, hdr, cfg)
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	if hdr.compression != CompressionNone {
		// The store owns a decompressed heap buffer; the mapping is no
		// longer referenced.
		_ = m.Close()
		return &MappedIndex{rb: rb}, nil
	}

	// Queries jump between containers, not through them sequentially.
	_ = m.Advise(mmap.AccessRandom)

	return &MappedIndex{rb: rb, m: m}, nil
}
