package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies range bitmap envelope files (ASCII "RBX1").
	MagicNumber uint32 = 0x52425831

	// Version is the current envelope format version (v1.0.0).
	Version uint32 = 0x00010000
)

var (
	// ErrInvalidMagic is returned when a file does not start with MagicNumber.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrInvalidVersion is returned for an unsupported envelope version.
	ErrInvalidVersion = errors.New("unsupported version")

	// ErrUnknownCompression is returned for an unrecognized compression byte.
	ErrUnknownCompression = errors.New("unknown compression")

	// ErrTruncated is returned when the payload is shorter than the header
	// declares.
	ErrTruncated = errors.New("truncated payload")
)

// Compression selects how the serialized index is compressed inside the
// envelope.
type Compression uint8

const (
	// CompressionNone stores the payload verbatim. Required for zero-copy
	// mapping via Open.
	CompressionNone Compression = 0

	// CompressionLZ4 uses LZ4 block compression: fast, moderate ratio.
	CompressionLZ4 Compression = 1

	// CompressionZSTD uses zstd: better ratio, slower than LZ4.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// envelopeHeader is the fixed 32-byte prefix of every persisted index.
//
//	offset 0  magic       u32
//	offset 4  version     u32
//	offset 8  compression u8
//	offset 9  reserved    [3]byte
//	offset 12 checksum    u32   CRC32C of the stored payload
//	offset 16 storedLen   u64   payload bytes as stored (after compression)
//	offset 24 rawLen      u64   payload bytes after decompression
type envelopeHeader struct {
	compression Compression
	checksum    uint32
	storedLen   uint64
	rawLen      uint64
}

const envelopeHeaderSize = 32

func (h envelopeHeader) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], MagicNumber)
	binary.LittleEndian.PutUint32(dst[4:8], Version)
	dst[8] = uint8(h.compression)
	dst[9], dst[10], dst[11] = 0, 0, 0
	binary.LittleEndian.PutUint32(dst[12:16], h.checksum)
	binary.LittleEndian.PutUint64(dst[16:24], h.storedLen)
	binary.LittleEndian.PutUint64(dst[24:32], h.rawLen)
}

func decodeEnvelopeHeader(buf []byte) (envelopeHeader, error) {
	var h envelopeHeader

	if len(buf) < envelopeHeaderSize {
		return h, fmt.Errorf("%w: %d header bytes", ErrTruncated, len(buf))
	}

	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != MagicNumber {
		return h, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}

	if version := binary.LittleEndian.Uint32(buf[4:8]); version != Version {
		return h, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, version)
	}

	h.compression = Compression(buf[8])
	switch h.compression {
	case CompressionNone, CompressionLZ4, CompressionZSTD:
	default:
		return h, fmt.Errorf("%w: byte %d", ErrUnknownCompression, buf[8])
	}

	h.checksum = binary.LittleEndian.Uint32(buf[12:16])
	h.storedLen = binary.LittleEndian.Uint64(buf[16:24])
	h.rawLen = binary.LittleEndian.Uint64(buf[24:32])

	return h, nil
}
