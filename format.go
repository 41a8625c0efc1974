package rangebitmap

import (
	"encoding/binary"
	"math/bits"
)

const (
	// cookie marks a serialized range bitmap index.
	cookie uint16 = 0xB51C

	// encodingBase is the slice encoding base recorded in the header.
	// Only base 2 (one bit per slice) is supported.
	encodingBase uint8 = 2

	// BlockWidth is the number of rows covered by one block. It matches the
	// roaring container width, so in-block offsets fit a single container.
	BlockWidth = 1 << 16

	// MaxRows is the largest row count a store can hold. Row positions are
	// uint32 and the header stores the count in 32 bits.
	MaxRows = 1<<32 - 1

	maxSliceCount = 64

	// Fixed header layout, little-endian:
	//
	//	offset 0  cookie          u16
	//	offset 2  base            u8
	//	offset 3  slice_count     u8
	//	offset 4  mask_byte_width u16
	//	offset 6  row_count       u32
	//	offset 10 min_value       u64
	//
	// Block presence masks follow the header, then the serialized containers
	// in block-major, slice-minor order.
	headerSize = 18
)

// header is the decoded fixed prefix of a serialized store.
type header struct {
	sliceCount    int
	maskByteWidth int
	rows          uint32
	minValue      uint64
}

func (h header) encode(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:2], cookie)
	dst[2] = encodingBase
	dst[3] = uint8(h.sliceCount)
	binary.LittleEndian.PutUint16(dst[4:6], uint16(h.maskByteWidth))
	binary.LittleEndian.PutUint32(dst[6:10], h.rows)
	binary.LittleEndian.PutUint64(dst[10:18], h.minValue)
}

func decodeHeader(buf []byte) (header, error) {
	var h header

	if len(buf) < headerSize {
		return h, &MalformedBufferError{Offset: len(buf), Reason: "buffer shorter than fixed header"}
	}
	if got := binary.LittleEndian.Uint16(buf[0:2]); got != cookie {
		return h, &MalformedBufferError{Offset: 0, Reason: "cookie mismatch"}
	}
	if base := buf[2]; base != encodingBase {
		return h, &UnsupportedBaseError{Base: base}
	}

	h.sliceCount = int(buf[3])
	h.maskByteWidth = int(binary.LittleEndian.Uint16(buf[4:6]))
	h.rows = binary.LittleEndian.Uint32(buf[6:10])
	h.minValue = binary.LittleEndian.Uint64(buf[10:18])

	if h.sliceCount > maxSliceCount {
		return h, &MalformedBufferError{Offset: 3, Reason: "slice count exceeds 64"}
	}
	if h.maskByteWidth != maskBytes(h.sliceCount) {
		return h, &MalformedBufferError{Offset: 4, Reason: "mask byte width does not match slice count"}
	}

	maskEnd := headerSize + blockCount(h.rows)*h.maskByteWidth
	if maskEnd > len(buf) {
		return h, &MalformedBufferError{Offset: len(buf), Reason: "mask region overruns buffer"}
	}

	return h, nil
}

// blockCount returns the number of row blocks for a store of the given size.
func blockCount(rows uint32) int {
	return int((uint64(rows) + BlockWidth - 1) / BlockWidth)
}

// blockRows returns the number of rows the given block actually covers.
// All blocks are full except possibly the last.
func blockRows(rows uint32, block int) uint64 {
	remaining := uint64(rows) - uint64(block)*BlockWidth
	if remaining > BlockWidth {
		return BlockWidth
	}
	return remaining
}

// maskBytes returns the per-block mask width for a slice count.
func maskBytes(sliceCount int) int {
	return (sliceCount + 7) / 8
}

// sliceMask returns a mask with one bit per slice.
func sliceMask(sliceCount int) uint64 {
	if sliceCount == 0 {
		return 0
	}
	return ^uint64(0) >> (64 - sliceCount)
}

// maskWord loads a little-endian presence mask of up to eight bytes.
func maskWord(mask []byte) uint64 {
	var w uint64
	for i, b := range mask {
		w |= uint64(b) << (8 * i)
	}
	return w
}

// putMaskWord stores the low len(dst) bytes of w little-endian.
func putMaskWord(dst []byte, w uint64) {
	for i := range dst {
		dst[i] = byte(w >> (8 * i))
	}
}

// sliceCountFor returns the number of bit slices needed to represent reduced
// ordinals in [0, spread].
func sliceCountFor(spread uint64) int {
	return bits.Len64(spread)
}

// EstimateSerializedSize returns a conservative upper bound for the encoded
// size of an index holding rows ordinals in [0, maxValue]. Useful for buffer
// preallocation; actual sizes are usually far smaller because containers
// compress.
func EstimateSerializedSize(maxValue uint64, rows uint32) int {
	sliceCount := bits.Len64(maxValue)
	blocks := blockCount(rows)

	// Worst case per container: a full 8KiB bitmap plus the roaring
	// serialization preamble.
	const containerBound = 8*1024 + 16

	return headerSize + blocks*maskBytes(sliceCount) + blocks*sliceCount*containerBound
}
