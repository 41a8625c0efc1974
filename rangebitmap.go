package rangebitmap

import (
	"context"
	"fmt"
	"io"
	"math/bits"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// RangeBitmap is an immutable bit-sliced range index over a column of u64
// ordinals. It answers Lt, Lte, Gt, Gte and Between with a roaring bitmap of
// matching row positions.
//
// A RangeBitmap is created by Appender.Build or by Map over a serialized
// buffer. All methods are safe for concurrent use.
type RangeBitmap struct {
	buf  []byte
	hdr  header
	mask uint64

	blocks     int
	maskWords  []uint64
	offsets    []int
	containers []*roaring.Bitmap

	eval evaluator
	opts options
}

// Map interprets buf as a serialized RangeBitmap without copying it. The
// containers inside the returned store are views into buf; the caller must
// keep buf alive and unmodified for the lifetime of the store.
//
// Map validates the header and walks every container, so a malformed buffer
// fails here rather than at query time. Trailing bytes after the last
// container are ignored. Errors unwrap to ErrMalformedBuffer or
// ErrUnsupportedBase.
func Map(buf []byte, optFns ...Option) (*RangeBitmap, error) {
	o := applyOptions(optFns)

	rb, err := mapBuffer(buf, o)
	o.metricsCollector.RecordMap(len(buf), err)
	o.logger.LogMap(context.Background(), len(buf), err)

	if err != nil {
		return nil, err
	}

	return rb, nil
}

func mapBuffer(buf []byte, o options) (*RangeBitmap, error) {
	hdr, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	rb := &RangeBitmap{
		buf:    buf,
		hdr:    hdr,
		mask:   sliceMask(hdr.sliceCount),
		blocks: blockCount(hdr.rows),
		opts:   o,
	}

	rb.maskWords = make([]uint64, rb.blocks)
	rb.offsets = make([]int, rb.blocks+1)

	total := 0
	maskArea := buf[headerSize:]
	for b := 0; b < rb.blocks; b++ {
		w := maskWord(maskArea[b*hdr.maskByteWidth : (b+1)*hdr.maskByteWidth])
		if w&^rb.mask != 0 {
			return nil, &MalformedBufferError{
				Offset: headerSize + b*hdr.maskByteWidth,
				Reason: fmt.Sprintf("block %d: mask bit beyond slice count %d", b, hdr.sliceCount),
			}
		}
		rb.maskWords[b] = w
		rb.offsets[b] = total
		total += bits.OnesCount64(w)
	}
	rb.offsets[rb.blocks] = total

	rb.containers = make([]*roaring.Bitmap, 0, total)

	pos := headerSize + rb.blocks*hdr.maskByteWidth
	for b := 0; b < rb.blocks; b++ {
		rowsInBlock := blockRows(hdr.rows, b)
		w := rb.maskWords[b]
		for w != 0 {
			i := bits.TrailingZeros64(w)
			w &= w - 1

			bm := roaring.New()
			n, err := bm.FromBuffer(buf[pos:])
			if err != nil {
				return nil, &MalformedBufferError{
					Offset: pos,
					Reason: fmt.Sprintf("block %d slice %d: %v", b, i, err),
				}
			}
			if !bm.IsEmpty() && uint64(bm.Maximum()) >= rowsInBlock {
				return nil, &MalformedBufferError{
					Offset: pos,
					Reason: fmt.Sprintf("block %d slice %d: offset %d outside %d block rows", b, i, bm.Maximum(), rowsInBlock),
				}
			}

			rb.containers = append(rb.containers, bm)
			pos += int(n)
		}
	}

	switch o.strategy {
	case StrategyVertical:
		rb.eval = &verticalEvaluator{rb: rb}
	default:
		rb.eval = &horizontalEvaluator{rb: rb}
	}

	return rb, nil
}

// container returns the bitmap stored for (block, slice), or nil when the
// slice has no rows in that block.
func (rb *RangeBitmap) container(block, slice int) *roaring.Bitmap {
	w := rb.maskWords[block]
	bit := uint64(1) << slice
	if w&bit == 0 {
		return nil
	}

	return rb.containers[rb.offsets[block]+bits.OnesCount64(w&(bit-1))]
}

// allRows returns every row position, restricted to ctx when non-nil.
func (rb *RangeBitmap) allRows(ctx *roaring.Bitmap) *roaring.Bitmap {
	out := roaring.New()
	if rb.hdr.rows == 0 {
		return out
	}

	out.AddRange(0, uint64(rb.hdr.rows))
	if ctx != nil {
		out.And(ctx)
	}

	return out
}

// Lt returns the rows whose value is strictly below threshold.
func (rb *RangeBitmap) Lt(threshold uint64) *roaring.Bitmap {
	return rb.LtContext(nil, threshold)
}

// LtContext is Lt restricted to the rows present in ctx. The result is a new
// bitmap; ctx is never modified. A nil ctx means no restriction.
func (rb *RangeBitmap) LtContext(ctx *roaring.Bitmap, threshold uint64) *roaring.Bitmap {
	start := time.Now()

	var out *roaring.Bitmap
	if threshold == 0 {
		out = roaring.New()
	} else {
		out = rb.eval.lte(ctx, threshold-1, false)
	}

	rb.record("lt", out, start)

	return out
}

// Lte returns the rows whose value is at most threshold.
func (rb *RangeBitmap) Lte(threshold uint64) *roaring.Bitmap {
	return rb.LteContext(nil, threshold)
}

// LteContext is Lte restricted to the rows present in ctx.
func (rb *RangeBitmap) LteContext(ctx *roaring.Bitmap, threshold uint64) *roaring.Bitmap {
	start := time.Now()
	out := rb.eval.lte(ctx, threshold, false)
	rb.record("lte", out, start)

	return out
}

// Gt returns the rows whose value is strictly above threshold.
func (rb *RangeBitmap) Gt(threshold uint64) *roaring.Bitmap {
	return rb.GtContext(nil, threshold)
}

// GtContext is Gt restricted to the rows present in ctx.
func (rb *RangeBitmap) GtContext(ctx *roaring.Bitmap, threshold uint64) *roaring.Bitmap {
	start := time.Now()
	out := rb.eval.lte(ctx, threshold, true)
	rb.record("gt", out, start)

	return out
}

// Gte returns the rows whose value is at least threshold.
func (rb *RangeBitmap) Gte(threshold uint64) *roaring.Bitmap {
	return rb.GteContext(nil, threshold)
}

// GteContext is Gte restricted to the rows present in ctx.
func (rb *RangeBitmap) GteContext(ctx *roaring.Bitmap, threshold uint64) *roaring.Bitmap {
	start := time.Now()

	var out *roaring.Bitmap
	if threshold == 0 {
		out = rb.allRows(ctx)
	} else {
		out = rb.eval.lte(ctx, threshold-1, true)
	}

	rb.record("gte", out, start)

	return out
}

// Between returns the rows whose value lies in [lo, hi], both ends
// inclusive. lo > hi yields the empty bitmap.
func (rb *RangeBitmap) Between(lo, hi uint64) *roaring.Bitmap {
	return rb.BetweenContext(nil, lo, hi)
}

// BetweenContext is Between restricted to the rows present in ctx.
func (rb *RangeBitmap) BetweenContext(ctx *roaring.Bitmap, lo, hi uint64) *roaring.Bitmap {
	start := time.Now()

	var out *roaring.Bitmap
	if lo > hi {
		out = roaring.New()
	} else {
		out = rb.eval.between(ctx, lo, hi)
	}

	rb.record("between", out, start)

	return out
}

func (rb *RangeBitmap) record(op string, out *roaring.Bitmap, start time.Time) {
	elapsed := time.Since(start)
	matches := out.GetCardinality()
	rb.opts.metricsCollector.RecordQuery(op, matches, elapsed)
	rb.opts.logger.LogQuery(context.Background(), op, matches, elapsed)
}

// Rows returns the number of rows in the store.
func (rb *RangeBitmap) Rows() uint64 {
	return uint64(rb.hdr.rows)
}

// Min returns the construction minimum: the smallest ordinal that was
// appended. Thresholds below it match nothing.
func (rb *RangeBitmap) Min() uint64 {
	return rb.hdr.minValue
}

// Max returns the top of the encoded domain, Min plus the slice mask. Every
// appended ordinal is at most Max; thresholds at or above it match all rows.
func (rb *RangeBitmap) Max() uint64 {
	return rb.hdr.minValue + rb.mask
}

// SliceCount returns the number of bit slices, ceil(log2(spread+1)) of the
// ordinal spread observed at build time.
func (rb *RangeBitmap) SliceCount() int {
	return rb.hdr.sliceCount
}

// Bytes returns the serialized form backing this store. The slice aliases
// internal state and must not be modified.
func (rb *RangeBitmap) Bytes() []byte {
	return rb.buf
}

// SerializedSizeInBytes returns the exact size of the serialized form.
func (rb *RangeBitmap) SerializedSizeInBytes() uint64 {
	return uint64(len(rb.buf))
}

// WriteTo writes the serialized form to w.
func (rb *RangeBitmap) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(rb.buf)
	return int64(n), err
}
