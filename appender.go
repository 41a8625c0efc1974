package rangebitmap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/bits"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rangebitmap/resource"
)

const defaultAppenderCapacity = 1024

// Appender accumulates ordinals row by row and builds an immutable
// RangeBitmap from them. It is single-writer: methods must not be called
// concurrently. After Build the appender is sealed; Reset returns it to the
// building state.
type Appender struct {
	maxValue uint64
	opts     options

	values   []uint64
	min, max uint64

	reserved int64
	built    *RangeBitmap
}

// New creates an appender for ordinals in [0, maxValue]. The bound is
// declarative: slice width is derived from the observed spread at Build time,
// not from maxValue alone.
func New(maxValue uint64, optFns ...Option) *Appender {
	return &Appender{
		maxValue: maxValue,
		opts:     applyOptions(optFns),
	}
}

// Add appends one ordinal at the next row position.
//
// It returns ErrValueOutOfRange if the ordinal exceeds the declared bound,
// ErrAppendAfterSeal once Build has been called, and ErrTooManyRows past the
// 2^32-1 row capacity. With a resource controller configured, Add fails with
// resource.ErrMemoryLimit when the value buffer cannot grow within budget.
func (a *Appender) Add(ordinal uint64) error {
	if a.built != nil {
		return ErrAppendAfterSeal
	}

	if ordinal > a.maxValue {
		return &ValueOutOfRangeError{Value: ordinal, MaxValue: a.maxValue}
	}

	if uint64(len(a.values)) >= MaxRows {
		return ErrTooManyRows
	}

	if err := a.grow(1); err != nil {
		return err
	}

	if len(a.values) == 0 || ordinal < a.min {
		a.min = ordinal
	}

	if len(a.values) == 0 || ordinal > a.max {
		a.max = ordinal
	}

	a.values = append(a.values, ordinal)

	return nil
}

// grow ensures capacity for n more values, charging the capacity delta
// against the resource controller so ingest sees backpressure before the
// buffer allocates.
func (a *Appender) grow(n int) error {
	need := len(a.values) + n
	if need <= cap(a.values) {
		return nil
	}

	newCap := cap(a.values) * 2
	if newCap == 0 {
		newCap = a.opts.capacityHint
		if newCap <= 0 {
			newCap = defaultAppenderCapacity
		}
	}

	for newCap < need {
		newCap *= 2
	}

	delta := int64(newCap-cap(a.values)) * 8
	if !a.opts.controller.TryAcquireMemory(delta) {
		return fmt.Errorf("appender buffer %d bytes: %w", delta, resource.ErrMemoryLimit)
	}

	a.reserved += delta

	next := make([]uint64, len(a.values), newCap)
	copy(next, a.values)
	a.values = next

	return nil
}

// Len returns the number of appended rows.
func (a *Appender) Len() int {
	return len(a.values)
}

// Min returns the smallest appended ordinal, or zero before any Add.
func (a *Appender) Min() uint64 {
	return a.min
}

// Max returns the largest appended ordinal, or zero before any Add.
func (a *Appender) Max() uint64 {
	return a.max
}

// Build seals the appender and materializes the immutable store. The store
// is produced by serializing into the canonical byte layout and mapping the
// resulting buffer, so a freshly built store and a stored-then-mapped store
// run the same code path.
//
// Build is idempotent: subsequent calls return the same store. The value
// buffer is surrendered on success; Reset starts a fresh round.
func (a *Appender) Build() (*RangeBitmap, error) {
	if a.built != nil {
		return a.built, nil
	}

	start := time.Now()
	rows := uint64(len(a.values))

	buf, err := a.serialize()
	if err != nil {
		a.opts.metricsCollector.RecordBuild(rows, time.Since(start), err)
		return nil, err
	}

	rb, err := mapBuffer(buf, a.opts)
	a.opts.metricsCollector.RecordMap(len(buf), err)
	if err != nil {
		a.opts.metricsCollector.RecordBuild(rows, time.Since(start), err)
		return nil, fmt.Errorf("map built buffer: %w", err)
	}

	a.built = rb
	a.values = nil
	a.opts.controller.ReleaseMemory(a.reserved)
	a.reserved = 0

	elapsed := time.Since(start)
	a.opts.metricsCollector.RecordBuild(rows, elapsed, nil)
	a.opts.logger.LogBuild(context.Background(), rows, rb.SliceCount(), len(buf), elapsed, nil)

	return rb, nil
}

// serialize encodes the buffered rows into the canonical layout: header,
// block-major presence masks, then containers block-major slice-minor.
func (a *Appender) serialize() ([]byte, error) {
	rows := uint32(len(a.values))
	if rows == 0 {
		buf := make([]byte, headerSize)
		header{}.encode(buf)
		return buf, nil
	}

	sliceCount := sliceCountFor(a.max - a.min)
	mask := sliceMask(sliceCount)
	mbw := maskBytes(sliceCount)
	blocks := blockCount(rows)

	masks := make([]byte, blocks*mbw)

	var containers bytes.Buffer
	var scratch [maxSliceCount][]uint32

	bm := roaring.New()

	for block := 0; block < blocks; block++ {
		blockStart := block * BlockWidth
		blockEnd := blockStart + int(blockRows(rows, block))

		for i := 0; i < sliceCount; i++ {
			scratch[i] = scratch[i][:0]
		}

		for row := blockStart; row < blockEnd; row++ {
			c := ^(a.values[row] - a.min) & mask
			offset := uint32(row - blockStart)
			for c != 0 {
				i := bits.TrailingZeros64(c)
				scratch[i] = append(scratch[i], offset)
				c &= c - 1
			}
		}

		var w uint64
		for i := 0; i < sliceCount; i++ {
			if len(scratch[i]) == 0 {
				continue
			}

			w |= 1 << i

			bm.Clear()
			bm.AddMany(scratch[i])

			if a.opts.runOptimize {
				bm.RunOptimize()
			}

			if _, err := bm.WriteTo(&containers); err != nil {
				return nil, fmt.Errorf("serialize block %d slice %d: %w", block, i, err)
			}
		}

		putMaskWord(masks[block*mbw:(block+1)*mbw], w)
	}

	buf := make([]byte, headerSize, headerSize+len(masks)+containers.Len())
	header{
		sliceCount:    sliceCount,
		maskByteWidth: mbw,
		rows:          rows,
		minValue:      a.min,
	}.encode(buf)

	buf = append(buf, masks...)
	buf = append(buf, containers.Bytes()...)

	return buf, nil
}

// SerializedSizeInBytes returns the exact encoded size of the store,
// building it first if necessary.
func (a *Appender) SerializedSizeInBytes() (uint64, error) {
	rb, err := a.Build()
	if err != nil {
		return 0, err
	}

	return rb.SerializedSizeInBytes(), nil
}

// WriteTo builds the store if necessary and writes its canonical encoding
// to w.
func (a *Appender) WriteTo(w io.Writer) (int64, error) {
	rb, err := a.Build()
	if err != nil {
		return 0, err
	}

	return rb.WriteTo(w)
}

// Reset returns the appender to the building state. A value buffer still
// held from an unsealed round is retained for reuse; after a Build the next
// round starts with a fresh buffer.
func (a *Appender) Reset() {
	if a.values != nil {
		a.values = a.values[:0]
	}

	a.min, a.max = 0, 0
	a.built = nil
}
