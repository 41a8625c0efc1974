package rangebitmap

import (
	"math/bits"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// verticalEvaluator walks slices over the whole row space instead of block
// by block. Each full-column slice bitmap is assembled on first use and
// cached. No per-block fast-forwards: every step is a plain bitmap
// operation, which makes this strategy a good differential oracle for the
// horizontal one and a reasonable choice for stores spanning few blocks.
type verticalEvaluator struct {
	rb *RangeBitmap

	mu     sync.Mutex
	slices []*roaring.Bitmap
}

// slice returns the full-column bitmap of slice i, rows across all blocks
// shifted to global positions.
func (e *verticalEvaluator) slice(i int) *roaring.Bitmap {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.slices == nil {
		e.slices = make([]*roaring.Bitmap, e.rb.hdr.sliceCount)
	}

	if e.slices[i] == nil {
		bm := roaring.New()
		for b := 0; b < e.rb.blocks; b++ {
			if c := e.rb.container(b, i); c != nil {
				bm.Or(roaring.AddOffset(c, uint32(uint64(b)*BlockWidth)))
			}
		}
		e.slices[i] = bm
	}

	return e.slices[i]
}

func (e *verticalEvaluator) lte(ctx *roaring.Bitmap, threshold uint64, invert bool) *roaring.Bitmap {
	rb := e.rb
	if rb.hdr.rows == 0 {
		return roaring.New()
	}

	if threshold < rb.hdr.minValue {
		if invert {
			return rb.allRows(ctx)
		}
		return roaring.New()
	}

	rt := threshold - rb.hdr.minValue
	if rt >= rb.mask {
		if invert {
			return roaring.New()
		}
		return rb.allRows(ctx)
	}

	ct := ^rt & rb.mask

	state := roaring.New()
	state.AddRange(0, uint64(rb.hdr.rows))

	for i := bits.TrailingZeros64(ct); i < rb.hdr.sliceCount; i++ {
		if ct&(1<<uint(i)) != 0 {
			state.And(e.slice(i))
		} else {
			state.Or(e.slice(i))
		}
	}

	if invert {
		state = roaring.Flip(state, 0, uint64(rb.hdr.rows))
	}
	if ctx != nil {
		state.And(ctx)
	}

	rb.opts.metricsCollector.RecordBlocks(rb.blocks, 0)

	return state
}

func (e *verticalEvaluator) between(ctx *roaring.Bitmap, lo, hi uint64) *roaring.Bitmap {
	out := e.lte(ctx, hi, false)
	if lo == 0 {
		return out
	}

	out.AndNot(e.lte(ctx, lo-1, false))

	return out
}
