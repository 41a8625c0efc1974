package rangebitmap

import (
	"math/bits"
	"runtime"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
)

// evaluator answers threshold queries in the reduced ordinal domain. lte
// with invert computes the complement within [0, rows), which yields Gt and
// Gte without a second pass.
type evaluator interface {
	lte(ctx *roaring.Bitmap, threshold uint64, invert bool) *roaring.Bitmap
	between(ctx *roaring.Bitmap, lo, hi uint64) *roaring.Bitmap
}

// blockState tracks the candidate rows of one block while walking slices.
// The zero value means "all rows". Containers are borrowed until the first
// mutating step; borrowed bitmaps are never written to.
type blockState struct {
	bm    *roaring.Bitmap
	owned bool
	empty bool
}

func (s *blockState) isFull() bool {
	return s.bm == nil && !s.empty
}

func (s *blockState) isEmpty() bool {
	return s.empty || (s.bm != nil && s.bm.IsEmpty())
}

// intersect narrows the state by a slice container. A nil container empties
// the state; a full container leaves it untouched.
func (s *blockState) intersect(c *roaring.Bitmap, full bool) {
	switch {
	case s.empty:
	case c == nil:
		s.bm, s.owned, s.empty = nil, false, true
	case full:
	case s.bm == nil:
		s.bm, s.owned = c, false
	case s.owned:
		s.bm.And(c)
	default:
		s.bm = roaring.And(s.bm, c)
		s.owned = true
	}
}

// union widens the state by a slice container. A nil container is a no-op; a
// full container fills the state.
func (s *blockState) union(c *roaring.Bitmap, full bool) {
	switch {
	case c == nil:
	case s.isFull():
	case full:
		s.bm, s.owned, s.empty = nil, false, false
	case s.empty:
		s.bm, s.owned, s.empty = c, false, false
	case s.owned:
		s.bm.Or(c)
	default:
		s.bm = roaring.Or(s.bm, c)
		s.owned = true
	}
}

// invertState complements the state within [0, rowsInBlock).
func invertState(s blockState, rowsInBlock uint64) blockState {
	switch {
	case s.isFull():
		return blockState{empty: true}
	case s.isEmpty():
		return blockState{}
	default:
		return blockState{bm: roaring.Flip(s.bm, 0, rowsInBlock), owned: true}
	}
}

// subtractStates computes hi AndNot lo, the rows inside the upper threshold
// but outside the lower one.
func subtractStates(hi, lo blockState, rowsInBlock uint64) blockState {
	switch {
	case hi.isEmpty() || lo.isFull():
		return blockState{empty: true}
	case lo.isEmpty():
		return hi
	case hi.isFull():
		return blockState{bm: roaring.Flip(lo.bm, 0, rowsInBlock), owned: true}
	default:
		return blockState{bm: roaring.AndNot(hi.bm, lo.bm), owned: true}
	}
}

// horizontalEvaluator walks blocks one at a time, keeping per-block state
// and skipping work through absent and full containers. It is the default
// strategy.
type horizontalEvaluator struct {
	rb *RangeBitmap
}

func (e *horizontalEvaluator) lte(ctx *roaring.Bitmap, threshold uint64, invert bool) *roaring.Bitmap {
	rb := e.rb
	if rb.hdr.rows == 0 {
		return roaring.New()
	}

	if threshold < rb.hdr.minValue {
		rb.opts.metricsCollector.RecordBlocks(0, rb.blocks)
		if invert {
			return rb.allRows(ctx)
		}
		return roaring.New()
	}

	rt := threshold - rb.hdr.minValue
	if rt >= rb.mask {
		rb.opts.metricsCollector.RecordBlocks(0, rb.blocks)
		if invert {
			return roaring.New()
		}
		return rb.allRows(ctx)
	}

	ct := ^rt & rb.mask

	return e.run(ctx, func(block int) *roaring.Bitmap {
		s := e.lteBlock(block, ct)
		return e.finalize(s, invert, block, ctx)
	})
}

func (e *horizontalEvaluator) between(ctx *roaring.Bitmap, lo, hi uint64) *roaring.Bitmap {
	rb := e.rb
	if rb.hdr.rows == 0 {
		return roaring.New()
	}

	if hi < rb.hdr.minValue {
		rb.opts.metricsCollector.RecordBlocks(0, rb.blocks)
		return roaring.New()
	}

	if lo <= rb.hdr.minValue {
		return e.lte(ctx, hi, false)
	}

	loRed := lo - rb.hdr.minValue
	if loRed > rb.mask {
		rb.opts.metricsCollector.RecordBlocks(0, rb.blocks)
		return roaring.New()
	}

	rtHi := hi - rb.hdr.minValue
	if rtHi >= rb.mask {
		return e.lte(ctx, lo-1, true)
	}

	ctHi := ^rtHi & rb.mask
	ctLo := ^(loRed - 1) & rb.mask

	return e.run(ctx, func(block int) *roaring.Bitmap {
		s := e.betweenBlock(block, ctHi, ctLo)
		return e.finalize(s, false, block, ctx)
	})
}

// lteBlock evaluates one block against the complemented threshold ct.
// Starting from all rows, each slice with a set ct bit intersects the state
// and each clear bit unions it; slices below the lowest set bit are skipped
// because a union into a full state changes nothing.
func (e *horizontalEvaluator) lteBlock(block int, ct uint64) blockState {
	rb := e.rb
	rowsInBlock := blockRows(rb.hdr.rows, block)
	clearBits := ^ct & rb.mask

	var s blockState
	for i := bits.TrailingZeros64(ct); i < rb.hdr.sliceCount; i++ {
		if ct&(1<<uint(i)) != 0 {
			if s.isEmpty() {
				continue
			}
			c := rb.container(block, i)
			s.intersect(c, c != nil && c.GetCardinality() == rowsInBlock)
			if s.isEmpty() && clearBits>>uint(i+1) == 0 {
				break
			}
		} else {
			if s.isFull() {
				continue
			}
			c := rb.container(block, i)
			if c == nil {
				continue
			}
			s.union(c, c.GetCardinality() == rowsInBlock)
		}
	}

	return s
}

// betweenBlock runs the dual-threshold walk for one block, sharing container
// fetches between the upper and lower state. The result is hi AndNot lo.
func (e *horizontalEvaluator) betweenBlock(block int, ctHi, ctLo uint64) blockState {
	rb := e.rb
	rowsInBlock := blockRows(rb.hdr.rows, block)
	clearHi := ^ctHi & rb.mask

	var hi, lo blockState

	start := bits.TrailingZeros64(ctHi)
	if tz := bits.TrailingZeros64(ctLo); tz < start {
		start = tz
	}

	for i := start; i < rb.hdr.sliceCount; i++ {
		if hi.isEmpty() && clearHi>>uint(i) == 0 {
			return blockState{empty: true}
		}
		if lo.isFull() && ctLo>>uint(i) == 0 {
			return blockState{empty: true}
		}

		hiSet := ctHi&(1<<uint(i)) != 0
		loSet := ctLo&(1<<uint(i)) != 0

		skipHi := (hiSet && hi.isEmpty()) || (!hiSet && hi.isFull())
		skipLo := (loSet && lo.isEmpty()) || (!loSet && lo.isFull())
		if skipHi && skipLo {
			continue
		}

		c := rb.container(block, i)
		full := c != nil && c.GetCardinality() == rowsInBlock

		if !skipHi {
			if hiSet {
				hi.intersect(c, full)
			} else {
				hi.union(c, full)
			}
		}
		if !skipLo {
			if loSet {
				lo.intersect(c, full)
			} else {
				lo.union(c, full)
			}
		}
	}

	return subtractStates(hi, lo, rowsInBlock)
}

// finalize turns a block state into the block's contribution in global row
// space, applying inversion and the context restriction.
func (e *horizontalEvaluator) finalize(s blockState, invert bool, block int, ctx *roaring.Bitmap) *roaring.Bitmap {
	rb := e.rb
	rowsInBlock := blockRows(rb.hdr.rows, block)

	if invert {
		s = invertState(s, rowsInBlock)
	}

	if s.isEmpty() {
		return nil
	}

	base := uint64(block) * BlockWidth

	if s.isFull() {
		out := roaring.New()
		out.AddRange(base, base+rowsInBlock)
		if ctx != nil {
			out.And(ctx)
		}
		return out
	}

	out := roaring.AddOffset(s.bm, uint32(base))
	if ctx != nil {
		out.And(ctx)
	}
	return out
}

// run evaluates evalBlock over every block, pruning blocks where ctx has no
// rows and fanning out across workers when parallelism is configured. Block
// results merge in ascending order, so output is deterministic.
func (e *horizontalEvaluator) run(ctx *roaring.Bitmap, evalBlock func(block int) *roaring.Bitmap) *roaring.Bitmap {
	rb := e.rb
	blocks := rb.blocks

	var present []bool
	if ctx != nil {
		present = make([]bool, blocks)
		it := ctx.Iterator()
		for it.HasNext() {
			b := int(it.Next() >> 16)
			if b >= blocks {
				break
			}
			present[b] = true
			if b+1 >= blocks {
				break
			}
			it.AdvanceIfNeeded(uint32(b+1) << 16)
		}
	}

	results := make([]*roaring.Bitmap, blocks)
	scanned, skipped := 0, 0

	workers := e.workerCount()
	if workers > blocks {
		workers = blocks
	}

	if workers <= 1 {
		for b := 0; b < blocks; b++ {
			if present != nil && !present[b] {
				skipped++
				continue
			}
			results[b] = evalBlock(b)
			scanned++
		}
	} else {
		var scannedN, skippedN atomic.Int64
		chunk := (blocks + workers - 1) / workers

		g := new(errgroup.Group)
		g.SetLimit(workers)
		for first := 0; first < blocks; first += chunk {
			last := first + chunk
			if last > blocks {
				last = blocks
			}
			g.Go(func() error {
				n, sk := 0, 0
				for b := first; b < last; b++ {
					if present != nil && !present[b] {
						sk++
						continue
					}
					results[b] = evalBlock(b)
					n++
				}
				scannedN.Add(int64(n))
				skippedN.Add(int64(sk))
				return nil
			})
		}
		_ = g.Wait()

		scanned, skipped = int(scannedN.Load()), int(skippedN.Load())
	}

	out := roaring.New()
	for _, r := range results {
		if r != nil {
			out.Or(r)
		}
	}

	rb.opts.metricsCollector.RecordBlocks(scanned, skipped)

	return out
}

func (e *horizontalEvaluator) workerCount() int {
	n := e.rb.opts.parallelism
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return n
}
