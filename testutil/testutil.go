package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Uint64n returns a pseudo-random uint64 in [0, n].
func (r *RNG) Uint64n(n uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uint64nLocked(n)
}

func (r *RNG) uint64nLocked(n uint64) uint64 {
	if n == ^uint64(0) {
		return r.rand.Uint64()
	}
	return r.rand.Uint64() % (n + 1)
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UniformOrdinals generates n ordinals uniformly distributed in
// [0, maxValue]. Uniform data keeps every slice half-full, the worst case
// for container compression.
func (r *RNG) UniformOrdinals(n int, maxValue uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]uint64, n)
	for i := range n {
		out[i] = r.uint64nLocked(maxValue)
	}

	return out
}

// ZipfOrdinals generates n ordinals over distinct values with a power-law
// frequency distribution: a few values carry most of the rows, the way
// real-world columns are distributed. s must be greater than 1; s=1.5 gives
// a heavy tail.
func (r *RNG) ZipfOrdinals(n, distinct int, s float64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if distinct < 1 {
		distinct = 1
	}
	z := rand.NewZipf(r.rand, s, 1, uint64(distinct-1))

	out := make([]uint64, n)
	for i := range n {
		out[i] = z.Uint64()
	}

	return out
}

// ClusteredOrdinals generates n ordinals clustered around random centroids
// in [0, maxValue]. Clustered data produces narrow per-block spreads, the
// case where absent containers make whole slices free.
func (r *RNG) ClusteredOrdinals(n, clusters int, maxValue, spread uint64) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	centroids := make([]uint64, clusters)
	for i := range clusters {
		centroids[i] = r.uint64nLocked(maxValue)
	}

	out := make([]uint64, n)
	for i := range n {
		c := centroids[i%clusters]
		d := r.uint64nLocked(2 * spread)
		switch {
		case d <= spread:
			v := c + d
			if v < c || v > maxValue {
				v = maxValue
			}
			out[i] = v
		case c >= d-spread:
			out[i] = c - (d - spread)
		default:
			out[i] = 0
		}
	}

	return out
}

// AdversarialOrdinals generates n ordinals alternating between long constant
// runs and uniform noise segments. The runs drive containers toward run
// encoding and full-container fast paths; the noise segments break both.
func (r *RNG) AdversarialOrdinals(n int, maxValue uint64, segment int) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if segment < 1 {
		segment = 1
	}

	out := make([]uint64, n)
	constant := r.uint64nLocked(maxValue)
	for i := range n {
		if (i/segment)%2 == 0 {
			out[i] = constant
		} else {
			out[i] = r.uint64nLocked(maxValue)
		}
		if i%segment == segment-1 {
			constant = r.uint64nLocked(maxValue)
		}
	}

	return out
}

// SortedOrdinals generates n uniform ordinals in ascending order. Sorted
// columns produce maximal runs in the low slices.
func (r *RNG) SortedOrdinals(n int, maxValue uint64) []uint64 {
	out := r.UniformOrdinals(n, maxValue)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RandomContext generates a bitmap holding each row of [0, rows) with the
// given probability, for exercising context-restricted queries.
func (r *RNG) RandomContext(rows int, density float64) *roaring.Bitmap {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := roaring.New()
	for i := range rows {
		if r.rand.Float64() < density {
			out.Add(uint32(i))
		}
	}

	return out
}

// MatchLt returns the ground-truth rows with value < t by scanning values.
func MatchLt(values []uint64, t uint64) *roaring.Bitmap {
	out := roaring.New()
	for i, v := range values {
		if v < t {
			out.Add(uint32(i))
		}
	}
	return out
}

// MatchLte returns the ground-truth rows with value <= t.
func MatchLte(values []uint64, t uint64) *roaring.Bitmap {
	out := roaring.New()
	for i, v := range values {
		if v <= t {
			out.Add(uint32(i))
		}
	}
	return out
}

// MatchGt returns the ground-truth rows with value > t.
func MatchGt(values []uint64, t uint64) *roaring.Bitmap {
	out := roaring.New()
	for i, v := range values {
		if v > t {
			out.Add(uint32(i))
		}
	}
	return out
}

// MatchGte returns the ground-truth rows with value >= t.
func MatchGte(values []uint64, t uint64) *roaring.Bitmap {
	out := roaring.New()
	for i, v := range values {
		if v >= t {
			out.Add(uint32(i))
		}
	}
	return out
}

// MatchBetween returns the ground-truth rows with lo <= value <= hi.
func MatchBetween(values []uint64, lo, hi uint64) *roaring.Bitmap {
	out := roaring.New()
	for i, v := range values {
		if v >= lo && v <= hi {
			out.Add(uint32(i))
		}
	}
	return out
}
