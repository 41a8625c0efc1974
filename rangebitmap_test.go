package rangebitmap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refValues is a small column exercising every slice pattern of a 4-bit
// spread: duplicates, the minimum and maximum, and runs of nearby values.
var refValues = []uint64{10, 3, 15, 0, 0, 1, 5, 6, 2, 1, 12, 14, 3, 9, 11}

func buildFrom(t *testing.T, values []uint64, optFns ...Option) *RangeBitmap {
	t.Helper()

	var maxV uint64
	for _, v := range values {
		if v > maxV {
			maxV = v
		}
	}

	a := New(maxV, optFns...)
	for _, v := range values {
		require.NoError(t, a.Add(v))
	}

	rb, err := a.Build()
	require.NoError(t, err)

	return rb
}

func assertRows(t *testing.T, want []uint32, got *roaring.Bitmap) {
	t.Helper()
	require.Equal(t, want, got.ToArray())
}

func TestLt(t *testing.T) {
	rb := buildFrom(t, refValues)

	tests := []struct {
		name      string
		threshold uint64
		want      []uint32
	}{
		{"zero", 0, []uint32{}},
		{"one", 1, []uint32{3, 4}},
		{"three", 3, []uint32{3, 4, 5, 8, 9}},
		{"ten", 10, []uint32{1, 3, 4, 5, 6, 7, 8, 9, 12, 13}},
		{"above max", 16, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRows(t, tt.want, rb.Lt(tt.threshold))
		})
	}
}

func TestLte(t *testing.T) {
	rb := buildFrom(t, refValues)

	tests := []struct {
		name      string
		threshold uint64
		want      []uint32
	}{
		{"zero", 0, []uint32{3, 4}},
		{"three", 3, []uint32{1, 3, 4, 5, 8, 9, 12}},
		{"nine", 9, []uint32{1, 3, 4, 5, 6, 7, 8, 9, 12, 13}},
		{"fourteen", 14, []uint32{0, 1, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
		{"max", 15, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRows(t, tt.want, rb.Lte(tt.threshold))
		})
	}
}

func TestGt(t *testing.T) {
	rb := buildFrom(t, refValues)

	tests := []struct {
		name      string
		threshold uint64
		want      []uint32
	}{
		{"five", 5, []uint32{0, 2, 7, 10, 11, 13, 14}},
		{"fourteen", 14, []uint32{2}},
		{"max", 15, []uint32{}},
		{"zero", 0, []uint32{0, 1, 2, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRows(t, tt.want, rb.Gt(tt.threshold))
		})
	}
}

func TestGte(t *testing.T) {
	rb := buildFrom(t, refValues)

	tests := []struct {
		name      string
		threshold uint64
		want      []uint32
	}{
		{"zero", 0, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
		{"twelve", 12, []uint32{2, 10, 11}},
		{"max", 15, []uint32{2}},
		{"above max", 16, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRows(t, tt.want, rb.Gte(tt.threshold))
		})
	}
}

func TestBetween(t *testing.T) {
	rb := buildFrom(t, refValues)

	tests := []struct {
		name   string
		lo, hi uint64
		want   []uint32
	}{
		{"three to nine", 3, 9, []uint32{1, 6, 7, 12, 13}},
		{"six to nine", 6, 9, []uint32{7, 13}},
		{"point", 5, 5, []uint32{6}},
		{"full range", 0, 15, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}},
		{"above max", 16, 20, []uint32{}},
		{"inverted", 7, 4, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRows(t, tt.want, rb.Between(tt.lo, tt.hi))
		})
	}
}

func TestContextRestriction(t *testing.T) {
	rb := buildFrom(t, refValues)

	ctx := roaring.New()
	ctx.AddMany([]uint32{0, 1, 2, 3, 4})
	before := ctx.GetCardinality()

	assertRows(t, []uint32{1, 3, 4}, rb.LteContext(ctx, 3))
	assertRows(t, []uint32{0, 2}, rb.GtContext(ctx, 5))
	assertRows(t, []uint32{3, 4}, rb.LtContext(ctx, 3))
	assertRows(t, []uint32{0, 2}, rb.GteContext(ctx, 10))
	assertRows(t, []uint32{0, 1}, rb.BetweenContext(ctx, 3, 10))

	assert.Equal(t, before, ctx.GetCardinality(), "context must not be modified")
}

func TestContextEqualsIntersection(t *testing.T) {
	rb := buildFrom(t, refValues)

	ctx := roaring.New()
	ctx.AddMany([]uint32{0, 2, 5, 7, 9, 11, 13})

	for threshold := uint64(0); threshold <= 16; threshold++ {
		want := roaring.And(rb.Lte(threshold), ctx)
		require.True(t, want.Equals(rb.LteContext(ctx, threshold)), "threshold %d", threshold)
	}
}

func TestEmptyStore(t *testing.T) {
	a := New(100)
	rb, err := a.Build()
	require.NoError(t, err)

	assert.Zero(t, rb.Rows())
	assert.Zero(t, rb.SliceCount())
	assertRows(t, []uint32{}, rb.Lt(50))
	assertRows(t, []uint32{}, rb.Lte(50))
	assertRows(t, []uint32{}, rb.Gt(50))
	assertRows(t, []uint32{}, rb.Gte(0))
	assertRows(t, []uint32{}, rb.Between(0, 100))

	mapped, err := Map(rb.Bytes())
	require.NoError(t, err)
	assert.Zero(t, mapped.Rows())
	assertRows(t, []uint32{}, mapped.Lte(50))
}

func TestSingleValueStore(t *testing.T) {
	rb := buildFrom(t, []uint64{42, 42, 42})

	assert.Equal(t, 0, rb.SliceCount())
	assert.Equal(t, uint64(42), rb.Min())
	assertRows(t, []uint32{}, rb.Lte(41))
	assertRows(t, []uint32{0, 1, 2}, rb.Lte(42))
	assertRows(t, []uint32{0, 1, 2}, rb.Gte(42))
	assertRows(t, []uint32{}, rb.Gt(42))
	assertRows(t, []uint32{0, 1, 2}, rb.Between(42, 42))
	assertRows(t, []uint32{}, rb.Between(0, 41))
}

func TestMinReduction(t *testing.T) {
	rb := buildFrom(t, []uint64{1000, 1001, 1002, 1005})

	assert.Equal(t, uint64(1000), rb.Min())
	assert.Equal(t, 3, rb.SliceCount(), "slice width follows the spread, not the magnitude")

	assertRows(t, []uint32{}, rb.Lt(1000))
	assertRows(t, []uint32{0}, rb.Lte(1000))
	assertRows(t, []uint32{0, 1, 2}, rb.Lte(1002))
	assertRows(t, []uint32{3}, rb.Gt(1002))
	assertRows(t, []uint32{1, 2}, rb.Between(1001, 1002))
}

func TestAddValueOutOfRange(t *testing.T) {
	a := New(10)

	err := a.Add(11)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrValueOutOfRange)

	var oor *ValueOutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, uint64(11), oor.Value)
	assert.Equal(t, uint64(10), oor.MaxValue)

	require.NoError(t, a.Add(10))
	assert.Equal(t, 1, a.Len())
}

func TestAddAfterSeal(t *testing.T) {
	a := New(10)
	require.NoError(t, a.Add(5))

	_, err := a.Build()
	require.NoError(t, err)

	require.ErrorIs(t, a.Add(6), ErrAppendAfterSeal)

	a.Reset()
	require.NoError(t, a.Add(6))
	assert.Equal(t, 1, a.Len())

	rb, err := a.Build()
	require.NoError(t, err)
	assertRows(t, []uint32{0}, rb.Lte(6))
}

func TestBuildIdempotent(t *testing.T) {
	a := New(10)
	require.NoError(t, a.Add(5))

	first, err := a.Build()
	require.NoError(t, err)

	second, err := a.Build()
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestRoundTrip(t *testing.T) {
	rb := buildFrom(t, refValues)

	mapped, err := Map(rb.Bytes())
	require.NoError(t, err)

	assert.Equal(t, rb.Rows(), mapped.Rows())
	assert.Equal(t, rb.Min(), mapped.Min())
	assert.Equal(t, rb.SliceCount(), mapped.SliceCount())

	for threshold := uint64(0); threshold <= 16; threshold++ {
		require.True(t, rb.Lte(threshold).Equals(mapped.Lte(threshold)), "lte %d", threshold)
		require.True(t, rb.Gt(threshold).Equals(mapped.Gt(threshold)), "gt %d", threshold)
	}
}

func TestWriteTo(t *testing.T) {
	rb := buildFrom(t, refValues)

	var buf bytes.Buffer
	n, err := rb.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(rb.Bytes())), n)
	assert.Equal(t, rb.Bytes(), buf.Bytes())
	assert.Equal(t, uint64(buf.Len()), rb.SerializedSizeInBytes())
}

func TestAppenderWriteTo(t *testing.T) {
	a := New(15)
	for _, v := range refValues {
		require.NoError(t, a.Add(v))
	}

	var buf bytes.Buffer
	_, err := a.WriteTo(&buf)
	require.NoError(t, err)

	mapped, err := Map(buf.Bytes())
	require.NoError(t, err)
	assertRows(t, []uint32{3, 4, 5, 8, 9}, mapped.Lt(3))

	size, err := a.SerializedSizeInBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(buf.Len()), size)
}

func TestMapMalformed(t *testing.T) {
	valid := buildFrom(t, refValues).Bytes()

	corrupt := func(mutate func([]byte)) []byte {
		buf := append([]byte(nil), valid...)
		mutate(buf)
		return buf
	}

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"nil", nil, ErrMalformedBuffer},
		{"short", valid[:10], ErrMalformedBuffer},
		{"bad cookie", corrupt(func(b []byte) { b[0] = 0xFF }), ErrMalformedBuffer},
		{"bad base", corrupt(func(b []byte) { b[2] = 3 }), ErrUnsupportedBase},
		{"slice count too large", corrupt(func(b []byte) { b[3] = 65 }), ErrMalformedBuffer},
		{"mask width mismatch", corrupt(func(b []byte) { b[4] = 9 }), ErrMalformedBuffer},
		{"mask bit beyond slices", corrupt(func(b []byte) { b[headerSize] |= 1 << 5 }), ErrMalformedBuffer},
		{"truncated container", valid[:len(valid)-1], ErrMalformedBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Map(tt.buf)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMapMalformedDetail(t *testing.T) {
	_, err := Map([]byte{0x00})

	var malformed *MalformedBufferError
	require.ErrorAs(t, err, &malformed)
	assert.NotEmpty(t, malformed.Reason)
}

func TestMapBadBaseDetail(t *testing.T) {
	buf := append([]byte(nil), buildFrom(t, refValues).Bytes()...)
	buf[2] = 7

	_, err := Map(buf)

	var unsupported *UnsupportedBaseError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, uint8(7), unsupported.Base)
}

func TestMapToleratesTrailingBytes(t *testing.T) {
	rb := buildFrom(t, refValues)

	padded := append(append([]byte(nil), rb.Bytes()...), 0xDE, 0xAD, 0xBE, 0xEF)
	mapped, err := Map(padded)
	require.NoError(t, err)

	assertRows(t, []uint32{3, 4, 5, 8, 9}, mapped.Lt(3))
}

func TestMaxAccessor(t *testing.T) {
	rb := buildFrom(t, refValues)

	assert.Equal(t, uint64(0), rb.Min())
	assert.Equal(t, uint64(15), rb.Max())
	assert.Equal(t, 4, rb.SliceCount())
	assert.Equal(t, uint64(len(refValues)), rb.Rows())
}

func TestStats(t *testing.T) {
	rb := buildFrom(t, refValues)
	st := rb.Stats()

	assert.Equal(t, uint64(15), st.Rows)
	assert.Equal(t, 1, st.Blocks)
	assert.Equal(t, 4, st.SliceCount)
	assert.Equal(t, 4, st.Containers)
	assert.Equal(t, uint64(len(rb.Bytes())), st.SizeInBytes)
	assert.Greater(t, st.SetBits, uint64(0))
	assert.InDelta(t, 1.0, st.Density(), 0.001)
	assert.NotEmpty(t, st.String())
}

func TestEstimateSerializedSize(t *testing.T) {
	rb := buildFrom(t, refValues)

	estimate := EstimateSerializedSize(15, uint32(len(refValues)))
	assert.GreaterOrEqual(t, uint64(estimate), rb.SerializedSizeInBytes())
}

func TestMetricsCollection(t *testing.T) {
	mc := &BasicMetricsCollector{}

	a := New(15, WithMetricsCollector(mc))
	for _, v := range refValues {
		require.NoError(t, a.Add(v))
	}
	rb, err := a.Build()
	require.NoError(t, err)

	rb.Lte(5)
	rb.Gt(5)
	rb.Between(3, 9)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.BuildCount)
	assert.Equal(t, int64(15), stats.BuildRows)
	assert.Equal(t, int64(3), stats.QueryCount)
	assert.Greater(t, stats.BlocksScanned, int64(0))
	assert.Equal(t, int64(1), stats.MapCount, "Build maps its own buffer")
}

func TestTooManyRowsSentinel(t *testing.T) {
	// The 2^32-1 cap cannot be exercised directly; check the sentinel wiring.
	err := ErrTooManyRows
	assert.True(t, errors.Is(err, ErrTooManyRows))
}

func TestRunOptimizeDisabled(t *testing.T) {
	plain := buildFrom(t, refValues, WithRunOptimize(false))
	optimized := buildFrom(t, refValues, WithRunOptimize(true))

	for threshold := uint64(0); threshold <= 16; threshold++ {
		require.True(t, plain.Lte(threshold).Equals(optimized.Lte(threshold)), "lte %d", threshold)
	}
}

func TestCapacityHint(t *testing.T) {
	a := New(15, WithCapacityHint(len(refValues)))
	for _, v := range refValues {
		require.NoError(t, a.Add(v))
	}

	rb, err := a.Build()
	require.NoError(t, err)
	assertRows(t, []uint32{1, 6, 7, 12, 13}, rb.Between(3, 9))
}
