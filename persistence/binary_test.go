package persistence

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rangebitmap "github.com/hupe1980/rangebitmap"
	"github.com/hupe1980/rangebitmap/testutil"
)

func buildIndex(t *testing.T, values []uint64, maxValue uint64) *rangebitmap.RangeBitmap {
	t.Helper()

	app := rangebitmap.New(maxValue)
	for _, v := range values {
		require.NoError(t, app.Add(v))
	}

	rb, err := app.Build()
	require.NoError(t, err)

	return rb
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	rng := testutil.NewRNG(4711)
	values := rng.UniformOrdinals(20000, 1<<24)
	rb := buildIndex(t, values, 1<<24)

	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(compression.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Save(context.Background(), &buf, rb, WithCompression(compression)))

			loaded, err := Load(context.Background(), &buf)
			require.NoError(t, err)

			assert.Equal(t, rb.Rows(), loaded.Rows())
			assert.Equal(t, rb.SliceCount(), loaded.SliceCount())

			for _, threshold := range []uint64{0, 1, 1 << 12, 1 << 20, 1 << 24} {
				assert.True(t, rb.Lte(threshold).Equals(loaded.Lte(threshold)), "threshold %d", threshold)
			}
		})
	}
}

func TestSaveLoad_EmptyIndex(t *testing.T) {
	rb := buildIndex(t, nil, 100)

	var buf bytes.Buffer
	require.NoError(t, Save(context.Background(), &buf, rb, WithCompression(CompressionZSTD)))

	loaded, err := Load(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), loaded.Rows())
	assert.True(t, loaded.Lte(50).IsEmpty())
}

func TestLoad_InvalidMagic(t *testing.T) {
	rb := buildIndex(t, []uint64{1, 2, 3}, 10)

	var buf bytes.Buffer
	require.NoError(t, Save(context.Background(), &buf, rb))

	raw := buf.Bytes()
	raw[0] ^= 0xFF

	_, err := Load(context.Background(), bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestLoad_InvalidVersion(t *testing.T) {
	rb := buildIndex(t, []uint64{1, 2, 3}, 10)

	var buf bytes.Buffer
	require.NoError(t, Save(context.Background(), &buf, rb))

	raw := buf.Bytes()
	raw[4] ^= 0xFF

	_, err := Load(context.Background(), bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestLoad_CorruptPayload(t *testing.T) {
	rng := testutil.NewRNG(99)
	values := rng.UniformOrdinals(1000, 1<<16)
	rb := buildIndex(t, values, 1<<16)

	var buf bytes.Buffer
	require.NoError(t, Save(context.Background(), &buf, rb))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, err := Load(context.Background(), bytes.NewReader(raw))

	var mismatch *ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestLoad_Truncated(t *testing.T) {
	rng := testutil.NewRNG(99)
	values := rng.UniformOrdinals(1000, 1<<16)
	rb := buildIndex(t, values, 1<<16)

	var buf bytes.Buffer
	require.NoError(t, Save(context.Background(), &buf, rb))

	raw := buf.Bytes()

	_, err := Load(context.Background(), bytes.NewReader(raw[:len(raw)-7]))
	assert.Error(t, err)
}

func TestSaveToFile_LoadFromFile(t *testing.T) {
	rng := testutil.NewRNG(7)
	values := rng.ZipfOrdinals(50000, 10000, 1.5)
	rb := buildIndex(t, values, 1<<40)

	path := filepath.Join(t.TempDir(), "col.rbx")
	require.NoError(t, SaveToFile(context.Background(), path, rb, WithCompression(CompressionLZ4)))

	loaded, err := LoadFromFile(context.Background(), path)
	require.NoError(t, err)

	for _, threshold := range []uint64{0, 5, 100, 9999} {
		assert.True(t, rb.Lt(threshold).Equals(loaded.Lt(threshold)), "threshold %d", threshold)
		assert.True(t, rb.Gte(threshold).Equals(loaded.Gte(threshold)), "threshold %d", threshold)
	}
}

func TestSaveLoadFile_Logging(t *testing.T) {
	rb := buildIndex(t, []uint64{5, 2, 9}, 10)
	path := filepath.Join(t.TempDir(), "logged.rbx")

	var logBuf bytes.Buffer
	logger := rangebitmap.NewLogger(slog.NewTextHandler(&logBuf, nil))

	require.NoError(t, SaveToFile(context.Background(), path, rb, WithLogger(logger)))
	assert.Contains(t, logBuf.String(), "index saved")

	_, err := LoadFromFile(context.Background(), path, WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, logBuf.String(), "index loaded")

	logBuf.Reset()

	_, err = LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.rbx"), WithLogger(logger))
	require.Error(t, err)
	assert.Contains(t, logBuf.String(), "load failed")
}

func TestOpen_ZeroCopy(t *testing.T) {
	rng := testutil.NewRNG(7)
	values := rng.UniformOrdinals(30000, 1<<20)
	rb := buildIndex(t, values, 1<<20)

	path := filepath.Join(t.TempDir(), "col.rbx")
	require.NoError(t, SaveToFile(context.Background(), path, rb))

	mi, err := Open(path)
	require.NoError(t, err)
	defer mi.Close()

	assert.True(t, mi.Mapped())

	got := mi.RangeBitmap().Between(1<<10, 1<<18)
	want := testutil.MatchBetween(values, 1<<10, 1<<18)
	assert.True(t, got.Equals(want))
}

func TestOpen_CompressedFallsBackToHeap(t *testing.T) {
	rng := testutil.NewRNG(7)
	values := rng.SortedOrdinals(30000, 1<<20)
	rb := buildIndex(t, values, 1<<20)

	path := filepath.Join(t.TempDir(), "col.rbx")
	require.NoError(t, SaveToFile(context.Background(), path, rb, WithCompression(CompressionZSTD)))

	mi, err := Open(path)
	require.NoError(t, err)
	defer mi.Close()

	assert.False(t, mi.Mapped())

	got := mi.RangeBitmap().Lte(1 << 19)
	want := testutil.MatchLte(values, 1<<19)
	assert.True(t, got.Equals(want))
}

func TestCompressPayload_IncompressibleStoredVerbatim(t *testing.T) {
	rng := testutil.NewRNG(123)

	raw := make([]byte, 4096)
	for i := range raw {
		raw[i] = byte(rng.Uint64())
	}

	stored, compression, err := compressPayload(raw, CompressionLZ4)
	require.NoError(t, err)

	assert.Equal(t, CompressionNone, compression)
	assert.Equal(t, raw, stored)
}
