package persistence

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	rangebitmap "github.com/hupe1980/rangebitmap"
	"github.com/hupe1980/rangebitmap/internal/hash"
	"github.com/hupe1980/rangebitmap/resource"
)

type config struct {
	compression Compression
	controller  *resource.Controller
	mapOptions  []rangebitmap.Option
	skipVerify  bool
	logger      *rangebitmap.Logger
}

// Option configures Save, Load and Open.
type Option func(*config)

// WithCompression selects the payload compression. The default is
// CompressionNone, which keeps files mappable by Open.
func WithCompression(c Compression) Option {
	return func(cfg *config) {
		cfg.compression = c
	}
}

// WithResourceController rate-limits file IO through the controller's
// throughput budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(cfg *config) {
		cfg.controller = rc
	}
}

// WithMapOptions passes options through to rangebitmap.Map when loading,
// e.g. the evaluation strategy or a metrics collector.
func WithMapOptions(opts ...rangebitmap.Option) Option {
	return func(cfg *config) {
		cfg.mapOptions = opts
	}
}

// WithLogger logs file save and load outcomes through the given logger.
func WithLogger(l *rangebitmap.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithoutChecksumVerification skips the CRC32C check on load. Only useful
// when the storage layer already verifies integrity end to end.
func WithoutChecksumVerification() Option {
	return func(cfg *config) {
		cfg.skipVerify = true
	}
}

func applyConfig(optFns []Option) config {
	var cfg config
	for _, fn := range optFns {
		if fn != nil {
			fn(&cfg)
		}
	}

	return cfg
}

// zstd encoders and decoders are reused across calls; construction is
// expensive relative to a single index payload.
var (
	zstdEncoderPool = sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
			return enc
		},
	}
	zstdDecoderPool = sync.Pool{
		New: func() any {
			dec, _ := zstd.NewReader(nil)
			return dec
		},
	}
)

// compressPayload compresses raw per the requested algorithm. When
// compression does not pay (ratio above 0.9, or incompressible), the payload
// is stored verbatim and the returned compression is CompressionNone.
func compressPayload(raw []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	var compressed []byte

	switch c {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(raw))
		dst := make([]byte, bound)
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n > 0 {
			compressed = dst[:n]
		}
	case CompressionZSTD:
		enc := zstdEncoderPool.Get().(*zstd.Encoder)
		compressed = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}

	if len(compressed) == 0 || len(compressed)*10 > len(raw)*9 {
		return raw, CompressionNone, nil
	}

	return compressed, c, nil
}

// decompressPayload reverses compressPayload. rawLen is the exact expected
// output size from the envelope header.
func decompressPayload(stored []byte, c Compression, rawLen uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		if uint64(len(stored)) != rawLen {
			return nil, fmt.Errorf("%w: stored %d bytes, header declares %d", ErrTruncated, len(stored), rawLen)
		}
		return stored, nil
	case CompressionLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header declares %d", ErrTruncated, n, rawLen)
		}
		return raw, nil
	case CompressionZSTD:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		raw, err := dec.DecodeAll(stored, make([]byte, 0, rawLen))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(raw)) != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d bytes, header declares %d", ErrTruncated, len(raw), rawLen)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}

// Save writes rb to w inside the checksummed envelope.
func Save(ctx context.Context, w io.Writer, rb *rangebitmap.RangeBitmap, optFns ...Option) error {
	cfg := applyConfig(optFns)

	raw := rb.Bytes()

	stored, compression, err := compressPayload(raw, cfg.compression)
	if err != nil {
		return err
	}

	hdr := envelopeHeader{
		compression: compression,
		checksum:    hash.CRC32C(stored),
		storedLen:   uint64(len(stored)),
		rawLen:      uint64(len(raw)),
	}

	out := resource.NewRateLimitedWriter(ctx, cfg.controller, w)

	var hdrBuf [envelopeHeaderSize]byte
	hdr.encode(hdrBuf[:])

	if _, err := out.Write(hdrBuf[:]); err != nil {
		return fmt.Errorf("write envelope header: %w", err)
	}
	if _, err := out.Write(stored); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// Load reads an envelope from r, verifies it and maps the contained index.
// The returned store owns its buffer; r may be discarded afterwards.
func Load(ctx context.Context, r io.Reader, optFns ...Option) (*rangebitmap.RangeBitmap, error) {
	cfg := applyConfig(optFns)

	in := resource.NewRateLimitedReader(ctx, cfg.controller, r)

	var hdrBuf [envelopeHeaderSize]byte
	if _, err := io.ReadFull(in, hdrBuf[:]); err != nil {
		return nil, fmt.Errorf("read envelope header: %w", err)
	}

	hdr, err := decodeEnvelopeHeader(hdrBuf[:])
	if err != nil {
		return nil, err
	}

	stored := make([]byte, hdr.storedLen)
	if _, err := io.ReadFull(in, stored); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return mapPayload(stored, hdr, cfg)
}

// FromBuffer verifies an envelope held in memory and maps the contained
// index. For uncompressed envelopes the store references buf directly, so
// buf must stay immutable and alive as long as the store is in use;
// compressed envelopes decompress into an owned heap buffer.
func FromBuffer(buf []byte, optFns ...Option) (*rangebitmap.RangeBitmap, error) {
	cfg := applyConfig(optFns)

	hdr, err := decodeEnvelopeHeader(buf)
	if err != nil {
		return nil, err
	}

	if uint64(len(buf)-envelopeHeaderSize) < hdr.storedLen {
		return nil, fmt.Errorf("%w: %d payload bytes, header declares %d",
			ErrTruncated, len(buf)-envelopeHeaderSize, hdr.storedLen)
	}

	stored := buf[envelopeHeaderSize : envelopeHeaderSize+int(hdr.storedLen)]

	return mapPayload(stored, hdr, cfg)
}

// mapPayload verifies, decompresses and maps a stored payload.
func mapPayload(stored []byte, hdr envelopeHeader, cfg config) (*rangebitmap.RangeBitmap, error) {
	if !cfg.skipVerify {
		if err := verifyChecksum(stored, hdr.checksum); err != nil {
			return nil, err
		}
	}

	raw, err := decompressPayload(stored, hdr.compression, hdr.rawLen)
	if err != nil {
		return nil, err
	}

	return rangebitmap.Map(raw, cfg.mapOptions...)
}

// SaveToFile writes rb to filename atomically: the envelope is written to a
// temporary file in the same directory, synced, and renamed into place.
func SaveToFile(ctx context.Context, filename string, rb *rangebitmap.RangeBitmap, optFns ...Option) error {
	cfg := applyConfig(optFns)

	err := saveToFile(ctx, filename, rb, optFns)
	if cfg.logger != nil {
		cfg.logger.LogSave(ctx, filename, err)
	}

	return err
}

func saveToFile(ctx context.Context, filename string, rb *rangebitmap.RangeBitmap, optFns []Option) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := Save(ctx, buf, rb, optFns...); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort directory sync so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""

	return nil
}

// LoadFromFile reads an envelope file into memory and maps it.
func LoadFromFile(ctx context.Context, filename string, optFns ...Option) (*rangebitmap.RangeBitmap, error) {
	cfg := applyConfig(optFns)

	rb, err := loadFromFile(ctx, filename, optFns)
	if cfg.logger != nil {
		cfg.logger.LogLoad(ctx, filename, err)
	}

	return rb, err
}

func loadFromFile(ctx context.Context, filename string, optFns []Option) (*rangebitmap.RangeBitmap, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(ctx, bufio.NewReaderSize(f, 256*1024), optFns...)
}
