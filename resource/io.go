package resource

import (
	"context"
	"io"
)

// NewRateLimitedWriter wraps w so that every Write first clears the
// controller's IO budget. Writes block until the budget admits them or ctx
// is canceled.
func NewRateLimitedWriter(ctx context.Context, c *Controller, w io.Writer) io.Writer {
	if c == nil || c.ioLimiter == nil {
		return w
	}

	return &rateLimitedWriter{ctx: ctx, c: c, w: w}
}

type rateLimitedWriter struct {
	ctx context.Context
	c   *Controller
	w   io.Writer
}

func (w *rateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.c.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}

	return w.w.Write(p)
}

// NewRateLimitedReader wraps r so that every Read first clears the
// controller's IO budget. The charge is len(p), the upper bound of the read;
// callers concerned about over-charging should read in fixed-size chunks.
func NewRateLimitedReader(ctx context.Context, c *Controller, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}

	return &rateLimitedReader{ctx: ctx, c: c, r: r}
}

type rateLimitedReader struct {
	ctx context.Context
	c   *Controller
	r   io.Reader
}

func (r *rateLimitedReader) Read(p []byte) (int, error) {
	if err := r.c.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}

	return r.r.Read(p)
}
