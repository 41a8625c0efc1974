// Package resource provides process-wide budgets for memory, background
// concurrency and IO throughput. A single Controller is typically shared by
// every appender and persistence operation in a process, so that building
// many partition indexes at once degrades gracefully instead of exhausting
// the host.
package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimit is returned when a non-blocking memory reservation cannot
// be satisfied within the configured budget.
var ErrMemoryLimit = errors.New("memory limit exceeded")

// Limits holds the budgets enforced by a Controller. The zero value of any
// field disables that budget.
type Limits struct {
	// MemoryBytes is the hard cap for tracked memory. 0 means track only.
	MemoryBytes int64

	// BackgroundWorkers caps concurrent background jobs. 0 defaults to 1.
	BackgroundWorkers int64

	// IOBytesPerSec caps throughput of rate-limited readers and writers.
	// 0 means unlimited.
	IOBytesPerSec int64
}

// Controller enforces Limits. A nil *Controller is valid and enforces
// nothing, so callers can thread one through unconditionally.
type Controller struct {
	limits Limits

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	bgSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a Controller enforcing the given limits.
func NewController(limits Limits) *Controller {
	if limits.BackgroundWorkers <= 0 {
		limits.BackgroundWorkers = 1
	}

	c := &Controller{
		limits: limits,
		bgSem:  semaphore.NewWeighted(limits.BackgroundWorkers),
	}

	if limits.MemoryBytes > 0 {
		c.memSem = semaphore.NewWeighted(limits.MemoryBytes)
	}

	if limits.IOBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(limits.IOBytesPerSec), int(limits.IOBytesPerSec))
	}

	return c
}

// AcquireMemory reserves bytes, blocking until the budget allows it or ctx
// is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)

	return nil
}

// TryAcquireMemory reserves bytes without blocking. It reports whether the
// reservation succeeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}

	c.memUsed.Add(bytes)

	return true
}

// ReleaseMemory returns a reservation to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}

	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}

	return c.memUsed.Load()
}

// AcquireBackground claims a background worker slot, blocking until one is
// free or ctx is canceled.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}

	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground claims a slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}

	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground returns a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}

	c.bgSem.Release(1)
}

// AcquireIO waits until the throughput budget admits bytes more IO.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	return c.ioLimiter.WaitN(ctx, bytes)
}
