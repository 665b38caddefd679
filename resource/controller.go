// Package resource bounds the work a data migration may do at once.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBufferedRows is the hard limit for rows held in memory while being
	// copied. If 0, no hard limit is enforced (only tracking).
	MaxBufferedRows int64

	// MaxParallelReads is the maximum number of source allocations read
	// concurrently. If 0, defaults to 1.
	MaxParallelReads int64

	// RowsPerSecond is the maximum write throughput. If 0, unlimited.
	RowsPerSecond int64
}

// Controller manages migration budgets (buffered rows, read concurrency,
// write throughput). A nil Controller imposes no limits.
type Controller struct {
	cfg Config

	// Buffered rows
	rowSem   *semaphore.Weighted // nil if unlimited
	rowsUsed atomic.Int64

	// Concurrency
	readSem *semaphore.Weighted

	// Throughput
	limiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxParallelReads <= 0 {
		cfg.MaxParallelReads = 1
	}

	c := &Controller{
		cfg:     cfg,
		readSem: semaphore.NewWeighted(cfg.MaxParallelReads),
	}

	if cfg.MaxBufferedRows > 0 {
		c.rowSem = semaphore.NewWeighted(cfg.MaxBufferedRows)
	}

	if cfg.RowsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RowsPerSecond), int(cfg.RowsPerSecond))
	}

	return c
}

// Config returns the effective limits.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{MaxParallelReads: 1}
	}
	return c.cfg
}

// AcquireRows reserves buffer space for n rows.
// If a hard limit is configured and usage would exceed it,
// this blocks until space is available or ctx is canceled.
func (c *Controller) AcquireRows(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}

	if c.rowSem != nil {
		if err := c.rowSem.Acquire(ctx, min(n, c.cfg.MaxBufferedRows)); err != nil {
			return err
		}
	}

	c.rowsUsed.Add(n)
	return nil
}

// TryAcquireRows reserves buffer space without blocking.
// Returns true if acquired, false if the limit would be exceeded.
func (c *Controller) TryAcquireRows(n int64) bool {
	if c == nil || n <= 0 {
		return true
	}

	if c.rowSem != nil {
		if !c.rowSem.TryAcquire(min(n, c.cfg.MaxBufferedRows)) {
			return false
		}
	}

	c.rowsUsed.Add(n)
	return true
}

// ReleaseRows releases reserved buffer space.
func (c *Controller) ReleaseRows(n int64) {
	if c == nil || n <= 0 {
		return
	}

	if c.rowSem != nil {
		c.rowSem.Release(min(n, c.cfg.MaxBufferedRows))
	}
	c.rowsUsed.Add(-n)
}

// BufferedRows returns the number of rows currently reserved.
func (c *Controller) BufferedRows() int64 {
	if c == nil {
		return 0
	}
	return c.rowsUsed.Load()
}

// AcquireRead reserves a read slot. Blocks if all slots are busy.
func (c *Controller) AcquireRead(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.readSem.Acquire(ctx, 1)
}

// TryAcquireRead reserves a read slot without blocking.
func (c *Controller) TryAcquireRead() bool {
	if c == nil {
		return true
	}
	return c.readSem.TryAcquire(1)
}

// ReleaseRead releases a read slot.
func (c *Controller) ReleaseRead() {
	if c == nil {
		return
	}
	c.readSem.Release(1)
}

// WaitRows waits until the throughput limit allows writing n rows.
func (c *Controller) WaitRows(ctx context.Context, n int) error {
	if c == nil || c.limiter == nil || n <= 0 {
		return nil
	}
	burst := c.limiter.Burst()
	for n > burst {
		if err := c.limiter.WaitN(ctx, burst); err != nil {
			return err
		}
		n -= burst
	}
	return c.limiter.WaitN(ctx, n)
}
