package web

// export_limiter.go bounds how many full-dataset exports run at once.
//
// A full export walks the whole result set in chunks, so a handful of
// parallel exports can saturate the database or the upstream API. The
// limiter is a semaphore: when every slot is busy, new exports wait up to
// maxWait and then fail with ErrTooManyExports. Page exports never take a
// slot because they only reformat rows already in memory.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyExports is returned when no export slot frees up in time.
var ErrTooManyExports = errors.New("too many exports running, please try again later")

// DefaultMaxConcurrentExports is used when the configured limit is not positive.
const DefaultMaxConcurrentExports = 3

// DefaultExportWait is used when the configured wait is not positive.
const DefaultExportWait = 10 * time.Second

// ExportLimiter is a counting semaphore for full exports.
type ExportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewExportLimiter allows at most maxConcurrent exports at once.
func NewExportLimiter(maxConcurrent int, maxWait time.Duration) *ExportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentExports
	}
	if maxWait <= 0 {
		maxWait = DefaultExportWait
	}
	return &ExportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire waits for a slot. The caller must Release a slot it got.
func (l *ExportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyExports
	}
}

// Release frees a slot taken by Acquire.
func (l *ExportLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of running exports.
func (l *ExportLimiter) Active() int { return int(l.active.Load()) }

// Available returns the number of free slots.
func (l *ExportLimiter) Available() int { return cap(l.slots) - len(l.slots) }

// WaitForDrain blocks until running exports finish or ctx ends. Used on
// shutdown so a half-written file is not cut off.
func (l *ExportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
