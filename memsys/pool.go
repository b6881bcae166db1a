// Package memsys provides the shared, fixed-budget pool of streaming I/O buffers
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package memsys

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/cmn/nlog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"
)

// Pool is a process-wide pool of equal-size streaming buffers bounded
// by a total memory budget. Borrowing blocks under pressure and fails
// with the stream-timeout taxonomy error when the wait exceeds the
// configured acquisition timeout. Uploads additionally Reserve one slot
// around their whole streaming write to cap concurrent upload memory.
type Pool struct {
	bufSize int64
	slots   int64
	sema    *semaphore.Weighted
	timeout time.Duration
	warnAt  time.Duration
	bufs    sync.Pool

	inUse    prometheus.Gauge
	timeouts prometheus.Counter
}

func NewPool(bufSize, memLimit int64, timeout time.Duration) *Pool {
	slots := memLimit / bufSize
	if slots < 1 {
		slots = 1
	}
	p := &Pool{
		bufSize: bufSize,
		slots:   slots,
		sema:    semaphore.NewWeighted(slots),
		timeout: timeout,
		warnAt:  timeout / 2,
		inUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsfs_bufpool_inuse", Help: "buffers currently borrowed",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsfs_bufpool_timeouts_total", Help: "buffer acquisitions that timed out",
		}),
	}
	p.bufs.New = func() any { return make([]byte, bufSize) }
	return p
}

// RegisterMetrics is optional; callers that scrape attach the pool
// gauges to their own registry.
func (p *Pool) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(p.inUse, p.timeouts)
}

func (p *Pool) BufSize() int64 { return p.bufSize }

// Alloc borrows one buffer, blocking up to the pool timeout.
func (p *Pool) Alloc(ctx context.Context) ([]byte, error) {
	if err := p.acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inUse.Inc()
	return p.bufs.Get().([]byte), nil
}

// Free returns a borrowed buffer. Must be called exactly once per Alloc.
func (p *Pool) Free(buf []byte) {
	p.bufs.Put(buf) //nolint:staticcheck // fixed-size slices, no pointer needed
	p.inUse.Dec()
	p.sema.Release(1)
}

// Reserve holds one slot for the duration of an upload's streaming
// write; the returned release must be called exactly once.
func (p *Pool) Reserve(ctx context.Context) (release func(), err error) {
	if err := p.acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { p.sema.Release(1) }) }, nil
}

func (p *Pool) acquire(ctx context.Context, n int64) error {
	started := time.Now()
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.sema.Acquire(actx, n)
	if waited := time.Since(started); waited > p.warnAt {
		nlog.Warningf("buffer pool under pressure: waited %v of %v budget", waited, p.timeout)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil { // caller cancellation, not pool pressure
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		p.timeouts.Inc()
		return &cmn.ErrStreamTimeout{}
	}
	return err
}
