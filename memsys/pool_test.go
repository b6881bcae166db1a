// Package memsys provides the shared, fixed-budget pool of streaming I/O buffers
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package memsys_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NVIDIA/nsfs/cmn"
	"github.com/NVIDIA/nsfs/memsys"
	"github.com/NVIDIA/nsfs/tools/tassert"
)

func TestPoolAllocFree(t *testing.T) {
	p := memsys.NewPool(4096, 4096*4, time.Second)
	ctx := context.Background()

	var bufs [][]byte
	for range 4 {
		buf, err := p.Alloc(ctx)
		tassert.CheckFatal(t, err)
		tassert.Errorf(t, len(buf) == 4096, "buffer size: %d", len(buf))
		bufs = append(bufs, buf)
	}
	for _, buf := range bufs {
		p.Free(buf)
	}
	// the budget is whole again
	buf, err := p.Alloc(ctx)
	tassert.CheckFatal(t, err)
	p.Free(buf)
}

func TestPoolTimeout(t *testing.T) {
	p := memsys.NewPool(4096, 4096, 50*time.Millisecond) // one slot
	ctx := context.Background()

	buf, err := p.Alloc(ctx)
	tassert.CheckFatal(t, err)
	defer p.Free(buf)

	_, err = p.Alloc(ctx)
	tassert.Fatalf(t, err != nil, "exhausted pool must time out")
	var timeout *cmn.ErrStreamTimeout
	tassert.Errorf(t, errors.As(err, &timeout), "got %v, want stream timeout", err)
	tassert.Errorf(t, cmn.ErrCode(err) == cmn.CodeStreamTimeout, "code: %s", cmn.ErrCode(err))
}

func TestPoolCallerCancellation(t *testing.T) {
	p := memsys.NewPool(4096, 4096, time.Minute) // one slot, long pool timeout
	buf, err := p.Alloc(context.Background())
	tassert.CheckFatal(t, err)
	defer p.Free(buf)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = p.Alloc(ctx)
	tassert.Fatalf(t, err != nil, "cancelled acquisition must fail")
	tassert.Errorf(t, errors.Is(err, context.Canceled), "got %v, want caller cancellation", err)
}

func TestPoolReserve(t *testing.T) {
	p := memsys.NewPool(4096, 4096*2, 50*time.Millisecond) // two slots
	ctx := context.Background()

	release, err := p.Reserve(ctx)
	tassert.CheckFatal(t, err)
	buf, err := p.Alloc(ctx)
	tassert.CheckFatal(t, err)

	// both slots taken: the next borrower waits and times out
	_, err = p.Alloc(ctx)
	tassert.Fatalf(t, err != nil, "over-budget alloc must fail")

	p.Free(buf)
	release()
	release() // double release is idempotent

	buf, err = p.Alloc(ctx)
	tassert.CheckFatal(t, err)
	p.Free(buf)
}
