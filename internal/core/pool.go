package core

/*
fastread — fast tool in Go for counting domains and URIs in large access logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/x-stp/fastread/internal/metrics"
)

// BufferPool is a fixed set of equally sized buffers shared by the reader and
// the workers. The reader blocks in Acquire when every buffer is in flight,
// which is the only backpressure in the pipeline.
type BufferPool struct {
	buffers chan *Buffer
	size    int
	waits   atomic.Int64
}

// NewBufferPool allocates size buffers of capacity bytes each.
func NewBufferPool(size, capacity int) (*BufferPool, error) {
	if size < MinPoolSize {
		return nil, fmt.Errorf("pool size %d: need at least %d buffers", size, MinPoolSize)
	}
	if capacity < MinBufferSize {
		return nil, fmt.Errorf("buffer size %d: need at least %d bytes", capacity, MinBufferSize)
	}
	p := &BufferPool{
		buffers: make(chan *Buffer, size),
		size:    size,
	}
	for i := 0; i < size; i++ {
		p.buffers <- NewBuffer(capacity)
	}
	if metrics.IsMetricsEnabled() {
		m := metrics.GetMetrics()
		m.PoolCapacity.Set(float64(size * capacity))
		m.PoolAvailable.Set(float64(size))
	}
	return p, nil
}

// Acquire returns an empty buffer, blocking until one is released or ctx is done.
func (p *BufferPool) Acquire(ctx context.Context) (*Buffer, error) {
	select {
	case b := <-p.buffers:
		p.observe()
		return b, nil
	default:
	}

	p.waits.Add(1)
	start := time.Now()
	select {
	case b := <-p.buffers:
		if metrics.IsMetricsEnabled() {
			metrics.ObserveSince(metrics.GetMetrics().PoolWaitDuration, start)
		}
		p.observe()
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release resets b and returns it to the pool. It never blocks.
func (p *BufferPool) Release(b *Buffer) error {
	if b == nil {
		return nil
	}
	b.Reset()
	select {
	case p.buffers <- b:
		p.observe()
		return nil
	default:
		return ErrPoolOverflow
	}
}

// Available is the number of buffers currently free.
func (p *BufferPool) Available() int { return len(p.buffers) }

// Size is the total number of buffers.
func (p *BufferPool) Size() int { return p.size }

// Waits counts Acquire calls that found the pool empty.
func (p *BufferPool) Waits() int64 { return p.waits.Load() }

func (p *BufferPool) observe() {
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().PoolAvailable.Set(float64(len(p.buffers)))
	}
}
