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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/x-stp/fastread/internal/metrics"
)

// Submitter accepts a buffer of whole lines. On success it owns the buffer and
// must release it back to the pool; on error the caller keeps ownership.
type Submitter interface {
	Submit(ctx context.Context, b *Buffer) error
}

// Streamer cuts an input stream into pool buffers that end on a line boundary
// and hands each one to a Submitter. A partial line at the end of a buffer is
// carried into the next one so no line is ever split between two units.
type Streamer struct {
	pool  *BufferPool
	sink  Submitter
	stats *Stats
}

// NewStreamer returns a Streamer reading into buffers from pool. stats may be nil.
func NewStreamer(pool *BufferPool, sink Submitter, stats *Stats) *Streamer {
	if stats == nil {
		stats = NewStats()
	}
	return &Streamer{pool: pool, sink: sink, stats: stats}
}

// Stream reads r to EOF. It returns nil once every byte has been submitted as
// part of a complete line. A trailing line without a newline gets one appended.
func (s *Streamer) Stream(ctx context.Context, r io.Reader) error {
	buf, err := s.acquire(ctx)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			s.release(buf)
			return err
		}
		n, rerr := io.ReadFull(r, buf.free())
		if n > 0 {
			buf.SetEnd(buf.End() + n)
			s.stats.BytesRead.Add(int64(n))
			if metrics.IsMetricsEnabled() {
				metrics.GetMetrics().BytesRead.Add(float64(n))
			}
		}

		eof := errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF)
		if rerr != nil && !eof {
			s.release(buf)
			return fmt.Errorf("read input at offset %d: %w", buf.Origin()+int64(buf.Len()), rerr)
		}

		if eof {
			return s.finish(ctx, buf)
		}

		// The buffer is full. Everything after the last newline moves on.
		data := buf.Bytes()
		last := bytes.LastIndexByte(data, newlineByte)
		if last < 0 {
			s.release(buf)
			return fmt.Errorf("no newline within %d bytes at offset %d: %w", buf.Cap(), buf.Origin(), ErrBufferTooSmall)
		}

		next, err := s.acquire(ctx)
		if err != nil {
			s.release(buf)
			return err
		}
		tail := data[last+1:]
		copy(next.data, tail)
		next.SetEnd(len(tail) - 1)
		next.SetOrigin(buf.Origin() + int64(last+1))
		buf.SetEnd(last)

		if err := s.submit(ctx, buf); err != nil {
			s.release(next)
			return err
		}
		buf = next
	}
}

// finish submits the last buffer, terminating an unterminated trailing line.
func (s *Streamer) finish(ctx context.Context, buf *Buffer) error {
	if buf.Len() == 0 {
		s.release(buf)
		return nil
	}
	if buf.Bytes()[buf.End()] != newlineByte {
		if err := buf.Append(newlineByte); err != nil {
			s.release(buf)
			if errors.Is(err, ErrOutOfCapacity) {
				return fmt.Errorf("trailing line fills the %d byte buffer at offset %d: %w", buf.Cap(), buf.Origin(), ErrBufferTooSmall)
			}
			return err
		}
	}
	return s.submit(ctx, buf)
}

func (s *Streamer) submit(ctx context.Context, buf *Buffer) error {
	if err := s.sink.Submit(ctx, buf); err != nil {
		s.release(buf)
		return err
	}
	s.stats.UnitsSubmitted.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.GetMetrics().UnitsSubmitted.Inc()
	}
	return nil
}

func (s *Streamer) acquire(ctx context.Context) (*Buffer, error) {
	waits := s.pool.Waits()
	b, err := s.pool.Acquire(ctx)
	if s.pool.Waits() != waits {
		s.stats.PoolWaits.Add(1)
	}
	return b, err
}

// release returns a buffer the streamer still owns.
func (s *Streamer) release(b *Buffer) {
	_ = s.pool.Release(b)
}
