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
	"log"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/x-stp/fastread/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// WorkerState is the private state of one worker. Nothing else touches it until
// the scheduler has joined the worker, after which it is handed to the merge.
type WorkerState struct {
	ID      int
	Domains *CountTable
	URIs    *CountTable
	Units   int64 // Buffers tokenized.
	Lines   int64 // Lines scanned.
	Skipped int64 // Malformed lines skipped in lenient mode.
}

// SchedulerConfig sizes the worker set.
type SchedulerConfig struct {
	Workers       int  // Number of worker goroutines. <= 0 means runtime.NumCPU().
	QueueSize     int  // Capacity of the shared queue. Must be >= the pool size so Submit never blocks.
	TableSize     int  // Initial slot count of each worker's count tables.
	PinWorkers    bool // Pin each worker's OS thread to a CPU (Linux only).
	SkipMalformed bool // Skip malformed lines instead of failing the run.
	Debug         bool // Log worker start and stop.
}

// Scheduler runs a fixed set of workers that pull whole-line buffers from a
// shared queue, tokenize them into their own count tables, and release the
// buffers back to the pool.
//
// Submit and Close must be called from a single producer goroutine.
type Scheduler struct {
	cfg       SchedulerConfig
	pool      *BufferPool
	stats     *Stats
	tokenizer Tokenizer

	ctx    context.Context // Cancelled on Abort or on the first worker error.
	cancel context.CancelFunc
	group  *errgroup.Group
	queue  chan *Buffer
	states []*WorkerState
	closed atomic.Bool
}

// worker is one goroutine of the scheduler.
type worker struct {
	id        int
	label     string
	state     *WorkerState
	scheduler *Scheduler
}

// NewScheduler creates the scheduler and starts its workers.
func NewScheduler(parentCtx context.Context, cfg SchedulerConfig, pool *BufferPool, stats *Stats) (*Scheduler, error) {
	if pool == nil {
		return nil, fmt.Errorf("scheduler: nil buffer pool")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Workers > MaxWorkers {
		cfg.Workers = MaxWorkers
	}
	if cfg.QueueSize < pool.Size() {
		cfg.QueueSize = pool.Size()
	}
	if cfg.TableSize <= 0 {
		cfg.TableSize = DefaultTableSize
	}
	if stats == nil {
		stats = NewStats()
	}

	ctx, cancel := context.WithCancel(parentCtx)
	group, gctx := errgroup.WithContext(ctx)

	s := &Scheduler{
		cfg:       cfg,
		pool:      pool,
		stats:     stats,
		tokenizer: Tokenizer{SkipMalformed: cfg.SkipMalformed},
		ctx:       gctx,
		cancel:    cancel,
		group:     group,
		queue:     make(chan *Buffer, cfg.QueueSize),
		states:    make([]*WorkerState, cfg.Workers),
	}

	for i := 0; i < cfg.Workers; i++ {
		st := &WorkerState{
			ID:      i,
			Domains: NewCountTable(cfg.TableSize),
			URIs:    NewCountTable(cfg.TableSize),
		}
		s.states[i] = st
		w := &worker{id: i, label: strconv.Itoa(i), state: st, scheduler: s}
		group.Go(func() error { return w.run(gctx) })
	}

	log.Printf("Scheduler initialized with %d workers (queue %d, pinned %v).", cfg.Workers, cfg.QueueSize, cfg.PinWorkers)
	return s, nil
}

// Context is cancelled when the scheduler aborts or a worker fails.
func (s *Scheduler) Context() context.Context { return s.ctx }

// Workers returns the number of worker goroutines.
func (s *Scheduler) Workers() int { return s.cfg.Workers }

// Submit queues a buffer for tokenization. Ownership passes to the scheduler
// only when Submit returns nil.
func (s *Scheduler) Submit(ctx context.Context, b *Buffer) error {
	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	select {
	case s.queue <- b:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more buffers will be submitted. Workers drain the queue
// and exit.
func (s *Scheduler) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.queue)
	}
}

// Abort cancels the workers without draining the queue.
func (s *Scheduler) Abort() {
	s.cancel()
}

// Wait joins every worker and returns their states, ordered by worker id.
// The error is the first worker failure, if any. Buffers still queued after an
// abort are returned to the pool.
func (s *Scheduler) Wait() ([]*WorkerState, error) {
	err := s.group.Wait()
	s.cancel()
	s.drain()
	return s.states, err
}

func (s *Scheduler) drain() {
	for {
		select {
		case b, ok := <-s.queue:
			if !ok {
				return
			}
			_ = s.pool.Release(b)
		default:
			return
		}
	}
}

// run is the main loop of one worker.
func (w *worker) run(ctx context.Context) error {
	if w.scheduler.cfg.PinWorkers {
		setAffinity(w.id, w.id%runtime.NumCPU())
	}
	if w.scheduler.cfg.Debug {
		log.Printf("Worker %d started", w.id)
		defer func() {
			log.Printf("Worker %d stopped after %d buffers, %d lines", w.id, w.state.Units, w.state.Lines)
		}()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-w.scheduler.queue:
			if !ok {
				return nil
			}
			if err := w.process(b); err != nil {
				return err
			}
		}
	}
}

// process tokenizes one buffer and always releases it.
func (w *worker) process(b *Buffer) (err error) {
	s := w.scheduler
	metricsOn := metrics.IsMetricsEnabled()
	if metricsOn {
		metrics.GetMetrics().WorkerBusy.WithLabelValues(w.label).Set(1)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic recovered in worker %d processing buffer at offset %d: %v", w.id, b.Origin(), r)
			if metricsOn {
				metrics.GetMetrics().WorkerPanics.WithLabelValues(w.label).Inc()
			}
			err = fmt.Errorf("worker %d: panic: %v", w.id, r)
		}
		if rerr := s.pool.Release(b); rerr != nil && err == nil {
			err = rerr
		}
		if metricsOn {
			metrics.GetMetrics().WorkerBusy.WithLabelValues(w.label).Set(0)
		}
	}()

	counts, err := s.tokenizer.Tokenize(b, w.state.Domains, w.state.URIs)
	w.state.Units++
	w.state.Lines += counts.Lines
	w.state.Skipped += counts.Skipped
	s.stats.UnitsProcessed.Add(1)
	s.stats.Lines.Add(counts.Lines)
	s.stats.MalformedSkipped.Add(counts.Skipped)
	if metricsOn {
		m := metrics.GetMetrics()
		m.UnitsProcessed.WithLabelValues(w.label).Inc()
		m.LinesProcessed.WithLabelValues(w.label).Add(float64(counts.Lines))
		if counts.Skipped > 0 {
			m.MalformedSkipped.Add(float64(counts.Skipped))
		}
	}
	if err != nil {
		return fmt.Errorf("worker %d: %w", w.id, err)
	}
	return nil
}
