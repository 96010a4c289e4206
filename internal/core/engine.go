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
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"time"

	"github.com/x-stp/fastread/internal/metrics"
)

// Config sizes one counting run.
type Config struct {
	BufferSize    int  // Capacity of each pool buffer. Must exceed the longest line.
	PoolSize      int  // Number of pool buffers, at least 2.
	Workers       int  // Worker goroutines, at least 1.
	TableSize     int  // Initial slots per worker count table. 0 uses DefaultTableSize.
	SkipMalformed bool // Skip malformed lines instead of failing.
	PinWorkers    bool // Pin workers to CPUs on Linux.
	Debug         bool
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		PoolSize:   DefaultPoolSize,
		Workers:    runtime.NumCPU(),
	}
}

// Validate checks the sizing constraints of a run.
func (c Config) Validate() error {
	if c.BufferSize < MinBufferSize {
		return fmt.Errorf("buffer size %d: must be at least %d", c.BufferSize, MinBufferSize)
	}
	if c.PoolSize < MinPoolSize {
		return fmt.Errorf("pool size %d: must be at least %d", c.PoolSize, MinPoolSize)
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("workers %d: must be between 1 and %d", c.Workers, MaxWorkers)
	}
	if c.TableSize < 0 {
		return fmt.Errorf("table size %d: must not be negative", c.TableSize)
	}
	return nil
}

// Result holds the merged and ranked counts of a run. Both slices are complete;
// truncation to the top rows is left to the report writer.
type Result struct {
	Domains []Entry
	URIs    []Entry
	Workers []*WorkerState
}

// Analyzer streams an input through the buffer pool and the worker set and
// produces ranked domain and uri counts.
type Analyzer struct {
	cfg   Config
	stats *Stats
}

// NewAnalyzer validates cfg and returns an Analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, stats: NewStats()}, nil
}

// GetStats returns the live counters of the analyzer. They accumulate across runs.
func (a *Analyzer) GetStats() *Stats {
	return a.stats
}

// OpenFunc opens the input of a run. The context it is given is cancelled as
// soon as the run fails, so readers that block on it stop with the run.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

// Run counts every line of r. Any error aborts the whole run and no result is
// returned; there are no partial results.
func (a *Analyzer) Run(ctx context.Context, r io.Reader) (*Result, error) {
	return a.RunSource(ctx, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	})
}

// RunSource is Run over an input opened by open once the workers are up.
func (a *Analyzer) RunSource(ctx context.Context, open OpenFunc) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if metrics.IsMetricsEnabled() {
			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.GetMetrics().RunDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		}
	}()

	pool, err := NewBufferPool(a.cfg.PoolSize, a.cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	sched, err := NewScheduler(ctx, SchedulerConfig{
		Workers:       a.cfg.Workers,
		QueueSize:     a.cfg.PoolSize,
		TableSize:     a.cfg.TableSize,
		PinWorkers:    a.cfg.PinWorkers,
		SkipMalformed: a.cfg.SkipMalformed,
		Debug:         a.cfg.Debug,
	}, pool, a.stats)
	if err != nil {
		return nil, err
	}

	r, err := open(sched.Context())
	if err != nil {
		sched.Abort()
		sched.Wait()
		return nil, err
	}
	defer r.Close()

	streamErr := NewStreamer(pool, sched, a.stats).Stream(sched.Context(), r)
	if streamErr != nil {
		sched.Abort()
	} else {
		sched.Close()
	}
	states, workErr := sched.Wait()
	if err := firstCause(streamErr, workErr); err != nil {
		return nil, err
	}

	domains := make([]*CountTable, 0, len(states))
	uris := make([]*CountTable, 0, len(states))
	for _, st := range states {
		domains = append(domains, st.Domains)
		uris = append(uris, st.URIs)
	}
	mergedDomains := Merge(domains...)
	mergedURIs := Merge(uris...)
	if metrics.IsMetricsEnabled() {
		m := metrics.GetMetrics()
		m.DistinctKeys.WithLabelValues("domain").Set(float64(mergedDomains.Len()))
		m.DistinctKeys.WithLabelValues("uri").Set(float64(mergedURIs.Len()))
	}
	if a.cfg.Debug {
		log.Printf("Merged %d workers: %d distinct domains, %d distinct uris", len(states), mergedDomains.Len(), mergedURIs.Len())
	}

	return &Result{
		Domains: Rank(mergedDomains),
		URIs:    Rank(mergedURIs),
		Workers: states,
	}, nil
}

// firstCause picks the error that explains a failed run. A producer that was
// only cancelled because a worker failed reports the worker's error.
func firstCause(streamErr, workErr error) error {
	if streamErr == nil {
		return workErr
	}
	if workErr != nil && errors.Is(streamErr, context.Canceled) && !errors.Is(workErr, context.Canceled) {
		return workErr
	}
	return streamErr
}
