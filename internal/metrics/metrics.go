package metrics

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
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry          = prometheus.NewRegistry()
	defaultRegisterer = promauto.With(registry)
	serverMu          sync.Mutex
	metricsEnabled    bool
	metricsServer     *http.Server
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// Input metrics
	BytesRead         prometheus.Counter
	ReadThrottleDelay prometheus.Histogram

	// Pipeline metrics
	UnitsSubmitted   prometheus.Counter
	UnitsProcessed   *prometheus.CounterVec
	LinesProcessed   *prometheus.CounterVec
	MalformedSkipped prometheus.Counter

	// Buffer pool metrics
	PoolWaitDuration prometheus.Histogram
	PoolAvailable    prometheus.Gauge
	PoolCapacity     prometheus.Gauge

	// Worker metrics
	WorkerBusy   *prometheus.GaugeVec
	WorkerPanics *prometheus.CounterVec

	// Result metrics
	DistinctKeys *prometheus.GaugeVec
	ReportRows   *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled = true
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// Registry exposes the registry the metrics are registered with.
func Registry() *prometheus.Registry {
	return registry
}

// newMetrics creates and registers all metrics
func newMetrics() *Metrics {
	buckets := []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	runBuckets := []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}

	m := &Metrics{
		BytesRead: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "fastread_bytes_read_total",
				Help: "Total number of input bytes read into pool buffers",
			},
		),
		ReadThrottleDelay: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fastread_read_throttle_delay_seconds",
				Help:    "Time the reader spent waiting on the read-rate limiter",
				Buckets: buckets,
			},
		),

		UnitsSubmitted: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "fastread_units_submitted_total",
				Help: "Total number of whole-line buffers submitted to workers",
			},
		),
		UnitsProcessed: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastread_units_processed_total",
				Help: "Total number of buffers tokenized by a worker",
			},
			[]string{"worker_id"},
		),
		LinesProcessed: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastread_lines_processed_total",
				Help: "Total number of lines scanned by a worker",
			},
			[]string{"worker_id"},
		),
		MalformedSkipped: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "fastread_malformed_lines_skipped_total",
				Help: "Malformed lines skipped in lenient mode",
			},
		),

		PoolWaitDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fastread_pool_wait_duration_seconds",
				Help:    "Time the reader blocked waiting for a free buffer (backpressure)",
				Buckets: buckets,
			},
		),
		PoolAvailable: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "fastread_pool_available_buffers",
				Help: "Buffers currently free in the pool",
			},
		),
		PoolCapacity: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "fastread_pool_capacity_bytes",
				Help: "Total bytes held by the buffer pool (pool size x buffer size)",
			},
		),

		WorkerBusy: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fastread_worker_busy",
				Help: "Whether a worker is currently busy (1) or idle (0)",
			},
			[]string{"worker_id"},
		),
		WorkerPanics: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastread_worker_panics_total",
				Help: "Total number of panics recovered by a worker",
			},
			[]string{"worker_id"},
		),

		DistinctKeys: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fastread_distinct_keys",
				Help: "Distinct keys after the final merge",
			},
			[]string{"field"},
		),
		ReportRows: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastread_report_rows_written_total",
				Help: "Rows written to report files",
			},
			[]string{"field"},
		),
		RunDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fastread_run_duration_seconds",
				Help:    "Wall time of a complete counting run",
				Buckets: runBuckets,
			},
			[]string{"status"},
		),
	}

	return m
}

// StartMetricsServer binds addr and serves /metrics in the background.
// A bind failure is returned; a second call while a server runs is a no-op.
func StartMetricsServer(addr string) error {
	if !metricsEnabled {
		return nil
	}

	serverMu.Lock()
	defer serverMu.Unlock()
	if metricsServer != nil {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsServer = srv

	log.Printf("Starting metrics server on %s", ln.Addr())
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return nil
}

// ShutdownMetricsServer gracefully shuts down the metrics server
func ShutdownMetricsServer(ctx context.Context) error {
	serverMu.Lock()
	srv := metricsServer
	metricsServer = nil
	serverMu.Unlock()

	if srv != nil {
		log.Println("Shutting down metrics server...")
		return srv.Shutdown(ctx)
	}
	return nil
}

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Histogram, start time.Time) {
	if !metricsEnabled {
		return
	}
	h.Observe(time.Since(start).Seconds())
}
