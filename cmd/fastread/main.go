/*
Package main provides the command-line interface for fastread.

fastread counts the domain and uri tokens of a large tab-separated access log
and writes the most frequent values of each to CSV. The input is streamed
through a fixed pool of buffers into a set of worker goroutines, so memory use
is bounded by the pool and not by the size of the log.

	fastread count access.log
	fastread count --top -1 --compress -o out s3://logs/2025/access.log.zst

Configuration can also come from a YAML file (--config) or from FASTREAD_*
environment variables. SIGINT and SIGTERM cancel a run; a cancelled or failed
run writes no report.
*/
package main

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
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/x-stp/fastread/internal/config"
	"github.com/x-stp/fastread/internal/core"
	"github.com/x-stp/fastread/internal/metrics"
	"github.com/x-stp/fastread/internal/report"
	"github.com/x-stp/fastread/internal/source"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Global flags (persistent across commands)
var configFile string

var rootCmd = &cobra.Command{
	Use:           "fastread",
	Short:         "fastread - count domains and URIs in large access logs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var countCmd = &cobra.Command{
	Use:   "count <input>",
	Short: "Count domains and URIs in a log and write the top entries to CSV",
	Long: `Reads <input> (a path, "-" for stdin, or s3://bucket/key; .gz, .zst and .lz4
are decoded) and writes <name>_domain.csv and <name>_uri.csv to the output
directory. Every line must hold at least four tab-separated fields; the fourth
is space-separated, its first token is the domain and its sixth token (cut at
'?') is the uri.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader()
		if err := loader.BindFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
		cfg, err := loader.Load(configFile)
		if err != nil {
			return err
		}
		return countLog(args[0], cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fastread version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fastread %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")

	f := countCmd.Flags()
	f.Int("buffer-size", core.DefaultBufferSize, "Size of each pool buffer in bytes (must exceed the longest line)")
	f.Int("buffer-power", 0, "Buffer size as a power of two, overrides --buffer-size (e.g. 20 = 1 MiB)")
	f.Int("pool-size", core.DefaultPoolSize, "Number of pool buffers")
	f.IntP("workers", "w", runtime.NumCPU(), "Number of worker goroutines")
	f.IntP("top", "n", core.DefaultTopN, "Rows per report (-1 for all)")
	f.StringP("output", "o", ".", "Output directory for report files")
	f.String("name", "", "Report file prefix (default: input base name)")
	f.Bool("compress", false, "Gzip the report files")
	f.Bool("skip-malformed", false, "Skip malformed lines instead of failing")
	f.Bool("pin-workers", false, "Pin workers to CPU cores (Linux)")
	f.Int64("read-rate", 0, "Limit input reads to this many bytes/s (0 = unlimited)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.BoolP("stats", "s", true, "Show statistics during processing")
	f.Bool("debug", false, "Enable debug logging")
	f.String("s3-endpoint", "", "S3 endpoint for s3:// inputs (default "+source.DefaultS3Endpoint+")")
	f.String("s3-access-key", "", "S3 access key (default: AWS_/MINIO_ environment)")
	f.String("s3-secret-key", "", "S3 secret key")
	f.String("s3-region", "", "S3 region")
	f.Bool("s3-secure", true, "Use TLS for S3")

	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// countLog runs one count from input to report files.
func countLog(input string, cfg *config.Config) error {
	engineCfg := cfg.Engine()
	log.Printf("Starting count: input='%s', buffer=%d, pool=%d, workers=%d, top=%d, output='%s'",
		input, engineCfg.BufferSize, engineCfg.PoolSize, engineCfg.Workers, cfg.Top, cfg.Output)

	if cfg.MetricsAddr != "" {
		metrics.EnableMetrics()
		metrics.GetMetrics()
		if err := metrics.StartMetricsServer(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.ShutdownMetricsServer(shutdownCtx)
		}()
	}

	// Setup Context and Signal Handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal %v, initiating shutdown...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	analyzer, err := core.NewAnalyzer(engineCfg)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	var statsWg sync.WaitGroup
	if cfg.Stats {
		statsWg.Add(1)
		go func() {
			defer statsWg.Done()
			displayStats(statsCtx, analyzer.GetStats())
		}()
	}

	paths, err := run(ctx, input, cfg, analyzer)

	stopStats()
	statsWg.Wait()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("count cancelled, no report written: %w", err)
		}
		return explain(err, engineCfg.BufferSize)
	}

	displayFinalStats(analyzer.GetStats())
	for _, p := range paths {
		log.Printf("Wrote %s", p)
	}
	return nil
}

// run opens input, counts it and writes the reports.
func run(ctx context.Context, input string, cfg *config.Config, analyzer *core.Analyzer) ([]string, error) {
	res, err := analyzer.RunSource(ctx, func(runCtx context.Context) (io.ReadCloser, error) {
		return source.Open(runCtx, input, cfg.Source())
	})
	if err != nil {
		return nil, err
	}
	return report.NewWriter(cfg.Report(input)).Write(res)
}

// explain adds a hint to errors the user can fix with a flag.
func explain(err error, bufferSize int) error {
	var malformed *core.MalformedLineError
	switch {
	case errors.Is(err, core.ErrBufferTooSmall):
		return fmt.Errorf("%w (buffer size is %d bytes; raise --buffer-size or --buffer-power)", err, bufferSize)
	case errors.As(err, &malformed):
		return fmt.Errorf("%w (use --skip-malformed to skip such lines)", err)
	}
	return err
}

// displayStats periodically prints progress until ctx is done.
func displayStats(ctx context.Context, stats *core.Stats) {
	ticker := time.NewTicker(core.StatsReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fmt.Printf("\rRead: %.2fMB | Units: %d/%d | Lines: %d | Skipped: %d | Pool waits: %d | Rate: %.2f MB/s",
				float64(stats.BytesRead.Load())/(1024*1024),
				stats.UnitsProcessed.Load(),
				stats.UnitsSubmitted.Load(),
				stats.Lines.Load(),
				stats.MalformedSkipped.Load(),
				stats.PoolWaits.Load(),
				stats.Throughput()/(1024*1024),
			)
		case <-ctx.Done():
			fmt.Println()
			return
		}
	}
}

// displayFinalStats shows the summary statistics at the end.
func displayFinalStats(stats *core.Stats) {
	elapsed := stats.Elapsed()
	lines := stats.Lines.Load()
	rate := 0.0
	if elapsed.Seconds() > 0 {
		rate = float64(lines) / elapsed.Seconds()
	}

	fmt.Printf("\n--- Final Count Statistics ---\n")
	fmt.Printf(" Processing Time: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("      Bytes Read: %.2f MB\n", float64(stats.BytesRead.Load())/(1024*1024))
	fmt.Printf("           Units: %d\n", stats.UnitsProcessed.Load())
	fmt.Printf("           Lines: %d\n", lines)
	fmt.Printf(" Malformed Lines: %d skipped\n", stats.MalformedSkipped.Load())
	fmt.Printf("      Pool Waits: %d\n", stats.PoolWaits.Load())
	fmt.Printf("    Overall Rate: %.0f lines/sec (%.2f MB/s)\n", rate, stats.Throughput()/(1024*1024))
	fmt.Printf("------------------------------\n")
}
