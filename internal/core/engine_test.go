package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

// accessLog builds n lines over a small set of domains and uris.
func accessLog(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d\t10.0.0.%d\tGET\thost%d.example.com - - [ts] GET /page/%d?x=%d HTTP/1.1\t200\n",
			i, i%250, i%7, i%13, i)
	}
	return sb.String()
}

func runAnalyzer(t *testing.T, cfg Config, input string) (*Result, error) {
	t.Helper()
	a, err := NewAnalyzer(cfg)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	return a.Run(context.Background(), strings.NewReader(input))
}

func sameEntries(t *testing.T, label string, got, want []Entry) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d entries, got %d", label, len(want), len(got))
	}
	for i := range want {
		if string(got[i].Key) != string(want[i].Key) || got[i].Count != want[i].Count {
			t.Fatalf("%s: entry %d is %s=%d, expected %s=%d", label, i, got[i].Key, got[i].Count, want[i].Key, want[i].Count)
		}
	}
}

func TestAnalyzerCounts(t *testing.T) {
	t.Parallel()

	const n = 1000
	res, err := runAnalyzer(t, Config{BufferSize: 4096, PoolSize: 4, Workers: 3}, accessLog(n))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Domains) != 7 || len(res.URIs) != 13 {
		t.Fatalf("expected 7 domains and 13 uris, got %d and %d", len(res.Domains), len(res.URIs))
	}
	var total int64
	for _, e := range res.Domains {
		total += e.Count
	}
	if total != n {
		t.Fatalf("expected %d counted domains, got %d", n, total)
	}
	// Residues 0-5 of i%7 occur 143 times each; equal counts rank by key.
	if string(res.Domains[0].Key) != "host0.example.com" || res.Domains[0].Count != 143 {
		t.Fatalf("unexpected top domain %s=%d", res.Domains[0].Key, res.Domains[0].Count)
	}
	for i := 1; i < len(res.URIs); i++ {
		if res.URIs[i].Count > res.URIs[i-1].Count {
			t.Fatalf("uris not ranked descending at %d", i)
		}
	}
}

func TestAnalyzerIsIdempotent(t *testing.T) {
	t.Parallel()

	input := accessLog(500)
	cfg := Config{BufferSize: 1024, PoolSize: 3, Workers: 4}
	first, err := runAnalyzer(t, cfg, input)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runAnalyzer(t, cfg, input)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	sameEntries(t, "domains", second.Domains, first.Domains)
	sameEntries(t, "uris", second.URIs, first.URIs)
}

func TestAnalyzerIndependentOfBufferSize(t *testing.T) {
	t.Parallel()

	input := accessLog(300)
	longest := 0
	for _, l := range strings.SplitAfter(input, "\n") {
		longest = max(longest, len(l))
	}

	want, err := runAnalyzer(t, Config{BufferSize: len(input) + 1, PoolSize: 2, Workers: 1}, input)
	if err != nil {
		t.Fatalf("reference run: %v", err)
	}
	for _, size := range []int{longest, longest + 1, 2 * longest, 997, 4096} {
		for _, workers := range []int{1, 2, 8} {
			got, err := runAnalyzer(t, Config{BufferSize: size, PoolSize: 2, Workers: workers}, input)
			if err != nil {
				t.Fatalf("buffer %d, workers %d: %v", size, workers, err)
			}
			label := fmt.Sprintf("buffer %d, workers %d", size, workers)
			sameEntries(t, label+" domains", got.Domains, want.Domains)
			sameEntries(t, label+" uris", got.URIs, want.URIs)
		}
	}
}

func TestAnalyzerTrailingLineCountedOnce(t *testing.T) {
	t.Parallel()

	input := "a\tb\tc\tlast.com s s s s /end x"
	res, err := runAnalyzer(t, Config{BufferSize: 64, PoolSize: 2, Workers: 2}, input)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Domains) != 1 || res.Domains[0].Count != 1 || string(res.Domains[0].Key) != "last.com" {
		t.Fatalf("unexpected domains %v", res.Domains)
	}
	if len(res.URIs) != 1 || string(res.URIs[0].Key) != "/end" {
		t.Fatalf("unexpected uris %v", res.URIs)
	}
}

func TestAnalyzerBufferTooSmall(t *testing.T) {
	t.Parallel()

	res, err := runAnalyzer(t, Config{BufferSize: 16, PoolSize: 2, Workers: 2}, accessLog(10))
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("expected ErrBufferTooSmall, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result on a fatal error")
	}
}

func TestAnalyzerMalformedLine(t *testing.T) {
	t.Parallel()

	input := accessLog(50) + "not a log line\n" + accessLog(50)

	_, err := runAnalyzer(t, Config{BufferSize: 512, PoolSize: 4, Workers: 2}, input)
	var me *MalformedLineError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MalformedLineError, got %v", err)
	}
	if want := int64(len(accessLog(50))); me.Offset != want {
		t.Fatalf("expected malformed line at offset %d, got %d", want, me.Offset)
	}

	res, err := runAnalyzer(t, Config{BufferSize: 512, PoolSize: 4, Workers: 2, SkipMalformed: true}, input)
	if err != nil {
		t.Fatalf("lenient run: %v", err)
	}
	var total int64
	for _, e := range res.Domains {
		total += e.Count
	}
	if total != 100 {
		t.Fatalf("expected 100 counted lines, got %d", total)
	}
}

func TestAnalyzerCancelled(t *testing.T) {
	t.Parallel()

	a, err := NewAnalyzer(Config{BufferSize: 256, PoolSize: 2, Workers: 1})
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Run(ctx, strings.NewReader(accessLog(1000))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// ctxReader returns data once, then blocks until ctx is done.
type ctxReader struct {
	ctx  context.Context
	data []byte
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func TestAnalyzerWorkerFailureStopsBlockedReader(t *testing.T) {
	t.Parallel()

	a, err := NewAnalyzer(Config{BufferSize: 16, PoolSize: 2, Workers: 1})
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}

	// One full buffer holding a malformed line, then a reader that only
	// returns once the run context is cancelled.
	done := make(chan error, 1)
	go func() {
		_, err := a.RunSource(context.Background(), func(ctx context.Context) (io.ReadCloser, error) {
			return io.NopCloser(&ctxReader{ctx: ctx, data: []byte("not a log line!\n")}), nil
		})
		done <- err
	}()

	select {
	case err := <-done:
		var me *MalformedLineError
		if !errors.As(err, &me) {
			t.Fatalf("expected the worker's *MalformedLineError, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after the worker failed")
	}
}

func TestAnalyzerOpenError(t *testing.T) {
	t.Parallel()

	a, err := NewAnalyzer(Config{BufferSize: 64, PoolSize: 2, Workers: 2})
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	errOpen := errors.New("no such input")
	_, err = a.RunSource(context.Background(), func(context.Context) (io.ReadCloser, error) {
		return nil, errOpen
	})
	if !errors.Is(err, errOpen) {
		t.Fatalf("expected the open error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Defaults", DefaultConfig(), false},
		{"Tiny buffer", Config{BufferSize: 1, PoolSize: 2, Workers: 1}, true},
		{"Single buffer pool", Config{BufferSize: 64, PoolSize: 1, Workers: 1}, true},
		{"No workers", Config{BufferSize: 64, PoolSize: 2, Workers: 0}, true},
		{"Too many workers", Config{BufferSize: 64, PoolSize: 2, Workers: MaxWorkers + 1}, true},
		{"Negative table", Config{BufferSize: 64, PoolSize: 2, Workers: 1, TableSize: -1}, true},
	}
	for _, tc := range testCases {
		if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
