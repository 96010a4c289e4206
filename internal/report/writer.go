/*
Package report writes ranked counts as CSV files.

Each field gets its own file, <name>_domain.csv and <name>_uri.csv, with one
row per key in rank order:

	"example.com",42

Double quotes inside a key are doubled. Both files are written under a
temporary name and only renamed once both are complete, so a failed run
leaves no report behind.
*/
package report

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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/x-stp/fastread/internal/core"
	"github.com/x-stp/fastread/internal/metrics"
	"github.com/x-stp/fastread/internal/util"
)

const defaultBufferSize = core.DefaultDiskBufferSize

// Field names used in report file names.
const (
	FieldDomain = "domain"
	FieldURI    = "uri"
)

// Options configure a Writer.
type Options struct {
	Dir        string // Output directory, created if missing.
	Name       string // File name prefix.
	TopN       int    // Rows per file, negative for all.
	Compress   bool   // Write .csv.gz instead of .csv.
	BufferSize int
}

// Writer writes the domain and uri reports of a run.
type Writer struct {
	opts Options
}

// NewWriter returns a Writer. An empty name falls back to core.DefaultReportName.
func NewWriter(opts Options) *Writer {
	opts.Name = util.SanitizeFilename(opts.Name)
	if opts.Name == "" {
		opts.Name = core.DefaultReportName
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	return &Writer{opts: opts}
}

// Path returns the final path of the report for field.
func (w *Writer) Path(field string) string {
	name := w.opts.Name + "_" + field + ".csv"
	if w.opts.Compress {
		name += ".gz"
	}
	return filepath.Join(w.opts.Dir, name)
}

// Write writes both reports and returns their paths, domain first.
func (w *Writer) Write(res *core.Result) ([]string, error) {
	parts := []struct {
		field   string
		entries []core.Entry
	}{
		{FieldDomain, res.Domains},
		{FieldURI, res.URIs},
	}

	files := make([]*File, 0, len(parts))
	abort := func() {
		for _, f := range files {
			f.Abort()
		}
	}

	for _, p := range parts {
		f, err := CreateFile(w.Path(p.field), FileOptions{BufferSize: w.opts.BufferSize, Compressed: w.opts.Compress})
		if err != nil {
			abort()
			return nil, err
		}
		files = append(files, f)

		rows, err := WriteCSV(f, core.TopN(p.entries, w.opts.TopN))
		if err != nil {
			abort()
			return nil, fmt.Errorf("write %s report: %w", p.field, err)
		}
		if metrics.IsMetricsEnabled() {
			metrics.GetMetrics().ReportRows.WithLabelValues(p.field).Add(float64(rows))
		}
	}

	paths := make([]string, 0, len(files))
	for i, f := range files {
		if err := f.Commit(); err != nil {
			for _, rest := range files[i+1:] {
				rest.Abort()
			}
			// Reports only exist as a pair.
			for _, p := range paths {
				os.Remove(p)
			}
			return nil, fmt.Errorf("commit %s: %w", f.Path(), err)
		}
		paths = append(paths, f.Path())
	}
	return paths, nil
}

// WriteCSV writes one "key",count row per entry and returns the row count.
func WriteCSV(w io.Writer, entries []core.Entry) (int, error) {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	var num [20]byte
	for i, e := range entries {
		if err := writeQuoted(bw, e.Key); err != nil {
			return i, err
		}
		bw.WriteByte(',')
		bw.Write(strconv.AppendInt(num[:0], e.Count, 10))
		if err := bw.WriteByte('\n'); err != nil {
			return i, err
		}
	}
	return len(entries), bw.Flush()
}

func writeQuoted(bw *bufio.Writer, key []byte) error {
	bw.WriteByte('"')
	start := 0
	for i, c := range key {
		if c == '"' {
			bw.Write(key[start : i+1])
			bw.WriteByte('"')
			start = i + 1
		}
	}
	bw.Write(key[start:])
	return bw.WriteByte('"')
}
