/*
Package source opens the byte stream a counting run reads from.

An input name is a local path, "-" for standard input, or an s3://bucket/key
object URL. Names ending in .gz, .zst or .lz4 are decoded on the fly. An
optional read-rate limit throttles the stream before it reaches the pool.
*/
package source

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
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// StdinName selects standard input.
const StdinName = "-"

// Compression is the decoding applied to an input.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	}
	return "none"
}

// Options configure Open.
type Options struct {
	ReadRate int64    // Bytes per second, 0 for unlimited.
	S3       S3Config // Used for s3:// names.
}

// DetectCompression picks the decoder from the name's extension.
func DetectCompression(name string) Compression {
	switch strings.ToLower(path.Ext(name)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	case ".lz4":
		return LZ4
	}
	return None
}

// Open returns a reader over the decoded content of name. The caller closes it.
func Open(ctx context.Context, name string, opts Options) (io.ReadCloser, error) {
	raw, err := openRaw(ctx, name, opts)
	if err != nil {
		return nil, err
	}

	r, err := decode(raw, DetectCompression(name))
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	if opts.ReadRate > 0 {
		r = &readCloser{Reader: NewThrottledReader(ctx, r, opts.ReadRate), closers: []io.Closer{r}}
	}
	return r, nil
}

func openRaw(ctx context.Context, name string, opts Options) (io.ReadCloser, error) {
	switch {
	case name == StdinName:
		return io.NopCloser(os.Stdin), nil
	case IsS3(name):
		return openS3(ctx, name, opts.S3)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	adviseSequential(f)
	return f, nil
}

// decode wraps raw with the decoder for c. Closing the result closes raw.
func decode(raw io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, raw}}, nil
	case Zstd:
		zr, err := zstd.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), raw}}, nil
	case LZ4:
		return &readCloser{Reader: lz4.NewReader(raw), closers: []io.Closer{raw}}, nil
	}
	return raw, nil
}

// readCloser closes every layer of a decoding chain, outermost first.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BaseName strips directories, the compression extension and a trailing .log
// from an input name. Standard input is named "stdin".
func BaseName(name string) string {
	if name == StdinName {
		return "stdin"
	}
	if IsS3(name) {
		_, key, err := ParseS3URL(name)
		if err == nil {
			name = key
		}
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if DetectCompression(base) != None {
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	base = strings.TrimSuffix(base, ".log")
	if base == "" || base == "." || base == "/" {
		return "input"
	}
	return base
}
