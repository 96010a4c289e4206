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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// TmpSuffix marks a report file that has not been committed yet.
const TmpSuffix = ".tmp"

var (
	// ErrFileClosed is returned when writing to a committed or aborted file.
	ErrFileClosed = errors.New("report file closed")
)

// FileOptions configures a File.
type FileOptions struct {
	BufferSize int
	Compressed bool
}

// File is a buffered, optionally gzip-compressed output file that only appears
// under its final name once Commit succeeds. Until then it lives at path+".tmp".
type File struct {
	path      string
	tmpPath   string
	file      *os.File
	gzWriter  *gzip.Writer
	bufWriter *bufio.Writer
	closed    bool
}

// CreateFile opens path+".tmp" for writing, creating the directory if needed.
func CreateFile(path string, options FileOptions) (*File, error) {
	if options.BufferSize <= 0 {
		options.BufferSize = defaultBufferSize
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + TmpSuffix
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", tmpPath, err)
	}

	f := &File{path: path, tmpPath: tmpPath, file: file}
	if options.Compressed {
		gzw, err := gzip.NewWriterLevel(file, gzip.BestSpeed)
		if err != nil {
			file.Close()
			os.Remove(tmpPath)
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		f.gzWriter = gzw
		f.bufWriter = bufio.NewWriterSize(gzw, options.BufferSize)
	} else {
		f.bufWriter = bufio.NewWriterSize(file, options.BufferSize)
	}
	return f, nil
}

// Path is the final name of the file.
func (f *File) Path() string { return f.path }

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, ErrFileClosed
	}
	n, err := f.bufWriter.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to buffer: %w", err)
	}
	return n, nil
}

// Commit flushes every layer, syncs, and renames the file to its final name.
func (f *File) Commit() error {
	if f.closed {
		return ErrFileClosed
	}
	f.closed = true

	if err := f.flushAndClose(); err != nil {
		os.Remove(f.tmpPath)
		return err
	}
	if err := os.Rename(f.tmpPath, f.path); err != nil {
		os.Remove(f.tmpPath)
		return fmt.Errorf("failed to rename %s: %w", f.tmpPath, err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (f *File) Abort() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.file.Close()
	if err := os.Remove(f.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) flushAndClose() error {
	if err := f.bufWriter.Flush(); err != nil {
		f.file.Close()
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if f.gzWriter != nil {
		if err := f.gzWriter.Close(); err != nil {
			f.file.Close()
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	if err := f.file.Sync(); err != nil {
		f.file.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return f.file.Close()
}

var _ io.Writer = (*File)(nil)
