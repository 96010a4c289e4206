/*
Package core constants shared by the streaming and counting pipeline.
They size the buffer pool, the worker queue, and the count tables, and set the
cadence of progress reporting. Everything here is a default; the config layer
can override the user-facing values.
*/
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
	"time"
)

const (
	// --- Memory ---

	// DefaultBufferSize is the capacity of each pool buffer. A single input line,
	// newline included, must fit into one buffer.
	DefaultBufferSize = 1 << 20 // 1 MiB

	// MinBufferSize is the smallest accepted buffer capacity.
	MinBufferSize = 2

	// DefaultPoolSize is the number of buffers shared by the reader and the workers.
	// It bounds resident input memory to DefaultPoolSize * DefaultBufferSize.
	DefaultPoolSize = 32

	// MinPoolSize keeps one buffer for the reader while a worker holds another.
	MinPoolSize = 2

	// MaxWorkers is an upper limit on worker goroutines regardless of CPU count.
	MaxWorkers = 2048

	// DefaultTableSize is the initial slot count of a per-worker count table.
	DefaultTableSize = 1 << 12

	// --- Output ---

	// DefaultTopN is how many rows each report keeps. A negative value keeps all.
	DefaultTopN = 10

	// DefaultReportName prefixes the report file names.
	DefaultReportName = "report"

	// DefaultDiskBufferSize sizes the bufio.Writer behind report files.
	DefaultDiskBufferSize = 256 * 1024 // 256KB

	// --- Observability ---

	// StatsReportInterval is how often the CLI prints progress while a run is active.
	StatsReportInterval = 2 * time.Second
)
