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
	"sync/atomic"
	"time"
)

// Stats holds run counters shared between the reader, the workers, and the
// progress display. All fields are updated atomically.
type Stats struct {
	BytesRead        atomic.Int64
	UnitsSubmitted   atomic.Int64
	UnitsProcessed   atomic.Int64
	Lines            atomic.Int64
	MalformedSkipped atomic.Int64
	PoolWaits        atomic.Int64
	StartTime        time.Time
}

// NewStats returns zeroed counters with StartTime set to now.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now()}
}

// Elapsed is the time since the run started.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

// Throughput is the average input rate in bytes per second.
func (s *Stats) Throughput() float64 {
	secs := s.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesRead.Load()) / secs
}
