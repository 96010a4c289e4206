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
	"io"
	"time"

	"github.com/x-stp/fastread/internal/metrics"
	"golang.org/x/time/rate"
)

// throttledReader limits the byte rate of an underlying reader.
type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewThrottledReader returns a reader that delivers at most bytesPerSec bytes
// per second on average. Waiting honors ctx.
func NewThrottledReader(ctx context.Context, r io.Reader, bytesPerSec int64) io.Reader {
	burst := int(bytesPerSec)
	if int64(burst) != bytesPerSec || burst <= 0 {
		burst = 1 << 30
	}
	return &throttledReader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		start := time.Now()
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
		if metrics.IsMetricsEnabled() {
			metrics.ObserveSince(metrics.GetMetrics().ReadThrottleDelay, start)
		}
	}
	return n, err
}
