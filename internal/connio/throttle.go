// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package connio

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize caps the token bucket burst to keep a single outbound
// command pipeline from reserving an enormous number of tokens at once.
const maxBurstSize = 256 * 1024

// throttledWriter rate-limits outbound command bytes, adapted from the
// teacher's ThrottledWriter: same burst-chunked WaitN loop, generalized
// from backup-stream bytes to RESP3 command bytes on the connection's
// write loop.
type throttledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// newThrottledWriter wraps w with a token-bucket rate limiter. If
// bytesPerSec <= 0, w is returned unwrapped (no limiting).
func newThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}
	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}
	return &throttledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Write divides writes larger than the burst size into chunks so tokens
// are consumed gradually rather than reserved all at once.
func (tw *throttledWriter) Write(p []byte) (int, error) {
	totalWritten := 0
	for len(p) > 0 {
		chunk := len(p)
		if chunk > tw.limiter.Burst() {
			chunk = tw.limiter.Burst()
		}
		if err := tw.limiter.WaitN(tw.ctx, chunk); err != nil {
			return totalWritten, err
		}
		n, err := tw.w.Write(p[:chunk])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}
		p = p[n:]
	}
	return totalWritten, nil
}
