// Package throttle provides an optional token-bucket rate limit on the
// sender's outbound chunk writes. Bandwidth capping is not a protocol
// requirement; it is an operator-facing transport-rate control.
package throttle

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxBurstSize bounds a single Write's token reservation so one big chunk
// write doesn't demand an enormous, latency-spiking burst from the
// limiter.
const maxBurstSize = 256 * 1024

// Writer wraps an io.Writer with a token-bucket rate limit.
type Writer struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewWriter wraps w with a rate limit of bytesPerSec. If bytesPerSec <= 0
// it returns w unchanged, so callers can unconditionally wrap without a
// branch at every call site.
func NewWriter(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst > maxBurstSize {
		burst = maxBurstSize
	}

	return &Writer{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Write paces writes to stay within the configured rate, splitting writes
// larger than the limiter's burst size into chunks so large chunk writes
// don't demand a single oversized reservation.
func (tw *Writer) Write(p []byte) (int, error) {
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
