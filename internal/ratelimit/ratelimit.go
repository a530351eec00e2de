// Package ratelimit provides a stdlib-only token bucket limiter used to
// pace data-channel transfers. Pacing is optional and purely a courtesy
// to the network; it never changes transfer semantics.
package ratelimit

import (
	"io"
	"sync"
	"time"
)

// Limiter is a token bucket sized to one second of the configured rate,
// so short bursts are allowed while the average rate holds.
type Limiter struct {
	rate   float64 // bytes per second
	tokens float64
	last   time.Time
	mu     sync.Mutex
}

// New returns a limiter for the given bytes-per-second rate, or nil when
// the rate is not positive. A nil *Limiter is a valid no-op.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	r := float64(bytesPerSecond)
	return &Limiter{rate: r, tokens: r, last: time.Now()}
}

func (l *Limiter) refill(now time.Time) {
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.rate {
		l.tokens = l.rate
	}
	l.last = now
}

// take blocks until n tokens are available, waiting at most one second
// per call so a large n cannot stall a transfer indefinitely.
func (l *Limiter) take(n int) {
	if l == nil || n <= 0 {
		return
	}
	need := float64(n)

	l.mu.Lock()
	l.refill(time.Now())
	if l.tokens >= need {
		l.tokens -= need
		l.mu.Unlock()
		return
	}
	wait := time.Duration((need - l.tokens) / l.rate * float64(time.Second))
	if wait > time.Second {
		wait = time.Second
	}
	l.mu.Unlock()

	time.Sleep(wait)

	l.mu.Lock()
	l.refill(time.Now())
	if l.tokens >= need {
		l.tokens -= need
	} else {
		l.tokens = 0
	}
	l.mu.Unlock()
}

type writer struct {
	w io.Writer
	l *Limiter
}

// NewWriter wraps w so writes consume tokens before hitting the wire.
// A nil limiter returns w unchanged.
func NewWriter(w io.Writer, l *Limiter) io.Writer {
	if l == nil {
		return w
	}
	return &writer{w: w, l: l}
}

func (w *writer) Write(p []byte) (int, error) {
	const chunk = 64 * 1024

	total := 0
	for total < len(p) {
		n := len(p) - total
		if n > chunk {
			n = chunk
		}
		w.l.take(n)
		written, err := w.w.Write(p[total : total+n])
		total += written
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type reader struct {
	r io.Reader
	l *Limiter
}

// NewReader wraps r so reads consume tokens first. A nil limiter returns
// r unchanged.
func NewReader(r io.Reader, l *Limiter) io.Reader {
	if l == nil {
		return r
	}
	return &reader{r: r, l: l}
}

func (r *reader) Read(p []byte) (int, error) {
	const chunk = 8 * 1024

	if len(p) == 0 {
		return 0, nil
	}
	n := len(p)
	if n > chunk {
		n = chunk
	}
	r.l.take(n)
	return r.r.Read(p[:n])
}
