package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
)

// ErrOutputLimit is returned when a bounded writer exceeds its configured cap.
var ErrOutputLimit = errors.New("OUTPUT_LIMIT")

// BoundedBuffer is an io.Writer implementation that caps total bytes written.
// When the cap is exceeded, it truncates additional input and returns ErrOutputLimit.
//
// A zero or negative maxKB defaults to 4 MiB, which comfortably holds the
// report text any of the legacy evaluation programs print.
type BoundedBuffer struct {
	buf       bytes.Buffer
	capBytes  int
	truncated bool
}

// NewBoundedBuffer creates a new BoundedBuffer with the provided maxKB capacity.
func NewBoundedBuffer(maxKB int) *BoundedBuffer {
	if maxKB <= 0 {
		maxKB = 4096
	}
	return &BoundedBuffer{capBytes: maxKB * 1024}
}

// Write appends p to the buffer up to the capacity. If the write causes
// the capacity to be exceeded, the write is truncated and ErrOutputLimit is returned.
func (b *BoundedBuffer) Write(p []byte) (int, error) {
	remaining := b.capBytes - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return 0, ErrOutputLimit
	}
	if len(p) > remaining {
		_, _ = b.buf.Write(p[:remaining])
		b.truncated = true
		return remaining, ErrOutputLimit
	}
	return b.buf.Write(p)
}

// Sink returns a writer that stores up to the capacity and silently drops
// the rest. A child process writing to it never sees a write error, so its
// output pipe keeps draining after the cap is reached.
func (b *BoundedBuffer) Sink() io.Writer { return sink{b} }

type sink struct{ b *BoundedBuffer }

func (s sink) Write(p []byte) (int, error) {
	_, _ = s.b.Write(p)
	return len(p), nil
}

// Bytes returns the current contents (may be truncated if cap exceeded).
func (b *BoundedBuffer) Bytes() []byte { return b.buf.Bytes() }

// String returns the current contents as string (may be truncated).
func (b *BoundedBuffer) String() string { return b.buf.String() }

// Truncated reports whether any write exceeded the cap.
func (b *BoundedBuffer) Truncated() bool { return b.truncated }

// WithWallTimeout returns a derived context that is canceled after d.
// A non-positive d leaves the parent deadline in charge.
func WithWallTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
