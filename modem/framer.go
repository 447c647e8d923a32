package modem

import (
	"context"
	"fmt"
	"time"

	"i4.energy/across/windsensor/at"
)

// minReadTimeout keeps a nearly expired deadline from turning a read into
// a non-blocking poll or, for some drivers, an unbounded one.
const minReadTimeout = time.Millisecond

// lineReader splits the modem byte stream into lines. Bytes of an
// unterminated line survive across calls; received bytes not yet consumed
// are kept in pending.
type lineReader struct {
	transport Transport
	clock     Clock
	capacity  int

	buf     []byte
	pending []byte
	chunk   []byte
	dropped int
}

func newLineReader(t Transport, clock Clock, capacity int) *lineReader {
	return &lineReader{
		transport: t,
		clock:     clock,
		capacity:  capacity,
		buf:       make([]byte, 0, capacity),
		chunk:     make([]byte, capacity),
	}
}

// readLine returns the next line with leading and trailing CR/LF removed.
// Blank lines come back as "". On ErrLineTooLong the buffered bytes have
// been dropped; on ErrReadTimeout they are kept.
func (r *lineReader) readLine(ctx context.Context, timeout time.Duration) (string, error) {
	dl := newDeadline(ctx, r.clock, timeout)

	for {
		for len(r.pending) > 0 {
			b := r.pending[0]
			r.pending = r.pending[1:]

			r.buf = append(r.buf, b)
			if b == at.LF {
				line := trimTerminators(r.buf)
				r.buf = r.buf[:0]
				return line, nil
			}
			if len(r.buf) >= r.capacity {
				r.buf = r.buf[:0]
				r.dropped++
				return "", ErrLineTooLong
			}
		}

		if dl.expired() {
			return "", ErrReadTimeout
		}
		if err := r.fill(dl.remaining()); err != nil {
			return "", err
		}
	}
}

// fill reads whatever arrives within timeout into pending.
func (r *lineReader) fill(timeout time.Duration) error {
	if err := r.transport.SetReadTimeout(max(timeout, minReadTimeout)); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	n, err := r.transport.Read(r.chunk)
	if n > 0 {
		r.pending = r.chunk[:n]
	}
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	return nil
}

// widen raises the line capacity to at least capacity until the returned
// func is called.
func (r *lineReader) widen(capacity int) (restore func()) {
	prev := r.capacity
	r.capacity = max(prev, capacity)
	return func() { r.capacity = prev }
}

// reset drops partial and pending input.
func (r *lineReader) reset() {
	r.buf = r.buf[:0]
	r.pending = nil
}

func trimTerminators(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == '\r' || b[end-1] == '\n' || b[end-1] == 0) {
		end--
	}
	start := 0
	for start < end && (b[start] == '\r' || b[start] == '\n') {
		start++
	}
	return string(b[start:end])
}
