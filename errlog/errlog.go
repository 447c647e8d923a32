// Package errlog keeps a bounded, comma separated log of error tokens that
// survives across delivery attempts until a delivery is acknowledged.
package errlog

import (
	"strings"
	"sync"
)

const (
	// Separator joins tokens in a snapshot.
	Separator = ','

	// DefaultCapacity is the maximum snapshot length, separators included.
	DefaultCapacity = 300
)

// Log is a bounded append-only token buffer, safe for concurrent use. The
// zero value is not usable, create one with New.
type Log struct {
	mu       sync.Mutex
	buf      []byte
	capacity int
}

// New returns an empty log holding at most capacity bytes. A capacity
// below one falls back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Capacity returns the maximum snapshot length.
func (l *Log) Capacity() int {
	return l.capacity
}

// Append adds token to the end of the log. Tokens longer than the whole
// capacity and empty tokens are dropped. When the token does not fit,
// whole tokens are evicted from the front until it does.
func (l *Log) Append(token string) {
	if token == "" || len(token) > l.capacity {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	separator := 0
	if len(l.buf) > 0 {
		separator = 1
	}

	if excess := len(l.buf) + separator + len(token) - l.capacity; excess > 0 {
		l.evict(excess)
	}

	if len(l.buf) > 0 {
		l.buf = append(l.buf, Separator)
	}
	l.buf = append(l.buf, token...)
}

// evict drops the shortest prefix of whole tokens (plus their trailing
// separator) that is at least excess bytes long. If the cut would land
// inside the last token the log is emptied.
func (l *Log) evict(excess int) {
	from := excess - 1
	if from >= len(l.buf) {
		l.buf = l.buf[:0]
		return
	}

	i := strings.IndexByte(string(l.buf[from:]), Separator)
	if i < 0 {
		l.buf = l.buf[:0]
		return
	}

	cut := from + i + 1
	n := copy(l.buf, l.buf[cut:])
	l.buf = l.buf[:n]
}

// Snapshot returns the current content.
func (l *Log) Snapshot() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return string(l.buf)
}

// Tokens returns the logged tokens, oldest first.
func (l *Log) Tokens() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) == 0 {
		return nil
	}
	return strings.Split(string(l.buf), string(Separator))
}

// Len returns the snapshot length.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = l.buf[:0]
}
