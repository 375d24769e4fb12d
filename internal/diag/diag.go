// Package diag keeps a bounded in-memory trail of recent pipeline events for
// the debug endpoint. It is not a log: the ring overwrites oldest-first and
// survives only for the process lifetime.
package diag

import (
	"sync"
	"time"
)

// DefaultRingSize is the default ring buffer capacity.
const DefaultRingSize = 512

// Kind identifies the category of a diagnostic event.
// Dot-delimited: "<subsystem>.<action>".
type Kind string

const (
	KindPostCreate    Kind = "post.create"
	KindPostDelete    Kind = "post.delete"
	KindFeedPage      Kind = "feed.page"
	KindFeedReveal    Kind = "feed.reveal"
	KindMediaUpload   Kind = "media.upload"
	KindCycleComplete Kind = "trending.cycle"
	KindCycleError    Kind = "trending.error"
	KindWSPush        Kind = "ws.push"
)

// Event is one diagnostic record.
type Event struct {
	Time  time.Time `json:"t"`
	Kind  Kind      `json:"kind"`
	ID    string    `json:"id,omitempty"`    // post id when relevant
	Count int       `json:"count,omitempty"` // items affected
	Err   string    `json:"err,omitempty"`
	Msg   string    `json:"msg,omitempty"`
}

// Ring is a fixed-size circular buffer of Events. Goroutine-safe.
type Ring struct {
	mu    sync.Mutex
	buf   []Event
	size  int
	head  int // next write position
	count int
}

// NewRing creates a ring buffer with the given capacity.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{
		buf:  make([]Event, size),
		size: size,
	}
}

// Push adds an event, overwriting the oldest if full. A zero Time is filled
// in with the current time.
func (r *Ring) Push(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	r.buf[r.head] = e
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
	r.mu.Unlock()
}

// Snapshot returns a copy of all buffered events, oldest first.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	out := make([]Event, r.count)
	if r.count < r.size {
		copy(out, r.buf[:r.count])
	} else {
		n := copy(out, r.buf[r.head:])
		copy(out[n:], r.buf[:r.head])
	}
	return out
}

// Last returns the n most recent events, oldest first.
func (r *Ring) Last(n int) []Event {
	if n <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]Event, n)
	start := (r.head - n + r.size) % r.size
	if start+n <= r.size {
		copy(out, r.buf[start:start+n])
	} else {
		first := r.size - start
		copy(out, r.buf[start:])
		copy(out[first:], r.buf[:n-first])
	}
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Stats returns event counts by kind over the buffer.
func (r *Ring) Stats() map[Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[Kind]int)
	start := 0
	if r.count >= r.size {
		start = r.head
	}
	for i := 0; i < r.count; i++ {
		counts[r.buf[(start+i)%r.size].Kind]++
	}
	return counts
}

var defaultRing = NewRing(DefaultRingSize)

// Record pushes an event onto the process-wide ring.
func Record(e Event) {
	defaultRing.Push(e)
}

// Recent returns the n most recent process-wide events, oldest first.
func Recent(n int) []Event {
	return defaultRing.Last(n)
}

// Counts returns process-wide event counts by kind.
func Counts() map[Kind]int {
	return defaultRing.Stats()
}
