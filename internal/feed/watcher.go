package feed

import (
	"context"
	"sync"
	"time"

	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/model"
)

// Watcher buffers posts authored by other users into a pending list instead
// of mutating the feed directly, so a live notification never shifts the
// viewer's scroll position. The viewer reveals the buffered posts
// explicitly.
type Watcher struct {
	mu       sync.Mutex
	feed     *Feed
	viewerID string
	window   time.Duration
	pending  []model.Post

	now func() time.Time
}

// NewWatcher creates a watcher for the given feed. Posts older than window
// at notification time are ignored.
func NewWatcher(f *Feed, viewerID string, window time.Duration) *Watcher {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Watcher{
		feed:     f,
		viewerID: viewerID,
		window:   window,
		now:      time.Now,
	}
}

// Run consumes notifications until the channel closes or ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, notifications <-chan model.Post) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-notifications:
			if !ok {
				return
			}
			w.Observe(p)
		}
	}
}

// Observe applies the pending-list filter to a single notification:
// recent enough, authored by someone else, and not already known.
func (w *Watcher) Observe(p model.Post) {
	if w.now().Sub(p.CreatedAt) > w.window {
		return
	}
	if p.AuthorID == w.viewerID {
		return
	}
	if w.feed.Contains(p.ID) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, q := range w.pending {
		if q.ID == p.ID {
			return
		}
	}
	w.pending = append([]model.Post{p.Clone()}, w.pending...)
	logging.Debug("Post buffered for reveal", "id", p.ID, "pending", len(w.pending))
}

// Pending returns a copy of the buffered posts, newest-first.
func (w *Watcher) Pending() []model.Post {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]model.Post, len(w.pending))
	copy(out, w.pending)
	return out
}

// PendingCount returns the number of buffered posts.
func (w *Watcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// RevealPending moves the whole pending list to the front of the feed in one
// update and clears it. Invoked only by explicit user action.
func (w *Watcher) RevealPending() []model.Post {
	w.mu.Lock()
	revealed := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(revealed) > 0 {
		w.feed.PrependConfirmed(revealed)
	}
	return revealed
}
