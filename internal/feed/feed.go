// Package feed maintains the in-memory post list shown to the viewer:
// optimistic creation, counter projection, one-page-ahead prefetch, and the
// pending list for live updates.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/model"
	"github.com/bholo-app/bholo/internal/store"
)

// EntryState tracks a cached post's confirmation status.
type EntryState int

const (
	// StateProvisional means the post was created locally and the store
	// write or media uploads have not resolved yet.
	StateProvisional EntryState = iota
	// StateConfirmed means the store has assigned the authoritative
	// timestamp and all media patches have landed.
	StateConfirmed
)

// Uploader moves a single media item to durable storage. Items already in
// the uploaded state must be returned unchanged without re-uploading.
type Uploader interface {
	Upload(ctx context.Context, postID string, m model.Media) (model.Media, error)
}

// Draft is the caller-supplied input for a new post.
type Draft struct {
	AuthorID     string
	AuthorName   string
	AuthorHandle string
	AuthorAvatar string
	Content      string
	Media        []model.Media
	Poll         *model.Poll
	TribeID      string
}

// delta is one locally-pending counter mutation awaiting store confirmation.
type delta struct {
	counter store.Counter
	amount  int
}

// entry is one cached post. post holds the last-confirmed state; pending
// holds deltas not yet resolved by the store. The displayed post is always
// recomputed as post + pending, so a failed transaction simply drops its
// delta instead of requiring an inverse patch.
type entry struct {
	post    model.Post
	state   EntryState
	pending []*delta
}

func (e *entry) projected() model.Post {
	p := e.post.Clone()
	for _, d := range e.pending {
		switch d.counter {
		case store.CounterLikes:
			p.Likes += d.amount
		case store.CounterReposts:
			p.Reposts += d.amount
		case store.CounterComments:
			p.Comments += d.amount
		case store.CounterViews:
			p.Views += d.amount
		}
	}
	clampCounters(&p)
	return p
}

func clampCounters(p *model.Post) {
	if p.Likes < 0 {
		p.Likes = 0
	}
	if p.Reposts < 0 {
		p.Reposts = 0
	}
	if p.Comments < 0 {
		p.Comments = 0
	}
	if p.Views < 0 {
		p.Views = 0
	}
}

// page is a resolved prefetch buffer.
type page struct {
	cursor string
	posts  []model.Post
}

// Feed is the optimistic post cache for one viewer session. All exported
// methods are safe for concurrent use.
type Feed struct {
	mu       sync.Mutex
	store    Store
	adapter  *Adapter
	uploader Uploader
	viewerID string
	pageSize int

	entries   []*entry
	index     map[string]*entry
	bookmarks map[string]bool

	nextCursor   string // id of the oldest post returned by the last page fetch
	prefetch     *page
	prefetchWant string // cursor of the in-flight prefetch; mismatched results are discarded

	wg sync.WaitGroup
}

// New creates a feed cache over the given store. The viewer's persisted
// bookmarks are preloaded so they survive a restart.
func New(s Store, uploader Uploader, viewerID string, pageSize int) *Feed {
	if pageSize <= 0 {
		pageSize = 20
	}
	f := &Feed{
		store:     s,
		adapter:   NewAdapter(s),
		uploader:  uploader,
		viewerID:  viewerID,
		pageSize:  pageSize,
		index:     make(map[string]*entry),
		bookmarks: make(map[string]bool),
	}
	if marks, err := s.Bookmarks(context.Background(), viewerID); err != nil {
		logging.Warn("Bookmark preload failed", "viewer", viewerID, "error", err)
	} else {
		for id := range marks {
			f.bookmarks[id] = true
		}
	}
	return f
}

// ViewerID returns the identity of the session owner.
func (f *Feed) ViewerID() string {
	return f.viewerID
}

// Posts returns the current ordered view, newest-first, with pending counter
// deltas projected in.
func (f *Feed) Posts() []model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Post, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.projected())
	}
	return out
}

// Contains reports whether a post id is present in the cache.
func (f *Feed) Contains(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.index[id]
	return ok
}

// State returns the confirmation state of a cached post.
func (f *Feed) State(id string) (EntryState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.index[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Bookmarked reports whether the viewer has bookmarked the post, including
// optimistic local state.
func (f *Feed) Bookmarked(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookmarks[id]
}

// AddPost inserts a provisional post immediately and returns it. The store
// write and media uploads run in the background; the cache entry is patched
// in place when they resolve. The returned post's CreatedAt is a display
// estimate until confirmation.
func (f *Feed) AddPost(draft Draft) model.Post {
	provisional := model.Post{
		ID:           uuid.NewString(),
		AuthorID:     draft.AuthorID,
		AuthorName:   draft.AuthorName,
		AuthorHandle: draft.AuthorHandle,
		AuthorAvatar: draft.AuthorAvatar,
		Content:      draft.Content,
		CreatedAt:    time.Now(),
		Media:        draft.Media,
		Poll:         draft.Poll,
		TribeID:      draft.TribeID,
	}

	e := &entry{post: provisional.Clone(), state: StateProvisional}
	f.mu.Lock()
	f.entries = append([]*entry{e}, f.entries...)
	f.index[provisional.ID] = e
	f.mu.Unlock()

	f.wg.Add(1)
	go f.confirm(provisional.Clone())

	return provisional
}

// confirm persists a provisional post, uploads its media, and patches the
// cache entry in place. Failures degrade silently: the post stays visible
// with whatever state resolved.
func (f *Feed) confirm(p model.Post) {
	defer f.wg.Done()
	ctx := context.Background()

	if err := f.store.CreatePost(ctx, &p); err != nil {
		logging.Error("Post create failed, entry stays provisional", "id", p.ID, "error", err)
		return
	}

	// Store assigned the authoritative timestamp; patch it in without
	// moving the entry.
	f.patch(p.ID, func(e *entry) {
		e.post.CreatedAt = p.CreatedAt
	})

	media, uploaded := f.uploadMedia(ctx, p.ID, p.Media)
	if uploaded {
		if err := f.store.ConfirmMedia(ctx, p.ID, media); err != nil {
			logging.Error("Media confirm failed", "id", p.ID, "error", err)
		}
	}

	f.patch(p.ID, func(e *entry) {
		e.post.Media = media
		e.state = StateConfirmed
	})
}

// uploadMedia uploads pending items in parallel. Already-uploaded items are
// passed through untouched. A failed item keeps its pending state; the
// second return reports whether anything changed.
func (f *Feed) uploadMedia(ctx context.Context, postID string, media []model.Media) ([]model.Media, bool) {
	if len(media) == 0 || f.uploader == nil {
		return media, false
	}

	out := make([]model.Media, len(media))
	copy(out, media)

	var mu sync.Mutex
	changed := false

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range media {
		if m.State != model.MediaPending {
			continue
		}
		i, m := i, m
		g.Go(func() error {
			up, err := f.uploader.Upload(gctx, postID, m)
			if err != nil {
				// Not retried; the item stays pending.
				logging.Warn("Media upload failed", "post", postID, "url", m.LocalURL, "error", err)
				return nil
			}
			mu.Lock()
			out[i] = up
			changed = true
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return out, changed
}

// patch applies fn to the entry for id under the lock. No-op if the entry
// was removed in the meantime.
func (f *Feed) patch(id string, fn func(*entry)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.index[id]; ok {
		fn(e)
	}
}

// FetchPage loads the next page into the cache and returns it. The first
// call fetches the newest page; subsequent calls continue from the last
// page's oldest post. If a prefetched buffer matches the cursor it is served
// without a store round trip. Errors surface as an empty page.
func (f *Feed) FetchPage(ctx context.Context) []model.Post {
	f.mu.Lock()
	cursor := f.nextCursor

	if buf := f.prefetch; buf != nil && buf.cursor == cursor {
		f.prefetch = nil
		posts := buf.posts
		f.absorb(posts)
		f.advanceCursor(posts)
		f.mu.Unlock()
		return posts
	}
	// A buffered page for a different cursor is stale; drop it.
	f.prefetch = nil
	f.mu.Unlock()

	posts := f.adapter.GetPage(ctx, cursor, f.pageSize)

	f.mu.Lock()
	f.absorb(posts)
	f.advanceCursor(posts)
	f.mu.Unlock()
	return posts
}

// advanceCursor updates the continuation cursor and kicks off the next
// prefetch. Caller must hold f.mu.
func (f *Feed) advanceCursor(posts []model.Post) {
	if len(posts) == 0 {
		return
	}
	f.nextCursor = posts[len(posts)-1].ID
	f.startPrefetch(f.nextCursor)
}

// startPrefetch speculatively fetches the page after cursor. The result is
// kept only if the cursor still matches on arrival; a fetch raced by a newer
// page request is discarded, not cancelled. Caller must hold f.mu.
func (f *Feed) startPrefetch(cursor string) {
	if cursor == "" {
		return
	}
	f.prefetchWant = cursor
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		posts := f.adapter.GetPage(context.Background(), cursor, f.pageSize)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.prefetchWant != cursor {
			return
		}
		f.prefetch = &page{cursor: cursor, posts: posts}
	}()
}

// absorb appends fetched posts to the cache, skipping ids already present
// (an optimistically-created post may come back in a page). Caller must
// hold f.mu.
func (f *Feed) absorb(posts []model.Post) {
	for _, p := range posts {
		if _, ok := f.index[p.ID]; ok {
			continue
		}
		e := &entry{post: p.Clone(), state: StateConfirmed}
		f.entries = append(f.entries, e)
		f.index[p.ID] = e
	}
}

// PrependConfirmed moves already-confirmed posts (from the live-update
// pending list) to the front of the feed in a single update. Duplicates are
// skipped.
func (f *Feed) PrependConfirmed(posts []model.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var fresh []*entry
	for _, p := range posts {
		if _, ok := f.index[p.ID]; ok {
			continue
		}
		e := &entry{post: p.Clone(), state: StateConfirmed}
		fresh = append(fresh, e)
		f.index[p.ID] = e
	}
	if len(fresh) > 0 {
		f.entries = append(fresh, f.entries...)
	}
}

// Like adjusts a post's like counter by the caller-computed delta (+1 on
// like, -1 on unlike). The delta is shown immediately as a pending
// projection and folded into the confirmed value only when the store
// transaction succeeds; on failure it is dropped.
func (f *Feed) Like(ctx context.Context, id string, amount int) {
	f.bump(ctx, id, store.CounterLikes, amount)
}

// Repost adjusts a post's repost counter by the caller-computed delta.
func (f *Feed) Repost(ctx context.Context, id string, amount int) {
	f.bump(ctx, id, store.CounterReposts, amount)
}

// RecordView increments a post's view counter.
func (f *Feed) RecordView(ctx context.Context, id string) {
	f.bump(ctx, id, store.CounterViews, 1)
}

func (f *Feed) bump(ctx context.Context, id string, c store.Counter, amount int) {
	f.mu.Lock()
	e, ok := f.index[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	d := &delta{counter: c, amount: amount}
	e.pending = append(e.pending, d)
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		// The write must outlive the request that queued it; the caller's
		// context is cancelled as soon as its handler returns.
		err := f.store.BumpCounter(context.WithoutCancel(ctx), id, c, amount)

		f.mu.Lock()
		defer f.mu.Unlock()
		e, ok := f.index[id]
		if !ok {
			return
		}
		e.dropDelta(d)
		if err != nil {
			logging.Error("Counter update failed", "id", id, "counter", string(c), "error", err)
			return
		}
		// Fold the resolved delta into the confirmed value.
		switch c {
		case store.CounterLikes:
			e.post.Likes += amount
		case store.CounterReposts:
			e.post.Reposts += amount
		case store.CounterComments:
			e.post.Comments += amount
		case store.CounterViews:
			e.post.Views += amount
		}
		clampCounters(&e.post)
	}()
}

func (e *entry) dropDelta(d *delta) {
	for i, pd := range e.pending {
		if pd == d {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// Bookmark toggles the viewer's bookmark optimistically, then reconciles
// with the store's answer (or reverts on failure).
func (f *Feed) Bookmark(ctx context.Context, id string) {
	f.mu.Lock()
	prev := f.bookmarks[id]
	f.bookmarks[id] = !prev
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		state, err := f.store.ToggleBookmark(context.WithoutCancel(ctx), f.viewerID, id)

		f.mu.Lock()
		defer f.mu.Unlock()
		if err != nil {
			logging.Error("Bookmark toggle failed", "id", id, "error", err)
			f.bookmarks[id] = prev
			return
		}
		f.bookmarks[id] = state
	}()
}

// AddVote increments a poll choice optimistically, compensating on failure.
func (f *Feed) AddVote(ctx context.Context, id string, choice int) {
	applied := false
	f.patch(id, func(e *entry) {
		if e.post.Poll != nil && choice >= 0 && choice < len(e.post.Poll.Choices) {
			e.post.Poll.Choices[choice].Votes++
			applied = true
		}
	})
	if !applied {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.store.AddVote(context.WithoutCancel(ctx), id, choice); err != nil {
			logging.Error("Vote failed", "id", id, "choice", choice, "error", err)
			f.patch(id, func(e *entry) {
				if e.post.Poll != nil && choice < len(e.post.Poll.Choices) && e.post.Poll.Choices[choice].Votes > 0 {
					e.post.Poll.Choices[choice].Votes--
				}
			})
		}
	}()
}

// EditPost updates a post's content optimistically, restoring the prior
// content if the store write fails.
func (f *Feed) EditPost(ctx context.Context, id, content string) {
	var prev string
	found := false
	f.patch(id, func(e *entry) {
		prev = e.post.Content
		e.post.Content = content
		found = true
	})
	if !found {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.store.UpdateContent(context.WithoutCancel(ctx), id, content); err != nil {
			logging.Error("Edit failed", "id", id, "error", err)
			f.patch(id, func(e *entry) {
				e.post.Content = prev
			})
		}
	}()
}

// DeletePost removes a post from the cache immediately and from the store in
// the background; the entry is restored at its old position on failure.
func (f *Feed) DeletePost(ctx context.Context, id string) {
	f.mu.Lock()
	e, ok := f.index[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	pos := 0
	for i, cand := range f.entries {
		if cand == e {
			pos = i
			break
		}
	}
	f.entries = append(f.entries[:pos], f.entries[pos+1:]...)
	delete(f.index, id)
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		if err := f.store.DeletePost(context.WithoutCancel(ctx), id); err != nil {
			logging.Error("Delete failed, restoring entry", "id", id, "error", err)
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, exists := f.index[id]; exists {
				return
			}
			at := pos
			if at > len(f.entries) {
				at = len(f.entries)
			}
			f.entries = append(f.entries[:at], append([]*entry{e}, f.entries[at:]...)...)
			f.index[id] = e
		}
	}()
}

// Wait blocks until all background confirmations, prefetches, and mutation
// transactions have resolved. Intended for tests and shutdown.
func (f *Feed) Wait() {
	f.wg.Wait()
}
