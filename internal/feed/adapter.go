package feed

import (
	"context"

	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/model"
	"github.com/bholo-app/bholo/internal/store"
)

// Store is the subset of store operations the feed layer needs. Satisfied by
// *store.Store; tests inject fakes.
type Store interface {
	CreatePost(ctx context.Context, p *model.Post) error
	GetPage(ctx context.Context, cursor string, limit int) ([]model.Post, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	UpdateContent(ctx context.Context, id, content string) error
	ConfirmMedia(ctx context.Context, id string, media []model.Media) error
	DeletePost(ctx context.Context, id string) error
	BumpCounter(ctx context.Context, id string, c store.Counter, delta int) error
	AddVote(ctx context.Context, id string, choice int) error
	ToggleBookmark(ctx context.Context, viewerID, postID string) (bool, error)
	Bookmarks(ctx context.Context, viewerID string) (map[string]bool, error)
}

// Adapter wraps the store for feed reads. Read errors are logged and
// converted to empty results, so callers cannot distinguish "no data" from a
// transient failure. The UI degrades to an empty state either way.
type Adapter struct {
	store Store
}

// NewAdapter wraps a store.
func NewAdapter(s Store) *Adapter {
	return &Adapter{store: s}
}

// GetPage returns a page of posts, or nil on any store error.
func (a *Adapter) GetPage(ctx context.Context, cursor string, limit int) []model.Post {
	posts, err := a.store.GetPage(ctx, cursor, limit)
	if err != nil {
		logging.Error("Feed page fetch failed", "cursor", cursor, "error", err)
		return nil
	}
	return posts
}

// GetByID returns a post, or nil when absent or on any store error.
func (a *Adapter) GetByID(ctx context.Context, id string) *model.Post {
	p, err := a.store.GetByID(ctx, id)
	if err != nil {
		logging.Error("Post lookup failed", "id", id, "error", err)
		return nil
	}
	return p
}
