// Package api exposes the feed and trending pipeline over HTTP. It is a
// thin transport layer: no rendering, no auth flow.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/bholo-app/bholo/internal/coord"
	"github.com/bholo-app/bholo/internal/diag"
	"github.com/bholo-app/bholo/internal/feed"
	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/model"
	"github.com/bholo-app/bholo/internal/store"
)

// Server wires HTTP handlers to the feed cache, watcher, and trending
// coordinator.
type Server struct {
	feed     *feed.Feed
	watcher  *feed.Watcher
	trending *coord.Coordinator
	store    *store.Store
	upgrader websocket.Upgrader
}

// New creates a Server.
func New(f *feed.Feed, w *feed.Watcher, c *coord.Coordinator, s *store.Store) *Server {
	return &Server{
		feed:     f,
		watcher:  w,
		trending: c,
		store:    s,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"OPTIONS", "GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/feed", s.handleFeed)
	r.Post("/feed/next", s.handleFeedNext)
	r.Get("/feed/pending", s.handlePending)
	r.Post("/feed/reveal", s.handleReveal)

	r.Post("/posts", s.handleCreatePost)
	r.Patch("/posts/{id}", s.handleEditPost)
	r.Delete("/posts/{id}", s.handleDeletePost)
	r.Post("/posts/{id}/like", s.handleLike)
	r.Post("/posts/{id}/repost", s.handleRepost)
	r.Post("/posts/{id}/bookmark", s.handleBookmark)
	r.Post("/posts/{id}/vote", s.handleVote)

	r.Get("/trending", s.handleTrending)
	r.Get("/ws", s.handleWS)
	r.Get("/debug/events", s.handleDebugEvents)

	return r
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":   s.feed.Posts(),
		"pending": s.watcher.PendingCount(),
	})
}

func (s *Server) handleFeedNext(w http.ResponseWriter, r *http.Request) {
	posts := s.feed.FetchPage(r.Context())
	diag.Record(diag.Event{Kind: diag.KindFeedPage, Count: len(posts)})
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"count": s.watcher.PendingCount()})
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	revealed := s.watcher.RevealPending()
	diag.Record(diag.Event{Kind: diag.KindFeedReveal, Count: len(revealed)})
	writeJSON(w, http.StatusOK, map[string]any{"revealed": len(revealed)})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var draft feed.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "bad draft", http.StatusBadRequest)
		return
	}
	if draft.AuthorID == "" {
		draft.AuthorID = s.feed.ViewerID()
	}
	post := s.feed.AddPost(draft)
	diag.Record(diag.Event{Kind: diag.KindPostCreate, ID: post.ID, Count: len(post.Media)})
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	s.feed.EditPost(r.Context(), chi.URLParam(r, "id"), body.Content)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.feed.DeletePost(r.Context(), id)
	diag.Record(diag.Event{Kind: diag.KindPostDelete, ID: id})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.feed.Like(r.Context(), chi.URLParam(r, "id"), deltaFrom(r))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRepost(w http.ResponseWriter, r *http.Request) {
	s.feed.Repost(r.Context(), chi.URLParam(r, "id"), deltaFrom(r))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request) {
	s.feed.Bookmark(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Choice int `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	s.feed.AddVote(r.Context(), chi.URLParam(r, "id"), body.Choice)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	topics := s.trending.Trending()
	if topics == nil {
		topics = []model.TrendingTopic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

// handleWS streams newly created posts to the client as JSON messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	posts, cancel := s.store.Subscribe()
	defer cancel()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case p, ok := <-posts:
			if !ok {
				return
			}
			if err := conn.WriteJSON(p); err != nil {
				return
			}
			diag.Record(diag.Event{Kind: diag.KindWSPush, ID: p.ID})
		}
	}
}

// handleDebugEvents dumps the recent diagnostic event trail.
func (s *Server) handleDebugEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"events": diag.Recent(100),
		"counts": diag.Counts(),
	})
}

// deltaFrom reads an optional {"delta": n} body; defaults to +1.
func deltaFrom(r *http.Request) int {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Delta == 0 {
		return 1
	}
	return body.Delta
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Response encode failed", "error", err)
	}
}
