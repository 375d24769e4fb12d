// Package store provides SQLite persistence for posts and topic records.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bholo-app/bholo/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations

	subMu       sync.Mutex
	subscribers map[int]chan model.Post
	nextSubID   int
}

// Counter names a mutable engagement counter on a post.
type Counter string

const (
	CounterLikes    Counter = "likes"
	CounterReposts  Counter = "reposts"
	CounterComments Counter = "comments"
	CounterViews    Counter = "views"
)

var counterColumns = map[Counter]string{
	CounterLikes:    "likes",
	CounterReposts:  "reposts",
	CounterComments: "comments",
	CounterViews:    "views",
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	// Build connection string based on database type
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Enable WAL mode for file-based databases (not :memory:)
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{
		db:          db,
		subscribers: make(map[int]chan model.Post),
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		author_name TEXT,
		author_handle TEXT,
		author_avatar TEXT,
		content TEXT,
		created_at DATETIME NOT NULL,
		media TEXT,
		poll TEXT,
		likes INTEGER DEFAULT 0,
		reposts INTEGER DEFAULT 0,
		comments INTEGER DEFAULT 0,
		views INTEGER DEFAULT 0,
		tribe_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);

	CREATE TABLE IF NOT EXISTS topics (
		topic TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_topics_created ON topics(created_at);

	CREATE TABLE IF NOT EXISTS bookmarks (
		viewer_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (viewer_id, post_id)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()

	return s.db.Close()
}

// CreatePost inserts a post. The caller supplies the id (pre-allocated);
// the store assigns the authoritative created_at timestamp and writes it
// back into p before returning. Subscribers are notified of the new post.
// Thread-safe: acquires write lock.
func (s *Store) CreatePost(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		return fmt.Errorf("create post: empty id")
	}

	// Client timestamps are display-only estimates; ordering comes from here.
	p.CreatedAt = time.Now().UTC()

	mediaJSON, err := json.Marshal(p.Media)
	if err != nil {
		return fmt.Errorf("marshal media: %w", err)
	}
	var pollJSON []byte
	if p.Poll != nil {
		pollJSON, err = json.Marshal(p.Poll)
		if err != nil {
			return fmt.Errorf("marshal poll: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (
			id, author_id, author_name, author_handle, author_avatar,
			content, created_at, media, poll, likes, reposts, comments, views, tribe_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.AuthorID, p.AuthorName, p.AuthorHandle, p.AuthorAvatar,
		p.Content, p.CreatedAt, string(mediaJSON), nullableString(pollJSON),
		p.Likes, p.Reposts, p.Comments, p.Views, p.TribeID,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	s.notify(p.Clone())
	return nil
}

// GetPage retrieves posts newest-first. A non-empty cursor is the id of the
// last-seen post; only strictly-older posts are returned. An unknown cursor
// yields an empty page.
// Thread-safe: acquires read lock.
func (s *Store) GetPage(ctx context.Context, cursor string, limit int) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cursor == "" {
		return s.queryPosts(ctx, `
			SELECT `+postColumns+` FROM posts
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		`, limit)
	}

	var cursorAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT created_at FROM posts WHERE id = ?", cursor).Scan(&cursorAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve cursor: %w", err)
	}

	return s.queryPosts(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE created_at < ? OR (created_at = ? AND id < ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, cursorAt, cursorAt, cursor, limit)
}

// GetByID retrieves a single post, or nil if absent.
// Thread-safe: acquires read lock.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts, err := s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

// GetSince retrieves posts created after the given time, newest-first.
// Thread-safe: acquires read lock.
func (s *Store) GetSince(ctx context.Context, since time.Time) ([]model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryPosts(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE created_at > ?
		ORDER BY created_at DESC, id DESC
	`, since)
}

// UpdateContent replaces a post's text content.
// Thread-safe: acquires write lock.
func (s *Store) UpdateContent(ctx context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE posts SET content = ? WHERE id = ?", content, id)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return requireRow(res, id)
}

// ConfirmMedia replaces a post's media list once uploads have resolved.
// Thread-safe: acquires write lock.
func (s *Store) ConfirmMedia(ctx context.Context, id string, media []model.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("marshal media: %w", err)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE posts SET media = ? WHERE id = ?", string(mediaJSON), id)
	if err != nil {
		return fmt.Errorf("confirm media: %w", err)
	}
	return requireRow(res, id)
}

// DeletePost removes a post by id.
// Thread-safe: acquires write lock.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return requireRow(res, id)
}

// BumpCounter atomically adjusts an engagement counter by delta, clamped at
// zero. Contention is resolved here, not in caller-side read-modify-write.
// Thread-safe: acquires write lock.
func (s *Store) BumpCounter(ctx context.Context, id string, c Counter, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := counterColumns[c]
	if !ok {
		return fmt.Errorf("unknown counter %q", c)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE posts SET "+col+" = MAX(0, "+col+" + ?) WHERE id = ?", delta, id)
	if err != nil {
		return fmt.Errorf("bump %s: %w", col, err)
	}
	return requireRow(res, id)
}

// AddVote increments one poll choice inside a transaction (read-modify-write
// on the poll JSON).
// Thread-safe: acquires write lock.
func (s *Store) AddVote(ctx context.Context, id string, choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var pollJSON sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT poll FROM posts WHERE id = ?", id).Scan(&pollJSON)
	if err == sql.ErrNoRows {
		return fmt.Errorf("post %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("read poll: %w", err)
	}
	if !pollJSON.Valid || pollJSON.String == "" {
		return fmt.Errorf("post %s has no poll", id)
	}

	var poll model.Poll
	if err := json.Unmarshal([]byte(pollJSON.String), &poll); err != nil {
		return fmt.Errorf("decode poll: %w", err)
	}
	if choice < 0 || choice >= len(poll.Choices) {
		return fmt.Errorf("poll choice %d out of range", choice)
	}
	poll.Choices[choice].Votes++

	updated, err := json.Marshal(poll)
	if err != nil {
		return fmt.Errorf("encode poll: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE posts SET poll = ? WHERE id = ?", string(updated), id); err != nil {
		return fmt.Errorf("write poll: %w", err)
	}

	return tx.Commit()
}

// ToggleBookmark flips the viewer's bookmark on a post and reports the new
// state.
// Thread-safe: acquires write lock.
func (s *Store) ToggleBookmark(ctx context.Context, viewerID, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM bookmarks WHERE viewer_id = ? AND post_id = ?", viewerID, postID)
	if err != nil {
		return false, fmt.Errorf("toggle bookmark: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	bookmarked := false
	if removed == 0 {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO bookmarks (viewer_id, post_id, created_at) VALUES (?, ?, ?)",
			viewerID, postID, time.Now().UTC())
		if err != nil {
			return false, fmt.Errorf("add bookmark: %w", err)
		}
		bookmarked = true
	}

	return bookmarked, tx.Commit()
}

// Bookmarks returns the set of post ids the viewer has bookmarked.
// Thread-safe: acquires read lock.
func (s *Store) Bookmarks(ctx context.Context, viewerID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT post_id FROM bookmarks WHERE viewer_id = ?", viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// SaveTopics appends topic records. Topics are write-only; they are never
// updated.
// Thread-safe: acquires write lock.
func (s *Store) SaveTopics(ctx context.Context, topics []model.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(topics) == 0 {
		return nil
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO topics (topic, created_at) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range topics {
		if _, err := stmt.ExecContext(ctx, t.Topic, t.CreatedAt); err != nil {
			return fmt.Errorf("insert topic %q: %w", t.Topic, err)
		}
	}
	return nil
}

// TopicCount pairs a topic string with its mention count.
type TopicCount struct {
	Topic string
	Count int
}

// TopicCountsSince counts topic mentions created after the given time,
// ordered by count descending.
// Thread-safe: acquires read lock.
func (s *Store) TopicCountsSince(ctx context.Context, since time.Time) ([]TopicCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, COUNT(*) AS n FROM topics
		WHERE created_at > ?
		GROUP BY topic
		ORDER BY n DESC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []TopicCount
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// Subscribe returns a channel receiving every post created after the call,
// newest first, plus a cancel func. Slow consumers drop notifications rather
// than blocking writers.
func (s *Store) Subscribe() (<-chan model.Post, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan model.Post, 64)
	s.subscribers[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
	return ch, cancel
}

func (s *Store) notify(p model.Post) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}

const postColumns = `id, author_id, author_name, author_handle, author_avatar,
	content, created_at, media, poll, likes, reposts, comments, views, tribe_id`

// queryPosts is a helper that executes a query and scans results into Posts.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		var mediaJSON string
		var pollJSON, tribeID sql.NullString
		err := rows.Scan(
			&p.ID,
			&p.AuthorID,
			&p.AuthorName,
			&p.AuthorHandle,
			&p.AuthorAvatar,
			&p.Content,
			&p.CreatedAt,
			&mediaJSON,
			&pollJSON,
			&p.Likes,
			&p.Reposts,
			&p.Comments,
			&p.Views,
			&tribeID,
		)
		if err != nil {
			return nil, err
		}
		if mediaJSON != "" && mediaJSON != "null" {
			if err := json.Unmarshal([]byte(mediaJSON), &p.Media); err != nil {
				return nil, fmt.Errorf("decode media for %s: %w", p.ID, err)
			}
		}
		if pollJSON.Valid && pollJSON.String != "" {
			var poll model.Poll
			if err := json.Unmarshal([]byte(pollJSON.String), &poll); err != nil {
				return nil, fmt.Errorf("decode poll for %s: %w", p.ID, err)
			}
			p.Poll = &poll
		}
		p.TribeID = tribeID.String
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("post %s not found", id)
	}
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
