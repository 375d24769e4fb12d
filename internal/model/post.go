// Package model defines the core domain types shared across the pipeline.
package model

import "time"

// MediaState tracks where a media item's bytes currently live.
type MediaState string

const (
	// MediaPending means the item only exists as a local preview; the
	// upload has not finished yet.
	MediaPending MediaState = "pending"
	// MediaUploaded means the item has a durable remote URL.
	MediaUploaded MediaState = "uploaded"
)

// MediaType identifies the kind of media attached to a post.
type MediaType string

const (
	MediaImage   MediaType = "image"
	MediaVideo   MediaType = "video"
	MediaGIF     MediaType = "gif"
	MediaSticker MediaType = "sticker"
)

// Media is a single attachment on a post. Exactly one of LocalURL or
// RemoteURL is meaningful, selected by State. Consumers must switch on
// State rather than sniffing URL schemes.
type Media struct {
	State     MediaState `json:"state"`
	Type      MediaType  `json:"type"`
	LocalURL  string     `json:"local_url,omitempty"`
	RemoteURL string     `json:"remote_url,omitempty"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
}

// URL returns the displayable URL for the media's current state.
func (m Media) URL() string {
	if m.State == MediaUploaded {
		return m.RemoteURL
	}
	return m.LocalURL
}

// PollChoice is one option in a post's poll.
type PollChoice struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Poll is an optional vote attachment on a post.
type Poll struct {
	Choices []PollChoice `json:"choices"`
}

// Post is a unit of user content. The author fields are a denormalized
// snapshot taken at creation time and are not live-updated.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	AuthorHandle string    `json:"author_handle"`
	AuthorAvatar string    `json:"author_avatar"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"` // store-assigned; authoritative ordering key
	Media        []Media   `json:"media,omitempty"`
	Poll         *Poll     `json:"poll,omitempty"`
	Likes        int       `json:"likes"`
	Reposts      int       `json:"reposts"`
	Comments     int       `json:"comments"`
	Views        int       `json:"views"`
	TribeID      string    `json:"tribe_id,omitempty"`
}

// Clone returns a deep copy so cached entries can be handed out without
// aliasing the cache's internal state.
func (p Post) Clone() Post {
	out := p
	if p.Media != nil {
		out.Media = make([]Media, len(p.Media))
		copy(out.Media, p.Media)
	}
	if p.Poll != nil {
		poll := Poll{Choices: make([]PollChoice, len(p.Poll.Choices))}
		copy(poll.Choices, p.Poll.Choices)
		out.Poll = &poll
	}
	return out
}

// Topic is an append-only record of one keyword extracted from one post.
// Topics are never updated, only counted over a trailing window.
type Topic struct {
	Topic     string
	CreatedAt time.Time
}

// TrendingTopic is the derived output of aggregation plus headline
// synthesis. It is recomputed from scratch each refresh cycle and never
// persisted.
type TrendingTopic struct {
	Category  string `json:"category"`
	Topic     string `json:"topic"`
	PostCount string `json:"postCount"`
	ImageHint string `json:"imageHint"`
}
