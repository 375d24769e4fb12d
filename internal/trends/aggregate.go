package trends

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bholo-app/bholo/internal/store"
)

// TopicSource supplies windowed topic counts. Satisfied by *store.Store.
type TopicSource interface {
	TopicCountsSince(ctx context.Context, since time.Time) ([]store.TopicCount, error)
}

// Ranked is one aggregated topic that cleared the popularity floor.
type Ranked struct {
	Topic string // normalized lowercase topic
	Count int
}

// Title returns the topic title-cased for display.
func (r Ranked) Title() string {
	return TitleCase(r.Topic)
}

// PostCount returns the display count string, e.g. "3 posts".
func (r Ranked) PostCount() string {
	return FormatPostCount(r.Count)
}

// Aggregator converts the append-only topic record stream into a ranked
// shortlist. Given the same snapshot of records it always produces the same
// output; count ties keep the source's enumeration order.
type Aggregator struct {
	topics TopicSource
	window time.Duration
	floor  int
	topN   int
}

// NewAggregator creates an aggregator. Zero values fall back to the
// defaults: 72h window, floor of 3 mentions, top 5.
func NewAggregator(topics TopicSource, window time.Duration, floor, topN int) *Aggregator {
	if window <= 0 {
		window = 72 * time.Hour
	}
	if floor <= 0 {
		floor = 3
	}
	if topN <= 0 {
		topN = 5
	}
	return &Aggregator{topics: topics, window: window, floor: floor, topN: topN}
}

// Rank counts topic mentions over the trailing window, suppresses topics
// below the floor entirely, and returns the top N by count descending.
func (a *Aggregator) Rank(ctx context.Context) ([]Ranked, error) {
	counts, err := a.topics.TopicCountsSince(ctx, time.Now().Add(-a.window))
	if err != nil {
		return nil, fmt.Errorf("count topics: %w", err)
	}

	var ranked []Ranked
	for _, tc := range counts {
		if tc.Count < a.floor {
			continue
		}
		ranked = append(ranked, Ranked{Topic: tc.Topic, Count: tc.Count})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if len(ranked) > a.topN {
		ranked = ranked[:a.topN]
	}
	return ranked, nil
}

// TitleCase capitalizes the first letter of each word in a topic.
func TitleCase(topic string) string {
	words := strings.Fields(topic)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// FormatPostCount renders a mention count with correct pluralization.
func FormatPostCount(n int) string {
	if n == 1 {
		return "1 post"
	}
	return fmt.Sprintf("%d posts", n)
}
