package trends

import (
	"context"
	"testing"
	"time"

	"github.com/bholo-app/bholo/internal/store"
)

type fakeTopicSource struct {
	counts []store.TopicCount
	err    error
	since  time.Time
}

func (f *fakeTopicSource) TopicCountsSince(_ context.Context, since time.Time) ([]store.TopicCount, error) {
	f.since = since
	return f.counts, f.err
}

func TestRankFloor(t *testing.T) {
	src := &fakeTopicSource{counts: []store.TopicCount{
		{Topic: "ronaldo", Count: 5},
		{Topic: "messi", Count: 2},
	}}
	agg := NewAggregator(src, 72*time.Hour, 3, 5)

	ranked, err := agg.Rank(context.Background())
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 topic above floor, got %v", ranked)
	}
	if ranked[0].Topic != "ronaldo" || ranked[0].Count != 5 {
		t.Errorf("unexpected ranked entry: %+v", ranked[0])
	}
}

func TestRankTopN(t *testing.T) {
	src := &fakeTopicSource{counts: []store.TopicCount{
		{Topic: "a1", Count: 9},
		{Topic: "a2", Count: 8},
		{Topic: "a3", Count: 7},
		{Topic: "a4", Count: 6},
	}}
	agg := NewAggregator(src, 72*time.Hour, 3, 2)

	ranked, err := agg.Rank(context.Background())
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected top 2, got %d", len(ranked))
	}
	if ranked[0].Topic != "a1" || ranked[1].Topic != "a2" {
		t.Errorf("wrong order: %+v", ranked)
	}
}

func TestRankSortsDescending(t *testing.T) {
	// The source may return counts in any order; Rank re-sorts.
	src := &fakeTopicSource{counts: []store.TopicCount{
		{Topic: "low", Count: 3},
		{Topic: "high", Count: 10},
	}}
	agg := NewAggregator(src, 72*time.Hour, 3, 5)

	ranked, err := agg.Rank(context.Background())
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if ranked[0].Topic != "high" {
		t.Errorf("expected 'high' first, got %+v", ranked)
	}
}

func TestRankWindow(t *testing.T) {
	src := &fakeTopicSource{}
	agg := NewAggregator(src, 48*time.Hour, 3, 5)

	before := time.Now().Add(-48 * time.Hour)
	if _, err := agg.Rank(context.Background()); err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	// The cutoff passed to the source must be ~window ago.
	if src.since.Before(before.Add(-time.Minute)) || src.since.After(time.Now().Add(-47*time.Hour)) {
		t.Errorf("window cutoff %v not ~48h ago", src.since)
	}
}

func TestFormatPostCount(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{1, "1 post"},
		{2, "2 posts"},
		{0, "0 posts"},
		{11, "11 posts"},
	}
	for _, tc := range cases {
		if got := FormatPostCount(tc.n); got != tc.want {
			t.Errorf("FormatPostCount(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestTitleCase(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"inter miami", "Inter Miami"},
		{"var", "Var"},
		{"premier league title race", "Premier League Title Race"},
	}
	for _, tc := range cases {
		if got := TitleCase(tc.in); got != tc.want {
			t.Errorf("TitleCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
