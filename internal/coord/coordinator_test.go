package coord

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bholo-app/bholo/internal/model"
	"github.com/bholo-app/bholo/internal/trends"
)

type fakeSource struct {
	mu     sync.Mutex
	posts  []model.Post
	getErr error
	saved  []model.Topic
	since  []time.Time
}

// GetSince mirrors the store's strict created_at > since filter.
func (f *fakeSource) GetSince(_ context.Context, since time.Time) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, since)
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []model.Post
	for _, p := range f.posts {
		if p.CreatedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) SaveTopics(_ context.Context, topics []model.Topic) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, topics...)
	return nil
}

type fakeRanker struct {
	ranked []trends.Ranked
	err    error
}

func (f *fakeRanker) Rank(_ context.Context) ([]trends.Ranked, error) {
	return f.ranked, f.err
}

type fakeSynth struct {
	mu    sync.Mutex
	cards []model.TrendingTopic
	err   error
	calls int
}

func (f *fakeSynth) Synthesize(_ context.Context, _ []trends.Ranked) ([]model.TrendingTopic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.cards, f.err
}

func TestRunCycleAppendsTopics(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	src := &fakeSource{posts: []model.Post{
		{ID: "p1", Content: "What a goal by Messi", CreatedAt: created},
	}}
	c := New(src, &fakeRanker{}, &fakeSynth{}, time.Hour)

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if len(src.saved) == 0 {
		t.Fatal("no topics appended")
	}
	found := false
	for _, topic := range src.saved {
		if topic.Topic == "goal" {
			found = true
			if !topic.CreatedAt.Equal(created) {
				t.Errorf("topic timestamp = %v, want post's %v", topic.CreatedAt, created)
			}
		}
	}
	if !found {
		t.Errorf("expected 'goal' among saved topics: %+v", src.saved)
	}
}

func TestRunCycleAdvancesCursorToNewestPost(t *testing.T) {
	newest := time.Now().Add(-time.Minute)
	src := &fakeSource{posts: []model.Post{
		{ID: "p1", Content: "Great save", CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "p2", Content: "Great save", CreatedAt: newest},
	}}
	c := New(src, &fakeRanker{}, &fakeSynth{}, time.Hour)
	ctx := context.Background()

	if err := c.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if err := c.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}

	if len(src.since) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(src.since))
	}
	// The cursor follows the newest post actually scanned, not the wall
	// clock at cycle start.
	if !src.since[1].Equal(newest) {
		t.Errorf("second scan cursor = %v, want newest post time %v", src.since[1], newest)
	}
}

func TestRunCycleScansEachPostOnce(t *testing.T) {
	src := &fakeSource{posts: []model.Post{
		{ID: "p1", Content: "What a goal by Messi", CreatedAt: time.Now().Add(-time.Hour)},
	}}
	c := New(src, &fakeRanker{}, &fakeSynth{}, time.Hour)
	ctx := context.Background()

	if err := c.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if err := c.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}

	count := 0
	for _, topic := range src.saved {
		if topic.Topic == "goal" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("'goal' appended %d times across cycles, want 1", count)
	}
}

func TestRunCycleEmptyScanKeepsCursor(t *testing.T) {
	src := &fakeSource{}
	c := New(src, &fakeRanker{}, &fakeSynth{}, time.Hour)
	ctx := context.Background()

	if err := c.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if err := c.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}

	if !src.since[1].Equal(src.since[0]) {
		t.Errorf("cursor moved with nothing scanned: %v -> %v", src.since[0], src.since[1])
	}
}

func TestRunCycleSetsSnapshot(t *testing.T) {
	cards := []model.TrendingTopic{
		{Category: "Football", Topic: "Messi magic again", PostCount: "5 posts", ImageHint: "messi"},
	}
	synth := &fakeSynth{cards: cards}
	c := New(&fakeSource{}, &fakeRanker{ranked: []trends.Ranked{{Topic: "messi", Count: 5}}}, synth, time.Hour)

	if err := c.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	got := c.Trending()
	if len(got) != 1 || got[0].Topic != "Messi magic again" {
		t.Errorf("snapshot = %+v, want synthesized cards", got)
	}
}

func TestRunCycleSynthesisFailureClearsSnapshot(t *testing.T) {
	synth := &fakeSynth{cards: []model.TrendingTopic{{Topic: "Old trend"}}}
	c := New(&fakeSource{}, &fakeRanker{}, synth, time.Hour)
	ctx := context.Background()

	if err := c.RunCycle(ctx); err != nil {
		t.Fatalf("warm-up cycle failed: %v", err)
	}
	if len(c.Trending()) != 1 {
		t.Fatal("warm-up snapshot missing")
	}

	// Stale data is never served: a failed synthesis empties the snapshot.
	synth.mu.Lock()
	synth.err = errors.New("provider down")
	synth.mu.Unlock()
	if err := c.RunCycle(ctx); err == nil {
		t.Fatal("expected synthesis error to propagate")
	}
	if got := c.Trending(); len(got) != 0 {
		t.Errorf("snapshot not cleared after failure: %+v", got)
	}
}

func TestRunCycleScanFailure(t *testing.T) {
	src := &fakeSource{getErr: errors.New("db down")}
	synth := &fakeSynth{}
	c := New(src, &fakeRanker{}, synth, time.Hour)

	if err := c.RunCycle(context.Background()); err == nil {
		t.Fatal("expected scan error to propagate")
	}
	if synth.calls != 0 {
		t.Error("synthesis must not run when the scan fails")
	}
}

func TestStartRunsImmediateCycleAndStops(t *testing.T) {
	synth := &fakeSynth{cards: []model.TrendingTopic{{Topic: "Warm"}}}
	c := New(&fakeSource{}, &fakeRanker{}, synth, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if len(c.Trending()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("immediate cycle never populated the snapshot")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop on context cancel")
	}
}
