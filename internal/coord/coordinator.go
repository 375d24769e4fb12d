// Package coord runs the background trending refresh cycle.
package coord

import (
	"context"
	"sync"
	"time"

	"github.com/bholo-app/bholo/internal/diag"
	"github.com/bholo-app/bholo/internal/logging"
	"github.com/bholo-app/bholo/internal/model"
	"github.com/bholo-app/bholo/internal/trends"
)

// defaultRefreshInterval is the time between trending refresh cycles.
const defaultRefreshInterval = 15 * time.Minute

// postSource is the store subset the coordinator consumes (interface for
// testing).
type postSource interface {
	GetSince(ctx context.Context, since time.Time) ([]model.Post, error)
	SaveTopics(ctx context.Context, topics []model.Topic) error
}

// ranker produces the windowed shortlist (interface for testing).
type ranker interface {
	Rank(ctx context.Context) ([]trends.Ranked, error)
}

// synthesizer turns the shortlist into trending cards (interface for
// testing).
type synthesizer interface {
	Synthesize(ctx context.Context, ranked []trends.Ranked) ([]model.TrendingTopic, error)
}

// Coordinator periodically extracts keywords from new posts, appends topic
// records, and refreshes the trending snapshot.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	store    postSource
	ranker   ranker
	synth    synthesizer
	interval time.Duration

	mu       sync.RWMutex
	lastScan time.Time
	snapshot []model.TrendingTopic

	wg sync.WaitGroup
}

// New creates a Coordinator. A non-positive interval falls back to the
// default.
func New(store postSource, r ranker, s synthesizer, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Coordinator{
		store:    store,
		ranker:   r,
		synth:    s,
		interval: interval,
		lastScan: time.Now().Add(-72 * time.Hour), // backfill one window on first cycle
	}
}

// Start launches the refresh loop. Returns immediately; call Wait after
// cancelling ctx for a clean shutdown.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		logging.Info("Trending coordinator started", "interval", c.interval)

		// Run one cycle immediately so the snapshot is warm.
		c.runCycle(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logging.Info("Trending coordinator stopped")
				return
			case <-ticker.C:
				c.runCycle(ctx)
			}
		}
	}()
}

// Wait blocks until the refresh loop has exited.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Trending returns the latest synthesized snapshot. Empty when the last
// synthesis failed: the consumer shows "no trends" rather than stale data.
func (c *Coordinator) Trending() []model.TrendingTopic {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.TrendingTopic, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

// RunCycle executes one extract-aggregate-synthesize pass. Exposed for
// tests and for forcing a refresh.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	return c.runCycle(ctx)
}

func (c *Coordinator) runCycle(ctx context.Context) error {
	c.mu.Lock()
	since := c.lastScan
	c.mu.Unlock()

	posts, err := c.store.GetSince(ctx, since)
	if err != nil {
		logging.Error("Trending cycle: post scan failed", "error", err)
		return err
	}

	// Advance the cursor to the newest post actually returned, not the wall
	// clock: a post committing between a clock read and the query would be
	// scanned twice and its topics counted twice.
	scanEnd := since
	var topics []model.Topic
	for _, p := range posts {
		if p.CreatedAt.After(scanEnd) {
			scanEnd = p.CreatedAt
		}
		for _, kw := range trends.Extract(p.Content) {
			topics = append(topics, model.Topic{Topic: kw, CreatedAt: p.CreatedAt})
		}
	}
	if len(topics) > 0 {
		if err := c.store.SaveTopics(ctx, topics); err != nil {
			logging.Error("Trending cycle: topic append failed", "error", err)
			return err
		}
	}

	c.mu.Lock()
	c.lastScan = scanEnd
	c.mu.Unlock()

	ranked, err := c.ranker.Rank(ctx)
	if err != nil {
		logging.Error("Trending cycle: aggregation failed", "error", err)
		return err
	}

	cards, err := c.synth.Synthesize(ctx, ranked)
	if err != nil {
		// No stale data: a failed synthesis clears the snapshot so the
		// surface shows "no trends".
		c.mu.Lock()
		c.snapshot = nil
		c.mu.Unlock()
		logging.Error("Trending cycle: synthesis failed", "error", err)
		diag.Record(diag.Event{Kind: diag.KindCycleError, Err: err.Error()})
		return err
	}

	c.mu.Lock()
	c.snapshot = cards
	c.mu.Unlock()

	logging.Info("Trending cycle complete",
		"posts_scanned", len(posts),
		"topics_appended", len(topics),
		"ranked", len(ranked),
		"cards", len(cards))
	diag.Record(diag.Event{Kind: diag.KindCycleComplete, Count: len(cards)})
	return nil
}
