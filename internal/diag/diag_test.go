package diag

import (
	"fmt"
	"sync"
	"testing"
)

func TestRingSnapshotOrder(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 3; i++ {
		r.Push(Event{Kind: KindFeedPage, Msg: fmt.Sprintf("e%d", i)})
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	for i, e := range snap {
		if e.Msg != fmt.Sprintf("e%d", i) {
			t.Errorf("snapshot[%d] = %q, out of order", i, e.Msg)
		}
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(Event{Kind: KindFeedPage, Msg: fmt.Sprintf("e%d", i)})
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	if snap[0].Msg != "e2" || snap[2].Msg != "e4" {
		t.Errorf("wrong survivors after wrap: %+v", snap)
	}
}

func TestRingLast(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 6; i++ {
		r.Push(Event{Kind: KindFeedPage, Msg: fmt.Sprintf("e%d", i)})
	}

	last := r.Last(2)
	if len(last) != 2 || last[0].Msg != "e4" || last[1].Msg != "e5" {
		t.Errorf("Last(2) = %+v", last)
	}
	if got := r.Last(100); len(got) != 4 {
		t.Errorf("Last(100) len = %d, want 4", len(got))
	}
	if got := r.Last(0); got != nil {
		t.Errorf("Last(0) = %+v, want nil", got)
	}
}

func TestRingStats(t *testing.T) {
	r := NewRing(8)
	r.Push(Event{Kind: KindPostCreate})
	r.Push(Event{Kind: KindPostCreate})
	r.Push(Event{Kind: KindCycleComplete})

	stats := r.Stats()
	if stats[KindPostCreate] != 2 || stats[KindCycleComplete] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRingPushSetsTime(t *testing.T) {
	r := NewRing(2)
	r.Push(Event{Kind: KindWSPush})

	if r.Snapshot()[0].Time.IsZero() {
		t.Error("Push must fill in a zero timestamp")
	}
}

func TestRingConcurrentPush(t *testing.T) {
	r := NewRing(64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Push(Event{Kind: KindFeedPage})
				r.Snapshot()
			}
		}()
	}
	wg.Wait()

	if r.Len() != 64 {
		t.Errorf("len = %d, want full ring", r.Len())
	}
}
