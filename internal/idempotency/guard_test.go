package idempotency

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMarkSeen_IsSeen(t *testing.T) {
	g := NewGuard(time.Minute)
	defer g.Close()

	if g.IsSeen("decision.made:abc") {
		t.Error("IsSeen() = true before MarkSeen")
	}

	g.MarkSeen("decision.made:abc")

	if !g.IsSeen("decision.made:abc") {
		t.Error("IsSeen() = false immediately after MarkSeen")
	}
	if g.IsSeen("decision.made:other") {
		t.Error("IsSeen() = true for an unrelated key")
	}
}

func TestFirstSeen(t *testing.T) {
	g := NewGuard(time.Minute)
	defer g.Close()

	if !g.FirstSeen("user.joined:u1") {
		t.Error("FirstSeen() = false on first delivery")
	}
	if g.FirstSeen("user.joined:u1") {
		t.Error("FirstSeen() = true on re-delivery")
	}
	if !g.IsSeen("user.joined:u1") {
		t.Error("IsSeen() = false after FirstSeen")
	}
}

func TestFirstSeen_Concurrent(t *testing.T) {
	g := NewGuard(time.Minute)
	defer g.Close()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.FirstSeen("voice.captured:same-key") {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Errorf("FirstSeen() returned true %d times for one key, want exactly 1", firsts)
	}
}

func TestExpiry(t *testing.T) {
	g := NewGuard(10 * time.Millisecond)
	defer g.Close()

	g.MarkSeen("user.exit:e1")
	time.Sleep(25 * time.Millisecond)

	if g.IsSeen("user.exit:e1") {
		t.Error("IsSeen() = true after TTL elapsed")
	}
	// Re-delivery after expiry counts as first again.
	if !g.FirstSeen("user.exit:e1") {
		t.Error("FirstSeen() = false after entry expired")
	}
}

func TestSweep(t *testing.T) {
	g := NewGuard(5 * time.Millisecond)
	defer g.Close()

	for i := 0; i < 100; i++ {
		g.MarkSeen(fmt.Sprintf("user.preference:key-%d", i))
	}
	if got := g.Len(); got != 100 {
		t.Fatalf("Len() = %d, want 100", got)
	}

	time.Sleep(10 * time.Millisecond)
	g.sweep(time.Now())

	if got := g.Len(); got != 0 {
		t.Errorf("Len() = %d after sweep, want 0", got)
	}
}

func TestClose_Idempotent(t *testing.T) {
	g := NewGuard(time.Minute)
	g.StartSweep(time.Millisecond)
	g.Close()
	g.Close() // must not panic
}
