package idempotency

import (
	"sync"
	"time"
)

// Logger defines the logging interface used by the Guard.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Guard deduplicates at-least-once delivered events by caller-supplied key.
//
// Every mutating inbound event carries a key of the form
// {eventType}:{callerUuid}. Re-delivery of a seen key is a silent no-op
// for the caller, never an error. Entries expire after the configured TTL
// and are purged by a periodic background sweep so memory stays bounded.
//
// All public methods are thread-safe.
type Guard struct {
	ttl     time.Duration
	entries map[string]time.Time // key → expiry
	mu      sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger Logger
}

// NewGuard creates a guard whose entries live for ttl.
func NewGuard(ttl time.Duration) *Guard {
	return &Guard{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the guard.
func (g *Guard) SetLogger(logger Logger) {
	g.logger = logger
}

// MarkSeen records a key. Subsequent IsSeen calls return true until the
// entry expires.
func (g *Guard) MarkSeen(key string) {
	now := time.Now()
	g.mu.Lock()
	g.entries[key] = now.Add(g.ttl)
	g.mu.Unlock()
}

// IsSeen reports whether a key has been marked and not yet expired.
func (g *Guard) IsSeen(key string) bool {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	expiry, ok := g.entries[key]
	if !ok {
		return false
	}
	if now.After(expiry) {
		// Expired but not yet swept; treat as unseen.
		delete(g.entries, key)
		return false
	}
	return true
}

// FirstSeen atomically checks and marks a key. It returns true exactly
// once per key lifetime: the first caller wins, every re-delivery gets
// false. This is the gateway's single entry point for deduplication.
func (g *Guard) FirstSeen(key string) bool {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	expiry, ok := g.entries[key]
	if ok && now.Before(expiry) {
		return false
	}
	g.entries[key] = now.Add(g.ttl)
	return true
}

// Len returns the number of tracked entries (including not-yet-swept
// expired ones). Used for monitoring.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// StartSweep launches the background goroutine that purges expired
// entries every interval. Stop it with Close.
func (g *Guard) StartSweep(interval time.Duration) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sweep(time.Now())
			case <-g.done:
				return
			}
		}
	}()
}

// sweep removes entries whose expiry is before now.
func (g *Guard) sweep(now time.Time) {
	g.mu.Lock()
	before := len(g.entries)
	for key, expiry := range g.entries {
		if now.After(expiry) {
			delete(g.entries, key)
		}
	}
	after := len(g.entries)
	g.mu.Unlock()

	if before != after {
		g.logger.Debug("idempotency sweep complete", "purged", before-after, "remaining", after)
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (g *Guard) Close() {
	g.stopOnce.Do(func() {
		close(g.done)
	})
	g.wg.Wait()
}
