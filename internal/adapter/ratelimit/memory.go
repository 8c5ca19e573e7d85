package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitor holds a rate limiter for a specific key
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore keeps one token bucket per key in process memory.
// A bucket holds Rule.Requests tokens and refills completely over Rule.Window.
type MemoryStore struct {
	rule     Rule
	limit    rate.Limit
	mu       sync.Mutex
	visitors map[string]*visitor
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates an in-memory store and starts a janitor that forgets
// keys idle for longer than the rule window (at least one minute). Call Close to stop it.
func NewMemoryStore(rule Rule) *MemoryStore {
	idle := 2 * rule.Window
	if idle < time.Minute {
		idle = time.Minute
	}

	s := &MemoryStore{
		rule:     rule,
		limit:    rate.Every(rule.Interval()),
		visitors: make(map[string]*visitor),
		idleTTL:  idle,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.cleanupVisitors()
	return s
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, key string) (Result, error) {
	now := s.now()
	lim := s.getVisitor(key, now)

	res := Result{Limit: s.rule.Requests}

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return res, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		// hand the token back: a rejected request must not consume quota
		r.CancelAt(now)
		res.RetryAfter = delay
		return res, nil
	}

	res.Allowed = true
	res.Remaining = int(lim.TokensAt(now))
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res, nil
}

// getVisitor returns the limiter for key, creating one if needed
func (s *MemoryStore) getVisitor(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.rule.Requests)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// cleanupVisitors removes idle keys to keep memory bounded
func (s *MemoryStore) cleanupVisitors() {
	ticker := time.NewTicker(s.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.prune(s.now())
		}
	}
}

func (s *MemoryStore) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.idleTTL {
			delete(s.visitors, key)
		}
	}
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
