// Package ratelimit implements per-client sliding-window admission
// control. Each client is allowed at most limit requests within any
// trailing window; timestamps are pruned lazily on each admission check.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	DefaultLimit  = 100
	DefaultWindow = 60 * time.Second

	shardCount = 64
)

type shard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

// Limiter is a sliding-window rate limiter keyed by client identity.
// Admission checks for the same client are atomic; unrelated clients
// land on different shards and do not serialize.
type Limiter struct {
	limit  int
	window time.Duration
	shards [shardCount]shard
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{limit: limit, window: window}
	for i := range l.shards {
		l.shards[i].windows = make(map[string][]time.Time)
	}
	return l
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// Admit prunes the client's window to timestamps within the trailing
// window, then allows the request only if the pruned count is strictly
// below the limit. On allow, now is appended to the window.
func (l *Limiter) Admit(clientID string, now time.Time) bool {
	s := l.shard(clientID)
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[clientID]
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(w) && !w[i].After(cutoff) {
		i++
	}
	w = w[i:]

	if len(w) >= l.limit {
		s.windows[clientID] = w
		return false
	}

	s.windows[clientID] = append(w, now)
	return true
}

func (l *Limiter) shard(clientID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return &l.shards[h.Sum32()%shardCount]
}
