package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/app"
)

// SessionRegistry is a Redis-aware implementation of app.SessionRegistry.
// Notes:
//   - Session state itself stays in a local map; the state machine is
//     in-process and connection-bound, so it cannot move between instances.
//   - Redis keys mark session liveness with a TTL, which lets a join-code
//     entry point on another instance answer "does this code exist" cheaply.
//   - The reaper evicts idle local sessions and clears their liveness keys.
type SessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*app.Session

	stop chan struct{}
	once sync.Once
}

func NewSessionRegistry(client *redis.Client, ttl, reapInterval time.Duration) *SessionRegistry {
	r := &SessionRegistry{
		client:   client,
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*app.Session),
		stop:     make(chan struct{}),
	}
	if ttl > 0 && reapInterval > 0 {
		go r.reap(reapInterval)
	}
	return r
}

func (r *SessionRegistry) Put(code string, session *app.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[code] = session
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(code), "1", r.ttl).Err()
}

func (r *SessionRegistry) Get(code string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[code]
	return session, ok
}

func (r *SessionRegistry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, code)
	_ = r.client.Del(context.Background(), r.key(code)).Err()
}

// Close stops the reaper goroutine.
func (r *SessionRegistry) Close() {
	r.once.Do(func() { close(r.stop) })
}

func (r *SessionRegistry) reap(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stop:
			return
		}
	}
}

func (r *SessionRegistry) evictIdle() {
	cutoff := r.clock().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	for code, session := range r.sessions {
		if session.IdleSince().Before(cutoff) {
			delete(r.sessions, code)
			_ = r.client.Del(context.Background(), r.key(code)).Err()
			log.Printf("evicted idle session %s (phase %s)", code, session.Phase())
			continue
		}
		// refresh the liveness marker for sessions still in play
		_ = r.client.Expire(context.Background(), r.key(code), r.ttl).Err()
	}
}

func (r *SessionRegistry) key(code string) string {
	return "livequiz:session:" + code
}
