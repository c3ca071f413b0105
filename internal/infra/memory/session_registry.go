package memory

import (
	"log"
	"sync"
	"time"

	"livequiz-service/internal/app"
)

// SessionRegistry is the in-memory implementation of app.SessionRegistry.
// A background reaper evicts sessions idle past the TTL, so abandoned codes
// do not accumulate for the life of the process.
type SessionRegistry struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*app.Session

	stop chan struct{}
	once sync.Once
}

func NewSessionRegistry(ttl, reapInterval time.Duration) *SessionRegistry {
	r := &SessionRegistry{
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
			log.Printf("evicted idle session %s (phase %s)", code, session.Phase())
		}
	}
}
