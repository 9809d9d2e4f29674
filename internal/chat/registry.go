package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry keeps the live sessions keyed by their identifier. Sessions idle for longer than the idle
// timeout are dropped by Sweep; that is the end of their lifecycle.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTimeout time.Duration

	logger *slog.Logger
}

// NewRegistry creates an empty Registry. A zero idleTimeout keeps sessions until they are deleted.
func NewRegistry(idleTimeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		logger:      logger.With(slog.String("module", "registry")),
	}
}

// Get returns the session registered under id and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(time.Now())
	return s, nil
}

// GetOrCreate returns the session registered under id, or registers a new one with a fresh identifier
// when id is empty or unknown. The second result reports whether the session was created.
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.touch(time.Now())
		return s, false
	}

	s := NewSession(uuid.NewString())
	r.sessions[s.ID()] = s
	r.logger.Debug("Session created", slog.String("sessionID", s.ID()))
	return s, true
}

// Delete removes the session registered under id.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Sweep removes the sessions idle since before now minus the idle timeout, except those with a request
// in flight, and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.Pending() || now.Sub(s.LastSeen()) < r.idleTimeout {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// Run sweeps the registry every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.idleTimeout <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Info("Idle sessions removed", slog.Int("count", n), slog.Int("remaining", r.Len()))
			}
		}
	}
}
