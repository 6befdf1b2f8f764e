// internal/state/session.go
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/voxchat/internal/types"
)

// ErrSessionNotFound is returned when an operation names an unknown session.
var ErrSessionNotFound = fmt.Errorf("session not found")

// SessionStore is an in-memory map from session ID to conversation history.
// Session IDs are server-generated UUIDs, so a caller cannot guess its way
// into another caller's session. History is append-only; eviction removes
// whole sessions, never interior turns.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*types.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[types.SessionID]*types.Session)}
}

// GetOrCreate returns the session ID for an existing session, or allocates a
// fresh session when id is empty or unknown. The bool reports whether a new
// session was created.
func (s *SessionStore) GetOrCreate(_ context.Context, id types.SessionID) (types.SessionID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			sess.LastActive = time.Now()
			return id, false, nil
		}
	}

	now := time.Now()
	fresh := types.NewSessionID()
	s.sessions[fresh] = &types.Session{
		ID:         fresh,
		CreatedAt:  now,
		LastActive: now,
	}
	return fresh, true, nil
}

// Get returns a snapshot of the session with the given ID.
func (s *SessionStore) Get(_ context.Context, id types.SessionID) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return snapshot(sess), nil
}

// History returns a copy of the session's committed turns in insertion order.
func (s *SessionStore) History(_ context.Context, id types.SessionID) ([]types.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	turns := make([]types.Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	return turns, nil
}

// Append commits a turn to the session's history. It fails for unknown
// sessions; appending never creates a session implicitly.
func (s *SessionStore) Append(_ context.Context, id types.SessionID, turn types.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	sess.Turns = append(sess.Turns, turn)
	sess.LastActive = time.Now()
	return nil
}

// Clear empties the session's history. The session ID stays valid, so a
// client holding it keeps talking in the same (now blank) session.
func (s *SessionStore) Clear(_ context.Context, id types.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Turns = nil
	sess.LastActive = time.Now()
	return nil
}

// List returns snapshots of all live sessions.
func (s *SessionStore) List(_ context.Context) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, snapshot(sess))
	}
	return out, nil
}

// Sweep evicts sessions idle for longer than maxIdle and returns how many
// were removed.
func (s *SessionStore) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *SessionStore) StartSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(maxIdle); n > 0 {
					slog.Debug("evicted idle sessions", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func snapshot(sess *types.Session) *types.Session {
	out := &types.Session{
		ID:         sess.ID,
		CreatedAt:  sess.CreatedAt,
		LastActive: sess.LastActive,
		Turns:      make([]types.Turn, len(sess.Turns)),
	}
	copy(out.Turns, sess.Turns)
	return out
}
