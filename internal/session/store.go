// Package session holds short-lived preview selections between a preview
// request and its confirmation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

// DefaultTTL is how long a preview waits for confirmation.
const DefaultTTL = 15 * time.Minute

var (
	// ErrNotFound is returned for unknown or already confirmed sessions.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned for sessions past their TTL.
	ErrExpired = errors.New("session expired")
	// ErrEmpty is returned when a session would select nothing.
	ErrEmpty = errors.New("session has no contracts")
)

// Session is one pending preview selection.
type Session struct {
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	ID        string          `json:"id"`
	IDs       []string        `json:"ids"`
	Previews  []model.Preview `json:"previews"`
}

func (s *Session) clone() *Session {
	cp := *s
	cp.IDs = append([]string(nil), s.IDs...)
	cp.Previews = append([]model.Preview(nil), s.Previews...)
	return &cp
}

// Store is an in-memory session store keyed by random session ids.
type Store struct {
	clock    common.Clock
	sessions map[string]*Session
	stopCh   chan struct{}
	ttl      time.Duration
	mu       sync.Mutex
	stopOnce sync.Once
}

// NewStore creates a store. A zero ttl uses DefaultTTL; a nil clock the real one.
func NewStore(ttl time.Duration, clock common.Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = common.RealClock{}
	}
	return &Store{
		clock:    clock,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
		ttl:      ttl,
	}
}

// Create stores a selection of the found previews and returns it.
func (s *Store) Create(ctx context.Context, previews []model.Preview) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(previews))
	for _, p := range previews {
		if p.Found() {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, ErrEmpty
	}

	now := s.clock.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		IDs:       ids,
		Previews:  append([]model.Preview(nil), previews...),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess.clone(), nil
}

// Get returns a copy of the session.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.clone(), nil
}

// Confirm claims the session and hands its ids to accept. The session is
// forgotten once accept succeeds, so a selection can be confirmed only once.
// When accept fails the session is put back unchanged and its error
// returned. A nil accept confirms unconditionally.
func (s *Store) Confirm(ctx context.Context, id string, accept func(ids []string) error) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	ids := append([]string(nil), sess.IDs...)
	if accept != nil {
		if err := accept(append([]string(nil), ids...)); err != nil {
			s.mu.Lock()
			s.sessions[id] = sess
			s.mu.Unlock()
			return nil, err
		}
	}
	return ids, nil
}

// lookup must be called with mu held. Expired sessions are dropped.
func (s *Store) lookup(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	return sess, nil
}

// Sweep removes sessions expired at now and reports how many it removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartCleanup sweeps expired sessions every interval until Stop.
func (s *Store) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(s.clock.Now())
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup loop.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
