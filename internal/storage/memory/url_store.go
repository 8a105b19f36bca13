// Package memory keeps analyzer data in process memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/page-analyzer/internal/store"
)

// URLStore implements store.Repository with mutex-guarded maps.
type URLStore struct {
	mu       sync.RWMutex
	clock    store.Clock
	urls     map[int64]store.URL
	byName   map[string]int64
	checks   map[int64][]store.Check
	nextURL  int64
	nextChk  int64
	sessions int
	pingErr  error
}

// NewURLStore creates an empty store stamped by clock.
func NewURLStore(clock store.Clock) *URLStore {
	return &URLStore{
		clock:  clock,
		urls:   make(map[int64]store.URL),
		byName: make(map[string]int64),
		checks: make(map[int64][]store.Check),
	}
}

// Acquire opens a session. The store counts sessions until they are released.
func (s *URLStore) Acquire(ctx context.Context) (store.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	s.mu.Lock()
	s.sessions++
	s.mu.Unlock()
	return &session{store: s}, nil
}

// OpenSessions reports how many sessions have not been released yet.
func (s *URLStore) OpenSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions
}

// SetPingError makes Ping fail with err (nil restores health).
func (s *URLStore) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// Ping reports the configured health.
func (s *URLStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// Close is a no-op.
func (s *URLStore) Close() {}

type session struct {
	store    *URLStore
	released bool
}

func (s *session) Release() {
	if s.released {
		return
	}
	s.released = true
	s.store.mu.Lock()
	s.store.sessions--
	s.store.mu.Unlock()
}

func (s *session) ListURLs(context.Context) ([]store.URL, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := make([]store.URL, 0, len(s.store.urls))
	for _, u := range s.store.urls {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *session) ListLatestChecks(context.Context) ([]store.Check, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	out := make([]store.Check, 0, len(s.store.checks))
	for _, checks := range s.store.checks {
		if len(checks) > 0 {
			out = append(out, checks[len(checks)-1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URLID > out[j].URLID })
	return out, nil
}

func (s *session) GetURL(_ context.Context, id int64) (store.URL, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	u, ok := s.store.urls[id]
	if !ok {
		return store.URL{}, store.ErrNotFound
	}
	return u, nil
}

func (s *session) FindURLByName(_ context.Context, name string) (store.URL, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	id, ok := s.store.byName[name]
	if !ok {
		return store.URL{}, store.ErrNotFound
	}
	return s.store.urls[id], nil
}

func (s *session) ListChecks(_ context.Context, urlID int64) ([]store.Check, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	checks := s.store.checks[urlID]
	out := make([]store.Check, 0, len(checks))
	for i := len(checks) - 1; i >= 0; i-- {
		out = append(out, checks[i])
	}
	return out, nil
}

func (s *session) CreateURL(_ context.Context, name string) (store.URL, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, exists := s.store.byName[name]; exists {
		return store.URL{}, fmt.Errorf("insert url %q: %w", name, store.ErrDuplicateURL)
	}
	s.store.nextURL++
	u := store.URL{ID: s.store.nextURL, Name: name, CreatedAt: s.store.clock.Now()}
	s.store.urls[u.ID] = u
	s.store.byName[name] = u.ID
	return u, nil
}

func (s *session) CreateCheck(_ context.Context, check store.Check) (store.Check, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, ok := s.store.urls[check.URLID]; !ok {
		return store.Check{}, fmt.Errorf("insert check for url %d: %w", check.URLID, store.ErrNotFound)
	}
	s.store.nextChk++
	check.ID = s.store.nextChk
	check.CreatedAt = s.store.clock.Now()
	s.store.checks[check.URLID] = append(s.store.checks[check.URLID], check)
	return check, nil
}
