package checkout

import (
	"context"
	"sync"
	"time"

	"auto-order/internal/apperr"
)

type memEntry struct {
	session Session
	savedAt time.Time
}

// MemoryStore is a process-local SessionStore. A zero ttl keeps sessions until
// they are overwritten or deleted.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]memEntry
	locks    map[int64]*userLock
	ttl      time.Duration
	now      func() time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]memEntry),
		locks:    make(map[int64]*userLock),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Lock blocks until the user's lock is free or ctx is done.
func (m *MemoryStore) Lock(ctx context.Context, userID int64) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { m.release(userID, l) }, nil
	case <-ctx.Done():
		// hand the lock back once the pending acquire completes
		go func() {
			<-acquired
			m.release(userID, l)
		}()
		return nil, ctx.Err()
	}
}

func (m *MemoryStore) release(userID int64, l *userLock) {
	l.mu.Unlock()
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, userID)
	}
	m.mu.Unlock()
}

// Get returns a copy of the user's session.
func (m *MemoryStore) Get(ctx context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok {
		return nil, apperr.NotFound.New("no checkout in progress, pick a product from the catalog")
	}
	if m.ttl > 0 && m.now().Sub(e.savedAt) > m.ttl {
		delete(m.sessions, userID)
		return nil, apperr.NotFound.New("your checkout expired, pick a product again")
	}
	s := e.session
	return &s, nil
}

// Put stores a copy of s, replacing any previous session of the user.
func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = memEntry{session: *s, savedAt: m.now()}
	return nil
}

// Delete drops the user's session, if any.
func (m *MemoryStore) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
