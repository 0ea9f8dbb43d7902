package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	userID    int64
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps states in process memory. It suits tests and single
// instance deployments; entries expire lazily on Load.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore returns an empty store. A ttl of zero never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// WithClock replaces time.Now and returns m.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) expiry() time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.ttl)
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}

	st, err := Decode(e.data)
	if err != nil {
		return nil, err
	}
	st.ID = id
	return st, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, st *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st.UpdatedAt = m.now().Unix()
	m.entries[st.ID] = memoryEntry{data: Encode(st), userID: st.UserID, expiresAt: m.expiry()}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Rotate implements Store.
func (m *MemoryStore) Rotate(_ context.Context, st *State) error {
	next, err := NewID()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, st.ID)
	st.ID = next
	st.UpdatedAt = m.now().Unix()
	m.entries[next] = memoryEntry{data: Encode(st), userID: st.UserID, expiresAt: m.expiry()}
	return nil
}

// DeleteUser implements Store.
func (m *MemoryStore) DeleteUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entries {
		if e.userID == userID {
			delete(m.entries, id)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
